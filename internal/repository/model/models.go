package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"size:255;not null"`
	Email     *string   `gorm:"size:255;uniqueIndex:idx_users_email,where:email IS NOT NULL"`
	Role      string    `gorm:"size:16;not null;default:member"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}

type Mission struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Title     string         `gorm:"size:255;not null"`
	CreatedBy uuid.UUID      `gorm:"type:uuid;not null;index"`
	Members   datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null"`
}

type ChatRoom struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey"`
	MissionID         uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null"`
	Name              string         `gorm:"size:255;not null"`
	Members           datatypes.JSON `gorm:"not null"`
	CreatedAt         time.Time      `gorm:"not null"`
	LastMessageID     *uuid.UUID     `gorm:"type:uuid"`
	LastMessageSender *uuid.UUID     `gorm:"type:uuid"`
	LastMessageBody   *string        `gorm:"size:512"`
	LastMessageAt     *time.Time
}

type ChatMessage struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	MissionID uuid.UUID      `gorm:"type:uuid;not null;index:idx_chat_messages_mission_created,priority:1"`
	SenderID  uuid.UUID      `gorm:"type:uuid;not null"`
	Body      string         `gorm:"type:text;not null"`
	CreatedAt time.Time      `gorm:"not null;index:idx_chat_messages_mission_created,priority:2"`
	ReadBy    datatypes.JSON `gorm:"not null"`
	Reactions datatypes.JSON `gorm:"not null"`
}

type AttendanceRecord struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_attendance_user_date,priority:1"`
	Date      time.Time  `gorm:"type:date;not null;uniqueIndex:idx_attendance_user_date,priority:2;index"`
	Status    string     `gorm:"size:16;not null"`
	SessionID *uuid.UUID `gorm:"type:uuid"`
	CreatedAt time.Time  `gorm:"not null"`
}

func (AttendanceRecord) TableName() string { return "attendance_records" }

// All lists the tables managed by AutoMigrate.
func All() []any {
	return []any{&User{}, &Mission{}, &ChatRoom{}, &ChatMessage{}, &AttendanceRecord{}}
}
