package domain

import (
	"time"

	"github.com/google/uuid"
)

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
)

// AttendanceRecord is unique per (UserID, Date). Date is the calendar day
// at midnight UTC.
type AttendanceRecord struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	Date      time.Time        `json:"date"`
	Status    AttendanceStatus `json:"status"`
	SessionID *uuid.UUID       `json:"session_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

func NewPresentRecord(userID uuid.UUID, day time.Time, sessionID uuid.UUID, at time.Time) *AttendanceRecord {
	sid := sessionID
	return &AttendanceRecord{
		ID:        uuid.New(),
		UserID:    userID,
		Date:      day,
		Status:    AttendancePresent,
		SessionID: &sid,
		CreatedAt: at.UTC(),
	}
}

func NewAbsentRecord(userID uuid.UUID, day time.Time, at time.Time) *AttendanceRecord {
	return &AttendanceRecord{
		ID:        uuid.New(),
		UserID:    userID,
		Date:      day,
		Status:    AttendanceAbsent,
		CreatedAt: at.UTC(),
	}
}

// Day returns the calendar day of t as observed in loc, normalised to
// midnight UTC so it can be compared and stored independently of the zone.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
