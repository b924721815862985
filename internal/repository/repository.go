package repository

//go:generate mockgen -source=repository.go -destination=mocks/repository_mock.go -package=mocks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/missionops/internal/domain"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserEmailExists    = errors.New("user with email already exists")
	ErrMissionNotFound    = errors.New("mission not found")
	ErrChatRoomNotFound   = errors.New("chat room not found")
	ErrChatRoomExists     = errors.New("chat room for mission already exists")
	ErrMessageNotFound    = errors.New("message not found")
	ErrAttendanceNotFound = errors.New("attendance record not found")
	// ErrAttendanceExists is the uniqueness conflict on (user, date).
	ErrAttendanceExists = errors.New("attendance already recorded for this day")
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	List(ctx context.Context) ([]*domain.User, error)
	Count(ctx context.Context) (int64, error)
}

type MissionRepository interface {
	Create(ctx context.Context, mission *domain.Mission) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Mission, error)
}

type ChatRepository interface {
	CreateRoom(ctx context.Context, room *domain.ChatRoom) error
	GetRoomByMission(ctx context.Context, missionID uuid.UUID) (*domain.ChatRoom, error)
	UpdateRoomPreview(ctx context.Context, missionID uuid.UUID, preview domain.MessagePreview) error
	CreateMessage(ctx context.Context, msg *domain.ChatMessage) error
	GetMessage(ctx context.Context, id uuid.UUID) (*domain.ChatMessage, error)
	// ListMessages returns up to limit most recent messages, oldest first.
	ListMessages(ctx context.Context, missionID uuid.UUID, limit int) ([]*domain.ChatMessage, error)
	MarkRead(ctx context.Context, messageID uuid.UUID, userID uuid.UUID) error
	AddReaction(ctx context.Context, messageID uuid.UUID, reaction domain.Reaction) (*domain.ChatMessage, error)
}

type AttendanceRepository interface {
	// Create fails with ErrAttendanceExists when the user already has a
	// record for record.Date.
	Create(ctx context.Context, record *domain.AttendanceRecord) error
	GetByUserAndDate(ctx context.Context, userID uuid.UUID, date time.Time) (*domain.AttendanceRecord, error)
	ListByDate(ctx context.Context, date time.Time) ([]*domain.AttendanceRecord, error)
}

// Store groups the gateways of one backend.
type Store struct {
	Users      UserRepository
	Missions   MissionRepository
	Chat       ChatRepository
	Attendance AttendanceRepository
	close      func(ctx context.Context) error
}

func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close(ctx)
}

func NewMemoryStore() *Store {
	return &Store{
		Users:      NewInMemoryUserRepository(),
		Missions:   NewInMemoryMissionRepository(),
		Chat:       NewInMemoryChatRepository(),
		Attendance: NewInMemoryAttendanceRepository(),
	}
}
