package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/missionops/internal/domain"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// The attendance errors double as the reason shown to the submitter.
	ErrSessionExpired  = errors.New("expired or not found")
	ErrIncorrectCode   = errors.New("incorrect code, try again")
	ErrAlreadyMarked   = errors.New("already marked today")
	ErrTooManyAttempts = errors.New("too many attempts")

	ErrInvalidMessage  = errors.New("invalid message")
	ErrInvalidReaction = errors.New("reaction must be a single emoji")
	ErrRoomNotFound    = errors.New("room not found")
	ErrNotRoomMember   = errors.New("not a member of this room")
	ErrMessageNotFound = errors.New("message not found")

	ErrInvalidInput = errors.New("invalid input")
	ErrEmailTaken   = errors.New("email already in use")
)

// InternalErrorMessage is what clients see for unexpected failures.
const InternalErrorMessage = "internal error, try again later"

var publicErrors = []error{
	ErrUnauthorized,
	ErrForbidden,
	ErrSessionExpired,
	ErrIncorrectCode,
	ErrAlreadyMarked,
	ErrTooManyAttempts,
	ErrInvalidMessage,
	ErrInvalidReaction,
	ErrRoomNotFound,
	ErrNotRoomMember,
	ErrMessageNotFound,
	ErrInvalidInput,
	ErrEmailTaken,
}

// PublicMessage returns the human-readable reason for err that is safe to
// hand to a client. Unknown errors collapse to InternalErrorMessage.
func PublicMessage(err error) string {
	for _, known := range publicErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return InternalErrorMessage
}

// Event bus topics published by the services and fanned out by the realtime
// connection manager.
const (
	TopicAttendanceStarted   = "attendance.started"
	TopicAttendanceCancelled = "attendance.cancelled"
	TopicChatMessage         = "chat.message"
	TopicChatReaction        = "chat.reaction"
)

// Field keys carried by bus messages.
const (
	// FieldEvent holds the domain.ServerEvent to deliver.
	FieldEvent = "event"
	// FieldRoom holds the delivery group key. Absent means everyone.
	FieldRoom = "room"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

type AttendanceInteractor interface {
	Start(ctx context.Context, initiator *domain.User) (*domain.AttendanceSession, error)
	Submit(ctx context.Context, user *domain.User, sessionID uuid.UUID, code string) (*domain.AttendanceRecord, error)
	ActiveSession(ctx context.Context, viewer *domain.User) (*domain.ActiveSessionData, bool)
	Cancel(ctx context.Context, actor *domain.User, sessionID uuid.UUID) error
	ListDay(ctx context.Context, viewer *domain.User, day time.Time) ([]*domain.AttendanceRecord, error)
}

type ChatInteractor interface {
	Join(ctx context.Context, user *domain.User, roomID uuid.UUID) (*domain.ChatRoom, error)
	Send(ctx context.Context, user *domain.User, in SendInput) (*domain.ReceiveMessage, error)
	MarkRead(ctx context.Context, user *domain.User, messageID uuid.UUID) error
	React(ctx context.Context, user *domain.User, messageID uuid.UUID, emoji string) (*domain.MessageReaction, error)
	History(ctx context.Context, user *domain.User, missionID uuid.UUID, limit int) ([]*domain.ReceiveMessage, error)
}

type UserInteractor interface {
	CreateUser(ctx context.Context, actor *domain.User, in CreateUserInput) (*domain.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
}

type MissionInteractor interface {
	CreateMission(ctx context.Context, actor *domain.User, title string, members []uuid.UUID) (*domain.Mission, *domain.ChatRoom, error)
}
