package domain

import (
	"encoding/json"
	"time"
)

// Event names on the realtime surface.
const (
	EventStartAttendance     = "start-attendance"
	EventAttendanceStarted   = "attendance-started"
	EventOTPGenerated        = "otp-generated"
	EventSubmitOTP           = "submit-otp"
	EventAttendanceSuccess   = "attendance-success"
	EventAttendanceFailed    = "attendance-failed"
	EventGetActiveSession    = "get-active-session"
	EventActiveSessionData   = "active-session-data"
	EventCancelAttendance    = "cancel-attendance"
	EventAttendanceCancelled = "attendance-cancelled"

	EventJoinMissionRoom = "joinMissionRoom"
	EventSendMessage     = "sendMessage"
	EventReceiveMessage  = "receiveMessage"
	EventMessageError    = "messageError"
	EventMarkRead        = "markRead"
	EventReactMessage    = "reactMessage"
	EventMessageReaction = "messageReaction"

	EventUnauthorized = "unauthorized"
	EventError        = "error"
)

// Envelope is the frame exchanged over the socket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ClientEvent is one of the typed client→server variants.
type ClientEvent interface {
	EventName() string
}

type StartAttendance struct {
	InitiatorID string `json:"initiatorId"`
}

type SubmitOTP struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId" validate:"required,uuid"`
	Code      string `json:"code" validate:"required,numeric,max=9"`
}

type GetActiveSession struct{}

type CancelAttendance struct {
	SessionID string `json:"sessionId" validate:"required,uuid"`
}

type JoinMissionRoom struct {
	RoomID string `json:"roomId" validate:"required,uuid"`
}

type SendMessage struct {
	RoomID   string `json:"roomId" validate:"required,uuid"`
	SenderID string `json:"senderId" validate:"required,uuid"`
	Body     string `json:"body" validate:"required"`
}

type MarkRead struct {
	MessageID string `json:"messageId" validate:"required,uuid"`
}

type ReactMessage struct {
	MessageID string `json:"messageId" validate:"required,uuid"`
	Emoji     string `json:"emoji" validate:"required,max=32"`
}

func (StartAttendance) EventName() string  { return EventStartAttendance }
func (SubmitOTP) EventName() string        { return EventSubmitOTP }
func (GetActiveSession) EventName() string { return EventGetActiveSession }
func (CancelAttendance) EventName() string { return EventCancelAttendance }
func (JoinMissionRoom) EventName() string  { return EventJoinMissionRoom }
func (SendMessage) EventName() string      { return EventSendMessage }
func (MarkRead) EventName() string         { return EventMarkRead }
func (ReactMessage) EventName() string     { return EventReactMessage }

// ServerEvent is one of the typed server→client variants.
type ServerEvent interface {
	EventName() string
}

type AttendanceStarted struct {
	SessionID     string    `json:"sessionId"`
	WindowSeconds int       `json:"windowSeconds"`
	ExpiresAt     time.Time `json:"expiresAt"`
	Code          string    `json:"code,omitempty"`
}

type OTPGenerated struct {
	Code          string `json:"code"`
	SessionID     string `json:"sessionId"`
	WindowSeconds int    `json:"windowSeconds"`
}

type AttendanceSuccess struct {
	Message string `json:"message"`
}

type AttendanceFailed struct {
	Message string `json:"message"`
}

type ActiveSessionData struct {
	Code             string    `json:"code,omitempty"`
	SessionID        string    `json:"sessionId"`
	ExpiresAt        time.Time `json:"expiresAt"`
	RemainingSeconds int       `json:"remainingSeconds"`
}

type AttendanceCancelled struct {
	SessionID string `json:"sessionId"`
}

type ReceiveMessage struct {
	ID        string      `json:"id"`
	RoomID    string      `json:"roomId"`
	Body      string      `json:"body"`
	Sender    UserSummary `json:"sender"`
	Timestamp time.Time   `json:"timestamp"`
}

type MessageReaction struct {
	MessageID string     `json:"messageId"`
	RoomID    string     `json:"roomId"`
	Reactions []Reaction `json:"reactions"`
}

type MessageError struct {
	Message string `json:"message"`
}

type Unauthorized struct {
	Message string `json:"message"`
}

type ErrorNotice struct {
	Message string `json:"message"`
}

func (AttendanceStarted) EventName() string   { return EventAttendanceStarted }
func (OTPGenerated) EventName() string        { return EventOTPGenerated }
func (AttendanceSuccess) EventName() string   { return EventAttendanceSuccess }
func (AttendanceFailed) EventName() string    { return EventAttendanceFailed }
func (ActiveSessionData) EventName() string   { return EventActiveSessionData }
func (AttendanceCancelled) EventName() string { return EventAttendanceCancelled }
func (ReceiveMessage) EventName() string      { return EventReceiveMessage }
func (MessageReaction) EventName() string     { return EventMessageReaction }
func (MessageError) EventName() string        { return EventMessageError }
func (Unauthorized) EventName() string        { return EventUnauthorized }
func (ErrorNotice) EventName() string         { return EventError }

func NewReceiveMessage(msg *ChatMessage, sender UserSummary) ReceiveMessage {
	return ReceiveMessage{
		ID:        msg.ID.String(),
		RoomID:    msg.MissionID.String(),
		Body:      msg.Body,
		Sender:    sender,
		Timestamp: msg.CreatedAt,
	}
}
