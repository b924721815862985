package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// ChatRoom is the persisted chat channel of a mission. There is at most one
// room per mission.
type ChatRoom struct {
	ID          uuid.UUID
	MissionID   uuid.UUID
	Name        string
	Members     []uuid.UUID
	CreatedAt   time.Time
	LastMessage *MessagePreview
}

type MessagePreview struct {
	MessageID uuid.UUID `json:"message_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sent_at"`
}

const previewLength = 80

func NewChatRoom(mission *Mission) *ChatRoom {
	members := make([]uuid.UUID, len(mission.Members))
	copy(members, mission.Members)
	return &ChatRoom{
		ID:        uuid.New(),
		MissionID: mission.ID,
		Name:      mission.Title,
		Members:   members,
		CreatedAt: time.Now().UTC(),
	}
}

func (r *ChatRoom) HasMember(userID uuid.UUID) bool {
	return slices.Contains(r.Members, userID)
}

func NewMessagePreview(msg *ChatMessage) MessagePreview {
	body := []rune(msg.Body)
	if len(body) > previewLength {
		body = append(body[:previewLength], '…')
	}
	return MessagePreview{
		MessageID: msg.ID,
		SenderID:  msg.SenderID,
		Body:      string(body),
		SentAt:    msg.CreatedAt,
	}
}
