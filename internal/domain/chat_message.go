package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// ChatMessage is append-only; only ReadBy and Reactions grow after creation.
type ChatMessage struct {
	ID        uuid.UUID
	MissionID uuid.UUID
	SenderID  uuid.UUID
	Body      string
	CreatedAt time.Time
	ReadBy    []uuid.UUID
	Reactions []Reaction
}

type Reaction struct {
	UserID    uuid.UUID `json:"userId"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewChatMessage(missionID uuid.UUID, senderID uuid.UUID, body string, at time.Time) *ChatMessage {
	return &ChatMessage{
		ID:        uuid.New(),
		MissionID: missionID,
		SenderID:  senderID,
		Body:      body,
		CreatedAt: at.UTC(),
		ReadBy:    []uuid.UUID{senderID},
	}
}

// MarkRead adds userID to the read-by set and reports whether it changed.
func (m *ChatMessage) MarkRead(userID uuid.UUID) bool {
	if slices.Contains(m.ReadBy, userID) {
		return false
	}
	m.ReadBy = append(m.ReadBy, userID)
	return true
}

// AddReaction appends the reaction unless the same user already reacted with
// the same emoji.
func (m *ChatMessage) AddReaction(r Reaction) bool {
	for _, existing := range m.Reactions {
		if existing.UserID == r.UserID && existing.Emoji == r.Emoji {
			return false
		}
	}
	m.Reactions = append(m.Reactions, r)
	return true
}
