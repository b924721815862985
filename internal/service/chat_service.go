package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/forPelevin/gomoji"
	"github.com/google/uuid"
	"github.com/immxrtalbeast/missionops/internal/domain"
	"github.com/immxrtalbeast/missionops/internal/repository"
	"github.com/immxrtalbeast/missionops/lib/clock"
	"github.com/immxrtalbeast/missionops/lib/logger/sl"
	"github.com/leandro-lugaresi/hub"
)

const maxChatMessageLength = 4000

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// SendInput is the raw sendMessage payload.
type SendInput struct {
	RoomID   string
	SenderID string
	Body     string
}

type ChatService struct {
	users repository.UserRepository
	chat  repository.ChatRepository
	bus   *hub.Hub
	clock clock.Clock
	log   *slog.Logger

	// one writer per room keeps delivery order equal to persistence order
	roomLocks sync.Map
}

func NewChatService(users repository.UserRepository, chat repository.ChatRepository, bus *hub.Hub, clk clock.Clock, log *slog.Logger) *ChatService {
	if log == nil {
		log = slog.Default()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &ChatService{
		users: users,
		chat:  chat,
		bus:   bus,
		clock: clk,
		log:   log,
	}
}

// RoomKey is the delivery group key of a mission room.
func RoomKey(missionID uuid.UUID) string {
	return missionID.String()
}

// Join checks that user may receive the room of mission roomID.
func (s *ChatService) Join(ctx context.Context, user *domain.User, roomID uuid.UUID) (*domain.ChatRoom, error) {
	const op = "service.chat.join"
	log := s.log.With(
		slog.String("op", op),
		slog.String("room_id", roomID.String()),
		slog.String("user_id", userIDOf(user)),
	)

	room, err := s.roomFor(ctx, user, roomID)
	if err != nil {
		log.Info("join rejected", sl.Err(err))
		return nil, err
	}

	log.Debug("joined room")
	return room, nil
}

// Send persists a message and fans it out to the room. Incomplete payloads
// and payloads whose sender differs from user fail with ErrInvalidMessage
// and are expected to be dropped without a reply.
func (s *ChatService) Send(ctx context.Context, user *domain.User, in SendInput) (*domain.ReceiveMessage, error) {
	const op = "service.chat.send"
	log := s.log.With(
		slog.String("op", op),
		slog.String("room_id", in.RoomID),
		slog.String("user_id", userIDOf(user)),
	)

	body := strings.TrimSpace(in.Body)
	if user == nil || in.RoomID == "" || in.SenderID == "" || body == "" {
		log.Warn("dropping incomplete message")
		return nil, ErrInvalidMessage
	}
	if utf8.RuneCountInString(body) > maxChatMessageLength {
		log.Warn("dropping oversized message")
		return nil, ErrInvalidMessage
	}

	roomID, err := uuid.Parse(in.RoomID)
	if err != nil {
		log.Warn("dropping message with malformed room id")
		return nil, ErrInvalidMessage
	}
	senderID, err := uuid.Parse(in.SenderID)
	if err != nil || senderID != user.ID {
		log.Warn("dropping message with foreign sender id", slog.String("sender_id", in.SenderID))
		return nil, ErrInvalidMessage
	}

	room, err := s.roomFor(ctx, user, roomID)
	if err != nil {
		log.Info("send rejected", sl.Err(err))
		return nil, err
	}

	lock := s.roomLock(room.MissionID)
	lock.Lock()
	defer lock.Unlock()

	msg := domain.NewChatMessage(room.MissionID, user.ID, body, s.clock.Now())
	if err := s.chat.CreateMessage(ctx, msg); err != nil {
		log.Error("failed to save message", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.chat.UpdateRoomPreview(ctx, room.MissionID, domain.NewMessagePreview(msg)); err != nil {
		log.Warn("failed to update room preview", sl.Err(err))
	}

	sender, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		log.Warn("failed to re-read sender, using connection identity", sl.Err(err))
		sender = user
	}

	event := domain.NewReceiveMessage(msg, sender.Summary())
	publish(s.bus, TopicChatMessage, RoomKey(room.MissionID), event)

	log.Info("message sent", slog.String("message_id", msg.ID.String()))
	return &event, nil
}

func (s *ChatService) MarkRead(ctx context.Context, user *domain.User, messageID uuid.UUID) error {
	const op = "service.chat.markRead"
	log := s.log.With(slog.String("op", op), slog.String("message_id", messageID.String()))

	if user == nil {
		return ErrUnauthorized
	}

	if err := s.chat.MarkRead(ctx, messageID, user.ID); err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return ErrMessageNotFound
		}
		log.Error("failed to mark read", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// React adds a single-emoji reaction and broadcasts the new reaction list
// to the message's room.
func (s *ChatService) React(ctx context.Context, user *domain.User, messageID uuid.UUID, emoji string) (*domain.MessageReaction, error) {
	const op = "service.chat.react"
	log := s.log.With(slog.String("op", op), slog.String("message_id", messageID.String()))

	if user == nil {
		return nil, ErrUnauthorized
	}
	if err := ValidateReaction(emoji); err != nil {
		return nil, err
	}

	msg, err := s.chat.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.roomFor(ctx, user, msg.MissionID); err != nil {
		return nil, err
	}

	updated, err := s.chat.AddReaction(ctx, messageID, domain.Reaction{
		UserID:    user.ID,
		Emoji:     emoji,
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		log.Error("failed to add reaction", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	event := domain.MessageReaction{
		MessageID: updated.ID.String(),
		RoomID:    updated.MissionID.String(),
		Reactions: updated.Reactions,
	}
	publish(s.bus, TopicChatReaction, RoomKey(updated.MissionID), event)
	return &event, nil
}

// History returns up to limit of the latest messages of a room, oldest first.
func (s *ChatService) History(ctx context.Context, user *domain.User, missionID uuid.UUID, limit int) ([]*domain.ReceiveMessage, error) {
	const op = "service.chat.history"

	if _, err := s.roomFor(ctx, user, missionID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	messages, err := s.chat.ListMessages(ctx, missionID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	senders := make(map[uuid.UUID]domain.UserSummary)
	result := make([]*domain.ReceiveMessage, 0, len(messages))
	for _, msg := range messages {
		summary, ok := senders[msg.SenderID]
		if !ok {
			summary = domain.UserSummary{ID: msg.SenderID.String()}
			if sender, err := s.users.GetByID(ctx, msg.SenderID); err == nil {
				summary = sender.Summary()
			}
			senders[msg.SenderID] = summary
		}
		event := domain.NewReceiveMessage(msg, summary)
		result = append(result, &event)
	}
	return result, nil
}

func (s *ChatService) roomFor(ctx context.Context, user *domain.User, missionID uuid.UUID) (*domain.ChatRoom, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}

	room, err := s.chat.GetRoomByMission(ctx, missionID)
	if err != nil {
		if errors.Is(err, repository.ErrChatRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	if !user.IsAdmin() && !room.HasMember(user.ID) {
		return nil, ErrNotRoomMember
	}
	return room, nil
}

func (s *ChatService) roomLock(missionID uuid.UUID) *sync.Mutex {
	lock, _ := s.roomLocks.LoadOrStore(missionID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// ValidateReaction accepts exactly one emoji and nothing else.
func ValidateReaction(reaction string) error {
	if reaction == "" || len(gomoji.RemoveEmojis(reaction)) > 0 {
		return ErrInvalidReaction
	}
	if len(gomoji.FindAll(reaction)) != 1 {
		return ErrInvalidReaction
	}
	return nil
}
