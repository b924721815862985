package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/missionops/internal/domain"
	"github.com/immxrtalbeast/missionops/internal/repository"
	"github.com/immxrtalbeast/missionops/lib/logger/sl"
)

type MissionService struct {
	users    repository.UserRepository
	missions repository.MissionRepository
	chat     repository.ChatRepository
	log      *slog.Logger
}

func NewMissionService(users repository.UserRepository, missions repository.MissionRepository, chat repository.ChatRepository, log *slog.Logger) *MissionService {
	if log == nil {
		log = slog.Default()
	}
	return &MissionService{users: users, missions: missions, chat: chat, log: log}
}

// CreateMission stores a mission and the chat room that belongs to it.
func (s *MissionService) CreateMission(ctx context.Context, actor *domain.User, title string, members []uuid.UUID) (*domain.Mission, *domain.ChatRoom, error) {
	const op = "service.mission.create"
	log := s.log.With(slog.String("op", op), slog.String("actor_id", userIDOf(actor)))

	if !actor.IsAdmin() {
		return nil, nil, ErrForbidden
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	for _, id := range members {
		if _, err := s.users.GetByID(ctx, id); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil, nil, fmt.Errorf("%w: unknown member %s", ErrInvalidInput, id)
			}
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	mission := domain.NewMission(title, actor.ID, members)
	if err := s.missions.Create(ctx, mission); err != nil {
		log.Error("failed to create mission", sl.Err(err))
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	room := domain.NewChatRoom(mission)
	if err := s.chat.CreateRoom(ctx, room); err != nil {
		log.Error("failed to create chat room", sl.Err(err))
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("mission created",
		slog.String("mission_id", mission.ID.String()),
		slog.Int("members", len(mission.Members)),
	)
	return mission, room, nil
}
