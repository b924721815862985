package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/missionops/internal/domain"
	"github.com/immxrtalbeast/missionops/internal/repository"
	"github.com/immxrtalbeast/missionops/lib/logger/sl"
)

type CreateUserInput struct {
	Name  string
	Email string
	Role  domain.Role
}

type UserService struct {
	users repository.UserRepository
	log   *slog.Logger
}

func NewUserService(users repository.UserRepository, log *slog.Logger) *UserService {
	if log == nil {
		log = slog.Default()
	}
	return &UserService{users: users, log: log}
}

// CreateUser registers a user. Only admins may create users, except for the
// very first one, which becomes an admin.
func (s *UserService) CreateUser(ctx context.Context, actor *domain.User, in CreateUserInput) (*domain.User, error) {
	const op = "service.user.create"
	log := s.log.With(slog.String("op", op))

	name := strings.TrimSpace(in.Name)
	if name == "" {
		log.Info("no name provided")
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	role := in.Role
	if role == "" {
		role = domain.RoleMember
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	if !actor.IsAdmin() {
		n, err := s.users.Count(ctx)
		if err != nil {
			log.Error("failed to count users", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if n > 0 {
			return nil, ErrForbidden
		}
		log.Info("bootstrapping first admin")
		role = domain.RoleAdmin
	}

	user := domain.NewUser(name, strings.ToLower(strings.TrimSpace(in.Email)), role)
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserEmailExists) {
			return nil, ErrEmailTaken
		}
		log.Error("failed to create user", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user created", slog.String("user_id", user.ID.String()), slog.String("role", string(user.Role)))
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateUser saves profile changes. Role changes are not accepted here.
func (s *UserService) UpdateUser(ctx context.Context, user *domain.User) error {
	const op = "service.user.update"
	if user == nil {
		return fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	log := s.log.With(slog.String("op", op), slog.String("user_id", user.ID.String()))

	user.Name = strings.TrimSpace(user.Name)
	if user.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	stored, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	user.Role = stored.Role
	user.CreatedAt = stored.CreatedAt
	user.UpdatedAt = time.Now().UTC()

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserEmailExists) {
			return ErrEmailTaken
		}
		log.Error("failed to update user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
