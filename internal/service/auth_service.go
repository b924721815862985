package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/immxrtalbeast/missionops/internal/domain"
	"github.com/immxrtalbeast/missionops/internal/repository"
	"github.com/immxrtalbeast/missionops/lib/clock"
	"github.com/immxrtalbeast/missionops/lib/logger/sl"
)

// Claims is the access token payload. Role is informational only; the
// persisted user decides what a connection may do.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type AuthService struct {
	users  repository.UserRepository
	secret []byte
	ttl    time.Duration
	leeway time.Duration
	clock  clock.Clock
	log    *slog.Logger
}

func NewAuthService(users repository.UserRepository, secret string, ttl, leeway time.Duration, clk clock.Clock, log *slog.Logger) *AuthService {
	if log == nil {
		log = slog.Default()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &AuthService{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		leeway: leeway,
		clock:  clk,
		log:    log,
	}
}

// IssueToken signs an HS256 access token for user.
func (s *AuthService) IssueToken(user *domain.User) (string, error) {
	const op = "service.auth.issue"

	now := s.clock.Now()
	claims := Claims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

// ParseToken verifies the signature and expiry of token and returns its
// subject.
func (s *AuthService) ParseToken(token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, fmt.Errorf("%w: missing token", ErrUnauthorized)
	}

	var claims Claims
	parser := jwt.Parser{
		ValidMethods:         []string{jwt.SigningMethodHS256.Alg()},
		SkipClaimsValidation: true,
	}
	if _, err := parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	now := s.clock.Now()
	if !claims.VerifyExpiresAt(now.Add(-s.leeway), true) {
		return uuid.Nil, fmt.Errorf("%w: token expired", ErrUnauthorized)
	}
	if !claims.VerifyNotBefore(now.Add(s.leeway), false) {
		return uuid.Nil, fmt.Errorf("%w: token not valid yet", ErrUnauthorized)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid subject", ErrUnauthorized)
	}
	return userID, nil
}

// Authenticate resolves token to a persisted user. Every failure wraps
// ErrUnauthorized except gateway errors other than not-found.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	const op = "service.auth.authenticate"
	log := s.log.With(slog.String("op", op))

	userID, err := s.ParseToken(token)
	if err != nil {
		log.Debug("token rejected", sl.Err(err))
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			log.Debug("unknown subject", slog.String("user_id", userID.String()))
			return nil, fmt.Errorf("%w: unknown user", ErrUnauthorized)
		}
		log.Error("failed to resolve user", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// ExtractToken looks for a credential in the Authorization header, then the
// "token" query parameter, then the named cookie.
func ExtractToken(r *http.Request, cookieName string) string {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return h
	}

	if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
		return t
	}

	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil {
			return strings.TrimSpace(c.Value)
		}
	}

	return ""
}
