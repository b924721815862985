package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/missionops/internal/domain"
	"github.com/immxrtalbeast/missionops/internal/repository"
	"github.com/immxrtalbeast/missionops/lib/clock"
	"github.com/immxrtalbeast/missionops/lib/logger/sl"
	"github.com/leandro-lugaresi/hub"
	"go.uber.org/ratelimit"
)

// CodeGenerator returns a numeric code of exactly length digits.
type CodeGenerator func(length int) (string, error)

type AttendanceOptions struct {
	Window     time.Duration
	CodeLength int
	// Location decides which calendar day "today" is.
	Location *time.Location
	// ExposeCode puts the code into the attendance-started broadcast.
	ExposeCode bool
	// SweepRate caps absent-record writes per second.
	SweepRate int
	// MaxSubmitAttempts is the number of wrong codes a user may submit per
	// session. Zero disables the cap.
	MaxSubmitAttempts int
	Codes             CodeGenerator
}

// SweepReport summarises one absent sweep.
type SweepReport struct {
	Checked      int
	MarkedAbsent int
	Skipped      int
	Failed       int
}

type AttendanceService struct {
	users    repository.UserRepository
	records  repository.AttendanceRepository
	sessions *SessionRegistry
	bus      *hub.Hub
	clock    clock.Clock
	opts     AttendanceOptions
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewAttendanceService(
	users repository.UserRepository,
	records repository.AttendanceRepository,
	sessions *SessionRegistry,
	bus *hub.Hub,
	clk clock.Clock,
	opts AttendanceOptions,
	log *slog.Logger,
) *AttendanceService {
	if log == nil {
		log = slog.Default()
	}
	if clk == nil {
		clk = clock.New()
	}
	if sessions == nil {
		sessions = NewSessionRegistry()
	}
	if opts.Window <= 0 {
		opts.Window = 60 * time.Second
	}
	if opts.CodeLength <= 0 {
		opts.CodeLength = 4
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.SweepRate <= 0 {
		opts.SweepRate = 50
	}
	if opts.Codes == nil {
		opts.Codes = RandomCode
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &AttendanceService{
		users:    users,
		records:  records,
		sessions: sessions,
		bus:      bus,
		clock:    clk,
		opts:     opts,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start opens a new attendance window. Any session still active is
// cancelled first so at most one session accepts codes.
func (s *AttendanceService) Start(ctx context.Context, initiator *domain.User) (*domain.AttendanceSession, error) {
	const op = "service.attendance.start"
	log := s.log.With(slog.String("op", op))

	if !initiator.IsAdmin() {
		log.Warn("non-admin tried to start attendance", slog.String("user_id", userIDOf(initiator)))
		return nil, ErrForbidden
	}

	code, err := s.opts.Codes(s.opts.CodeLength)
	if err != nil {
		log.Error("failed to generate code", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.clock.Now()
	if prev := s.sessions.Active(now); prev != nil {
		s.cancelSession(prev)
		log.Info("previous session superseded", slog.String("session_id", prev.ID.String()))
	}
	s.sessions.Prune(now)

	session := domain.NewAttendanceSession(code, initiator.ID, now, s.opts.Window)
	s.sessions.Add(session)
	session.SetSweep(s.clock.AfterFunc(s.opts.Window, func() {
		s.sweepExpired(session)
	}))

	started := domain.AttendanceStarted{
		SessionID:     session.ID.String(),
		WindowSeconds: int(s.opts.Window / time.Second),
		ExpiresAt:     session.ExpiresAt,
	}
	if s.opts.ExposeCode {
		started.Code = session.Code
	}
	publish(s.bus, TopicAttendanceStarted, "", started)

	log.Info("attendance session started",
		slog.String("session_id", session.ID.String()),
		slog.String("initiator_id", initiator.ID.String()),
		slog.Time("expires_at", session.ExpiresAt),
	)
	return session, nil
}

// Submit marks user present for today when the code matches an active
// session. The uniqueness of (user, day) in the gateway is the only
// serialisation point between concurrent submissions.
func (s *AttendanceService) Submit(ctx context.Context, user *domain.User, sessionID uuid.UUID, code string) (*domain.AttendanceRecord, error) {
	const op = "service.attendance.submit"
	log := s.log.With(
		slog.String("op", op),
		slog.String("session_id", sessionID.String()),
		slog.String("user_id", userIDOf(user)),
	)

	if user == nil {
		return nil, ErrUnauthorized
	}

	now := s.clock.Now()
	session, ok := s.sessions.Get(sessionID)
	if !ok || !session.IsActive(now) {
		log.Debug("session expired or unknown")
		return nil, ErrSessionExpired
	}

	if limit := s.opts.MaxSubmitAttempts; limit > 0 && s.sessions.Failures(sessionID, user.ID) >= limit {
		log.Info("attempt cap reached")
		return nil, ErrTooManyAttempts
	}

	if subtle.ConstantTimeCompare([]byte(code), []byte(session.Code)) != 1 {
		n := s.sessions.RecordFailure(sessionID, user.ID)
		log.Info("incorrect code", slog.Int("failures", n))
		return nil, ErrIncorrectCode
	}

	record := domain.NewPresentRecord(user.ID, s.sessionDay(session), session.ID, now)
	if err := s.records.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrAttendanceExists) {
			log.Info("already marked today")
			return nil, ErrAlreadyMarked
		}
		log.Error("failed to save attendance", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("attendance marked present")
	return record, nil
}

// ActiveSession describes the current session to viewer. The code is only
// included for admins unless codes are exposed to everyone.
func (s *AttendanceService) ActiveSession(ctx context.Context, viewer *domain.User) (*domain.ActiveSessionData, bool) {
	now := s.clock.Now()
	session := s.sessions.Active(now)
	if session == nil {
		return nil, false
	}

	data := &domain.ActiveSessionData{
		SessionID:        session.ID.String(),
		ExpiresAt:        session.ExpiresAt,
		RemainingSeconds: int(session.Remaining(now) / time.Second),
	}
	if s.opts.ExposeCode || viewer.IsAdmin() {
		data.Code = session.Code
	}
	return data, true
}

// Cancel invalidates an active session before its window ends. No sweep
// runs for a cancelled session.
func (s *AttendanceService) Cancel(ctx context.Context, actor *domain.User, sessionID uuid.UUID) error {
	const op = "service.attendance.cancel"
	log := s.log.With(slog.String("op", op), slog.String("session_id", sessionID.String()))

	if !actor.IsAdmin() {
		return ErrForbidden
	}

	session, ok := s.sessions.Get(sessionID)
	if !ok || !session.IsActive(s.clock.Now()) {
		return ErrSessionExpired
	}

	s.cancelSession(session)
	log.Info("attendance session cancelled", slog.String("actor_id", actor.ID.String()))
	return nil
}

func (s *AttendanceService) cancelSession(session *domain.AttendanceSession) {
	if !session.Cancel() {
		return
	}
	s.sessions.Remove(session.ID)
	publish(s.bus, TopicAttendanceCancelled, "", domain.AttendanceCancelled{SessionID: session.ID.String()})
}

// ListDay returns the records of day. Members only see their own.
func (s *AttendanceService) ListDay(ctx context.Context, viewer *domain.User, day time.Time) ([]*domain.AttendanceRecord, error) {
	const op = "service.attendance.listDay"

	if viewer == nil {
		return nil, ErrUnauthorized
	}
	day = domain.Day(day, time.UTC)

	if viewer.IsAdmin() {
		records, err := s.records.ListByDate(ctx, day)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return records, nil
	}

	record, err := s.records.GetByUserAndDate(ctx, viewer.ID, day)
	if err != nil {
		if errors.Is(err, repository.ErrAttendanceNotFound) {
			return []*domain.AttendanceRecord{}, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return []*domain.AttendanceRecord{record}, nil
}

func (s *AttendanceService) sweepExpired(session *domain.AttendanceSession) {
	const op = "service.attendance.sweepExpired"
	log := s.log.With(slog.String("op", op), slog.String("session_id", session.ID.String()))

	report, err := s.Sweep(s.ctx, s.sessionDay(session))
	if err != nil {
		log.Error("absent sweep failed", sl.Err(err))
	}
	s.sessions.Remove(session.ID)

	log.Info("absent sweep finished",
		slog.Int("checked", report.Checked),
		slog.Int("marked_absent", report.MarkedAbsent),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
	)
}

// Sweep marks every user without a record for day as absent. Users that
// already have one are left alone, so running it twice is a no-op. A failed
// write is logged and the sweep moves on.
func (s *AttendanceService) Sweep(ctx context.Context, day time.Time) (SweepReport, error) {
	const op = "service.attendance.sweep"
	log := s.log.With(slog.String("op", op), slog.String("date", day.Format(time.DateOnly)))

	var report SweepReport

	users, err := s.users.List(ctx)
	if err != nil {
		return report, fmt.Errorf("%s: %w", op, err)
	}

	rl := ratelimit.New(s.opts.SweepRate, ratelimit.WithoutSlack)
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("%s: %w", op, err)
		}
		report.Checked++

		_, err := s.records.GetByUserAndDate(ctx, user.ID, day)
		if err == nil {
			report.Skipped++
			continue
		}
		if !errors.Is(err, repository.ErrAttendanceNotFound) {
			report.Failed++
			log.Error("failed to read attendance", slog.String("user_id", user.ID.String()), sl.Err(err))
			continue
		}

		rl.Take()
		err = s.records.Create(ctx, domain.NewAbsentRecord(user.ID, day, s.clock.Now()))
		switch {
		case err == nil:
			report.MarkedAbsent++
		case errors.Is(err, repository.ErrAttendanceExists):
			report.Skipped++
		default:
			report.Failed++
			log.Error("failed to mark absent", slog.String("user_id", user.ID.String()), sl.Err(err))
		}
	}

	return report, nil
}

// Close stops pending sweeps and aborts a running one.
func (s *AttendanceService) Close() {
	s.cancel()
	s.sessions.Close()
}

// RandomCode draws a uniformly distributed numeric code, zero padded to
// length digits.
func RandomCode(length int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}

// sessionDay is the calendar day a session marks attendance for, even when
// its window runs past midnight.
func (s *AttendanceService) sessionDay(session *domain.AttendanceSession) time.Time {
	return domain.Day(session.CreatedAt, s.opts.Location)
}

func userIDOf(u *domain.User) string {
	if u == nil {
		return ""
	}
	return u.ID.String()
}
