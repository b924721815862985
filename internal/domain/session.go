package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/missionops/lib/clock"
)

// AttendanceSession is a time-boxed one-time code. It is never persisted and
// is active while now < ExpiresAt.
type AttendanceSession struct {
	ID          uuid.UUID
	Code        string
	InitiatorID uuid.UUID
	CreatedAt   time.Time
	ExpiresAt   time.Time

	mu        sync.Mutex
	sweep     clock.Timer
	cancelled bool
}

func NewAttendanceSession(code string, initiatorID uuid.UUID, now time.Time, window time.Duration) *AttendanceSession {
	return &AttendanceSession{
		ID:          uuid.New(),
		Code:        code,
		InitiatorID: initiatorID,
		CreatedAt:   now.UTC(),
		ExpiresAt:   now.UTC().Add(window),
	}
}

func (s *AttendanceSession) IsActive(now time.Time) bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	cancelled := s.cancelled
	s.mu.Unlock()
	return !cancelled && now.Before(s.ExpiresAt)
}

func (s *AttendanceSession) Window() time.Duration {
	return s.ExpiresAt.Sub(s.CreatedAt)
}

// Remaining is the time left in the window, never negative.
func (s *AttendanceSession) Remaining(now time.Time) time.Duration {
	left := s.ExpiresAt.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// SetSweep attaches the timer that fires the absent sweep at expiry.
func (s *AttendanceSession) SetSweep(t clock.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep = t
}

// Cancel invalidates the session and stops its sweep. It reports false when
// the session was already cancelled.
func (s *AttendanceSession) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return false
	}
	s.cancelled = true
	if s.sweep != nil {
		s.sweep.Stop()
	}
	return true
}

// StopSweep stops the pending sweep without invalidating the session.
func (s *AttendanceSession) StopSweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sweep != nil {
		s.sweep.Stop()
	}
}
