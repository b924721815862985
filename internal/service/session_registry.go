package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/missionops/internal/domain"
)

type sessionEntry struct {
	session  *domain.AttendanceSession
	failures map[uuid.UUID]int
}

// SessionRegistry holds the attendance sessions of this process. Sessions
// are never persisted, so a multi-instance deployment sees a different
// registry per instance.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*sessionEntry
	latest   uuid.UUID
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[uuid.UUID]*sessionEntry)}
}

func (r *SessionRegistry) Add(s *domain.AttendanceSession) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.ID] = &sessionEntry{session: s, failures: make(map[uuid.UUID]int)}
	r.latest = s.ID
}

func (r *SessionRegistry) Get(id uuid.UUID) (*domain.AttendanceSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Active returns the most recently started session if it is still active.
func (r *SessionRegistry) Active(now time.Time) *domain.AttendanceSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[r.latest]
	if !ok || !e.session.IsActive(now) {
		return nil
	}
	return e.session
}

func (r *SessionRegistry) Remove(id uuid.UUID) *domain.AttendanceSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil
	}
	delete(r.sessions, id)
	if r.latest == id {
		r.latest = uuid.Nil
	}
	return e.session
}

// RecordFailure counts a wrong code for (session, user) and returns the new
// total.
func (r *SessionRegistry) RecordFailure(sessionID, userID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		return 0
	}
	e.failures[userID]++
	return e.failures[userID]
}

func (r *SessionRegistry) Failures(sessionID, userID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		return 0
	}
	return e.failures[userID]
}

// Prune drops sessions that are no longer active. Sweeps of expired sessions
// have already fired by the time they are pruned.
func (r *SessionRegistry) Prune(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, e := range r.sessions {
		if e.session.IsActive(now) {
			continue
		}
		delete(r.sessions, id)
		if r.latest == id {
			r.latest = uuid.Nil
		}
		n++
	}
	return n
}

// Close stops every pending sweep and empties the registry.
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.sessions {
		e.session.StopSweep()
		delete(r.sessions, id)
	}
	r.latest = uuid.Nil
}
