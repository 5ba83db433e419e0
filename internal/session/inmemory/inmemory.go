// Package inmemory is the fallback session backend used when no redis is
// configured. Each session holds its turns in a slice guarded by the store
// mutex; a time.AfterFunc timer evicts the session after the TTL elapses
// with no further writes. Timers are stopped and re-armed under the same
// lock as the append, and all cancelled on Close.
package inmemory

import (
	"context"
	"sync"
	"time"

	"newsrag/internal/session"
)

type entry struct {
	turns     []session.Turn
	timer     *time.Timer
	expiresAt time.Time
}

type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*entry
}

func New(ttl time.Duration) *Store {
	return &Store{
		ttl:      ttl,
		sessions: make(map[string]*entry),
	}
}

func (s *Store) Append(_ context.Context, sessionID string, turn session.Turn) error {
	if turn.Timestamp == 0 {
		turn.Timestamp = time.Now().UnixMilli()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		e = &entry{}
		s.sessions[sessionID] = e
	}
	e.turns = append(e.turns, turn)
	e.expiresAt = time.Now().Add(s.ttl)
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(s.ttl, func() { s.evict(sessionID) })
	return nil
}

// evict removes a session whose TTL ran out. A timer that fired while an
// append was re-arming it finds a fresh expiresAt and leaves the entry alone.
func (s *Store) evict(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok || time.Now().Before(e.expiresAt) {
		return
	}
	delete(s.sessions, sessionID)
}

func (s *Store) History(_ context.Context, sessionID string) ([]session.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok || !time.Now().Before(e.expiresAt) {
		return nil, nil
	}
	out := make([]session.Turn, len(e.turns))
	copy(out, e.turns)
	return out, nil
}

func (s *Store) Reset(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[sessionID]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(s.sessions, sessionID)
	}
	return nil
}

// Close cancels every pending expiry timer and drops all sessions.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.sessions {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(s.sessions, id)
	}
	return nil
}
