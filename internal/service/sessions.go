package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arturoeanton/autodeploy-agent/internal/metrics"
	"github.com/arturoeanton/autodeploy-agent/internal/port"
)

type sessionEntry struct {
	o       *Orchestrator
	expires time.Time
}

// Sessions holds the live workflow sessions in memory. A session lives as long
// as its token: it is dropped once ttl has passed since it was created.
type Sessions struct {
	deps Dependencies
	ttl  time.Duration // <= 0 never expires
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]sessionEntry
}

// NewSessions creates a registry whose sessions share deps and expire after ttl.
func NewSessions(deps Dependencies, ttl time.Duration) *Sessions {
	return &Sessions{
		deps:     deps,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]sessionEntry),
	}
}

// Create starts a new session in the CONFIG step. Expired sessions are swept first.
func (s *Sessions) Create() (string, *Orchestrator) {
	id := uuid.NewString()
	o := NewOrchestrator(s.deps)

	s.mu.Lock()
	now := s.now()
	s.sweepLocked(now)
	entry := sessionEntry{o: o}
	if s.ttl > 0 {
		entry.expires = now.Add(s.ttl)
	}
	s.sessions[id] = entry
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.SetActiveSessions(n)
	return id, o
}

// Get returns the session, or port.ErrSessionNotFound when it is unknown or expired.
func (s *Sessions) Get(id string) (*Orchestrator, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, port.ErrSessionNotFound
	}
	if s.expired(entry, s.now()) {
		s.Remove(id)
		return nil, port.ErrSessionNotFound
	}
	return entry.o, nil
}

// Remove drops a session.
func (s *Sessions) Remove(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.SetActiveSessions(n)
}

// Sweep drops every expired session and returns how many were removed.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	removed := s.sweepLocked(s.now())
	n := len(s.sessions)
	s.mu.Unlock()

	if removed > 0 {
		metrics.SetActiveSessions(n)
		slog.Info("expired sessions removed", "removed", removed, "active", n)
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Sessions) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Sessions) expired(e sessionEntry, now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// sweepLocked removes expired entries. Caller holds s.mu.
func (s *Sessions) sweepLocked(now time.Time) int {
	removed := 0
	for id, e := range s.sessions {
		if s.expired(e, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// ModelName returns the code generation model shared by all sessions.
func (s *Sessions) ModelName() string {
	if s.deps.Generator == nil {
		return ""
	}
	return s.deps.Generator.ModelName()
}

// Count returns the number of live sessions.
func (s *Sessions) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
