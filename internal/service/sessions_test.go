package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/autodeploy-agent/internal/port"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestSessions(t *testing.T, ttl time.Duration) (*Sessions, *fakeClock) {
	t.Helper()
	h := newHarness(t)
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewSessions(h.deps, ttl)
	s.now = clock.Now
	return s, clock
}

func TestSessions_CreateGetRemove(t *testing.T) {
	s, _ := newTestSessions(t, time.Hour)

	id, o := s.Create()
	got, err := s.Get(id)
	require.NoError(t, err)
	assert.Same(t, o, got)
	assert.Equal(t, 1, s.Count())

	s.Remove(id)
	_, err = s.Get(id)
	assert.ErrorIs(t, err, port.ErrSessionNotFound)
	assert.Equal(t, 0, s.Count())
}

func TestSessions_ExpireWithTokenLifetime(t *testing.T) {
	s, clock := newTestSessions(t, time.Hour)

	for range 100 {
		id, o := s.Create()
		_, err := o.Login(context.Background(), LoginRequest{SourceHostToken: "ghp_test"})
		require.NoError(t, err)
		o.Wait()
		_, err = s.Get(id)
		require.NoError(t, err)
	}
	require.Equal(t, 100, s.Count())

	clock.Advance(59 * time.Minute)
	assert.Equal(t, 0, s.Sweep())
	assert.Equal(t, 100, s.Count())

	clock.Advance(time.Minute)
	assert.Equal(t, 100, s.Sweep())
	assert.Equal(t, 0, s.Count())
}

func TestSessions_GetDropsExpired(t *testing.T) {
	s, clock := newTestSessions(t, time.Hour)
	id, _ := s.Create()

	clock.Advance(2 * time.Hour)
	_, err := s.Get(id)
	assert.ErrorIs(t, err, port.ErrSessionNotFound)
	assert.Equal(t, 0, s.Count())
}

func TestSessions_CreateSweepsExpired(t *testing.T) {
	s, clock := newTestSessions(t, time.Hour)
	s.Create()
	s.Create()

	clock.Advance(time.Hour)
	s.Create()
	assert.Equal(t, 1, s.Count())
}

func TestSessions_NoTTLNeverExpires(t *testing.T) {
	s, clock := newTestSessions(t, 0)
	id, _ := s.Create()

	clock.Advance(24 * 365 * time.Hour)
	assert.Equal(t, 0, s.Sweep())
	_, err := s.Get(id)
	assert.NoError(t, err)
}

func TestSessions_RunSweeperStopsWithContext(t *testing.T) {
	s, _ := newTestSessions(t, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunSweeper(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSessions_ModelName(t *testing.T) {
	s, _ := newTestSessions(t, time.Hour)
	assert.Equal(t, "fake", s.ModelName())
}
