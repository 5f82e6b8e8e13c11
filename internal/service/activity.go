package service

import (
	"sync"

	"github.com/arturoeanton/autodeploy-agent/internal/domain"
)

// Event is one update pushed to session subscribers.
type Event struct {
	Kind string           `json:"kind"` // log, step
	Log  *domain.LogEntry `json:"log,omitempty"`
	Step domain.Step      `json:"step,omitempty"`
}

// Event kinds.
const (
	EventLog  = "log"
	EventStep = "step"
)

// ActivityFeed fans session events out to live subscribers.
// Slow subscribers miss events rather than block the workflow.
type ActivityFeed struct {
	mu   sync.RWMutex
	subs []chan Event
}

// NewActivityFeed creates an empty feed.
func NewActivityFeed() *ActivityFeed {
	return &ActivityFeed{}
}

// Subscribe returns a channel that receives future events.
func (f *ActivityFeed) Subscribe() chan Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan Event, 32)
	f.subs = append(f.subs, ch)
	return ch
}

// Unsubscribe removes and closes ch.
func (f *ActivityFeed) Unsubscribe(ch chan Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.subs {
		if s == ch {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Publish notifies every subscriber without blocking.
func (f *ActivityFeed) Publish(ev Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ch := range f.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of live subscribers.
func (f *ActivityFeed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}
