package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/arturoeanton/autodeploy-agent/internal/domain"
	"github.com/arturoeanton/autodeploy-agent/internal/port"
)

// MergeHistory reconciles the local and remote history lists. Records are
// matched by id and the remote copy wins. Local-only records are kept. The
// result is ordered newest first; records with equal timestamps keep their
// relative order (remote before local).
func MergeHistory(local, remote []domain.SavedProjectRecord) []domain.SavedProjectRecord {
	merged := make([]domain.SavedProjectRecord, 0, len(local)+len(remote))
	seen := make(map[string]struct{}, len(local)+len(remote))

	for _, r := range remote {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		merged = append(merged, r)
	}
	for _, r := range local {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		merged = append(merged, r)
	}

	slices.SortStableFunc(merged, func(a, b domain.SavedProjectRecord) int {
		switch {
		case a.Timestamp > b.Timestamp:
			return -1
		case a.Timestamp < b.Timestamp:
			return 1
		default:
			return 0
		}
	})
	return merged
}

// hasRecord reports whether history already holds the (name, prompt) pair.
func hasRecord(history []domain.SavedProjectRecord, name, prompt string) bool {
	return slices.ContainsFunc(history, func(r domain.SavedProjectRecord) bool {
		return r.SameAs(name, prompt)
	})
}

// removeRecord returns history without the record id and whether it was present.
func removeRecord(history []domain.SavedProjectRecord, id string) ([]domain.SavedProjectRecord, bool) {
	out := make([]domain.SavedProjectRecord, 0, len(history))
	found := false
	for _, r := range history {
		if r.ID == id {
			found = true
			continue
		}
		out = append(out, r)
	}
	return out, found
}

// LocalState persists the per-user configuration record and history list.
type LocalState struct {
	kv port.KVStore
}

// NewLocalState creates a LocalState over kv.
func NewLocalState(kv port.KVStore) *LocalState {
	return &LocalState{kv: kv}
}

func configKey(username string) string  { return "autodeploy:" + username + ":config" }
func historyKey(username string) string { return "autodeploy:" + username + ":history" }

// LoadConfig returns the stored credentials for username. found is false when none exist.
func (l *LocalState) LoadConfig(ctx context.Context, username string) (domain.Credentials, bool, error) {
	var creds domain.Credentials
	raw, err := l.kv.Get(ctx, configKey(username))
	if errors.Is(err, port.ErrNotFound) {
		return creds, false, nil
	}
	if err != nil {
		return creds, false, fmt.Errorf("load config: %w", err)
	}
	if err := json.Unmarshal(raw, &creds); err != nil {
		return creds, false, fmt.Errorf("decode config: %w", err)
	}
	return creds, true, nil
}

// SaveConfig writes the credentials record under its username.
func (l *LocalState) SaveConfig(ctx context.Context, creds domain.Credentials) error {
	raw, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := l.kv.Put(ctx, configKey(creds.SourceHostUsername), raw); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// LoadHistory returns the stored history, empty when none exists.
func (l *LocalState) LoadHistory(ctx context.Context, username string) ([]domain.SavedProjectRecord, error) {
	raw, err := l.kv.Get(ctx, historyKey(username))
	if errors.Is(err, port.ErrNotFound) {
		return []domain.SavedProjectRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	var history []domain.SavedProjectRecord
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	if history == nil {
		history = []domain.SavedProjectRecord{}
	}
	return history, nil
}

// SaveHistory replaces the stored history.
func (l *LocalState) SaveHistory(ctx context.Context, username string, history []domain.SavedProjectRecord) error {
	if history == nil {
		history = []domain.SavedProjectRecord{}
	}
	raw, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := l.kv.Put(ctx, historyKey(username), raw); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}
