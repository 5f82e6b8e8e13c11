package github

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/arturoeanton/autodeploy-agent/internal/domain"
	"github.com/arturoeanton/autodeploy-agent/internal/port"
)

// The sync document is the caller's gist carrying this description.
const (
	SyncDescription = "autodeploy-sync"
	SyncFileName    = "autodeploy-data.json"
)

type gistFile struct {
	Filename string `json:"filename"`
	RawURL   string `json:"raw_url"`
}

type gist struct {
	ID          string              `json:"id"`
	Description string              `json:"description"`
	Files       map[string]gistFile `json:"files"`
}

// findSyncGist lists the token's gists and returns the sync document, or nil.
func (c *Client) findSyncGist(ctx context.Context, token string) (*gist, error) {
	resp, err := c.do(ctx, "list_gists", http.MethodGet, "/gists", token, nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, fmt.Errorf("list gists (%d): %s", resp.Status, resp.errorText())
	}

	var gists []gist
	if err := json.Unmarshal(resp.Body, &gists); err != nil {
		return nil, fmt.Errorf("decode gists: %w", err)
	}
	for i := range gists {
		if gists[i].Description == SyncDescription {
			return &gists[i], nil
		}
	}
	return nil, nil
}

// Load fetches the remote history. Every failure is reported as not found.
func (c *Client) Load(ctx context.Context, token string) ([]domain.SavedProjectRecord, bool) {
	g, err := c.findSyncGist(ctx, token)
	if err != nil {
		slog.Warn("history sync: cannot list gists", "error", err)
		return nil, false
	}
	if g == nil {
		return nil, false
	}

	file, ok := g.Files[SyncFileName]
	if !ok || file.RawURL == "" {
		return nil, false
	}

	resp, err := c.do(ctx, "fetch_gist", http.MethodGet, file.RawURL, token, nil)
	if err != nil || !resp.ok() {
		slog.Warn("history sync: cannot fetch document", "gist", g.ID, "error", err)
		return nil, false
	}

	var doc domain.HistoryDocument
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		slog.Warn("history sync: invalid document", "gist", g.ID, "error", err)
		return nil, false
	}
	if doc.History == nil {
		doc.History = []domain.SavedProjectRecord{}
	}
	return doc.History, true
}

// Save writes the history to the sync gist, creating it when missing.
func (c *Client) Save(ctx context.Context, token string, history []domain.SavedProjectRecord) error {
	if history == nil {
		history = []domain.SavedProjectRecord{}
	}
	content, err := json.MarshalIndent(domain.HistoryDocument{
		History:     history,
		LastUpdated: time.Now().UTC().Format(time.RFC3339Nano),
	}, "", "  ")
	if err != nil {
		return &port.SyncError{Err: err}
	}

	existing, err := c.findSyncGist(ctx, token)
	if err != nil {
		return &port.SyncError{Err: err}
	}

	payload := map[string]interface{}{
		"description": SyncDescription,
		"public":      false,
		"files": map[string]interface{}{
			SyncFileName: map[string]string{"content": string(content)},
		},
	}

	method, path, op := http.MethodPost, "/gists", "create_gist"
	if existing != nil {
		method, path, op = http.MethodPatch, "/gists/"+url.PathEscape(existing.ID), "update_gist"
	}

	resp, err := c.do(ctx, op, method, path, token, payload)
	if err != nil {
		return &port.SyncError{Err: err}
	}
	if !resp.ok() {
		return &port.SyncError{Err: fmt.Errorf("%s (%d): %s", op, resp.Status, resp.errorText())}
	}
	return nil
}
