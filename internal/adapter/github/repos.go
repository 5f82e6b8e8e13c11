package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/arturoeanton/autodeploy-agent/internal/domain"
	"github.com/arturoeanton/autodeploy-agent/internal/metrics"
	"github.com/arturoeanton/autodeploy-agent/internal/port"
)

// CreateRepo creates a public repository with an initial commit so the contents API works.
func (c *Client) CreateRepo(ctx context.Context, token, name, description string) (*port.RepoHandle, error) {
	payload := map[string]interface{}{
		"name":        name,
		"description": description,
		"private":     false,
		"auto_init":   true,
	}

	resp, err := c.do(ctx, "create_repo", http.MethodPost, "/user/repos", token, payload)
	if err != nil {
		return nil, &port.RepoCreationError{Message: err.Error()}
	}
	if !resp.ok() {
		return nil, &port.RepoCreationError{Status: resp.Status, Message: resp.errorText()}
	}

	var repo struct {
		Name     string `json:"name"`
		FullName string `json:"full_name"`
		HTMLURL  string `json:"html_url"`
		Owner    struct {
			Login string `json:"login"`
		} `json:"owner"`
	}
	if err := json.Unmarshal(resp.Body, &repo); err != nil {
		return nil, &port.RepoCreationError{Status: resp.Status, Message: "decode repository: " + err.Error()}
	}

	owner := repo.Owner.Login
	if owner == "" {
		owner, _, _ = strings.Cut(repo.FullName, "/")
	}

	slog.Info("repository created", "repo", repo.FullName)
	return &port.RepoHandle{
		Name:     repo.Name,
		FullName: repo.FullName,
		Owner:    owner,
		HTMLURL:  repo.HTMLURL,
	}, nil
}

// PushFiles uploads files one by one through the contents API. Each upload is
// its own commit. An existing file is overwritten using its current sha.
// The sha lookup and the upload are not atomic, so a concurrent writer between
// the two calls makes the upload fail.
func (c *Client) PushFiles(ctx context.Context, token, owner, repo string, files []domain.FileEntry, onProgress port.ProgressFunc) error {
	for _, f := range files {
		if onProgress != nil {
			onProgress(fmt.Sprintf("Pushing %s...", f.Path))
		}

		endpoint := contentsPath(owner, repo, f.Path)
		payload := map[string]interface{}{
			"message": fmt.Sprintf("Add %s via AutoDeploy Agent", f.Path),
			"content": base64.StdEncoding.EncodeToString([]byte(f.Content)),
		}
		if sha := c.fileSHA(ctx, token, endpoint); sha != "" {
			payload["sha"] = sha
		}

		resp, err := c.do(ctx, "put_file", http.MethodPut, endpoint, token, payload)
		if err != nil {
			return &port.UploadError{Path: f.Path, Err: err}
		}
		if !resp.ok() {
			return &port.UploadError{Path: f.Path, Status: resp.Status, Message: resp.errorText()}
		}
		metrics.RecordFilePushed()
	}
	return nil
}

// fileSHA returns the blob sha of an existing file, or "" when it cannot be determined.
func (c *Client) fileSHA(ctx context.Context, token, endpoint string) string {
	resp, err := c.do(ctx, "get_file", http.MethodGet, endpoint, token, nil)
	if err != nil || resp.Status != http.StatusOK {
		return ""
	}
	var existing struct {
		SHA string `json:"sha"`
	}
	if err := json.Unmarshal(resp.Body, &existing); err != nil {
		return ""
	}
	return existing.SHA
}

// contentsPath builds /repos/{owner}/{repo}/contents/{path}, escaping each path segment.
func contentsPath(owner, repo, filePath string) string {
	segments := strings.Split(filePath, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo) + "/contents/" + strings.Join(segments, "/")
}
