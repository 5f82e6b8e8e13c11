// Package github talks to the GitHub REST API: token verification, repository
// publishing and the gist-backed history document.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arturoeanton/autodeploy-agent/internal/metrics"
	"github.com/arturoeanton/autodeploy-agent/internal/port"
)

// DefaultBaseURL is the public GitHub API.
const DefaultBaseURL = "https://api.github.com"

// Client implements port.IdentityVerifier, port.RepoPublisher and port.HistorySync.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a GitHub REST client. An empty baseURL means DefaultBaseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// apiError is the error body GitHub returns on non-2xx responses.
type apiError struct {
	Message string `json:"message"`
	Errors  []struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"errors"`
}

// text returns the remote message, with the first detail appended when present.
func (e apiError) text() string {
	msg := e.Message
	if len(e.Errors) > 0 && e.Errors[0].Message != "" {
		if msg == "" {
			return e.Errors[0].Message
		}
		msg += ": " + e.Errors[0].Message
	}
	return msg
}

// response is a fully read upstream reply.
type response struct {
	Status int
	Body   []byte
}

func (r *response) ok() bool { return r.Status >= 200 && r.Status < 300 }

// errorText extracts a readable message from a failed reply.
func (r *response) errorText() string {
	var e apiError
	if err := json.Unmarshal(r.Body, &e); err == nil {
		if t := e.text(); t != "" {
			return t
		}
	}
	if len(r.Body) > 0 {
		return strings.TrimSpace(string(r.Body))
	}
	return http.StatusText(r.Status)
}

// do performs a request. url may be a path below baseURL or an absolute URL.
// The token is only sent to baseURL. Transport failures are returned as errors;
// HTTP status is left to the caller.
func (c *Client) do(ctx context.Context, op, method, url, token string, payload interface{}) (*response, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("github: marshal payload: %w", err)
		}
		body = bytes.NewReader(b)
	}

	if strings.HasPrefix(url, "/") {
		url = c.baseURL + url
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("github: create request: %w", err)
	}
	if c.ownsURL(url) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamCall("github", op, time.Since(start), err)
		return nil, fmt.Errorf("github: %s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	out := &response{Status: resp.StatusCode, Body: data}
	if err == nil && !out.ok() {
		err = fmt.Errorf("status %d", resp.StatusCode)
	}
	metrics.RecordUpstreamCall("github", op, time.Since(start), err)
	if !out.ok() {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("github: %s: read body: %w", op, err)
	}
	return out, nil
}

// ownsURL reports whether url points at the API host. Gist raw_url links live on
// another host and are fetched anonymously.
func (c *Client) ownsURL(url string) bool {
	return url == c.baseURL || strings.HasPrefix(url, c.baseURL+"/")
}

// VerifyToken resolves the account login for token via GET /user.
func (c *Client) VerifyToken(ctx context.Context, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", &port.AuthError{}
	}

	resp, err := c.do(ctx, "verify_token", http.MethodGet, "/user", token, nil)
	if err != nil {
		return "", &port.AuthError{Err: err}
	}
	if !resp.ok() {
		return "", &port.AuthError{Err: fmt.Errorf("profile fetch failed (%d): %s", resp.Status, resp.errorText())}
	}

	var profile struct {
		Login string `json:"login"`
	}
	if err := json.Unmarshal(resp.Body, &profile); err != nil {
		return "", &port.AuthError{Err: fmt.Errorf("decode profile: %w", err)}
	}
	if profile.Login == "" {
		return "", &port.AuthError{Err: fmt.Errorf("profile has no login")}
	}
	return profile.Login, nil
}
