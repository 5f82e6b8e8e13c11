// Package vercel links GitHub repositories to Vercel projects.
package vercel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/arturoeanton/autodeploy-agent/internal/metrics"
	"github.com/arturoeanton/autodeploy-agent/internal/port"
)

const (
	// DefaultBaseURL is the public Vercel API.
	DefaultBaseURL = "https://api.vercel.com"

	dashboardURL          = "https://vercel.com"
	codeAlreadyExists     = "PROJECT_ALREADY_EXISTS"
	defaultFunctionRegion = "iad1"
)

// Provider implements port.HostingProvider.
type Provider struct {
	baseURL    string
	httpClient *http.Client
}

// NewProvider creates a Vercel client. An empty baseURL means DefaultBaseURL.
func NewProvider(baseURL string) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

type gitRepository struct {
	Type string `json:"type"`
	Repo string `json:"repo"`
}

type createProjectRequest struct {
	Name                     string        `json:"name"`
	GitRepository            gitRepository `json:"gitRepository"`
	Framework                string        `json:"framework"`
	BuildCommand             string        `json:"buildCommand"`
	OutputDirectory          string        `json:"outputDirectory"`
	ServerlessFunctionRegion string        `json:"serverlessFunctionRegion"`
}

// errorBody covers both shapes Vercel uses: a top-level code and a nested error object.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e errorBody) code() string {
	if e.Error != nil && e.Error.Code != "" {
		return e.Error.Code
	}
	return e.Code
}

func (e errorBody) message() string {
	if e.Error != nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return e.Message
}

// CreateProject creates a Vite project linked to repoFullName (owner/name).
// An existing project with the same name counts as linked.
func (p *Provider) CreateProject(ctx context.Context, token, projectName, repoFullName string) (*port.HostingProject, error) {
	owner, _, _ := strings.Cut(repoFullName, "/")
	projectURL := fmt.Sprintf("%s/%s/%s", dashboardURL, owner, projectName)

	payload := createProjectRequest{
		Name:                     projectName,
		GitRepository:            gitRepository{Type: "github", Repo: repoFullName},
		Framework:                "vite",
		BuildCommand:             "npm run build",
		OutputDirectory:          "dist",
		ServerlessFunctionRegion: defaultFunctionRegion,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, &port.HostingLinkError{Err: fmt.Errorf("marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v9/projects", bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, &port.HostingLinkError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamCall("vercel", "create_project", time.Since(start), err)
		return nil, &port.HostingLinkError{Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		metrics.RecordUpstreamCall("vercel", "create_project", time.Since(start), nil)
		var created struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		_ = json.Unmarshal(body, &created)
		if created.Name == "" {
			created.Name = projectName
		}
		slog.Info("vercel project created", "project", created.Name, "repo", repoFullName)
		return &port.HostingProject{ID: created.ID, Name: created.Name, HTMLURL: projectURL}, nil
	}

	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	if eb.code() == codeAlreadyExists {
		metrics.RecordUpstreamCall("vercel", "create_project", time.Since(start), nil)
		slog.Info("vercel project already exists", "project", projectName)
		return &port.HostingProject{Name: projectName, HTMLURL: projectURL}, nil
	}

	msg := eb.message()
	if msg == "" {
		msg = fmt.Sprintf("vercel API error (%d)", resp.StatusCode)
	}
	linkErr := &port.HostingLinkError{Code: eb.code(), Message: msg}
	metrics.RecordUpstreamCall("vercel", "create_project", time.Since(start), linkErr)
	return nil, linkErr
}
