package vercel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/autodeploy-agent/internal/port"
)

func serve(t *testing.T, status int, body string, got *createProjectRequest) *Provider {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v9/projects", r.URL.Path)
		assert.Equal(t, "Bearer vtok", r.Header.Get("Authorization"))
		if got != nil {
			_ = json.NewDecoder(r.Body).Decode(got)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewProvider(srv.URL)
}

func TestCreateProject(t *testing.T) {
	var got createProjectRequest
	p := serve(t, http.StatusOK, `{"id":"prj_1","name":"todo-app-1234"}`, &got)

	project, err := p.CreateProject(context.Background(), "vtok", "todo-app-1234", "octocat/todo-app-1234")
	require.NoError(t, err)

	assert.Equal(t, "prj_1", project.ID)
	assert.Equal(t, "https://vercel.com/octocat/todo-app-1234", project.HTMLURL)
	assert.Equal(t, createProjectRequest{
		Name:                     "todo-app-1234",
		GitRepository:            gitRepository{Type: "github", Repo: "octocat/todo-app-1234"},
		Framework:                "vite",
		BuildCommand:             "npm run build",
		OutputDirectory:          "dist",
		ServerlessFunctionRegion: "iad1",
	}, got)
}

func TestCreateProject_AlreadyExists(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"nested code", `{"error":{"code":"PROJECT_ALREADY_EXISTS","message":"Project already exists"}}`},
		{"top level code", `{"code":"PROJECT_ALREADY_EXISTS","message":"Project already exists"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := serve(t, http.StatusConflict, tt.body, nil)

			project, err := p.CreateProject(context.Background(), "vtok", "todo-app-1234", "octocat/todo-app-1234")
			require.NoError(t, err)
			assert.Equal(t, "https://vercel.com/octocat/todo-app-1234", project.HTMLURL)
		})
	}
}

func TestCreateProject_Failure(t *testing.T) {
	p := serve(t, http.StatusForbidden, `{"error":{"code":"forbidden","message":"Not authorized"}}`, nil)

	_, err := p.CreateProject(context.Background(), "vtok", "app", "octocat/app")
	var linkErr *port.HostingLinkError
	require.True(t, errors.As(err, &linkErr))
	assert.Equal(t, "forbidden", linkErr.Code)
	assert.Equal(t, "Not authorized", linkErr.Message)
}

func TestCreateProject_FailureWithoutBody(t *testing.T) {
	p := serve(t, http.StatusInternalServerError, ``, nil)

	_, err := p.CreateProject(context.Background(), "vtok", "app", "octocat/app")
	var linkErr *port.HostingLinkError
	require.True(t, errors.As(err, &linkErr))
	assert.Contains(t, linkErr.Message, "500")
}
