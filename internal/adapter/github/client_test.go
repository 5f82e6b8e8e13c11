package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/autodeploy-agent/internal/domain"
	"github.com/arturoeanton/autodeploy-agent/internal/port"
)

// fakeGitHub records requests and serves canned handlers by "METHOD path".
type fakeGitHub struct {
	mu       sync.Mutex
	requests []string
	bodies   map[string]map[string]any
	routes   map[string]http.HandlerFunc
}

func newFakeGitHub(t *testing.T) (*fakeGitHub, *Client) {
	f := &fakeGitHub{bodies: map[string]map[string]any{}, routes: map[string]http.HandlerFunc{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.EscapedPath()
		f.mu.Lock()
		f.requests = append(f.requests, key)
		if r.Body != nil {
			var body map[string]any
			if json.NewDecoder(r.Body).Decode(&body) == nil {
				f.bodies[key] = body
			}
		}
		h, ok := f.routes[key]
		f.mu.Unlock()

		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		assert.Equal(t, "2022-11-28", r.Header.Get("X-GitHub-Api-Version"))
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return f, NewClient(srv.URL)
}

func (f *fakeGitHub) on(key string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[key] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func (f *fakeGitHub) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func TestVerifyToken(t *testing.T) {
	f, c := newFakeGitHub(t)
	f.on("GET /user", http.StatusOK, `{"login":"octocat","id":1}`)

	login, err := c.VerifyToken(context.Background(), "ghp_x")
	require.NoError(t, err)
	assert.Equal(t, "octocat", login)
}

func TestVerifyToken_Rejected(t *testing.T) {
	f, c := newFakeGitHub(t)
	f.on("GET /user", http.StatusUnauthorized, `{"message":"Bad credentials"}`)

	_, err := c.VerifyToken(context.Background(), "bad")
	var authErr *port.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Contains(t, err.Error(), "Bad credentials")

	_, err = c.VerifyToken(context.Background(), "")
	assert.True(t, errors.As(err, &authErr))
}

func TestCreateRepo(t *testing.T) {
	f, c := newFakeGitHub(t)
	f.on("POST /user/repos", http.StatusCreated,
		`{"name":"todo-app-1234","full_name":"octocat/todo-app-1234","html_url":"https://github.com/octocat/todo-app-1234","owner":{"login":"octocat"}}`)

	repo, err := c.CreateRepo(context.Background(), "tok", "todo-app-1234", "A todo list")
	require.NoError(t, err)
	assert.Equal(t, "octocat", repo.Owner)
	assert.Equal(t, "octocat/todo-app-1234", repo.FullName)
	assert.Equal(t, "https://github.com/octocat/todo-app-1234", repo.HTMLURL)

	body := f.bodies["POST /user/repos"]
	assert.Equal(t, false, body["private"])
	assert.Equal(t, true, body["auto_init"])
}

func TestCreateRepo_Failure(t *testing.T) {
	f, c := newFakeGitHub(t)
	f.on("POST /user/repos", http.StatusUnprocessableEntity,
		`{"message":"Repository creation failed.","errors":[{"message":"name already exists on this account"}]}`)

	_, err := c.CreateRepo(context.Background(), "tok", "dup", "")
	var repoErr *port.RepoCreationError
	require.True(t, errors.As(err, &repoErr))
	assert.Equal(t, http.StatusUnprocessableEntity, repoErr.Status)
	assert.Equal(t, "GitHub create repo error: Repository creation failed.: name already exists on this account", err.Error())
}

func TestPushFiles_SequentialWithProgress(t *testing.T) {
	f, c := newFakeGitHub(t)
	f.on("GET /repos/octocat/app/contents/README.md", http.StatusOK, `{"sha":"abc123"}`)
	f.on("PUT /repos/octocat/app/contents/README.md", http.StatusOK, `{}`)
	f.on("PUT /repos/octocat/app/contents/src/App.tsx", http.StatusCreated, `{}`)

	files := []domain.FileEntry{
		{Path: "README.md", Content: "# app"},
		{Path: "src/App.tsx", Content: "export default 1"},
	}
	var progress []string
	err := c.PushFiles(context.Background(), "tok", "octocat", "app", files, func(m string) {
		progress = append(progress, m)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Pushing README.md...", "Pushing src/App.tsx..."}, progress)
	assert.Equal(t, []string{
		"GET /repos/octocat/app/contents/README.md",
		"PUT /repos/octocat/app/contents/README.md",
		"GET /repos/octocat/app/contents/src/App.tsx",
		"PUT /repos/octocat/app/contents/src/App.tsx",
	}, f.requests)

	readme := f.bodies["PUT /repos/octocat/app/contents/README.md"]
	assert.Equal(t, "abc123", readme["sha"])
	assert.Equal(t, "Add README.md via AutoDeploy Agent", readme["message"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("# app")), readme["content"])

	app := f.bodies["PUT /repos/octocat/app/contents/src/App.tsx"]
	_, hasSHA := app["sha"]
	assert.False(t, hasSHA)
}

func TestPushFiles_AbortsOnFirstFailure(t *testing.T) {
	f, c := newFakeGitHub(t)
	f.on("PUT /repos/o/r/contents/a.txt", http.StatusCreated, `{}`)
	f.on("PUT /repos/o/r/contents/b.txt", http.StatusConflict, `{"message":"sha mismatch"}`)
	f.on("PUT /repos/o/r/contents/c.txt", http.StatusCreated, `{}`)

	files := []domain.FileEntry{{Path: "a.txt"}, {Path: "b.txt"}, {Path: "c.txt"}}
	err := c.PushFiles(context.Background(), "tok", "o", "r", files, nil)

	var upErr *port.UploadError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, "b.txt", upErr.Path)
	assert.Equal(t, "failed to upload b.txt: sha mismatch", err.Error())
	assert.Equal(t, 2, f.count("PUT "))
	assert.Equal(t, 0, f.count("GET /repos/o/r/contents/c.txt"))
}

func TestContentsPath_EscapesSegments(t *testing.T) {
	assert.Equal(t, "/repos/o/r/contents/src/my%20file.tsx", contentsPath("o", "r", "src/my file.tsx"))
	assert.Equal(t, "/repos/o/r/contents/a/b/c.ts", contentsPath("o", "r", "a/b/c.ts"))
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantFound bool
		wantLen   int
	}{
		{"records", `{"history":[{"id":"1","timestamp":1,"prompt":"p","project":{"name":"a","description":"","files":[]}}],"lastUpdated":"x"}`, true, 1},
		{"null history", `{"history":null}`, true, 0},
		{"absent history", `{"lastUpdated":"x"}`, true, 0},
		{"garbage", `not json`, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, c := newFakeGitHub(t)
			srvURL := strings.TrimSuffix(c.baseURL, "/")
			f.on("GET /gists", http.StatusOK, `[{"id":"other","description":"x","files":{}},{"id":"g1","description":"autodeploy-sync","files":{"autodeploy-data.json":{"filename":"autodeploy-data.json","raw_url":"`+srvURL+`/raw/g1"}}}]`)
			f.on("GET /raw/g1", http.StatusOK, tt.doc)

			records, found := c.Load(context.Background(), "tok")
			assert.Equal(t, tt.wantFound, found)
			if tt.wantFound {
				require.NotNil(t, records)
				assert.Len(t, records, tt.wantLen)
			}
		})
	}
}

func TestLoad_NotFound(t *testing.T) {
	f, c := newFakeGitHub(t)
	f.on("GET /gists", http.StatusOK, `[{"id":"other","description":"notes","files":{}}]`)
	_, found := c.Load(context.Background(), "tok")
	assert.False(t, found)

	f2, c2 := newFakeGitHub(t)
	f2.on("GET /gists", http.StatusUnauthorized, `{"message":"Bad credentials"}`)
	_, found = c2.Load(context.Background(), "tok")
	assert.False(t, found)
}

func TestLoad_RawDocumentFetchedWithoutToken(t *testing.T) {
	var rawAuth []string
	var mu sync.Mutex
	raw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		rawAuth = append(rawAuth, r.Header.Get("Authorization"))
		mu.Unlock()
		_, _ = w.Write([]byte(`{"history":[]}`))
	}))
	t.Cleanup(raw.Close)

	f, c := newFakeGitHub(t)
	f.on("GET /gists", http.StatusOK, `[{"id":"g1","description":"autodeploy-sync","files":{"autodeploy-data.json":{"filename":"autodeploy-data.json","raw_url":"`+raw.URL+`/u/g1/raw"}}}]`)

	_, found := c.Load(context.Background(), "ghp_secret")
	require.True(t, found)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, rawAuth, 1)
	assert.Empty(t, rawAuth[0])
}

func TestOwnsURL(t *testing.T) {
	c := NewClient("https://api.github.com")
	assert.True(t, c.ownsURL("https://api.github.com/user"))
	assert.False(t, c.ownsURL("https://gist.githubusercontent.com/u/g1/raw"))
	assert.False(t, c.ownsURL("https://api.github.com.evil.example/user"))
}

func TestSave_CreatesThenUpdates(t *testing.T) {
	f, c := newFakeGitHub(t)
	f.on("GET /gists", http.StatusOK, `[]`)
	f.on("POST /gists", http.StatusCreated, `{"id":"g1"}`)

	history := []domain.SavedProjectRecord{{ID: "1", Timestamp: 10, Prompt: "p", Project: domain.Project{Name: "a"}}}
	require.NoError(t, c.Save(context.Background(), "tok", history))

	body := f.bodies["POST /gists"]
	assert.Equal(t, SyncDescription, body["description"])
	assert.Equal(t, false, body["public"])
	files := body["files"].(map[string]any)
	content := files[SyncFileName].(map[string]any)["content"].(string)
	var doc domain.HistoryDocument
	require.NoError(t, json.Unmarshal([]byte(content), &doc))
	assert.Equal(t, history, doc.History)
	assert.NotEmpty(t, doc.LastUpdated)

	f.on("GET /gists", http.StatusOK, `[{"id":"g1","description":"autodeploy-sync","files":{}}]`)
	f.on("PATCH /gists/g1", http.StatusOK, `{"id":"g1"}`)
	require.NoError(t, c.Save(context.Background(), "tok", history))
	assert.Equal(t, 1, f.count("PATCH /gists/g1"))
	assert.Equal(t, 1, f.count("POST /gists"))
}

func TestSave_FailureIsSyncError(t *testing.T) {
	f, c := newFakeGitHub(t)
	f.on("GET /gists", http.StatusOK, `[]`)
	f.on("POST /gists", http.StatusForbidden, `{"message":"Resource not accessible"}`)

	err := c.Save(context.Background(), "tok", nil)
	var syncErr *port.SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, "failed to sync history to GitHub Gist", err.Error())
}
