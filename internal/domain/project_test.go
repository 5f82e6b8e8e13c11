package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProject_Validate(t *testing.T) {
	valid := Project{
		Name: "todo-app",
		Files: []FileEntry{
			{Path: "index.html", Content: "<html></html>"},
			{Path: "src/App.tsx", Content: "export default function App() {}"},
		},
	}
	assert.NoError(t, valid.Validate())
	assert.NoError(t, (&Project{Name: "my_app.v2", Files: valid.Files}).Validate())

	tests := []struct {
		name    string
		project Project
		want    error
	}{
		{"empty name", Project{Name: " ", Files: valid.Files}, ErrProjectName},
		{"name with spaces", Project{Name: "Todo App", Files: valid.Files}, ErrProjectName},
		{"name with slash", Project{Name: "octocat/todo", Files: valid.Files}, ErrProjectName},
		{"name with leading dash", Project{Name: "-todo", Files: valid.Files}, ErrProjectName},
		{"name too long", Project{Name: strings.Repeat("a", MaxNameLength+1), Files: valid.Files}, ErrProjectName},
		{"no files", Project{Name: "x"}, ErrProjectFiles},
		{"absolute path", Project{Name: "x", Files: []FileEntry{{Path: "/etc/passwd"}}}, ErrFilePath},
		{"parent path", Project{Name: "x", Files: []FileEntry{{Path: "../x"}}}, ErrFilePath},
		{"unclean path", Project{Name: "x", Files: []FileEntry{{Path: "src//a.ts"}}}, ErrFilePath},
		{"backslash", Project{Name: "x", Files: []FileEntry{{Path: "src\\a.ts"}}}, ErrFilePath},
		{"duplicate", Project{Name: "x", Files: []FileEntry{{Path: "a.ts"}, {Path: "a.ts"}}}, ErrDuplicatePath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.project.Validate(), tt.want)
		})
	}
}

func TestSavedProjectRecord_SameAs(t *testing.T) {
	r := SavedProjectRecord{ID: "1", Prompt: "todo app", Project: Project{Name: "todo-app"}}

	assert.True(t, r.SameAs("todo-app", "todo app"))
	assert.False(t, r.SameAs("todo-app", "other"))
	assert.False(t, r.SameAs("other", "todo app"))
}

func TestAppState_CloneIsIndependent(t *testing.T) {
	s := AppState{
		Step:    StepReview,
		Project: &Project{Name: "a", Files: []FileEntry{{Path: "a"}}},
		History: []SavedProjectRecord{{ID: "1"}},
	}
	c := s.Clone()
	c.Project.Files[0].Path = "b"
	c.History[0].ID = "2"

	assert.Equal(t, "a", s.Project.Files[0].Path)
	assert.Equal(t, "1", s.History[0].ID)
}

func TestCredentials_HasHosting(t *testing.T) {
	assert.False(t, Credentials{AutoHostingEnabled: true}.HasHosting())
	assert.False(t, Credentials{HostingToken: "v"}.HasHosting())
	assert.True(t, Credentials{AutoHostingEnabled: true, HostingToken: "v"}.HasHosting())
}
