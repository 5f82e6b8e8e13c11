package domain

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
)

// FileEntry is one file of a generated project.
type FileEntry struct {
	Path    string `json:"path"`    // repo-relative, forward-slash separated
	Content string `json:"content"` // full text
}

// Project is the generated application: a URL-safe name, a description and its files.
type Project struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Files       []FileEntry `json:"files"`
}

// MaxNameLength leaves room for the "-NNNN" repository suffix within GitHub's 100 characters.
const MaxNameLength = 90

// projectName is a GitHub-safe repository name: letters, digits, dots, dashes and
// underscores, starting with a letter or digit.
var projectName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Validation errors returned by Project.Validate.
var (
	ErrProjectName   = errors.New("invalid project name")
	ErrProjectFiles  = errors.New("project has no files")
	ErrFilePath      = errors.New("invalid file path")
	ErrDuplicatePath = errors.New("duplicate file path")
)

// Validate checks the shape of a project. Upload is keyed by path, so duplicate
// paths would overwrite each other and are rejected.
func (p *Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: empty", ErrProjectName)
	}
	if len(p.Name) > MaxNameLength || !projectName.MatchString(p.Name) {
		return fmt.Errorf("%w: %q", ErrProjectName, p.Name)
	}
	if len(p.Files) == 0 {
		return ErrProjectFiles
	}

	seen := make(map[string]struct{}, len(p.Files))
	for _, f := range p.Files {
		if f.Path == "" || strings.HasPrefix(f.Path, "/") || strings.Contains(f.Path, "\\") {
			return fmt.Errorf("%w: %q", ErrFilePath, f.Path)
		}
		if clean := path.Clean(f.Path); clean != f.Path || clean == "." || strings.HasPrefix(clean, "../") || clean == ".." {
			return fmt.Errorf("%w: %q", ErrFilePath, f.Path)
		}
		if _, dup := seen[f.Path]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicatePath, f.Path)
		}
		seen[f.Path] = struct{}{}
	}
	return nil
}

// Paths returns the file paths in project order.
func (p *Project) Paths() []string {
	out := make([]string, len(p.Files))
	for i, f := range p.Files {
		out[i] = f.Path
	}
	return out
}

// SavedProjectRecord is one history entry. Records are only added or removed,
// never edited. JSON names match the document written by the browser agent.
type SavedProjectRecord struct {
	ID        string  `json:"id"`
	Timestamp int64   `json:"timestamp"` // unix milliseconds
	Prompt    string  `json:"prompt"`
	Project   Project `json:"project"`
}

// SameAs reports whether two records share the deduplication identity (project name, prompt).
func (r SavedProjectRecord) SameAs(name, prompt string) bool {
	return r.Project.Name == name && r.Prompt == prompt
}

// HistoryDocument is the wrapper stored in the remote sync document.
type HistoryDocument struct {
	History     []SavedProjectRecord `json:"history"`
	LastUpdated string               `json:"lastUpdated"`
}
