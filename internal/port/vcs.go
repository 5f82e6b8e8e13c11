package port

import (
	"context"

	"github.com/arturoeanton/autodeploy-agent/internal/domain"
)

// RepoHandle identifies a freshly created remote repository.
type RepoHandle struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Owner    string `json:"owner"`
	HTMLURL  string `json:"html_url"`
}

// ProgressFunc receives a human-readable progress line.
type ProgressFunc func(message string)

// IdentityVerifier checks a source-hosting token and returns the account login.
type IdentityVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

// RepoPublisher creates repositories and uploads files to them.
type RepoPublisher interface {
	// CreateRepo creates a public, auto-initialized repository. Failures are *RepoCreationError.
	CreateRepo(ctx context.Context, token, name, description string) (*RepoHandle, error)

	// PushFiles uploads files one at a time in order, calling onProgress before each
	// upload. The first failure aborts the batch with *UploadError.
	PushFiles(ctx context.Context, token, owner, repo string, files []domain.FileEntry, onProgress ProgressFunc) error
}
