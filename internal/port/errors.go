package port

import (
	"errors"
	"fmt"
)

// Sentinel errors used across ports.
var (
	ErrInvalidTransition = errors.New("action not allowed in the current step")
	ErrEmptyPrompt       = errors.New("prompt is empty")
	ErrNoProject         = errors.New("no project to work with")
	ErrRecordNotFound    = errors.New("history record not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrNotFound          = errors.New("key not found")
)

// AuthError means the source-hosting token was missing or rejected.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return "invalid GitHub token"
	}
	return "invalid GitHub token: " + e.Err.Error()
}

func (e *AuthError) Unwrap() error { return e.Err }

// GenerationError means the code service failed or returned an unusable project.
// Message is safe to show to the user.
type GenerationError struct {
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// RepoCreationError carries the remote message of a failed repository creation.
type RepoCreationError struct {
	Status  int
	Message string
}

func (e *RepoCreationError) Error() string {
	return "GitHub create repo error: " + e.Message
}

// UploadError names the first file whose upload failed. Later files were not attempted.
type UploadError struct {
	Path    string
	Status  int
	Message string
	Err     error
}

func (e *UploadError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("failed to upload %s: %s", e.Path, msg)
}

func (e *UploadError) Unwrap() error { return e.Err }

// HostingLinkError is a failed hosting-platform link. The workflow treats it as non-fatal.
type HostingLinkError struct {
	Code    string
	Message string
	Err     error
}

func (e *HostingLinkError) Error() string {
	switch {
	case e.Message != "":
		return "hosting link failed: " + e.Message
	case e.Err != nil:
		return "hosting link failed: " + e.Err.Error()
	default:
		return "failed to create hosting project"
	}
}

func (e *HostingLinkError) Unwrap() error { return e.Err }

// SyncError is a failed write to the remote history document. Background only.
type SyncError struct {
	Err error
}

func (e *SyncError) Error() string {
	return "failed to sync history to GitHub Gist"
}

func (e *SyncError) Unwrap() error { return e.Err }
