package port

import "context"

// HostingProject is a hosting-platform project linked to a repository.
type HostingProject struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	HTMLURL string `json:"html_url"`
}

// HostingProvider links a repository to a hosting platform, which triggers a build.
type HostingProvider interface {
	// CreateProject links repoFullName (owner/name). An already existing project is
	// not an error. Other failures are *HostingLinkError.
	CreateProject(ctx context.Context, token, projectName, repoFullName string) (*HostingProject, error)
}
