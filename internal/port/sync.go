package port

import (
	"context"

	"github.com/arturoeanton/autodeploy-agent/internal/domain"
)

// HistorySync persists the project history in a remote document owned by the token's account.
type HistorySync interface {
	// Load returns the remote history. found is false when no remote history is
	// available yet, which is different from an existing but empty history.
	Load(ctx context.Context, token string) (records []domain.SavedProjectRecord, found bool)

	// Save replaces the remote history, creating the document if needed. Failures are *SyncError.
	Save(ctx context.Context, token string, history []domain.SavedProjectRecord) error
}
