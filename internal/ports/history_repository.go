package ports

import (
	"context"
	"time"

	domainissue "github.com/KIaudius/issues-insights-tracker/internal/domain/issue"
)

// HistoryEntry is one immutable row of the audit ledger. OldStatus nil
// marks the creation row.
type HistoryEntry struct {
	HistoryID uint64
	IssueID   uint64
	ActorID   uint64
	OldStatus *domainissue.Status
	NewStatus domainissue.Status
	Comment   string
	CreatedAt time.Time
}

// HistoryRepository is append-only: entries are never updated or removed
// individually (they go away only when their issue is deleted).
type HistoryRepository interface {
	AppendHistory(ctx context.Context, entry HistoryEntry) (HistoryEntry, error)

	// ListHistory returns the issue's entries in ascending append order.
	ListHistory(ctx context.Context, issueID uint64) ([]HistoryEntry, error)

	// ListRecentHistory returns the newest entries across all issues,
	// newest first.
	ListRecentHistory(ctx context.Context, limit int) ([]HistoryEntry, error)
}
