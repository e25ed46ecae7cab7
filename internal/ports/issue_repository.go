package ports

import (
	"context"
	"errors"
	"time"

	domainissue "github.com/KIaudius/issues-insights-tracker/internal/domain/issue"
)

// ErrStaleStatus is returned by UpdateIssueStatusGuarded when the row's
// status no longer matches the expected one: a concurrent transition won
// the race and the caller must re-read and retry (or give up).
var ErrStaleStatus = errors.New("issue status changed concurrently")

// Issue is the persistence-facing shape of an issue.
type Issue struct {
	IssueID     uint64
	Title       string
	Description string
	Severity    domainissue.Severity
	Status      domainissue.Status
	ReporterID  uint64
	AssigneeID  *uint64
	Tags        []IssueTag
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IssueTag is a child label on an issue, cascade-deleted with it.
type IssueTag struct {
	TagID   uint64
	IssueID uint64
	Name    string
	Color   string
}

type IssueFilter struct {
	// ReporterID scopes the listing to one reporter's issues (RBAC scope-down).
	ReporterID *uint64
	Status     domainissue.Status
	Severity   domainissue.Severity
	// Search matches title or description, case-insensitive substring.
	Search string
	Skip   int
	Limit  int
}

// IssueUpdate carries the generic (non-status) mutable fields.
type IssueUpdate struct {
	Title       *string
	Description *string
	Severity    *domainissue.Severity
	AssigneeID  *uint64
	// ClearAssignee unsets the assignee; wins over AssigneeID.
	ClearAssignee bool
	// Tags, when non-nil, replaces the full tag set.
	Tags []IssueTag
}

type IssueRepository interface {
	CreateIssue(ctx context.Context, issue Issue) (Issue, error)
	GetIssue(ctx context.Context, issueID uint64) (Issue, error)
	ListIssues(ctx context.Context, filter IssueFilter) ([]Issue, int64, error)
	UpdateIssue(ctx context.Context, issueID uint64, update IssueUpdate) (Issue, error)

	// UpdateIssueStatusGuarded writes the new status only if the row still
	// holds expected; otherwise it returns ErrStaleStatus without mutating.
	// Run inside a unit of work together with the history append.
	UpdateIssueStatusGuarded(ctx context.Context, issueID uint64, expected, next domainissue.Status) error

	// DeleteIssue removes the issue and all of its children (comments,
	// attachments, history, tags).
	DeleteIssue(ctx context.Context, issueID uint64) error
}
