package ports

import "context"

// EventType discriminates the server-pushed realtime messages.
type EventType string

const (
	EventIssueUpdate      EventType = "issue_update"
	EventCommentUpdate    EventType = "comment_update"
	EventAttachmentUpdate EventType = "attachment_update"
)

// UpdateType says what happened to the entity.
type UpdateType string

const (
	UpdateCreated UpdateType = "created"
	UpdateUpdated UpdateType = "updated"
	UpdateDeleted UpdateType = "deleted"
)

// IssueSnapshot carries the denormalized fields a client needs to refresh
// its view without a follow-up fetch.
type IssueSnapshot struct {
	IssueID   uint64 `json:"id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Severity  string `json:"severity"`
	UpdatedAt string `json:"updated_at"`
}

type CommentSnapshot struct {
	CommentID uint64 `json:"id"`
	IssueID   uint64 `json:"issue_id"`
	AuthorID  uint64 `json:"author_id"`
	Content   string `json:"content"`
	UpdatedAt string `json:"updated_at"`
}

type AttachmentSnapshot struct {
	AttachmentID uint64 `json:"id"`
	IssueID      uint64 `json:"issue_id"`
	UploaderID   uint64 `json:"uploader_id"`
	Filename     string `json:"filename"`
	ContentType  string `json:"content_type"`
	Size         int64  `json:"size"`
}

// Event is one realtime notification routed to the subscribers of IssueID.
// Exactly one snapshot field matching Type is set.
type Event struct {
	Type       EventType
	UpdateType UpdateType
	IssueID    uint64
	Issue      *IssueSnapshot
	Comment    *CommentSnapshot
	Attachment *AttachmentSnapshot
}

// Notifier fans an event out to live subscribers. Delivery is best-effort
// and must never block or fail the mutation path that triggered it.
type Notifier interface {
	Publish(ctx context.Context, event Event)
}

// NopNotifier discards events; used by CLI commands that mutate without a
// server process.
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, Event) {}
