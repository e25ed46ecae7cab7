package ports

import (
	"context"
	"time"
)

// Attachment is the persistence-facing shape of an uploaded file. The
// bytes live in blob storage under StorageKey.
type Attachment struct {
	AttachmentID uint64
	IssueID      uint64
	UploaderID   uint64
	Filename     string
	ContentType  string
	Size         int64
	StorageKey   string
	CreatedAt    time.Time
}

type AttachmentRepository interface {
	CreateAttachment(ctx context.Context, attachment Attachment) (Attachment, error)
	GetAttachment(ctx context.Context, attachmentID uint64) (Attachment, error)
	ListAttachments(ctx context.Context, issueID uint64) ([]Attachment, error)
	DeleteAttachment(ctx context.Context, attachmentID uint64) error
}
