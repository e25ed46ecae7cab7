package ports

import (
	"context"
	"time"
)

// Comment is the persistence-facing shape of an issue comment.
type Comment struct {
	CommentID uint64
	IssueID   uint64
	AuthorID  uint64
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CommentRepository interface {
	CreateComment(ctx context.Context, comment Comment) (Comment, error)
	GetComment(ctx context.Context, commentID uint64) (Comment, error)
	ListComments(ctx context.Context, issueID uint64, skip, limit int) ([]Comment, int64, error)
	UpdateComment(ctx context.Context, commentID uint64, content string) (Comment, error)
	DeleteComment(ctx context.Context, commentID uint64) error
}
