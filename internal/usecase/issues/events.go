package issues

import (
	"context"
	"time"

	"github.com/KIaudius/issues-insights-tracker/internal/ports"
)

// Publishing happens after the transaction committed; the notifier is
// fire-and-forget, so nothing here can fail the mutation.

func (s *Service) publishIssueEvent(ctx context.Context, updateType ports.UpdateType, issue ports.Issue) {
	s.notifier.Publish(ctx, ports.Event{
		Type:       ports.EventIssueUpdate,
		UpdateType: updateType,
		IssueID:    issue.IssueID,
		Issue: &ports.IssueSnapshot{
			IssueID:   issue.IssueID,
			Title:     issue.Title,
			Status:    string(issue.Status),
			Severity:  string(issue.Severity),
			UpdatedAt: issue.UpdatedAt.UTC().Format(time.RFC3339),
		},
	})
}

func (s *Service) publishCommentEvent(ctx context.Context, updateType ports.UpdateType, comment ports.Comment) {
	s.notifier.Publish(ctx, ports.Event{
		Type:       ports.EventCommentUpdate,
		UpdateType: updateType,
		IssueID:    comment.IssueID,
		Comment: &ports.CommentSnapshot{
			CommentID: comment.CommentID,
			IssueID:   comment.IssueID,
			AuthorID:  comment.AuthorID,
			Content:   comment.Content,
			UpdatedAt: comment.UpdatedAt.UTC().Format(time.RFC3339),
		},
	})
}

func (s *Service) publishAttachmentEvent(ctx context.Context, updateType ports.UpdateType, attachment ports.Attachment) {
	s.notifier.Publish(ctx, ports.Event{
		Type:       ports.EventAttachmentUpdate,
		UpdateType: updateType,
		IssueID:    attachment.IssueID,
		Attachment: &ports.AttachmentSnapshot{
			AttachmentID: attachment.AttachmentID,
			IssueID:      attachment.IssueID,
			UploaderID:   attachment.UploaderID,
			Filename:     attachment.Filename,
			ContentType:  attachment.ContentType,
			Size:         attachment.Size,
		},
	})
}
