package issues

import (
	"context"
	"strings"

	"github.com/KIaudius/issues-insights-tracker/internal/apperrors"
	"github.com/KIaudius/issues-insights-tracker/internal/auth"
	"github.com/KIaudius/issues-insights-tracker/internal/domain/rbac"
	"github.com/KIaudius/issues-insights-tracker/internal/ports"
)

// AddComment posts a comment on an issue the actor can read.
func (s *Service) AddComment(ctx context.Context, actor auth.Identity, issueID uint64, input AddCommentInput) (ports.Comment, error) {
	if err := checkCtx(ctx); err != nil {
		return ports.Comment{}, err
	}

	content := strings.TrimSpace(input.Content)
	if content == "" {
		return ports.Comment{}, apperrors.New(apperrors.KindValidation, "comment content is required")
	}

	if _, err := s.authorizeIssue(ctx, actor, issueID, rbac.ActionIssueRead); err != nil {
		return ports.Comment{}, err
	}

	created, err := s.comments.CreateComment(ctx, ports.Comment{
		IssueID:  issueID,
		AuthorID: actor.UserID,
		Content:  content,
	})
	if err != nil {
		return ports.Comment{}, err
	}

	s.publishCommentEvent(ctx, ports.UpdateCreated, created)
	return created, nil
}

func (s *Service) ListComments(ctx context.Context, actor auth.Identity, issueID uint64, skip, limit int) (CommentList, error) {
	if err := checkCtx(ctx); err != nil {
		return CommentList{}, err
	}
	if _, err := s.authorizeIssue(ctx, actor, issueID, rbac.ActionIssueRead); err != nil {
		return CommentList{}, err
	}

	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	comments, total, err := s.comments.ListComments(ctx, issueID, skip, limit)
	if err != nil {
		return CommentList{}, err
	}
	return CommentList{Comments: comments, Total: total}, nil
}

// UpdateComment edits a comment: its author may, everyone else needs
// Admin.
func (s *Service) UpdateComment(ctx context.Context, actor auth.Identity, commentID uint64, content string) (ports.Comment, error) {
	if err := checkCtx(ctx); err != nil {
		return ports.Comment{}, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return ports.Comment{}, apperrors.New(apperrors.KindValidation, "comment content is required")
	}

	found, err := s.comments.GetComment(ctx, commentID)
	if err != nil {
		return ports.Comment{}, err
	}
	if err := rbac.Decide(actor.Role, rbac.ActionCommentUpdate, found.AuthorID == actor.UserID); err != nil {
		return ports.Comment{}, forbidden(err)
	}

	updated, err := s.comments.UpdateComment(ctx, commentID, content)
	if err != nil {
		return ports.Comment{}, err
	}

	s.publishCommentEvent(ctx, ports.UpdateUpdated, updated)
	return updated, nil
}

func (s *Service) DeleteComment(ctx context.Context, actor auth.Identity, commentID uint64) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	found, err := s.comments.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if err := rbac.Decide(actor.Role, rbac.ActionCommentDelete, found.AuthorID == actor.UserID); err != nil {
		return forbidden(err)
	}

	if err := s.comments.DeleteComment(ctx, commentID); err != nil {
		return err
	}

	s.publishCommentEvent(ctx, ports.UpdateDeleted, found)
	return nil
}
