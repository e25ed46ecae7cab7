// Package issues implements the issue workflow usecases: creation, the
// status state machine, the audit ledger, comments and attachments.
package issues

import (
	"context"
	"errors"

	"github.com/KIaudius/issues-insights-tracker/internal/apperrors"
	"github.com/KIaudius/issues-insights-tracker/internal/auth"
	domainissue "github.com/KIaudius/issues-insights-tracker/internal/domain/issue"
	"github.com/KIaudius/issues-insights-tracker/internal/domain/rbac"
	"github.com/KIaudius/issues-insights-tracker/internal/ports"
)

// transitionRetries bounds the optimistic-retry loop when concurrent
// transitions race on the same issue.
const transitionRetries = 3

type Service struct {
	issues      ports.IssueRepository
	history     ports.HistoryRepository
	comments    ports.CommentRepository
	attachments ports.AttachmentRepository
	users       ports.UserRepository
	uow         ports.UnitOfWork
	blobs       ports.BlobStore
	notifier    ports.Notifier
}

func NewService(
	issues ports.IssueRepository,
	history ports.HistoryRepository,
	comments ports.CommentRepository,
	attachments ports.AttachmentRepository,
	users ports.UserRepository,
	uow ports.UnitOfWork,
	blobs ports.BlobStore,
	notifier ports.Notifier,
) *Service {
	if notifier == nil {
		notifier = ports.NopNotifier{}
	}
	return &Service{
		issues:      issues,
		history:     history,
		comments:    comments,
		attachments: attachments,
		users:       users,
		uow:         uow,
		blobs:       blobs,
		notifier:    notifier,
	}
}

type CreateIssueInput struct {
	Title       string
	Description string
	Severity    string
	AssigneeID  *uint64
	Tags        []TagInput
}

type TagInput struct {
	Name  string
	Color string
}

type UpdateIssueInput struct {
	Title         *string
	Description   *string
	Severity      *string
	AssigneeID    *uint64
	ClearAssignee bool
	Tags          []TagInput
	// Status is accepted only to be rejected: status changes go through
	// TransitionStatus, never through the generic update path.
	Status *string
}

type TransitionInput struct {
	Target  string
	Comment string
}

type AddCommentInput struct {
	Content string
}

type IssueListInput struct {
	Status   string
	Severity string
	Search   string
	Skip     int
	Limit    int
}

type IssueList struct {
	Issues []ports.Issue
	Total  int64
}

type CommentList struct {
	Comments []ports.Comment
	Total    int64
}

// authorizeIssue loads the issue and applies the policy for the action.
func (s *Service) authorizeIssue(ctx context.Context, actor auth.Identity, issueID uint64, action rbac.Action) (ports.Issue, error) {
	found, err := s.issues.GetIssue(ctx, issueID)
	if err != nil {
		return ports.Issue{}, err
	}

	if err := rbac.Decide(actor.Role, action, found.ReporterID == actor.UserID); err != nil {
		return ports.Issue{}, forbidden(err)
	}
	return found, nil
}

// AuthorizeRead is the subscription gate used by the realtime channel:
// same visibility rule as reading the issue over HTTP.
func (s *Service) AuthorizeRead(ctx context.Context, actor auth.Identity, issueID uint64) error {
	_, err := s.authorizeIssue(ctx, actor, issueID, rbac.ActionIssueRead)
	return err
}

func forbidden(err error) error {
	if errors.Is(err, rbac.ErrForbidden) {
		return apperrors.New(apperrors.KindForbidden, "not enough permissions")
	}
	return err
}

func checkCtx(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	return ctx.Err()
}

func parseSeverity(raw string, fallback domainissue.Severity) (domainissue.Severity, error) {
	if raw == "" {
		return fallback, nil
	}
	severity, err := domainissue.ParseSeverity(raw)
	if err != nil {
		return "", apperrors.Newf(apperrors.KindValidation, "invalid severity %q", raw)
	}
	return severity, nil
}
