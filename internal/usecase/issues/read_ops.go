package issues

import (
	"context"

	"github.com/KIaudius/issues-insights-tracker/internal/apperrors"
	"github.com/KIaudius/issues-insights-tracker/internal/auth"
	domainissue "github.com/KIaudius/issues-insights-tracker/internal/domain/issue"
	"github.com/KIaudius/issues-insights-tracker/internal/domain/rbac"
	"github.com/KIaudius/issues-insights-tracker/internal/ports"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

func (s *Service) GetIssue(ctx context.Context, actor auth.Identity, issueID uint64) (ports.Issue, error) {
	if err := checkCtx(ctx); err != nil {
		return ports.Issue{}, err
	}
	return s.authorizeIssue(ctx, actor, issueID, rbac.ActionIssueRead)
}

// ListIssues is scope-narrowed, not denied: Reporters see only their own
// issues, Maintainer and above see everything.
func (s *Service) ListIssues(ctx context.Context, actor auth.Identity, input IssueListInput) (IssueList, error) {
	if err := checkCtx(ctx); err != nil {
		return IssueList{}, err
	}

	filter := ports.IssueFilter{
		Search: input.Search,
		Skip:   input.Skip,
		Limit:  input.Limit,
	}
	if filter.Skip < 0 {
		filter.Skip = 0
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	if input.Status != "" {
		status, err := domainissue.ParseStatus(input.Status)
		if err != nil {
			return IssueList{}, apperrors.Newf(apperrors.KindValidation, "invalid status %q", input.Status)
		}
		filter.Status = status
	}
	if input.Severity != "" {
		severity, err := domainissue.ParseSeverity(input.Severity)
		if err != nil {
			return IssueList{}, apperrors.Newf(apperrors.KindValidation, "invalid severity %q", input.Severity)
		}
		filter.Severity = severity
	}

	if rbac.IssueListScope(actor.Role) == rbac.ScopeOwn {
		reporterID := actor.UserID
		filter.ReporterID = &reporterID
	}

	issues, total, err := s.issues.ListIssues(ctx, filter)
	if err != nil {
		return IssueList{}, err
	}
	return IssueList{Issues: issues, Total: total}, nil
}

// ListHistory returns the issue's audit ledger in append order. Visible
// to anyone who can read the issue.
func (s *Service) ListHistory(ctx context.Context, actor auth.Identity, issueID uint64) ([]ports.HistoryEntry, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	if _, err := s.authorizeIssue(ctx, actor, issueID, rbac.ActionIssueRead); err != nil {
		return nil, err
	}
	return s.history.ListHistory(ctx, issueID)
}
