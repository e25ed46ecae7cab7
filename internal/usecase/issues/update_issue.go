package issues

import (
	"context"
	"strings"

	"github.com/KIaudius/issues-insights-tracker/internal/apperrors"
	"github.com/KIaudius/issues-insights-tracker/internal/auth"
	domainissue "github.com/KIaudius/issues-insights-tracker/internal/domain/issue"
	"github.com/KIaudius/issues-insights-tracker/internal/domain/rbac"
	"github.com/KIaudius/issues-insights-tracker/internal/errs"
	"github.com/KIaudius/issues-insights-tracker/internal/ports"
)

// UpdateIssue applies the generic field updates. Status is not one of
// them: the workflow state only moves through TransitionStatus.
func (s *Service) UpdateIssue(ctx context.Context, actor auth.Identity, issueID uint64, input UpdateIssueInput) (ports.Issue, error) {
	if err := checkCtx(ctx); err != nil {
		return ports.Issue{}, err
	}

	if _, err := s.authorizeIssue(ctx, actor, issueID, rbac.ActionIssueUpdate); err != nil {
		return ports.Issue{}, err
	}

	if input.Status != nil {
		// A Reporter smuggling status through the generic update is a
		// permission problem; for Maintainer and above it is a usage one.
		if !actor.Role.Satisfies(rbac.RoleMaintainer) {
			return ports.Issue{}, apperrors.New(apperrors.KindForbidden, "not enough permissions to change status")
		}
		return ports.Issue{}, apperrors.New(apperrors.KindValidation, "status cannot be changed here, use the status endpoint")
	}

	update := ports.IssueUpdate{
		AssigneeID:    input.AssigneeID,
		ClearAssignee: input.ClearAssignee,
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return ports.Issue{}, apperrors.New(apperrors.KindValidation, "title is required")
		}
		if len(title) > maxTitleLength {
			return ports.Issue{}, apperrors.Newf(apperrors.KindValidation, "title longer than %d characters", maxTitleLength)
		}
		update.Title = &title
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description == "" {
			return ports.Issue{}, apperrors.New(apperrors.KindValidation, "description is required")
		}
		update.Description = &description
	}
	if input.Severity != nil {
		severity, err := domainissue.ParseSeverity(*input.Severity)
		if err != nil {
			return ports.Issue{}, apperrors.Newf(apperrors.KindValidation, "invalid severity %q", *input.Severity)
		}
		update.Severity = &severity
	}
	if input.Tags != nil {
		tags, err := normalizeTags(actor, input.Tags)
		if err != nil {
			return ports.Issue{}, err
		}
		if tags == nil {
			tags = []ports.IssueTag{}
		}
		update.Tags = tags
	}
	if input.AssigneeID != nil && !input.ClearAssignee {
		if _, err := s.users.GetUser(ctx, *input.AssigneeID); err != nil {
			if apperrors.IsKind(err, apperrors.KindNotFound) {
				return ports.Issue{}, apperrors.Newf(apperrors.KindValidation, "assignee %d does not exist", *input.AssigneeID)
			}
			return ports.Issue{}, err
		}
	}

	updated, err := s.issues.UpdateIssue(ctx, issueID, update)
	if err != nil {
		return ports.Issue{}, errs.Wrap(err, "update issue")
	}

	s.publishIssueEvent(ctx, ports.UpdateUpdated, updated)
	return updated, nil
}
