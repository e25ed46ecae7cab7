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

const maxTitleLength = 255

// CreateIssue opens a new issue at the initial status and writes the
// creation row of the audit ledger in the same transaction.
func (s *Service) CreateIssue(ctx context.Context, actor auth.Identity, input CreateIssueInput) (ports.Issue, error) {
	if err := checkCtx(ctx); err != nil {
		return ports.Issue{}, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return ports.Issue{}, apperrors.New(apperrors.KindValidation, "title is required")
	}
	if len(title) > maxTitleLength {
		return ports.Issue{}, apperrors.Newf(apperrors.KindValidation, "title longer than %d characters", maxTitleLength)
	}

	description := strings.TrimSpace(input.Description)
	if description == "" {
		return ports.Issue{}, apperrors.New(apperrors.KindValidation, "description is required")
	}

	severity, err := parseSeverity(input.Severity, domainissue.DefaultSeverity)
	if err != nil {
		return ports.Issue{}, err
	}

	tags, err := normalizeTags(actor, input.Tags)
	if err != nil {
		return ports.Issue{}, err
	}

	if input.AssigneeID != nil {
		if _, err := s.users.GetUser(ctx, *input.AssigneeID); err != nil {
			if apperrors.IsKind(err, apperrors.KindNotFound) {
				return ports.Issue{}, apperrors.Newf(apperrors.KindValidation, "assignee %d does not exist", *input.AssigneeID)
			}
			return ports.Issue{}, err
		}
	}

	var created ports.Issue
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var txErr error
		created, txErr = s.issues.CreateIssue(txCtx, ports.Issue{
			Title:       title,
			Description: description,
			Severity:    severity,
			Status:      domainissue.InitialStatus,
			ReporterID:  actor.UserID,
			AssigneeID:  input.AssigneeID,
			Tags:        tags,
		})
		if txErr != nil {
			return txErr
		}

		_, txErr = s.history.AppendHistory(txCtx, ports.HistoryEntry{
			IssueID:   created.IssueID,
			ActorID:   actor.UserID,
			OldStatus: nil,
			NewStatus: domainissue.InitialStatus,
			Comment:   "Issue created",
		})
		return txErr
	})
	if err != nil {
		return ports.Issue{}, errs.Wrap(err, "create issue")
	}

	s.publishIssueEvent(ctx, ports.UpdateCreated, created)
	return created, nil
}

// normalizeTags validates tag input; tagging is a triage concern, so it
// needs Maintainer or above.
func normalizeTags(actor auth.Identity, inputs []TagInput) ([]ports.IssueTag, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	if !actor.Role.Satisfies(rbac.RoleMaintainer) {
		return nil, apperrors.New(apperrors.KindForbidden, "only maintainers may set tags")
	}

	tags := make([]ports.IssueTag, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, apperrors.New(apperrors.KindValidation, "tag name is required")
		}
		if _, dup := seen[strings.ToLower(name)]; dup {
			continue
		}
		seen[strings.ToLower(name)] = struct{}{}

		color := strings.TrimSpace(in.Color)
		if color == "" {
			color = "#3498db"
		}
		tags = append(tags, ports.IssueTag{Name: name, Color: color})
	}
	return tags, nil
}
