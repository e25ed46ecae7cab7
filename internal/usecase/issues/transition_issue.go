package issues

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/KIaudius/issues-insights-tracker/internal/apperrors"
	"github.com/KIaudius/issues-insights-tracker/internal/auth"
	"github.com/KIaudius/issues-insights-tracker/internal/bootstrap/logging"
	domainissue "github.com/KIaudius/issues-insights-tracker/internal/domain/issue"
	"github.com/KIaudius/issues-insights-tracker/internal/domain/rbac"
	"github.com/KIaudius/issues-insights-tracker/internal/ports"
)

// TransitionStatus moves the issue along a legal edge of the workflow
// graph and appends the matching ledger row, both in one transaction.
//
// Read-validate-write runs under a guarded update: when a concurrent
// transition wins the race the unit rolls back and is retried from the
// freshly read status, so stale reads can never sneak an illegal edge
// past the table check or double-append history.
func (s *Service) TransitionStatus(ctx context.Context, actor auth.Identity, issueID uint64, input TransitionInput) (ports.Issue, error) {
	if err := checkCtx(ctx); err != nil {
		return ports.Issue{}, err
	}

	// The transition operation is never ownership-based; Reporters are
	// denied before the issue is even inspected.
	if err := rbac.Decide(actor.Role, rbac.ActionIssueTransition, false); err != nil {
		return ports.Issue{}, forbidden(err)
	}

	target, err := domainissue.ParseStatus(input.Target)
	if err != nil {
		return ports.Issue{}, apperrors.Newf(apperrors.KindValidation, "invalid status %q", input.Target)
	}
	comment := strings.TrimSpace(input.Comment)

	for attempt := 0; attempt < transitionRetries; attempt++ {
		var updated ports.Issue
		err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
			current, txErr := s.issues.GetIssue(txCtx, issueID)
			if txErr != nil {
				return txErr
			}

			prev, txErr := domainissue.Transition(current.Status, target)
			if txErr != nil {
				if errors.Is(txErr, domainissue.ErrInvalidTransition) {
					return apperrors.Newf(apperrors.KindInvalidTransition,
						"cannot transition from %s to %s", current.Status, target)
				}
				return txErr
			}

			if txErr := s.issues.UpdateIssueStatusGuarded(txCtx, issueID, prev, target); txErr != nil {
				return txErr
			}

			if _, txErr := s.history.AppendHistory(txCtx, ports.HistoryEntry{
				IssueID:   issueID,
				ActorID:   actor.UserID,
				OldStatus: &prev,
				NewStatus: target,
				Comment:   comment,
			}); txErr != nil {
				return txErr
			}

			updated, txErr = s.issues.GetIssue(txCtx, issueID)
			return txErr
		})
		if errors.Is(err, ports.ErrStaleStatus) {
			logging.Info(ctx, "retrying status transition after concurrent update",
				slog.Uint64("issue_id", issueID),
				slog.Int("attempt", attempt+1),
			)
			continue
		}
		if err != nil {
			return ports.Issue{}, err
		}

		s.publishIssueEvent(ctx, ports.UpdateUpdated, updated)
		return updated, nil
	}

	return ports.Issue{}, apperrors.Newf(apperrors.KindConflict,
		"issue %d is being updated concurrently, try again", issueID)
}
