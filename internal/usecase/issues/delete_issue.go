package issues

import (
	"context"
	"log/slog"

	"github.com/KIaudius/issues-insights-tracker/internal/auth"
	"github.com/KIaudius/issues-insights-tracker/internal/bootstrap/logging"
	"github.com/KIaudius/issues-insights-tracker/internal/domain/rbac"
	"github.com/KIaudius/issues-insights-tracker/internal/errs"
	"github.com/KIaudius/issues-insights-tracker/internal/ports"
)

// DeleteIssue removes the issue with all children in one transaction,
// then cleans the attachment blobs up. Blob removal happens after commit
// so a storage hiccup never rolls back the delete; leftovers are logged.
func (s *Service) DeleteIssue(ctx context.Context, actor auth.Identity, issueID uint64) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	found, err := s.authorizeIssue(ctx, actor, issueID, rbac.ActionIssueDelete)
	if err != nil {
		return err
	}

	attachments, err := s.attachments.ListAttachments(ctx, issueID)
	if err != nil {
		return err
	}

	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		return s.issues.DeleteIssue(txCtx, issueID)
	})
	if err != nil {
		return errs.Wrap(err, "delete issue")
	}

	for _, attachment := range attachments {
		if err := s.blobs.Delete(ctx, attachment.StorageKey); err != nil {
			logging.Warn(ctx, "orphaned attachment blob after issue delete",
				slog.Uint64("issue_id", issueID),
				slog.String("storage_key", attachment.StorageKey),
				slog.String("error", err.Error()),
			)
		}
	}

	s.publishIssueEvent(ctx, ports.UpdateDeleted, found)
	return nil
}
