package issues

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/KIaudius/issues-insights-tracker/internal/apperrors"
	"github.com/KIaudius/issues-insights-tracker/internal/auth"
	"github.com/KIaudius/issues-insights-tracker/internal/domain/rbac"
	"github.com/KIaudius/issues-insights-tracker/internal/errs"
	"github.com/KIaudius/issues-insights-tracker/internal/ports"
)

// allowedExtensions whitelists what may be uploaded as an attachment.
var allowedExtensions = map[string]struct{}{
	".pdf":  {},
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".doc":  {},
	".docx": {},
	".xls":  {},
	".xlsx": {},
	".txt":  {},
}

type UploadAttachmentInput struct {
	Filename    string
	ContentType string
	// MaxSize caps how many bytes will be accepted from Content.
	MaxSize int64
	Content io.Reader
}

// UploadAttachment stores the file bytes in blob storage and records the
// attachment row. The blob is written first; on a failed row insert the
// blob is removed again so storage does not accumulate orphans.
func (s *Service) UploadAttachment(ctx context.Context, actor auth.Identity, issueID uint64, input UploadAttachmentInput) (ports.Attachment, error) {
	if err := checkCtx(ctx); err != nil {
		return ports.Attachment{}, err
	}

	filename := strings.TrimSpace(input.Filename)
	if filename == "" {
		return ports.Attachment{}, apperrors.New(apperrors.KindValidation, "filename is required")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return ports.Attachment{}, apperrors.Newf(apperrors.KindValidation, "file type %q is not allowed", ext)
	}
	if input.Content == nil {
		return ports.Attachment{}, apperrors.New(apperrors.KindValidation, "file content is required")
	}

	if _, err := s.authorizeIssue(ctx, actor, issueID, rbac.ActionIssueRead); err != nil {
		return ports.Attachment{}, err
	}

	// One extra byte past the cap is enough to tell "too large" apart
	// from "exactly at the cap".
	limited := io.LimitReader(input.Content, input.MaxSize+1)
	counting := &countingReader{r: limited}

	key, err := s.blobs.Put(ctx, issueID, filename, counting)
	if err != nil {
		return ports.Attachment{}, errs.Wrap(err, "store attachment")
	}
	if counting.n > input.MaxSize {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			return ports.Attachment{}, errs.Wrap(delErr, "discard oversized attachment")
		}
		return ports.Attachment{}, apperrors.Newf(apperrors.KindValidation, "file larger than %d bytes", input.MaxSize)
	}

	contentType := strings.TrimSpace(input.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	created, err := s.attachments.CreateAttachment(ctx, ports.Attachment{
		IssueID:     issueID,
		UploaderID:  actor.UserID,
		Filename:    filename,
		ContentType: contentType,
		Size:        counting.n,
		StorageKey:  key,
	})
	if err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			err = errs.Wrap(err, delErr.Error())
		}
		return ports.Attachment{}, err
	}

	s.publishAttachmentEvent(ctx, ports.UpdateCreated, created)
	return created, nil
}

func (s *Service) ListAttachments(ctx context.Context, actor auth.Identity, issueID uint64) ([]ports.Attachment, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	if _, err := s.authorizeIssue(ctx, actor, issueID, rbac.ActionIssueRead); err != nil {
		return nil, err
	}
	return s.attachments.ListAttachments(ctx, issueID)
}

// OpenAttachment returns the attachment metadata and a reader over its
// bytes; the caller owns closing the reader.
func (s *Service) OpenAttachment(ctx context.Context, actor auth.Identity, attachmentID uint64) (ports.Attachment, io.ReadCloser, error) {
	if err := checkCtx(ctx); err != nil {
		return ports.Attachment{}, nil, err
	}

	found, err := s.attachments.GetAttachment(ctx, attachmentID)
	if err != nil {
		return ports.Attachment{}, nil, err
	}
	if _, err := s.authorizeIssue(ctx, actor, found.IssueID, rbac.ActionIssueRead); err != nil {
		return ports.Attachment{}, nil, err
	}

	reader, err := s.blobs.Open(ctx, found.StorageKey)
	if err != nil {
		if errors.Is(err, ports.ErrBlobNotFound) {
			return ports.Attachment{}, nil, apperrors.Newf(apperrors.KindNotFound, "attachment %d content is missing", attachmentID)
		}
		return ports.Attachment{}, nil, err
	}
	return found, reader, nil
}

func (s *Service) DeleteAttachment(ctx context.Context, actor auth.Identity, attachmentID uint64) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	found, err := s.attachments.GetAttachment(ctx, attachmentID)
	if err != nil {
		return err
	}
	if err := rbac.Decide(actor.Role, rbac.ActionAttachmentDelete, found.UploaderID == actor.UserID); err != nil {
		return forbidden(err)
	}

	if err := s.attachments.DeleteAttachment(ctx, attachmentID); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, found.StorageKey); err != nil && !errors.Is(err, ports.ErrBlobNotFound) {
		return errs.Wrap(err, "delete attachment blob")
	}

	s.publishAttachmentEvent(ctx, ports.UpdateDeleted, found)
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
