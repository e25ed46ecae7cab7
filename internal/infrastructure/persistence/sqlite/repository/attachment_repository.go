package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/KIaudius/issues-insights-tracker/internal/apperrors"
	"github.com/KIaudius/issues-insights-tracker/internal/errs"
	"github.com/KIaudius/issues-insights-tracker/internal/infrastructure/persistence/sqlite/model"
	"github.com/KIaudius/issues-insights-tracker/internal/ports"
)

type AttachmentRepository struct {
	db *gorm.DB
}

var _ ports.AttachmentRepository = (*AttachmentRepository)(nil)

func NewAttachmentRepository(db *gorm.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

func (r *AttachmentRepository) CreateAttachment(ctx context.Context, attachment ports.Attachment) (ports.Attachment, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Attachment{}, err
	}

	row := model.Attachment{
		IssueID:     attachment.IssueID,
		UploaderID:  attachment.UploaderID,
		Filename:    attachment.Filename,
		ContentType: attachment.ContentType,
		Size:        attachment.Size,
		StorageKey:  attachment.StorageKey,
		CreatedAt:   time.Now().UTC(),
	}

	if err := db.Create(&row).Error; err != nil {
		return ports.Attachment{}, errs.Wrap(err, "insert attachment")
	}
	return mapAttachment(row), nil
}

func (r *AttachmentRepository) GetAttachment(ctx context.Context, attachmentID uint64) (ports.Attachment, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Attachment{}, err
	}

	var row model.Attachment
	if err := db.Where("attachment_id = ?", attachmentID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Attachment{}, apperrors.Newf(apperrors.KindNotFound, "attachment %d not found", attachmentID)
		}
		return ports.Attachment{}, errs.Wrap(err, "query attachment by id")
	}
	return mapAttachment(row), nil
}

func (r *AttachmentRepository) ListAttachments(ctx context.Context, issueID uint64) ([]ports.Attachment, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.Attachment
	if err := db.
		Where("issue_id = ?", issueID).
		Order("created_at asc, attachment_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query attachments")
	}

	attachments := make([]ports.Attachment, 0, len(rows))
	for _, row := range rows {
		attachments = append(attachments, mapAttachment(row))
	}
	return attachments, nil
}

func (r *AttachmentRepository) DeleteAttachment(ctx context.Context, attachmentID uint64) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	res := db.Where("attachment_id = ?", attachmentID).Delete(&model.Attachment{})
	if res.Error != nil {
		return errs.Wrap(res.Error, "delete attachment")
	}
	if res.RowsAffected == 0 {
		return apperrors.Newf(apperrors.KindNotFound, "attachment %d not found", attachmentID)
	}
	return nil
}

func mapAttachment(row model.Attachment) ports.Attachment {
	return ports.Attachment{
		AttachmentID: row.AttachmentID,
		IssueID:      row.IssueID,
		UploaderID:   row.UploaderID,
		Filename:     row.Filename,
		ContentType:  row.ContentType,
		Size:         row.Size,
		StorageKey:   row.StorageKey,
		CreatedAt:    row.CreatedAt,
	}
}
