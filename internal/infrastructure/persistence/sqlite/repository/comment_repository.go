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

type CommentRepository struct {
	db *gorm.DB
}

var _ ports.CommentRepository = (*CommentRepository)(nil)

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) CreateComment(ctx context.Context, comment ports.Comment) (ports.Comment, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Comment{}, err
	}

	now := time.Now().UTC()
	row := model.Comment{
		IssueID:   comment.IssueID,
		AuthorID:  comment.AuthorID,
		Content:   comment.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := db.Create(&row).Error; err != nil {
		return ports.Comment{}, errs.Wrap(err, "insert comment")
	}
	return mapComment(row), nil
}

func (r *CommentRepository) GetComment(ctx context.Context, commentID uint64) (ports.Comment, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Comment{}, err
	}

	var row model.Comment
	if err := db.Where("comment_id = ?", commentID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Comment{}, apperrors.Newf(apperrors.KindNotFound, "comment %d not found", commentID)
		}
		return ports.Comment{}, errs.Wrap(err, "query comment by id")
	}
	return mapComment(row), nil
}

func (r *CommentRepository) ListComments(ctx context.Context, issueID uint64, skip, limit int) ([]ports.Comment, int64, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, 0, err
	}

	query := db.Model(&model.Comment{}).Where("issue_id = ?", issueID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errs.Wrap(err, "count comments")
	}

	if skip > 0 {
		query = query.Offset(skip)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.Comment
	if err := query.Order("created_at asc, comment_id asc").Find(&rows).Error; err != nil {
		return nil, 0, errs.Wrap(err, "query comments")
	}

	comments := make([]ports.Comment, 0, len(rows))
	for _, row := range rows {
		comments = append(comments, mapComment(row))
	}
	return comments, total, nil
}

func (r *CommentRepository) UpdateComment(ctx context.Context, commentID uint64, content string) (ports.Comment, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Comment{}, err
	}

	res := db.Model(&model.Comment{}).Where("comment_id = ?", commentID).Updates(map[string]any{
		"content":    content,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return ports.Comment{}, errs.Wrap(res.Error, "update comment")
	}
	if res.RowsAffected == 0 {
		return ports.Comment{}, apperrors.Newf(apperrors.KindNotFound, "comment %d not found", commentID)
	}

	return r.GetComment(ctx, commentID)
}

func (r *CommentRepository) DeleteComment(ctx context.Context, commentID uint64) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	res := db.Where("comment_id = ?", commentID).Delete(&model.Comment{})
	if res.Error != nil {
		return errs.Wrap(res.Error, "delete comment")
	}
	if res.RowsAffected == 0 {
		return apperrors.Newf(apperrors.KindNotFound, "comment %d not found", commentID)
	}
	return nil
}

func mapComment(row model.Comment) ports.Comment {
	return ports.Comment{
		CommentID: row.CommentID,
		IssueID:   row.IssueID,
		AuthorID:  row.AuthorID,
		Content:   row.Content,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}
