package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/KIaudius/issues-insights-tracker/internal/apperrors"
	domainissue "github.com/KIaudius/issues-insights-tracker/internal/domain/issue"
	"github.com/KIaudius/issues-insights-tracker/internal/errs"
	"github.com/KIaudius/issues-insights-tracker/internal/infrastructure/persistence/sqlite/model"
	"github.com/KIaudius/issues-insights-tracker/internal/ports"
)

type IssueRepository struct {
	db *gorm.DB
}

var _ ports.IssueRepository = (*IssueRepository)(nil)

func NewIssueRepository(db *gorm.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

func (r *IssueRepository) CreateIssue(ctx context.Context, issue ports.Issue) (ports.Issue, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Issue{}, err
	}

	now := time.Now().UTC()
	row := model.Issue{
		Title:       issue.Title,
		Description: issue.Description,
		Severity:    string(issue.Severity),
		Status:      string(issue.Status),
		ReporterID:  issue.ReporterID,
		AssigneeID:  issue.AssigneeID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := db.Create(&row).Error; err != nil {
		return ports.Issue{}, errs.Wrap(err, "insert issue")
	}

	for _, tag := range issue.Tags {
		tagRow := model.IssueTag{IssueID: row.IssueID, Name: tag.Name, Color: tag.Color}
		if err := db.Create(&tagRow).Error; err != nil {
			return ports.Issue{}, errs.Wrap(err, "insert issue tag")
		}
	}

	return r.getIssue(db, row.IssueID)
}

func (r *IssueRepository) GetIssue(ctx context.Context, issueID uint64) (ports.Issue, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Issue{}, err
	}
	return r.getIssue(db, issueID)
}

func (r *IssueRepository) getIssue(db *gorm.DB, issueID uint64) (ports.Issue, error) {
	var row model.Issue
	if err := db.Where("issue_id = ?", issueID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Issue{}, apperrors.Newf(apperrors.KindNotFound, "issue %d not found", issueID)
		}
		return ports.Issue{}, errs.Wrap(err, "query issue by id")
	}

	tags, err := r.listTags(db, issueID)
	if err != nil {
		return ports.Issue{}, err
	}
	return mapIssue(row, tags), nil
}

func (r *IssueRepository) listTags(db *gorm.DB, issueID uint64) ([]ports.IssueTag, error) {
	var rows []model.IssueTag
	if err := db.Where("issue_id = ?", issueID).Order("tag_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query issue tags")
	}

	tags := make([]ports.IssueTag, 0, len(rows))
	for _, row := range rows {
		tags = append(tags, ports.IssueTag{TagID: row.TagID, IssueID: row.IssueID, Name: row.Name, Color: row.Color})
	}
	return tags, nil
}

func (r *IssueRepository) ListIssues(ctx context.Context, filter ports.IssueFilter) ([]ports.Issue, int64, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, 0, err
	}

	query := db.Model(&model.Issue{})
	if filter.ReporterID != nil {
		query = query.Where("reporter_id = ?", *filter.ReporterID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", string(filter.Severity))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("lower(title) LIKE ? OR lower(description) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errs.Wrap(err, "count issues")
	}

	if filter.Skip > 0 {
		query = query.Offset(filter.Skip)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.Issue
	if err := query.Order("created_at desc, issue_id desc").Find(&rows).Error; err != nil {
		return nil, 0, errs.Wrap(err, "query issues")
	}

	issues := make([]ports.Issue, 0, len(rows))
	for _, row := range rows {
		tags, err := r.listTags(db, row.IssueID)
		if err != nil {
			return nil, 0, err
		}
		issues = append(issues, mapIssue(row, tags))
	}
	return issues, total, nil
}

func (r *IssueRepository) UpdateIssue(ctx context.Context, issueID uint64, update ports.IssueUpdate) (ports.Issue, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Issue{}, err
	}

	values := map[string]any{"updated_at": time.Now().UTC()}
	if update.Title != nil {
		values["title"] = *update.Title
	}
	if update.Description != nil {
		values["description"] = *update.Description
	}
	if update.Severity != nil {
		values["severity"] = string(*update.Severity)
	}
	if update.ClearAssignee {
		values["assignee_id"] = nil
	} else if update.AssigneeID != nil {
		values["assignee_id"] = *update.AssigneeID
	}

	res := db.Model(&model.Issue{}).Where("issue_id = ?", issueID).Updates(values)
	if res.Error != nil {
		return ports.Issue{}, errs.Wrap(res.Error, "update issue")
	}
	if res.RowsAffected == 0 {
		return ports.Issue{}, apperrors.Newf(apperrors.KindNotFound, "issue %d not found", issueID)
	}

	if update.Tags != nil {
		if err := db.Where("issue_id = ?", issueID).Delete(&model.IssueTag{}).Error; err != nil {
			return ports.Issue{}, errs.Wrap(err, "replace issue tags")
		}
		for _, tag := range update.Tags {
			tagRow := model.IssueTag{IssueID: issueID, Name: tag.Name, Color: tag.Color}
			if err := db.Create(&tagRow).Error; err != nil {
				return ports.Issue{}, errs.Wrap(err, "insert issue tag")
			}
		}
	}

	return r.getIssue(db, issueID)
}

func (r *IssueRepository) UpdateIssueStatusGuarded(ctx context.Context, issueID uint64, expected, next domainissue.Status) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	// The status predicate makes the read-validate-write race-safe: a
	// concurrent transition that got there first leaves RowsAffected at 0.
	res := db.Model(&model.Issue{}).
		Where("issue_id = ? AND status = ?", issueID, string(expected)).
		Updates(map[string]any{
			"status":     string(next),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return errs.Wrap(res.Error, "update issue status")
	}
	if res.RowsAffected == 0 {
		var exists int64
		if err := db.Model(&model.Issue{}).Where("issue_id = ?", issueID).Count(&exists).Error; err != nil {
			return errs.Wrap(err, "check issue existence")
		}
		if exists == 0 {
			return apperrors.Newf(apperrors.KindNotFound, "issue %d not found", issueID)
		}
		return ports.ErrStaleStatus
	}
	return nil
}

func (r *IssueRepository) DeleteIssue(ctx context.Context, issueID uint64) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	res := db.Where("issue_id = ?", issueID).Delete(&model.Issue{})
	if res.Error != nil {
		return errs.Wrap(res.Error, "delete issue")
	}
	if res.RowsAffected == 0 {
		return apperrors.Newf(apperrors.KindNotFound, "issue %d not found", issueID)
	}

	// Children are owned exclusively by the issue; remove them with it.
	for _, child := range []any{&model.Comment{}, &model.Attachment{}, &model.IssueHistory{}, &model.IssueTag{}} {
		if err := db.Where("issue_id = ?", issueID).Delete(child).Error; err != nil {
			return errs.Wrap(err, "delete issue children")
		}
	}
	return nil
}

func mapIssue(row model.Issue, tags []ports.IssueTag) ports.Issue {
	return ports.Issue{
		IssueID:     row.IssueID,
		Title:       row.Title,
		Description: row.Description,
		Severity:    domainissue.Severity(row.Severity),
		Status:      domainissue.Status(row.Status),
		ReporterID:  row.ReporterID,
		AssigneeID:  row.AssigneeID,
		Tags:        tags,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}
