package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	domainissue "github.com/KIaudius/issues-insights-tracker/internal/domain/issue"
	"github.com/KIaudius/issues-insights-tracker/internal/errs"
	"github.com/KIaudius/issues-insights-tracker/internal/infrastructure/persistence/sqlite/model"
	"github.com/KIaudius/issues-insights-tracker/internal/ports"
)

type HistoryRepository struct {
	db *gorm.DB
}

var _ ports.HistoryRepository = (*HistoryRepository)(nil)

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) AppendHistory(ctx context.Context, entry ports.HistoryEntry) (ports.HistoryEntry, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.HistoryEntry{}, err
	}

	row := model.IssueHistory{
		IssueID:   entry.IssueID,
		ActorID:   entry.ActorID,
		NewStatus: string(entry.NewStatus),
		Comment:   entry.Comment,
		CreatedAt: time.Now().UTC(),
	}
	if entry.OldStatus != nil {
		old := string(*entry.OldStatus)
		row.OldStatus = &old
	}

	if err := db.Create(&row).Error; err != nil {
		return ports.HistoryEntry{}, errs.Wrap(err, "append history entry")
	}
	return mapHistory(row), nil
}

func (r *HistoryRepository) ListHistory(ctx context.Context, issueID uint64) ([]ports.HistoryEntry, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.IssueHistory
	if err := db.
		Where("issue_id = ?", issueID).
		Order("created_at asc, history_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query issue history")
	}

	entries := make([]ports.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, mapHistory(row))
	}
	return entries, nil
}

func (r *HistoryRepository) ListRecentHistory(ctx context.Context, limit int) ([]ports.HistoryEntry, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.IssueHistory
	if err := db.
		Order("created_at desc, history_id desc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query recent history")
	}

	entries := make([]ports.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, mapHistory(row))
	}
	return entries, nil
}

func mapHistory(row model.IssueHistory) ports.HistoryEntry {
	entry := ports.HistoryEntry{
		HistoryID: row.HistoryID,
		IssueID:   row.IssueID,
		ActorID:   row.ActorID,
		NewStatus: domainissue.Status(row.NewStatus),
		Comment:   row.Comment,
		CreatedAt: row.CreatedAt,
	}
	if row.OldStatus != nil {
		old := domainissue.Status(*row.OldStatus)
		entry.OldStatus = &old
	}
	return entry
}
