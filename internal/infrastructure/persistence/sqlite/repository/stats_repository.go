package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KIaudius/issues-insights-tracker/internal/apperrors"
	domainissue "github.com/KIaudius/issues-insights-tracker/internal/domain/issue"
	"github.com/KIaudius/issues-insights-tracker/internal/errs"
	"github.com/KIaudius/issues-insights-tracker/internal/infrastructure/persistence/sqlite/model"
	"github.com/KIaudius/issues-insights-tracker/internal/ports"
)

type StatsRepository struct {
	db *gorm.DB
}

var _ ports.StatsRepository = (*StatsRepository)(nil)

func NewStatsRepository(db *gorm.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

type groupCount struct {
	Key   string `gorm:"column:key"`
	Count int64  `gorm:"column:count"`
}

func (r *StatsRepository) StatusCountsAsOf(ctx context.Context, cutoff time.Time) (map[domainissue.Status]int64, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []groupCount
	if err := db.Model(&model.Issue{}).
		Select("status as key, count(*) as count").
		Where("created_at <= ?", cutoff).
		Group("status").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "count issues by status")
	}

	counts := make(map[domainissue.Status]int64, len(rows))
	for _, row := range rows {
		counts[domainissue.Status(row.Key)] = row.Count
	}
	return counts, nil
}

func (r *StatsRepository) SeverityCountsAsOf(ctx context.Context, cutoff time.Time) (map[domainissue.Severity]int64, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []groupCount
	if err := db.Model(&model.Issue{}).
		Select("severity as key, count(*) as count").
		Where("created_at <= ?", cutoff).
		Group("severity").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "count issues by severity")
	}

	counts := make(map[domainissue.Severity]int64, len(rows))
	for _, row := range rows {
		counts[domainissue.Severity(row.Key)] = row.Count
	}
	return counts, nil
}

func (r *StatsRepository) CountIssuesCreatedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.Issue{}).
		Where("created_at >= ? AND created_at < ?", from, to).
		Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count issues created in range")
	}
	return count, nil
}

func (r *StatsRepository) DoneTransitionsBetween(ctx context.Context, from, to time.Time) ([]ports.DoneTransition, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	type joined struct {
		IssueID        uint64    `gorm:"column:issue_id"`
		IssueCreatedAt time.Time `gorm:"column:issue_created_at"`
		ClosedAt       time.Time `gorm:"column:closed_at"`
	}

	var rows []joined
	if err := db.Model(&model.IssueHistory{}).
		Select("issue_history.issue_id as issue_id, issues.created_at as issue_created_at, issue_history.created_at as closed_at").
		Joins("JOIN issues ON issues.issue_id = issue_history.issue_id").
		Where("issue_history.new_status = ?", string(domainissue.StatusDone)).
		Where("issue_history.created_at >= ? AND issue_history.created_at < ?", from, to).
		Order("issue_history.created_at asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query done transitions")
	}

	out := make([]ports.DoneTransition, 0, len(rows))
	for _, row := range rows {
		out = append(out, ports.DoneTransition{
			IssueID:        row.IssueID,
			IssueCreatedAt: row.IssueCreatedAt,
			ClosedAt:       row.ClosedAt,
		})
	}
	return out, nil
}

func (r *StatsRepository) UpsertDailyStats(ctx context.Context, stats ports.DailyStats) (ports.DailyStats, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.DailyStats{}, err
	}

	now := time.Now().UTC()
	row := model.DailyStats{
		Date:                  stats.Date,
		OpenCount:             stats.OpenCount,
		TriagedCount:          stats.TriagedCount,
		InProgressCount:       stats.InProgressCount,
		DoneCount:             stats.DoneCount,
		LowSeverityCount:      stats.LowSeverityCount,
		MediumSeverityCount:   stats.MediumSeverityCount,
		HighSeverityCount:     stats.HighSeverityCount,
		CriticalSeverityCount: stats.CriticalSeverityCount,
		TotalIssues:           stats.TotalIssues,
		NewIssues:             stats.NewIssues,
		ClosedIssues:          stats.ClosedIssues,
		AvgResolutionHours:    stats.AvgResolutionHours,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	// Recomputation overwrites the existing row for the date in place.
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"open_count", "triaged_count", "in_progress_count", "done_count",
			"low_severity_count", "medium_severity_count", "high_severity_count", "critical_severity_count",
			"total_issues", "new_issues", "closed_issues", "avg_resolution_hours",
			"updated_at",
		}),
	}).Create(&row).Error; err != nil {
		return ports.DailyStats{}, errs.Wrap(err, "upsert daily stats")
	}

	return r.GetDailyStats(ctx, stats.Date)
}

func (r *StatsRepository) GetDailyStats(ctx context.Context, date string) (ports.DailyStats, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.DailyStats{}, err
	}

	var row model.DailyStats
	if err := db.Where("date = ?", date).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.DailyStats{}, apperrors.Newf(apperrors.KindNotFound, "daily stats for %s not found", date)
		}
		return ports.DailyStats{}, errs.Wrap(err, "query daily stats")
	}
	return mapDailyStats(row), nil
}

func (r *StatsRepository) ListDailyStats(ctx context.Context, startDate, endDate string) ([]ports.DailyStats, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.DailyStats
	if err := db.
		Where("date >= ? AND date <= ?", startDate, endDate).
		Order("date asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query daily stats range")
	}

	out := make([]ports.DailyStats, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapDailyStats(row))
	}
	return out, nil
}

func mapDailyStats(row model.DailyStats) ports.DailyStats {
	return ports.DailyStats{
		StatsID:               row.StatsID,
		Date:                  row.Date,
		OpenCount:             row.OpenCount,
		TriagedCount:          row.TriagedCount,
		InProgressCount:       row.InProgressCount,
		DoneCount:             row.DoneCount,
		LowSeverityCount:      row.LowSeverityCount,
		MediumSeverityCount:   row.MediumSeverityCount,
		HighSeverityCount:     row.HighSeverityCount,
		CriticalSeverityCount: row.CriticalSeverityCount,
		TotalIssues:           row.TotalIssues,
		NewIssues:             row.NewIssues,
		ClosedIssues:          row.ClosedIssues,
		AvgResolutionHours:    row.AvgResolutionHours,
		CreatedAt:             row.CreatedAt,
		UpdatedAt:             row.UpdatedAt,
	}
}
