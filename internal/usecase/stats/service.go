// Package stats implements the daily aggregation engine and the cached
// dashboard summary.
package stats

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/KIaudius/issues-insights-tracker/internal/apperrors"
	"github.com/KIaudius/issues-insights-tracker/internal/auth"
	"github.com/KIaudius/issues-insights-tracker/internal/bootstrap/logging"
	domainissue "github.com/KIaudius/issues-insights-tracker/internal/domain/issue"
	"github.com/KIaudius/issues-insights-tracker/internal/domain/rbac"
	"github.com/KIaudius/issues-insights-tracker/internal/errs"
	"github.com/KIaudius/issues-insights-tracker/internal/ports"
)

// DateLayout is the canonical form of a stats date key.
const DateLayout = "2006-01-02"

type Service struct {
	stats   ports.StatsRepository
	history ports.HistoryRepository
	cache   ports.Cache
	now     func() time.Time
}

func NewService(stats ports.StatsRepository, history ports.HistoryRepository, cache ports.Cache) *Service {
	return &Service{
		stats:   stats,
		history: history,
		cache:   cache,
		now:     time.Now,
	}
}

// ComputeDailyStats aggregates one calendar day (UTC) and upserts the
// row keyed by date: recomputing the same day overwrites, never
// duplicates. Days still in progress aggregate up to now.
func (s *Service) ComputeDailyStats(ctx context.Context, date string) (ports.DailyStats, error) {
	if err := checkCtx(ctx); err != nil {
		return ports.DailyStats{}, err
	}

	day, err := parseDate(date)
	if err != nil {
		return ports.DailyStats{}, err
	}

	dayStart := day
	dayEnd := day.Add(24 * time.Hour)
	cutoff := dayEnd
	if now := s.now().UTC(); now.Before(cutoff) {
		cutoff = now
	}

	statusCounts, err := s.stats.StatusCountsAsOf(ctx, cutoff)
	if err != nil {
		return ports.DailyStats{}, errs.Wrap(err, "count by status")
	}
	severityCounts, err := s.stats.SeverityCountsAsOf(ctx, cutoff)
	if err != nil {
		return ports.DailyStats{}, errs.Wrap(err, "count by severity")
	}
	newIssues, err := s.stats.CountIssuesCreatedBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return ports.DailyStats{}, errs.Wrap(err, "count new issues")
	}
	transitions, err := s.stats.DoneTransitionsBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return ports.DailyStats{}, errs.Wrap(err, "list done transitions")
	}

	closed, avgHours := resolutionStats(transitions)

	var total int64
	for _, count := range statusCounts {
		total += count
	}

	row := ports.DailyStats{
		Date: day.Format(DateLayout),

		OpenCount:       statusCounts[domainissue.StatusOpen],
		TriagedCount:    statusCounts[domainissue.StatusTriaged],
		InProgressCount: statusCounts[domainissue.StatusInProgress],
		DoneCount:       statusCounts[domainissue.StatusDone],

		LowSeverityCount:      severityCounts[domainissue.SeverityLow],
		MediumSeverityCount:   severityCounts[domainissue.SeverityMedium],
		HighSeverityCount:     severityCounts[domainissue.SeverityHigh],
		CriticalSeverityCount: severityCounts[domainissue.SeverityCritical],

		TotalIssues:        total,
		NewIssues:          newIssues,
		ClosedIssues:       closed,
		AvgResolutionHours: avgHours,
	}

	saved, err := s.stats.UpsertDailyStats(ctx, row)
	if err != nil {
		return ports.DailyStats{}, errs.Wrap(err, "upsert daily stats")
	}

	logging.Info(ctx, "daily stats computed",
		slog.String("date", saved.Date),
		slog.Int64("total_issues", saved.TotalIssues),
		slog.Int64("closed_issues", saved.ClosedIssues),
	)
	return saved, nil
}

// RecomputeDailyStats is the admin-triggered variant of the scheduled run.
func (s *Service) RecomputeDailyStats(ctx context.Context, actor auth.Identity, date string) (ports.DailyStats, error) {
	if err := rbac.Decide(actor.Role, rbac.ActionStatsRecompute, false); err != nil {
		return ports.DailyStats{}, apperrors.New(apperrors.KindForbidden, "not enough permissions")
	}
	return s.ComputeDailyStats(ctx, date)
}

func (s *Service) GetDailyStats(ctx context.Context, date string) (ports.DailyStats, error) {
	if err := checkCtx(ctx); err != nil {
		return ports.DailyStats{}, err
	}
	day, err := parseDate(date)
	if err != nil {
		return ports.DailyStats{}, err
	}
	return s.stats.GetDailyStats(ctx, day.Format(DateLayout))
}

// ListDailyStats returns the rows for [startDate, endDate], ascending.
func (s *Service) ListDailyStats(ctx context.Context, startDate, endDate string) ([]ports.DailyStats, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	start, err := parseDate(startDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDate(endDate)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, apperrors.New(apperrors.KindValidation, "end date before start date")
	}
	return s.stats.ListDailyStats(ctx, start.Format(DateLayout), end.Format(DateLayout))
}

// resolutionStats reduces the day's Done transitions to the closed-issue
// count and the average creation-to-Done duration in hours. An issue
// reworked through Done twice in one day counts once, at its latest
// transition.
func resolutionStats(transitions []ports.DoneTransition) (int64, float64) {
	latest := make(map[uint64]ports.DoneTransition, len(transitions))
	for _, tr := range transitions {
		if prev, ok := latest[tr.IssueID]; !ok || tr.ClosedAt.After(prev.ClosedAt) {
			latest[tr.IssueID] = tr
		}
	}
	if len(latest) == 0 {
		return 0, 0
	}

	var totalHours float64
	for _, tr := range latest {
		hours := tr.ClosedAt.Sub(tr.IssueCreatedAt).Hours()
		if hours < 0 {
			hours = 0
		}
		totalHours += hours
	}
	return int64(len(latest)), totalHours / float64(len(latest))
}

func parseDate(raw string) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, apperrors.Newf(apperrors.KindValidation, "invalid date %q, want YYYY-MM-DD", raw)
	}
	return day, nil
}

func checkCtx(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	return ctx.Err()
}
