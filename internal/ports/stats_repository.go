package ports

import (
	"context"
	"time"

	domainissue "github.com/KIaudius/issues-insights-tracker/internal/domain/issue"
)

// DailyStats is one aggregated row per calendar date. Date is the unique
// upsert key, formatted YYYY-MM-DD.
type DailyStats struct {
	StatsID uint64
	Date    string

	OpenCount       int64
	TriagedCount    int64
	InProgressCount int64
	DoneCount       int64

	LowSeverityCount      int64
	MediumSeverityCount   int64
	HighSeverityCount     int64
	CriticalSeverityCount int64

	TotalIssues  int64
	NewIssues    int64
	ClosedIssues int64
	// AvgResolutionHours averages creation-to-Done time over issues that
	// reached Done on Date.
	AvgResolutionHours float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DoneTransition is a history row that moved an issue into Done, joined
// with the issue's creation time for resolution-time math.
type DoneTransition struct {
	IssueID        uint64
	IssueCreatedAt time.Time
	ClosedAt       time.Time
}

// StatsRepository covers the aggregation reads plus the idempotent
// upsert of the computed row.
type StatsRepository interface {
	// StatusCountsAsOf counts issues created at or before cutoff, grouped
	// by their current status.
	StatusCountsAsOf(ctx context.Context, cutoff time.Time) (map[domainissue.Status]int64, error)
	// SeverityCountsAsOf counts issues created at or before cutoff,
	// grouped by severity.
	SeverityCountsAsOf(ctx context.Context, cutoff time.Time) (map[domainissue.Severity]int64, error)
	CountIssuesCreatedBetween(ctx context.Context, from, to time.Time) (int64, error)
	// DoneTransitionsBetween lists history rows whose new status is Done
	// within [from, to), one per transition (rework counts each time).
	DoneTransitionsBetween(ctx context.Context, from, to time.Time) ([]DoneTransition, error)

	UpsertDailyStats(ctx context.Context, stats DailyStats) (DailyStats, error)
	GetDailyStats(ctx context.Context, date string) (DailyStats, error)
	ListDailyStats(ctx context.Context, startDate, endDate string) ([]DailyStats, error)
}
