package model

import "time"

// DailyStats holds one aggregated row per calendar date; the unique date
// index backs the idempotent upsert.
type DailyStats struct {
	StatsID uint64 `gorm:"column:stats_id;primaryKey;autoIncrement"`
	Date    string `gorm:"column:date;type:text;not null;uniqueIndex"`

	OpenCount       int64 `gorm:"column:open_count;not null;default:0"`
	TriagedCount    int64 `gorm:"column:triaged_count;not null;default:0"`
	InProgressCount int64 `gorm:"column:in_progress_count;not null;default:0"`
	DoneCount       int64 `gorm:"column:done_count;not null;default:0"`

	LowSeverityCount      int64 `gorm:"column:low_severity_count;not null;default:0"`
	MediumSeverityCount   int64 `gorm:"column:medium_severity_count;not null;default:0"`
	HighSeverityCount     int64 `gorm:"column:high_severity_count;not null;default:0"`
	CriticalSeverityCount int64 `gorm:"column:critical_severity_count;not null;default:0"`

	TotalIssues        int64   `gorm:"column:total_issues;not null;default:0"`
	NewIssues          int64   `gorm:"column:new_issues;not null;default:0"`
	ClosedIssues       int64   `gorm:"column:closed_issues;not null;default:0"`
	AvgResolutionHours float64 `gorm:"column:avg_resolution_hours;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (DailyStats) TableName() string {
	return "daily_stats"
}
