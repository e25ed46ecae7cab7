package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/KIaudius/issues-insights-tracker/internal/bootstrap/logging"
	domainissue "github.com/KIaudius/issues-insights-tracker/internal/domain/issue"
	"github.com/KIaudius/issues-insights-tracker/internal/errs"
)

const (
	dashboardCacheKey = "stats:dashboard"
	dashboardCacheTTL = time.Minute

	recentActivityLimit = 10
)

// Dashboard is the live snapshot served to every authenticated user.
type Dashboard struct {
	TotalIssues    int64            `json:"total_issues"`
	StatusCounts   map[string]int64 `json:"status_counts"`
	SeverityCounts map[string]int64 `json:"severity_counts"`
	RecentActivity []Activity       `json:"recent_activity"`
	GeneratedAt    string           `json:"generated_at"`
}

// Activity is one audit-ledger row as shown on the dashboard feed.
type Activity struct {
	HistoryID uint64  `json:"id"`
	IssueID   uint64  `json:"issue_id"`
	ActorID   uint64  `json:"user_id"`
	OldStatus *string `json:"old_status"`
	NewStatus string  `json:"new_status"`
	Comment   string  `json:"comment,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// GetDashboard aggregates current counts, served from cache for up to a
// minute. A cache failure degrades to a fresh computation.
func (s *Service) GetDashboard(ctx context.Context) (Dashboard, error) {
	if err := checkCtx(ctx); err != nil {
		return Dashboard{}, err
	}

	if s.cache != nil {
		cached, found, err := s.cache.Get(ctx, dashboardCacheKey)
		if err != nil {
			logging.Warn(ctx, "dashboard cache read failed", slog.String("error", err.Error()))
		} else if found {
			var dashboard Dashboard
			if err := json.Unmarshal([]byte(cached), &dashboard); err == nil {
				return dashboard, nil
			}
		}
	}

	now := s.now().UTC()
	statusCounts, err := s.stats.StatusCountsAsOf(ctx, now)
	if err != nil {
		return Dashboard{}, errs.Wrap(err, "count by status")
	}
	severityCounts, err := s.stats.SeverityCountsAsOf(ctx, now)
	if err != nil {
		return Dashboard{}, errs.Wrap(err, "count by severity")
	}
	recent, err := s.history.ListRecentHistory(ctx, recentActivityLimit)
	if err != nil {
		return Dashboard{}, errs.Wrap(err, "list recent activity")
	}

	dashboard := Dashboard{
		StatusCounts:   make(map[string]int64, len(statusCounts)),
		SeverityCounts: make(map[string]int64, len(severityCounts)),
		RecentActivity: make([]Activity, 0, len(recent)),
		GeneratedAt:    now.Format(time.RFC3339),
	}
	for _, entry := range recent {
		activity := Activity{
			HistoryID: entry.HistoryID,
			IssueID:   entry.IssueID,
			ActorID:   entry.ActorID,
			NewStatus: string(entry.NewStatus),
			Comment:   entry.Comment,
			CreatedAt: entry.CreatedAt.Format(time.RFC3339),
		}
		if entry.OldStatus != nil {
			old := string(*entry.OldStatus)
			activity.OldStatus = &old
		}
		dashboard.RecentActivity = append(dashboard.RecentActivity, activity)
	}
	for status, count := range statusCounts {
		dashboard.StatusCounts[string(status)] = count
		dashboard.TotalIssues += count
	}
	for severity, count := range severityCounts {
		dashboard.SeverityCounts[string(severity)] = count
	}
	// Every status key is present even when zero, so chart axes stay stable.
	for _, status := range []domainissue.Status{
		domainissue.StatusOpen, domainissue.StatusTriaged,
		domainissue.StatusInProgress, domainissue.StatusDone,
	} {
		if _, ok := dashboard.StatusCounts[string(status)]; !ok {
			dashboard.StatusCounts[string(status)] = 0
		}
	}

	if s.cache != nil {
		if payload, err := json.Marshal(dashboard); err == nil {
			if err := s.cache.Set(ctx, dashboardCacheKey, string(payload), dashboardCacheTTL); err != nil {
				logging.Warn(ctx, "dashboard cache write failed", slog.String("error", err.Error()))
			}
		}
	}
	return dashboard, nil
}
