package stats

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/KIaudius/issues-insights-tracker/internal/apperrors"
	"github.com/KIaudius/issues-insights-tracker/internal/auth"
	"github.com/KIaudius/issues-insights-tracker/internal/domain/rbac"
	"github.com/KIaudius/issues-insights-tracker/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "github.com/KIaudius/issues-insights-tracker/internal/infrastructure/persistence/sqlite/repository"
)

type testCache struct {
	data map[string]string
	sets int
}

func newTestCache() *testCache {
	return &testCache{data: make(map[string]string)}
}

func (c *testCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *testCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.data[key] = value
	c.sets++
	return nil
}

func (c *testCache) Delete(_ context.Context, key string) error {
	delete(c.data, key)
	return nil
}

func setupService(t *testing.T) (*Service, *testCache, *gorm.DB) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "stats_test.db")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.Issue{}, &model.IssueHistory{}, &model.DailyStats{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	cache := newTestCache()
	svc := NewService(sqliterepo.NewStatsRepository(db), sqliterepo.NewHistoryRepository(db), cache)
	return svc, cache, db
}

func seedIssue(t *testing.T, db *gorm.DB, status, severity string, createdAt time.Time) uint64 {
	t.Helper()

	row := model.Issue{
		Title:       "seeded",
		Description: "seeded",
		Severity:    severity,
		Status:      status,
		ReporterID:  1,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed issue: %v", err)
	}
	return row.IssueID
}

func seedDoneTransition(t *testing.T, db *gorm.DB, issueID uint64, closedAt time.Time) {
	t.Helper()

	old := "IN_PROGRESS"
	row := model.IssueHistory{
		IssueID:   issueID,
		ActorID:   1,
		OldStatus: &old,
		NewStatus: "DONE",
		CreatedAt: closedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed transition: %v", err)
	}
}

func TestComputeDailyStats(t *testing.T) {
	svc, _, db := setupService(t)
	ctx := context.Background()

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	earlier := day.Add(-48 * time.Hour)

	// Two issues predate the day, one is opened during it.
	seedIssue(t, db, "OPEN", "LOW", earlier)
	resolved := seedIssue(t, db, "DONE", "CRITICAL", earlier)
	seedIssue(t, db, "TRIAGED", "MEDIUM", day.Add(6*time.Hour))
	// Opened after the day must not count at all.
	seedIssue(t, db, "OPEN", "HIGH", day.Add(30*time.Hour))

	// Resolved 54 hours after creation, during the day.
	seedDoneTransition(t, db, resolved, earlier.Add(54*time.Hour))

	row, err := svc.ComputeDailyStats(ctx, "2026-03-10")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if row.Date != "2026-03-10" {
		t.Fatalf("date = %q", row.Date)
	}
	if row.TotalIssues != 3 {
		t.Fatalf("total = %d, want 3", row.TotalIssues)
	}
	if row.OpenCount != 1 || row.TriagedCount != 1 || row.DoneCount != 1 || row.InProgressCount != 0 {
		t.Fatalf("status counts = %+v", row)
	}
	if row.LowSeverityCount != 1 || row.MediumSeverityCount != 1 || row.CriticalSeverityCount != 1 || row.HighSeverityCount != 0 {
		t.Fatalf("severity counts = %+v", row)
	}
	if row.NewIssues != 1 {
		t.Fatalf("new issues = %d, want 1", row.NewIssues)
	}
	if row.ClosedIssues != 1 {
		t.Fatalf("closed issues = %d, want 1", row.ClosedIssues)
	}
	if math.Abs(row.AvgResolutionHours-54) > 0.01 {
		t.Fatalf("avg resolution = %f, want 54", row.AvgResolutionHours)
	}
}

func TestComputeDailyStatsIsIdempotent(t *testing.T) {
	svc, _, db := setupService(t)
	ctx := context.Background()

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	seedIssue(t, db, "OPEN", "LOW", day.Add(time.Hour))

	if _, err := svc.ComputeDailyStats(ctx, "2026-03-10"); err != nil {
		t.Fatalf("first compute: %v", err)
	}

	seedIssue(t, db, "OPEN", "LOW", day.Add(2*time.Hour))
	second, err := svc.ComputeDailyStats(ctx, "2026-03-10")
	if err != nil {
		t.Fatalf("second compute: %v", err)
	}
	if second.TotalIssues != 2 || second.NewIssues != 2 {
		t.Fatalf("recompute did not overwrite: %+v", second)
	}

	var count int64
	if err := db.Model(&model.DailyStats{}).Where("date = ?", "2026-03-10").Count(&count).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows for date = %d, want 1", count)
	}
}

func TestReworkedIssueCountsOncePerDay(t *testing.T) {
	svc, _, db := setupService(t)
	ctx := context.Background()

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	issueID := seedIssue(t, db, "DONE", "LOW", day.Add(-24*time.Hour))

	// Done in the morning, reopened, done again in the evening: the
	// issue closes once, at the later timestamp.
	seedDoneTransition(t, db, issueID, day.Add(8*time.Hour))
	seedDoneTransition(t, db, issueID, day.Add(20*time.Hour))

	row, err := svc.ComputeDailyStats(ctx, "2026-03-10")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if row.ClosedIssues != 1 {
		t.Fatalf("closed issues = %d, want 1", row.ClosedIssues)
	}
	if math.Abs(row.AvgResolutionHours-44) > 0.01 {
		t.Fatalf("avg resolution = %f, want 44 (latest transition)", row.AvgResolutionHours)
	}
}

func TestListDailyStatsRange(t *testing.T) {
	svc, _, db := setupService(t)
	ctx := context.Background()

	seedIssue(t, db, "OPEN", "LOW", time.Date(2026, 3, 9, 1, 0, 0, 0, time.UTC))
	for _, date := range []string{"2026-03-09", "2026-03-10", "2026-03-11"} {
		if _, err := svc.ComputeDailyStats(ctx, date); err != nil {
			t.Fatalf("compute %s: %v", date, err)
		}
	}

	rows, err := svc.ListDailyStats(ctx, "2026-03-09", "2026-03-10")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Date != "2026-03-09" || rows[1].Date != "2026-03-10" {
		t.Fatalf("order = %s, %s", rows[0].Date, rows[1].Date)
	}

	if _, err := svc.ListDailyStats(ctx, "2026-03-11", "2026-03-09"); !apperrors.IsKind(err, apperrors.KindValidation) {
		t.Fatalf("inverted range err = %v, want validation", err)
	}
	if _, err := svc.ListDailyStats(ctx, "03/09/2026", "2026-03-10"); !apperrors.IsKind(err, apperrors.KindValidation) {
		t.Fatalf("bad date err = %v, want validation", err)
	}
}

func TestGetDailyStatsMissingDate(t *testing.T) {
	svc, _, _ := setupService(t)

	if _, err := svc.GetDailyStats(context.Background(), "2026-01-01"); !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestRecomputeRequiresAdmin(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	maintainer := auth.Identity{UserID: 1, Role: rbac.RoleMaintainer}
	if _, err := svc.RecomputeDailyStats(ctx, maintainer, "2026-03-10"); !apperrors.IsKind(err, apperrors.KindForbidden) {
		t.Fatalf("maintainer recompute err = %v, want forbidden", err)
	}

	admin := auth.Identity{UserID: 2, Role: rbac.RoleAdmin}
	if _, err := svc.RecomputeDailyStats(ctx, admin, "2026-03-10"); err != nil {
		t.Fatalf("admin recompute: %v", err)
	}
}

func TestDashboardUsesCache(t *testing.T) {
	svc, cache, db := setupService(t)
	ctx := context.Background()

	seedIssue(t, db, "OPEN", "LOW", time.Now().UTC().Add(-time.Hour))

	first, err := svc.GetDashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if first.TotalIssues != 1 {
		t.Fatalf("total = %d", first.TotalIssues)
	}
	if first.StatusCounts["DONE"] != 0 {
		t.Fatalf("zero statuses must still be present: %+v", first.StatusCounts)
	}
	if cache.sets != 1 {
		t.Fatalf("cache writes = %d, want 1", cache.sets)
	}

	// A second read within the TTL is served from cache and does not see
	// the new issue.
	seedIssue(t, db, "OPEN", "HIGH", time.Now().UTC())
	second, err := svc.GetDashboard(ctx)
	if err != nil {
		t.Fatalf("cached dashboard: %v", err)
	}
	if second.TotalIssues != 1 {
		t.Fatalf("cached total = %d, want 1", second.TotalIssues)
	}

	if err := cache.Delete(ctx, "stats:dashboard"); err != nil {
		t.Fatalf("evict: %v", err)
	}
	third, err := svc.GetDashboard(ctx)
	if err != nil {
		t.Fatalf("refreshed dashboard: %v", err)
	}
	if third.TotalIssues != 2 {
		t.Fatalf("refreshed total = %d, want 2", third.TotalIssues)
	}
}

func TestDashboardRecentActivity(t *testing.T) {
	svc, _, db := setupService(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	issueID := seedIssue(t, db, "DONE", "HIGH", base)

	// 12 ledger rows; the feed keeps the newest 10, newest first.
	for i := 0; i < 12; i++ {
		seedDoneTransition(t, db, issueID, base.Add(time.Duration(i)*time.Hour))
	}

	dashboard, err := svc.GetDashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}

	if len(dashboard.RecentActivity) != 10 {
		t.Fatalf("recent activity rows = %d, want 10", len(dashboard.RecentActivity))
	}
	newest := dashboard.RecentActivity[0]
	if newest.CreatedAt != base.Add(11*time.Hour).Format(time.RFC3339) {
		t.Fatalf("newest row at %s", newest.CreatedAt)
	}
	if newest.IssueID != issueID || newest.NewStatus != "DONE" {
		t.Fatalf("newest row = %+v", newest)
	}
	if newest.OldStatus == nil || *newest.OldStatus != "IN_PROGRESS" {
		t.Fatalf("newest old status = %v", newest.OldStatus)
	}
	for i := 1; i < len(dashboard.RecentActivity); i++ {
		if dashboard.RecentActivity[i].CreatedAt > dashboard.RecentActivity[i-1].CreatedAt {
			t.Fatalf("activity not newest-first at index %d", i)
		}
	}
}
