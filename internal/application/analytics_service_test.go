package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/listening-monitor/internal/application"
	"github.com/example/listening-monitor/internal/persistence"
	"github.com/example/listening-monitor/internal/testfixtures"
)

type analyticsEnv struct {
	svc   *application.AnalyticsService
	store persistence.Store
	now   time.Time
}

func newAnalytics(t *testing.T) analyticsEnv {
	t.Helper()
	factory := testfixtures.NewServiceFactory()
	h := testfixtures.NewStoreHarness(t, factory.Clock)
	return analyticsEnv{
		svc:   factory.NewAnalyticsService(h.Store, 0),
		store: h.Store,
		now:   factory.Clock.Now(),
	}
}

func TestDashboardStats(t *testing.T) {
	env := newAnalytics(t)
	ctx := context.Background()
	today := time.Date(2024, time.June, 12, 0, 0, 0, 0, time.UTC)

	a := testfixtures.SeedSession(t, env.store, testfixtures.NewSession("a", today.Add(10*time.Hour), time.Minute))
	testfixtures.SeedSession(t, env.store, testfixtures.NewSession("b", today.AddDate(0, 0, -3), 2*time.Minute))
	testfixtures.SeedSession(t, env.store, testfixtures.NewSession("c", today.AddDate(0, 0, -10), 3*time.Minute))
	testfixtures.SeedSession(t, env.store, testfixtures.NewSession("d", today.Add(14*time.Hour), 0, testfixtures.Active()))
	testfixtures.SeedUser(t, env.store, testfixtures.NewUser(testfixtures.WithUserID("e")))
	testfixtures.SeedRecording(t, env.store, testfixtures.NewRecording("a", a.SessionID, today.Add(11*time.Hour)))
	testfixtures.SeedRecording(t, env.store, testfixtures.NewRecording("b", "sess_b", today.AddDate(0, 0, -3)))

	stats, err := env.svc.DashboardStats(ctx)
	if err != nil {
		t.Fatalf("DashboardStats returned error: %v", err)
	}

	checks := []struct {
		name      string
		got, want int64
	}{
		{"total_users", stats.TotalUsers, 5},
		{"active_sessions", stats.ActiveSessions, 1},
		{"online_users", stats.OnlineUsers, 1},
		{"sessions_today", stats.SessionsToday, 2},
		{"recordings_today", stats.RecordingsToday, 1},
		{"sessions_this_week", stats.SessionsThisWeek, 3},
		{"total_recordings", stats.TotalRecordings, 2},
		{"listening", stats.UsersByStatus[persistence.UserStatusListening], 1},
		{"offline", stats.UsersByStatus[persistence.UserStatusOffline], 4},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}
	if stats.AvgSessionDuration != 2 {
		t.Errorf("avg_session_duration = %v, want 2", stats.AvgSessionDuration)
	}
}

func TestDashboardStatsUsersByStatusIsZeroFilled(t *testing.T) {
	env := newAnalytics(t)

	stats, err := env.svc.DashboardStats(context.Background())
	if err != nil {
		t.Fatalf("DashboardStats returned error: %v", err)
	}
	for _, status := range []persistence.UserStatus{persistence.UserStatusOffline, persistence.UserStatusIdle, persistence.UserStatusListening} {
		if count, ok := stats.UsersByStatus[status]; !ok || count != 0 {
			t.Fatalf("expected zero entry for %s, got %d (present=%v)", status, count, ok)
		}
	}
}

func TestAverageSessionDuration(t *testing.T) {
	env := newAnalytics(t)
	ctx := context.Background()

	avg, err := env.svc.AverageSessionDuration(ctx)
	if err != nil {
		t.Fatalf("AverageSessionDuration returned error: %v", err)
	}
	if avg != 0 {
		t.Fatalf("expected 0 without sessions, got %v", avg)
	}

	base := env.now.Add(-3 * time.Hour)
	testfixtures.SeedSession(t, env.store, testfixtures.NewSession("x", base, 60*time.Second))
	testfixtures.SeedSession(t, env.store, testfixtures.NewSession("y", base, 120*time.Second))
	testfixtures.SeedSession(t, env.store, testfixtures.NewSession("z", base, 0, testfixtures.Active()))

	avg, err = env.svc.AverageSessionDuration(ctx)
	if err != nil {
		t.Fatalf("AverageSessionDuration returned error: %v", err)
	}
	if avg != 1.5 {
		t.Fatalf("expected 1.5 minutes, got %v", avg)
	}
}

func TestHourlyActivity(t *testing.T) {
	env := newAnalytics(t)
	ctx := context.Background()

	empty, err := env.svc.HourlyActivity(ctx, 1)
	if err != nil {
		t.Fatalf("HourlyActivity returned error: %v", err)
	}
	if len(empty.Counts) != 24 || empty.Total != 0 {
		t.Fatalf("expected 24 zero buckets, got %+v", empty)
	}
	for hour, count := range empty.Counts {
		if count != 0 {
			t.Fatalf("bucket %d = %d, expected 0", hour, count)
		}
	}

	// 14:20 UTC, inside the trailing day.
	testfixtures.SeedSession(t, env.store, testfixtures.NewSession("h", env.now.Add(-10*time.Minute), time.Minute))
	// Outside the trailing day.
	testfixtures.SeedSession(t, env.store, testfixtures.NewSession("h", env.now.Add(-50*time.Hour), time.Minute))

	activity, err := env.svc.HourlyActivity(ctx, 1)
	if err != nil {
		t.Fatalf("HourlyActivity returned error: %v", err)
	}
	for hour, count := range activity.Counts {
		want := 0
		if hour == 14 {
			want = 1
		}
		if count != want {
			t.Fatalf("bucket %d = %d, expected %d", hour, count, want)
		}
	}
	if activity.Total != 1 || activity.PeakHour != 14 || activity.PeakCount != 1 {
		t.Fatalf("unexpected summary %+v", activity)
	}

	if _, err := env.svc.HourlyActivity(ctx, 0); !isValidation(err) {
		t.Fatalf("expected validation error for zero days, got %v", err)
	}
}

func TestUserActivitySummary(t *testing.T) {
	env := newAnalytics(t)
	ctx := context.Background()

	first := testfixtures.SeedSession(t, env.store, testfixtures.NewSession("sum", env.now.Add(-48*time.Hour), 10*time.Minute))
	testfixtures.SeedSession(t, env.store, testfixtures.NewSession("sum", env.now.Add(-24*time.Hour), 5*time.Minute))
	testfixtures.SeedSession(t, env.store, testfixtures.NewSession("sum", env.now.Add(-40*24*time.Hour), time.Hour))
	testfixtures.SeedSession(t, env.store, testfixtures.NewSession("sum", env.now.Add(-time.Hour), 0, testfixtures.Active()))
	testfixtures.SeedSession(t, env.store, testfixtures.NewSession("other", env.now.Add(-time.Hour), time.Hour))
	testfixtures.SeedRecording(t, env.store, testfixtures.NewRecording("sum", first.SessionID, env.now.Add(-47*time.Hour)))
	testfixtures.SeedRecording(t, env.store, testfixtures.NewRecording("sum", first.SessionID, env.now.Add(-46*time.Hour)))

	summary, err := env.svc.UserActivitySummary(ctx, "sum", 7)
	if err != nil {
		t.Fatalf("UserActivitySummary returned error: %v", err)
	}
	want := application.UserActivitySummary{
		UserID:                        "sum",
		PeriodDays:                    7,
		TotalSessions:                 3,
		TotalRecordings:               2,
		TotalListeningTimeSeconds:     900,
		TotalListeningTimeMinutes:     15,
		AverageSessionDurationMinutes: 5,
	}
	if summary != want {
		t.Fatalf("unexpected summary\n got %+v\nwant %+v", summary, want)
	}

	if _, err := env.svc.UserActivitySummary(ctx, "ghost", 7); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestUserActivitySummaryWithoutSessions(t *testing.T) {
	env := newAnalytics(t)
	testfixtures.SeedUser(t, env.store, testfixtures.NewUser(testfixtures.WithUserID("quiet")))

	summary, err := env.svc.UserActivitySummary(context.Background(), "quiet", 30)
	if err != nil {
		t.Fatalf("UserActivitySummary returned error: %v", err)
	}
	if summary.TotalSessions != 0 || summary.AverageSessionDurationMinutes != 0 {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
}

func TestSystemHealthCheck(t *testing.T) {
	env := newAnalytics(t)
	ctx := context.Background()

	testfixtures.SeedSession(t, env.store, testfixtures.NewSession("stuck", env.now.Add(-7*time.Hour), 0, testfixtures.Active()))
	fresh := testfixtures.SeedSession(t, env.store, testfixtures.NewSession("fresh", env.now.Add(-30*time.Minute), 0, testfixtures.Active()))
	morning := time.Date(2024, time.June, 12, 10, 0, 0, 0, time.UTC)
	testfixtures.SeedSession(t, env.store, testfixtures.NewSession("dup", morning, time.Hour))
	testfixtures.SeedSession(t, env.store, testfixtures.NewSession("dup", morning.Add(30*time.Minute), 15*time.Minute))
	testfixtures.SeedSession(t, env.store, testfixtures.NewSession("dup", morning.Add(time.Hour), 10*time.Minute))
	testfixtures.SeedRecording(t, env.store, testfixtures.NewRecording("fresh", fresh.SessionID, env.now.Add(-10*time.Minute)))

	health, err := env.svc.SystemHealthCheck(ctx)
	if err != nil {
		t.Fatalf("SystemHealthCheck returned error: %v", err)
	}
	want := application.SystemHealth{
		Timestamp:                env.now,
		StuckSessions:            1,
		RecentSessionsLastHour:   1,
		RecentRecordingsLastHour: 1,
		OrphanedRecordings:       0,
		TotalActiveSessions:      2,
		OverlappingSessions:      1,
		DatabaseResponsive:       true,
	}
	if health != want {
		t.Fatalf("unexpected health\n got %+v\nwant %+v", health, want)
	}
	if health.Healthy() {
		t.Fatalf("expected anomalies to make the check unhealthy")
	}
}

func TestDashboardData(t *testing.T) {
	env := newAnalytics(t)
	ctx := context.Background()

	live := testfixtures.SeedSession(t, env.store, testfixtures.NewSession("live", env.now.Add(-25*time.Minute), 0, testfixtures.Active()))
	testfixtures.SeedRecording(t, env.store, testfixtures.NewRecording("live", live.SessionID, env.now.Add(-time.Minute)))
	testfixtures.SeedUser(t, env.store, testfixtures.NewUser(testfixtures.WithUserID("away"), testfixtures.WithLocation(6.45, 3.39)))

	data, err := env.svc.DashboardData(ctx)
	if err != nil {
		t.Fatalf("DashboardData returned error: %v", err)
	}
	if !data.LastUpdated.Equal(env.now) {
		t.Fatalf("unexpected last_updated %v", data.LastUpdated)
	}
	if len(data.ActiveSessions) != 1 || data.ActiveSessions[0].DurationMinutes != 25 {
		t.Fatalf("unexpected active sessions %+v", data.ActiveSessions)
	}

	byID := map[string]application.UserOverview{}
	for _, overview := range data.Users {
		byID[overview.User.UserID] = overview
	}
	if got := byID["live"]; got.RecordingsCount != 1 || got.SessionStartedAt == nil || !got.SessionStartedAt.Equal(live.StartTime) {
		t.Fatalf("unexpected overview for live user: %+v", got)
	}
	if got := byID["away"]; got.SessionStartedAt != nil || got.User.Latitude == nil || *got.User.Latitude != 6.45 {
		t.Fatalf("unexpected overview for away user: %+v", got)
	}
	if data.Stats.TotalUsers != 2 || data.Stats.ActiveSessions != 1 {
		t.Fatalf("unexpected embedded stats %+v", data.Stats)
	}
}

func isValidation(err error) bool {
	var vErr *application.ValidationError
	return errors.As(err, &vErr)
}
