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

func TestDirectoryService(t *testing.T) {
	factory := testfixtures.NewServiceFactory()
	h := testfixtures.NewStoreHarness(t, factory.Clock)
	svc := factory.NewDirectoryService(h.Store)
	ctx := context.Background()
	now := factory.Clock.Now()

	testfixtures.SeedUser(t, h.Store, testfixtures.NewUser(testfixtures.WithUserID("2348011111111"), testfixtures.WithLastActivity(now.Add(-time.Hour))))
	testfixtures.SeedUser(t, h.Store, testfixtures.NewUser(testfixtures.WithUserID("2348022222222"), testfixtures.WithLastActivity(now.Add(-2*time.Hour))))
	live := testfixtures.SeedSession(t, h.Store, testfixtures.NewSession("2348033333333", now.Add(-5*time.Minute), 0, testfixtures.Active()))
	testfixtures.SeedRecording(t, h.Store, testfixtures.NewRecording("2348033333333", live.SessionID, now.Add(-2*time.Minute)))
	latest := testfixtures.SeedRecording(t, h.Store, testfixtures.NewRecording("2348033333333", live.SessionID, now.Add(-time.Minute)))

	t.Run("list all", func(t *testing.T) {
		users, err := svc.ListUsers(ctx, application.UserListFilter{})
		if err != nil {
			t.Fatalf("ListUsers returned error: %v", err)
		}
		if len(users) != 3 || users[0].UserID != "2348033333333" {
			t.Fatalf("expected most recently active first, got %+v", users)
		}
	})

	t.Run("filter by status", func(t *testing.T) {
		users, err := svc.ListUsers(ctx, application.UserListFilter{Status: persistence.UserStatusListening})
		if err != nil {
			t.Fatalf("ListUsers returned error: %v", err)
		}
		if len(users) != 1 || users[0].UserID != "2348033333333" {
			t.Fatalf("unexpected listening users %+v", users)
		}
		if _, err := svc.ListUsers(ctx, application.UserListFilter{Status: "sleeping"}); !isValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("search", func(t *testing.T) {
		users, err := svc.ListUsers(ctx, application.UserListFilter{Query: "22222"})
		if err != nil {
			t.Fatalf("ListUsers returned error: %v", err)
		}
		if len(users) != 1 || users[0].UserID != "2348022222222" {
			t.Fatalf("unexpected search result %+v", users)
		}
	})

	t.Run("user sessions", func(t *testing.T) {
		sessions, err := svc.UserSessions(ctx, "2348033333333", 0)
		if err != nil {
			t.Fatalf("UserSessions returned error: %v", err)
		}
		if len(sessions) != 1 || sessions[0].SessionID != live.SessionID {
			t.Fatalf("unexpected sessions %+v", sessions)
		}
		if _, err := svc.UserSessions(ctx, "ghost", 0); !errors.Is(err, application.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("session with recordings", func(t *testing.T) {
		session, recordings, err := svc.GetSession(ctx, live.SessionID)
		if err != nil {
			t.Fatalf("GetSession returned error: %v", err)
		}
		if session == nil || len(recordings) != 2 || recordings[1].ID != latest.ID {
			t.Fatalf("unexpected session %+v with recordings %+v", session, recordings)
		}
		missing, _, err := svc.GetSession(ctx, "sess_nope")
		if err != nil || missing != nil {
			t.Fatalf("expected nil for unknown session, got %+v, %v", missing, err)
		}
	})

	t.Run("latest recording", func(t *testing.T) {
		recording, err := svc.LatestRecording(ctx, "2348033333333")
		if err != nil {
			t.Fatalf("LatestRecording returned error: %v", err)
		}
		if recording == nil || recording.ID != latest.ID {
			t.Fatalf("expected latest recording %d, got %+v", latest.ID, recording)
		}
		none, err := svc.LatestRecording(ctx, "2348011111111")
		if err != nil || none != nil {
			t.Fatalf("expected nil without recordings, got %+v, %v", none, err)
		}
	})

	t.Run("recent listings", func(t *testing.T) {
		recordings, err := svc.RecentRecordings(ctx, 1)
		if err != nil || len(recordings) != 1 || recordings[0].ID != latest.ID {
			t.Fatalf("unexpected recent recordings %+v, %v", recordings, err)
		}
		active, err := svc.ActiveSessions(ctx)
		if err != nil || len(active) != 1 {
			t.Fatalf("unexpected active sessions %+v, %v", active, err)
		}
	})
}
