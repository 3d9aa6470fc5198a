package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/example/listening-monitor/internal/application"
)

func TestServiceFactoryNewLifecycleService(t *testing.T) {
	factory := NewServiceFactory()
	harness := NewStoreHarness(t, factory.Clock)
	svc := factory.NewLifecycleService(harness.Store)

	session, err := svc.StartSession(context.Background(), application.StartSessionParams{UserID: "2348012345678"})
	if err != nil {
		t.Fatalf("StartSession returned error: %v", err)
	}
	if session.SessionID != "sess_2348012345678_20240612_143000_00000001" {
		t.Fatalf("expected deterministic session id, got %q", session.SessionID)
	}
	if !session.StartTime.Equal(factory.Clock.Now()) {
		t.Fatalf("expected start at %v, got %v", factory.Clock.Now(), session.StartTime)
	}
}

func TestServiceFactoryOptions(t *testing.T) {
	clock := NewClock(ReferenceTime().Add(time.Hour))
	ids := NewIDGenerator(41)
	factory := NewServiceFactory(WithClock(clock), WithIDGenerator(ids), WithLogger(nil))

	if factory.Clock != clock || factory.IDGenerator != ids {
		t.Fatal("expected overrides to be applied")
	}
	if got := factory.IDGenerator.Next(); got != "0000002a" {
		t.Fatalf("expected generator to continue from its start, got %q", got)
	}
}
