package authsession

import (
	"context"
	"testing"
	"time"
)

func TestCreateAndList(t *testing.T) {
	m := New(30*time.Minute, time.Minute)
	s := m.Create("device-1:tok", "wavecast-mobile/1.0")
	if s.SessionID == "" {
		t.Fatalf("expected non-empty session id")
	}
	if m.ActiveCount() != 1 {
		t.Fatalf("expected 1 active session, got %d", m.ActiveCount())
	}
	list := m.ListAll()
	if len(list) != 1 || list[0].SessionID != s.SessionID {
		t.Fatalf("expected redacted listing to include session, got %+v", list)
	}
}

func TestEndSessionsForToken(t *testing.T) {
	m := New(30*time.Minute, time.Minute)
	m.Create("device-1:tok", "ua-a")
	m.Create("device-1:tok", "ua-b")
	m.Create("device-2:tok", "ua-c")

	m.EndSessionsForToken("device-1:tok")

	if m.ActiveCount() != 1 {
		t.Fatalf("expected 1 remaining session, got %d", m.ActiveCount())
	}
}

func TestSweepRemovesExpiredSessions(t *testing.T) {
	m := New(10*time.Millisecond, time.Minute)
	s := m.Create("device-1:tok", "ua")

	time.Sleep(20 * time.Millisecond)
	m.Sweep()

	if m.ActiveCount() != 0 {
		t.Fatalf("expected session %q to be swept", s.SessionID)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	m := New(30*time.Minute, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected Run to return promptly after cancellation")
	}
}
