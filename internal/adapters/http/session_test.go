package httpadapter

import (
	"testing"
	"time"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

func TestSessionManagerExpiresIdleSessions(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	m := NewSessionManager(10 * time.Minute)
	m.now = func() time.Time { return now }

	kept := m.Create()
	dropped := m.Create()

	now = now.Add(6 * time.Minute)
	if _, err := m.Get(kept.SessionID()); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	now = now.Add(6 * time.Minute)
	if removed := m.Sweep(); removed != 1 {
		t.Fatalf("expected one expired session, got %d", removed)
	}
	if _, err := m.Get(dropped.SessionID()); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if m.Len() != 1 {
		t.Fatalf("expected one remaining session, got %d", m.Len())
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	m := NewSessionManager(time.Minute)
	a := m.Create()
	b := m.Create()

	a.CreateThread()
	if len(a.Threads()) != 2 || len(b.Threads()) != 1 {
		t.Fatalf("expected independent registries, got %d and %d threads", len(a.Threads()), len(b.Threads()))
	}
}
