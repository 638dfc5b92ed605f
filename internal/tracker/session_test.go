package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/actionsum/focustrack/internal/clock"
	"github.com/actionsum/focustrack/internal/models"
)

func newTestSessions(collab *fakeCollaborator, clk clock.Clock) *SessionManager {
	return NewSessionManager(collab, testUser, clk, zerolog.Nop())
}

func TestSessionOpenReattaches(t *testing.T) {
	ctx := context.Background()
	collab := newFakeCollaborator()
	m := newTestSessions(collab, clock.NewFake(t0))
	a := app("a1", "code", "Editor")

	first, err := m.Open(ctx, &a)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	second, err := m.Open(ctx, &a)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("Open created a second session: %s vs %s", first.ID, second.ID)
	}
	if n := collab.openPerApp()["a1"]; n != 1 {
		t.Fatalf("open sessions = %d", n)
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(t0)
	collab := newFakeCollaborator()
	m := newTestSessions(collab, clk)
	a := app("a1", "code", "Editor")

	s, err := m.Open(ctx, &a)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	clk.Advance(90 * time.Second)

	if err := m.Close(ctx, s); err != nil {
		t.Fatalf("Close: %v", err)
	}
	clk.Advance(time.Hour)
	if err := m.Close(ctx, s); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	got := collab.session(s.ID)
	if got.IsActive || *got.DurationSeconds != 90 || !got.EndTime.Equal(t0.Add(90*time.Second)) {
		t.Fatalf("session rewritten by second close: %+v", got)
	}
	if n := collab.callCount("update"); n != 1 {
		t.Fatalf("UpdateSession calls = %d, want 1", n)
	}
}

func TestSessionCloseMissing(t *testing.T) {
	ctx := context.Background()
	collab := newFakeCollaborator()
	m := newTestSessions(collab, clock.NewFake(t0))

	s := modelsSession("gone", "a1", t0)
	collab.seed(s)
	collab.remove("gone")

	if err := m.Close(ctx, &s); err != nil {
		t.Fatalf("Close of deleted session: %v", err)
	}
	if err := m.finish(ctx, &s, reasonManual); err != nil {
		t.Fatalf("finish should swallow ErrSessionNotFound: %v", err)
	}
}

func TestSessionCloseCollaboratorDown(t *testing.T) {
	ctx := context.Background()
	collab := newFakeCollaborator()
	m := newTestSessions(collab, clock.NewFake(t0))
	a := app("a1", "code", "Editor")

	s, err := m.Open(ctx, &a)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	collab.setDown(true)
	if err := m.Close(ctx, s); !errors.Is(err, ErrCollaboratorUnavailable) {
		t.Fatalf("Close = %v, want ErrCollaboratorUnavailable", err)
	}
}

func TestCleanupOrphaned(t *testing.T) {
	ctx := context.Background()
	collab := newFakeCollaborator()
	m := newTestSessions(collab, clock.NewFake(t0))

	collab.seed(modelsSession("o1", "a1", t0.Add(-2*time.Hour)))
	collab.seed(modelsSession("o2", "a1", t0.Add(-time.Hour)))
	collab.seed(modelsSession("o3", "a2", t0.Add(time.Minute)))

	n, err := m.CleanupOrphaned(ctx)
	if err != nil {
		t.Fatalf("CleanupOrphaned: %v", err)
	}
	if n != 3 {
		t.Fatalf("closed = %d, want 3", n)
	}

	want := map[string]int64{"o1": 7200, "o2": 3600, "o3": 0}
	for id, dur := range want {
		s := collab.session(id)
		if s.IsActive || *s.DurationSeconds != dur {
			t.Errorf("%s: active=%v duration=%d, want closed with %d", id, s.IsActive, *s.DurationSeconds, dur)
		}
	}

	n, err = m.CleanupOrphaned(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second cleanup = %d, %v", n, err)
	}
}

func TestCloseAll(t *testing.T) {
	ctx := context.Background()
	collab := newFakeCollaborator()
	m := newTestSessions(collab, clock.NewFake(t0))

	a1, a2 := app("a1", "code", "Editor"), app("a2", "slack", "Slack")
	s1, _ := m.Open(ctx, &a1)
	s2, _ := m.Open(ctx, &a2)

	closed, err := m.CloseAll(ctx, []models.TimeSession{*s1, *s2})
	if err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	if len(closed) != 2 {
		t.Fatalf("closed = %v", closed)
	}
	for appID, n := range collab.openPerApp() {
		if n != 0 {
			t.Errorf("app %s still open", appID)
		}
	}
}
