package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/actionsum/focustrack/internal/clock"
	"github.com/actionsum/focustrack/internal/config"
	"github.com/actionsum/focustrack/internal/database"
	"github.com/actionsum/focustrack/internal/models"
	"github.com/actionsum/focustrack/internal/reporter"
	"github.com/actionsum/focustrack/internal/storage"
	"github.com/actionsum/focustrack/internal/tracker"
	"github.com/actionsum/focustrack/pkg/focus"
)

const testUser = "user-1"

type fixedProbe struct{ name string }

func (p *fixedProbe) Sample(context.Context) (*focus.Sample, error) {
	return &focus.Sample{DisplayName: p.name, MatchKey: p.name, Source: "test", Authoritative: true}, nil
}
func (p *fixedProbe) Name() string      { return "fixed" }
func (p *fixedProbe) IsAvailable() bool { return true }
func (p *fixedProbe) Close() error      { return nil }

type testEnv struct {
	server  *httptest.Server
	tracker *tracker.Tracker
	repo    *database.Repository
	clock   *clock.Fake
	editor  *models.TrackedApplication
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Connect(filepath.Join(t.TempDir(), "web.db"))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := db.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	repo := database.NewRepository(db)

	editor, err := repo.UpsertApplication(context.Background(), testUser, "Editor", "code", "")
	if err != nil {
		t.Fatalf("UpsertApplication: %v", err)
	}

	cfg := config.Default()
	cfg.Tracker.UserID = testUser
	cfg.Tracker.PollInterval = time.Hour

	clk := clock.NewFake(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	tr := tracker.NewService(cfg.Tracker, repo, &fixedProbe{name: "Code.exe"}, tracker.WithClock(clk))
	rep := reporter.New(repo, testUser, "UTC", clk)

	srv := NewServer(cfg, NewHandler(cfg, tr, rep, repo, zerolog.Nop()), zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = tr.StopTracking(context.Background()) })

	return &testEnv{server: ts, tracker: tr, repo: repo, clock: clk, editor: editor}
}

func (e *testEnv) do(t *testing.T, method, path string, header map[string]string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func (e *testEnv) expect(t *testing.T, method, path string, want int) []byte {
	t.Helper()
	resp, body := e.do(t, method, path, nil)
	if resp.StatusCode != want {
		t.Fatalf("%s %s: status = %d, want %d (body %s)", method, path, resp.StatusCode, want, body)
	}
	return body
}

func (e *testEnv) waitForSession(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for e.tracker.ActiveCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if e.tracker.ActiveCount() != 1 {
		t.Fatal("first tick did not open a session")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS header = %q", got)
	}

	var health map[string]string
	if err := json.Unmarshal(body, &health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health["status"] != "healthy" {
		t.Errorf("health = %v", health)
	}
}

func TestTrackingLifecycle(t *testing.T) {
	env := newTestEnv(t)

	env.expect(t, http.MethodPost, "/api/tracking/tick", http.StatusConflict)
	env.expect(t, http.MethodPost, "/api/tracking/stop", http.StatusConflict)

	env.expect(t, http.MethodPost, "/api/tracking/start", http.StatusOK)
	env.expect(t, http.MethodPost, "/api/tracking/start", http.StatusConflict)
	env.waitForSession(t)

	var activity models.CurrentActivity
	if err := json.Unmarshal(env.expect(t, http.MethodGet, "/api/activity", http.StatusOK), &activity); err != nil {
		t.Fatalf("decode activity: %v", err)
	}
	if activity.AppName != "Editor" || !activity.IsActive || activity.ActiveAppsCount != 1 {
		t.Errorf("activity = %+v", activity)
	}

	var count map[string]int
	if err := json.Unmarshal(env.expect(t, http.MethodGet, "/api/activity/count", http.StatusOK), &count); err != nil {
		t.Fatalf("decode count: %v", err)
	}
	if count["active_apps_count"] != 1 {
		t.Errorf("count = %v", count)
	}

	env.clock.Advance(90 * time.Second)
	env.expect(t, http.MethodPost, "/api/tracking/tick", http.StatusOK)
	env.expect(t, http.MethodPost, "/api/tracking/stop", http.StatusOK)

	open, err := env.repo.ListOpenSessions(context.Background(), testUser)
	if err != nil || len(open) != 0 {
		t.Fatalf("open sessions after stop = %v, %v", open, err)
	}

	var report models.Report
	if err := json.Unmarshal(env.expect(t, http.MethodGet, "/api/report?period=day", http.StatusOK), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.TotalSeconds != 90 || len(report.Apps) != 1 || report.Apps[0].AppName != "Editor" {
		t.Errorf("report = %+v", report)
	}
}

func TestUntrack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.expect(t, http.MethodPost, "/api/apps/untrack", http.StatusBadRequest)
	env.expect(t, http.MethodPost, "/api/apps/untrack?match_key=nope", http.StatusNotFound)
	env.expect(t, http.MethodPost, "/api/apps/missing/untrack", http.StatusNotFound)

	env.expect(t, http.MethodPost, "/api/tracking/start", http.StatusOK)
	env.waitForSession(t)

	// A key that is only a substring of "code" must not select it.
	env.expect(t, http.MethodPost, "/api/apps/untrack?match_key=o", http.StatusNotFound)
	if n := env.tracker.ActiveCount(); n != 1 {
		t.Fatalf("partial key closed a session: ActiveCount = %d", n)
	}

	env.expect(t, http.MethodPost, "/api/apps/untrack?match_key=code.exe", http.StatusOK)
	if n := env.tracker.ActiveCount(); n != 0 {
		t.Fatalf("ActiveCount after untrack by key = %d", n)
	}
	env.expectTracked(t, false)

	env.expect(t, http.MethodPost, "/api/tracking/tick", http.StatusOK)
	if n := env.tracker.ActiveCount(); n != 0 {
		t.Fatalf("untracked app reopened after untrack by key: ActiveCount = %d", n)
	}

	if err := env.repo.SetTracked(ctx, testUser, env.editor.ID, true); err != nil {
		t.Fatalf("SetTracked: %v", err)
	}
	env.tracker.Registry().Invalidate()
	env.expect(t, http.MethodPost, "/api/tracking/tick", http.StatusOK)
	if n := env.tracker.ActiveCount(); n != 1 {
		t.Fatalf("re-tracked app not reopened: ActiveCount = %d", n)
	}

	env.expect(t, http.MethodPost, fmt.Sprintf("/api/apps/%s/untrack", env.editor.ID), http.StatusOK)
	if n := env.tracker.ActiveCount(); n != 0 {
		t.Fatalf("ActiveCount after untrack by id = %d", n)
	}
	env.expectTracked(t, false)

	env.expect(t, http.MethodPost, "/api/tracking/tick", http.StatusOK)
	if n := env.tracker.ActiveCount(); n != 0 {
		t.Errorf("untracked app reopened: ActiveCount = %d", n)
	}
}

func (e *testEnv) expectTracked(t *testing.T, want bool) {
	t.Helper()
	app, err := e.repo.FindApplication(context.Background(), testUser, e.editor.ID)
	if err != nil {
		t.Fatalf("FindApplication: %v", err)
	}
	if app.IsTracked != want {
		t.Errorf("IsTracked = %v, want %v", app.IsTracked, want)
	}
}

func TestReportPeriods(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		period string
		want   int
	}{
		{"", http.StatusOK},
		{"day", http.StatusOK},
		{"week", http.StatusOK},
		{"month", http.StatusOK},
		{"year", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run("period="+tt.period, func(t *testing.T) {
			env.expect(t, http.MethodGet, "/api/report?period="+tt.period, tt.want)
		})
	}
}

func TestSummaryHTML(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/summary", map[string]string{"HX-Request": "true"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(string(body), "No data available") {
		t.Errorf("body = %s", body)
	}

	resp, _ = env.do(t, http.MethodGet, "/api/summary", nil)
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("plain request Content-Type = %q", ct)
	}
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)

	var status map[string]any
	if err := json.Unmarshal(env.expect(t, http.MethodGet, "/api/status", http.StatusOK), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status["tracking"] != false || status["backend"] != config.BackendSQLite || status["probe"] != "fixed" {
		t.Errorf("status = %v", status)
	}
	if status["user_id"] != testUser {
		t.Errorf("user_id = %v", status["user_id"])
	}
}

func TestMetricsAndMethods(t *testing.T) {
	env := newTestEnv(t)

	body := env.expect(t, http.MethodGet, "/metrics", http.StatusOK)
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("metrics output missing default collectors")
	}

	env.expect(t, http.MethodGet, "/api/tracking/start", http.StatusMethodNotAllowed)
	env.expect(t, http.MethodPost, "/api/activity", http.StatusMethodNotAllowed)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not tracking", tracker.ErrNotTracking, http.StatusConflict},
		{"already tracking", fmt.Errorf("start: %w", tracker.ErrAlreadyTracking), http.StatusConflict},
		{"unknown app", fmt.Errorf("%w: %q", storage.ErrApplicationNotFound, "x"), http.StatusNotFound},
		{"backend down", fmt.Errorf("list: %w", tracker.ErrCollaboratorUnavailable), http.StatusServiceUnavailable},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
