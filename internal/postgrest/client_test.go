package postgrest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/actionsum/focustrack/internal/config"
	"github.com/actionsum/focustrack/internal/storage"
)

type recorded struct {
	method string
	path   string
	query  map[string]string
	header http.Header
	body   map[string]any
}

// fakeServer answers PostgREST requests from canned handlers and records what it saw.
type fakeServer struct {
	mu       sync.Mutex
	requests []recorded
	respond  func(w http.ResponseWriter, r recorded)
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recorded{
		method: r.Method,
		path:   r.URL.Path,
		query:  map[string]string{},
		header: r.Header.Clone(),
	}
	for k, v := range r.URL.Query() {
		rec.query[k] = v[0]
	}
	if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
		_ = json.Unmarshal(raw, &rec.body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	f.respond(w, rec)
}

func (f *fakeServer) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, respond func(w http.ResponseWriter, r recorded)) (*Client, *fakeServer) {
	t.Helper()
	fake := &fakeServer{respond: respond}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c := New(config.PostgRESTConfig{
		URL:     srv.URL + "/",
		AnonKey: "anon",
		Timeout: 2 * time.Second,
	}, zerolog.Nop())
	return c, fake
}

func TestListTrackedApplications(t *testing.T) {
	c, fake := newTestClient(t, func(w http.ResponseWriter, _ recorded) {
		io.WriteString(w, `[
			{"id":"a1","name":"Editor","process_name":"code","category":null,"is_tracked":true,"user_id":"u1",
			 "created_at":"2025-03-10T09:00:00Z","updated_at":"2025-03-10T09:00:00Z"},
			{"id":"a2","name":"Slack","process_name":"slack","category":"Communication","is_tracked":true,"user_id":"u1",
			 "created_at":"2025-03-10T09:01:00Z","updated_at":"2025-03-10T09:01:00Z"}
		]`)
	})

	apps, err := c.ListTrackedApplications(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListTrackedApplications: %v", err)
	}
	if len(apps) != 2 || apps[0].MatchKey != "code" || apps[0].DisplayName != "Editor" || apps[1].Category != "Communication" {
		t.Fatalf("apps = %+v", apps)
	}

	req := fake.last()
	if req.method != http.MethodGet || req.path != "/rest/v1/applications" {
		t.Errorf("request = %s %s", req.method, req.path)
	}
	if req.query["user_id"] != "eq.u1" || req.query["is_tracked"] != "eq.true" {
		t.Errorf("query = %v", req.query)
	}
	if req.header.Get("apikey") != "anon" || req.header.Get("Authorization") != "Bearer anon" {
		t.Errorf("auth headers = %v", req.header)
	}
}

func TestFindOpenSession(t *testing.T) {
	var empty atomic.Bool
	empty.Store(true)
	c, fake := newTestClient(t, func(w http.ResponseWriter, _ recorded) {
		if empty.Load() {
			io.WriteString(w, `[]`)
			return
		}
		io.WriteString(w, `[{"id":"s1","user_id":"u1","app_id":"a1","start_time":"2025-03-10T09:00:00Z",
			"end_time":null,"duration_seconds":null,"is_active":true}]`)
	})
	ctx := context.Background()

	s, err := c.FindOpenSession(ctx, "u1", "a1")
	if err != nil || s != nil {
		t.Fatalf("FindOpenSession on empty = %+v, %v", s, err)
	}

	empty.Store(false)
	s, err = c.FindOpenSession(ctx, "u1", "a1")
	if err != nil {
		t.Fatalf("FindOpenSession: %v", err)
	}
	want := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	if s.ID != "s1" || s.AppID != "a1" || !s.IsActive || !s.StartTime.Equal(want) {
		t.Fatalf("session = %+v", s)
	}

	q := fake.last().query
	if q["app_id"] != "eq.a1" || q["is_active"] != "eq.true" || q["limit"] != "1" {
		t.Errorf("query = %v", q)
	}
}

func TestCreateSession(t *testing.T) {
	c, fake := newTestClient(t, func(w http.ResponseWriter, r recorded) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode([]map[string]any{{
			"id":         r.body["id"],
			"user_id":    r.body["user_id"],
			"app_id":     r.body["app_id"],
			"start_time": r.body["start_time"],
			"is_active":  true,
		}})
	})

	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s, err := c.CreateSession(context.Background(), "u1", "a1", start)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if s.ID == "" || s.AppID != "a1" || !s.StartTime.Equal(start) || !s.IsActive {
		t.Fatalf("session = %+v", s)
	}

	req := fake.last()
	if req.method != http.MethodPost || req.path != "/rest/v1/time_entries" {
		t.Errorf("request = %s %s", req.method, req.path)
	}
	if req.header.Get("Prefer") != "return=representation" {
		t.Errorf("Prefer = %q", req.header.Get("Prefer"))
	}
	if req.body["is_active"] != true || req.body["end_time"] != nil {
		t.Errorf("body = %v", req.body)
	}
}

func TestUpdateSession(t *testing.T) {
	var missing atomic.Bool
	c, fake := newTestClient(t, func(w http.ResponseWriter, r recorded) {
		if missing.Load() {
			io.WriteString(w, `[]`)
			return
		}
		json.NewEncoder(w).Encode([]map[string]any{{
			"id":               strings.TrimPrefix(r.query["id"], "eq."),
			"user_id":          "u1",
			"app_id":           "a1",
			"start_time":       "2025-03-10T09:00:00Z",
			"end_time":         r.body["end_time"],
			"duration_seconds": r.body["duration_seconds"],
			"is_active":        r.body["is_active"],
		}})
	})
	ctx := context.Background()
	end := time.Date(2025, 3, 10, 9, 0, 3, 0, time.UTC)

	s, err := c.UpdateSession(ctx, "s1", end, 3, false)
	if err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	if s.IsActive || s.DurationSeconds == nil || *s.DurationSeconds != 3 || !s.EndTime.Equal(end) {
		t.Fatalf("session = %+v", s)
	}

	req := fake.last()
	if req.method != http.MethodPatch || req.query["id"] != "eq.s1" {
		t.Errorf("request = %s %v", req.method, req.query)
	}
	if req.body["duration_seconds"] != float64(3) {
		t.Errorf("body = %v", req.body)
	}

	missing.Store(true)
	if _, err := c.UpdateSession(ctx, "s2", end, 3, false); !errors.Is(err, storage.ErrSessionNotFound) {
		t.Fatalf("empty PATCH result = %v, want ErrSessionNotFound", err)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, storage.ErrSessionNotFound},
		{"server error", http.StatusServiceUnavailable, storage.ErrUnavailable},
		{"unauthorized", http.StatusUnauthorized, storage.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, _ recorded) {
				w.WriteHeader(tt.status)
				io.WriteString(w, `{"message":"nope"}`)
			})
			_, err := c.UpdateSession(context.Background(), "s1", time.Now(), 1, false)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(config.PostgRESTConfig{URL: url, AnonKey: "anon", Timeout: time.Second}, zerolog.Nop())
	_, err := c.ListOpenSessions(context.Background(), "u1")
	if !errors.Is(err, storage.ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
}

func TestSetTracked(t *testing.T) {
	c, fake := newTestClient(t, func(w http.ResponseWriter, r recorded) {
		if r.query["id"] == "eq.missing" {
			io.WriteString(w, `[]`)
			return
		}
		io.WriteString(w, `[{"id":"a1","name":"Editor","process_name":"code","is_tracked":false,"user_id":"u1"}]`)
	})
	ctx := context.Background()

	if err := c.SetTracked(ctx, "u1", "a1", false); err != nil {
		t.Fatalf("SetTracked: %v", err)
	}
	if body := fake.last().body; body["is_tracked"] != false {
		t.Errorf("body = %v", body)
	}
	if err := c.SetTracked(ctx, "u1", "missing", false); !errors.Is(err, storage.ErrApplicationNotFound) {
		t.Fatalf("SetTracked missing = %v", err)
	}
}

func TestAccessTokenPreferred(t *testing.T) {
	fake := &fakeServer{respond: func(w http.ResponseWriter, _ recorded) { io.WriteString(w, `[]`) }}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := New(config.PostgRESTConfig{URL: srv.URL, AnonKey: "anon", AccessToken: "user-jwt"}, zerolog.Nop())
	if _, err := c.ListOpenSessions(context.Background(), "u1"); err != nil {
		t.Fatalf("ListOpenSessions: %v", err)
	}
	if got := fake.last().header.Get("Authorization"); got != "Bearer user-jwt" {
		t.Errorf("Authorization = %q", got)
	}
}
