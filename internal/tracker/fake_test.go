package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/actionsum/focustrack/internal/models"
	"github.com/actionsum/focustrack/pkg/focus"
)

var errBackendDown = errors.New("connection refused")

// fakeCollaborator is an in-memory store that can be switched into failure.
type fakeCollaborator struct {
	mu       sync.Mutex
	apps     []models.TrackedApplication
	sessions map[string]*models.TimeSession
	order    []string
	nextID   int
	down     bool
	calls    map[string]int
}

func newFakeCollaborator(apps ...models.TrackedApplication) *fakeCollaborator {
	return &fakeCollaborator{
		apps:     apps,
		sessions: make(map[string]*models.TimeSession),
		calls:    make(map[string]int),
	}
}

func (f *fakeCollaborator) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *fakeCollaborator) setApps(apps ...models.TrackedApplication) {
	f.mu.Lock()
	f.apps = apps
	f.mu.Unlock()
}

func (f *fakeCollaborator) enter(op string) error {
	f.calls[op]++
	if f.down {
		return errBackendDown
	}
	return nil
}

func (f *fakeCollaborator) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeCollaborator) ListTrackedApplications(_ context.Context, userID string) ([]models.TrackedApplication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("list_apps"); err != nil {
		return nil, err
	}
	var out []models.TrackedApplication
	for _, a := range f.apps {
		if a.UserID == "" || a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeCollaborator) FindOpenSession(_ context.Context, userID, appID string) (*models.TimeSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("find_open"); err != nil {
		return nil, err
	}
	for _, id := range f.order {
		s := f.sessions[id]
		if s.UserID == userID && s.AppID == appID && s.IsActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeCollaborator) CreateSession(_ context.Context, userID, appID string, start time.Time) (*models.TimeSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("create"); err != nil {
		return nil, err
	}
	f.nextID++
	s := &models.TimeSession{
		ID:        fmt.Sprintf("s%d", f.nextID),
		UserID:    userID,
		AppID:     appID,
		StartTime: start,
		IsActive:  true,
	}
	f.sessions[s.ID] = s
	f.order = append(f.order, s.ID)
	cp := *s
	return &cp, nil
}

func (f *fakeCollaborator) UpdateSession(_ context.Context, id string, end time.Time, dur int64, active bool) (*models.TimeSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("update"); err != nil {
		return nil, err
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e, d := end, dur
	s.EndTime = &e
	s.DurationSeconds = &d
	s.IsActive = active
	cp := *s
	return &cp, nil
}

func (f *fakeCollaborator) ListOpenSessions(_ context.Context, userID string) ([]models.TimeSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("list_open"); err != nil {
		return nil, err
	}
	var out []models.TimeSession
	for _, id := range f.order {
		s := f.sessions[id]
		if s.UserID == userID && s.IsActive {
			out = append(out, *s)
		}
	}
	return out, nil
}

// seed inserts a session directly, bypassing the tracker.
func (f *fakeCollaborator) seed(s models.TimeSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := s
	f.sessions[s.ID] = &cp
	f.order = append(f.order, s.ID)
}

func (f *fakeCollaborator) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	for i, o := range f.order {
		if o == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

func (f *fakeCollaborator) session(id string) models.TimeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.sessions[id]
}

// all returns every session ordered by creation.
func (f *fakeCollaborator) all() []models.TimeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.TimeSession, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, *f.sessions[id])
	}
	return out
}

// openPerApp counts active sessions per app id.
func (f *fakeCollaborator) openPerApp() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[string]int)
	for _, s := range f.sessions {
		if s.IsActive {
			counts[s.AppID]++
		}
	}
	return counts
}

// scriptedProbe returns whatever sample was set last.
type scriptedProbe struct {
	mu     sync.Mutex
	sample *focus.Sample
	err    error
	calls  int
}

func (p *scriptedProbe) focus(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = nil
	if name == "" {
		p.sample = nil
		return
	}
	p.sample = &focus.Sample{DisplayName: name, MatchKey: name, Source: "test", Authoritative: true}
}

func (p *scriptedProbe) fail(err error) {
	p.mu.Lock()
	p.sample, p.err = nil, err
	p.mu.Unlock()
}

func (p *scriptedProbe) Sample(context.Context) (*focus.Sample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	if p.sample == nil {
		return nil, nil
	}
	cp := *p.sample
	return &cp, nil
}

func (p *scriptedProbe) Name() string      { return "scripted" }
func (p *scriptedProbe) IsAvailable() bool { return true }
func (p *scriptedProbe) Close() error      { return nil }

func app(id, key, name string) models.TrackedApplication {
	return models.TrackedApplication{ID: id, UserID: testUser, DisplayName: name, MatchKey: key, IsTracked: true}
}

func modelsSession(id, appID string, start time.Time) models.TimeSession {
	return models.TimeSession{ID: id, UserID: testUser, AppID: appID, StartTime: start, IsActive: true}
}
