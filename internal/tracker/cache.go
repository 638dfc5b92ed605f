package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/actionsum/focustrack/internal/metrics"
	"github.com/actionsum/focustrack/internal/models"
)

// CurrentActivity returns the focused application with durations measured up to now,
// or nil when nothing is focused. Within the cache TTL no I/O is done. After it the
// open session is re-read; if that fails a snapshot younger than the staleness bound
// is served instead, and only a cold cache returns ErrCollaboratorUnavailable.
func (t *Tracker) CurrentActivity(ctx context.Context) (*models.CurrentActivity, error) {
	now := t.clock.Now()

	t.mu.Lock()
	if c := t.state.cached; c != nil && now.Sub(t.state.cachedAt) < t.cfg.CacheTTL {
		out := c.WithDurations(now)
		t.mu.Unlock()
		metrics.ActivityCache.WithLabelValues("hit").Inc()
		return &out, nil
	}

	if t.state.focused == nil {
		t.mu.Unlock()
		metrics.ActivityCache.WithLabelValues("miss").Inc()
		return nil, nil
	}

	gen := t.state.generation
	var held *openSession
	if app := t.state.focusedApp; app != nil {
		if o, ok := t.state.open[app.ID]; ok {
			held = &o
		}
	}
	t.mu.Unlock()

	metrics.ActivityCache.WithLabelValues("miss").Inc()

	if held != nil {
		current, err := t.collab.FindOpenSession(ctx, t.cfg.UserID, held.app.ID)
		if err != nil {
			return t.staleActivity(now, collaboratorError("find open session", err))
		}

		t.mu.Lock()
		if gen == t.state.generation {
			switch {
			case current == nil:
				// Closed behind our back; the next tick opens a fresh one.
				delete(t.state.open, held.app.ID)
				t.state.invalidate()
			case current.ID != held.session.ID || !current.StartTime.Equal(held.session.StartTime):
				t.state.open[held.app.ID] = openSession{session: *current, app: held.app}
			}
		}
		t.mu.Unlock()
	}

	t.mu.Lock()
	snap := t.state.buildSnapshot(now)
	t.state.storeSnapshot(snap, now)
	t.mu.Unlock()

	if snap == nil {
		return nil, nil
	}
	out := *snap
	return &out, nil
}

func (t *Tracker) staleActivity(now time.Time, cause error) (*models.CurrentActivity, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.lastGood != nil && now.Sub(t.state.lastGoodAt) <= t.cfg.StaleSnapshotMax {
		metrics.ActivityCache.WithLabelValues("stale").Inc()
		t.logger.Warn().Err(cause).
			Dur("age", now.Sub(t.state.lastGoodAt)).
			Msg("serving stale activity snapshot")
		out := t.state.lastGood.WithDurations(now)
		return &out, nil
	}
	return nil, fmt.Errorf("current activity: %w", cause)
}

// ActiveCount returns how many sessions the tracker holds open.
func (t *Tracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.state.open)
}

// invalidateCache drops the cached snapshot. Callers hold t.mu.
func (t *Tracker) invalidateCache() {
	t.state.invalidate()
}
