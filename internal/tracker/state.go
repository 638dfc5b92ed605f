package tracker

import (
	"time"

	"github.com/actionsum/focustrack/internal/models"
	"github.com/actionsum/focustrack/pkg/focus"
)

type openSession struct {
	session models.TimeSession
	app     models.TrackedApplication
}

// ActivityState is the tracker's in-memory view. Every field is guarded by Tracker.mu.
type ActivityState struct {
	tracking bool

	focused    *focus.Sample
	focusedApp *models.TrackedApplication
	focusKey   string
	focusSince time.Time
	idleSince  time.Time

	open map[string]openSession

	cached     *models.CurrentActivity
	cachedAt   time.Time
	lastGood   *models.CurrentActivity
	lastGoodAt time.Time

	// generation changes on every transition so lookups started before it can
	// tell their result is outdated.
	generation uint64
}

func newActivityState() ActivityState {
	return ActivityState{open: make(map[string]openSession)}
}

// reset drops everything except the last-good snapshot.
func (s *ActivityState) reset() {
	lastGood, lastGoodAt := s.lastGood, s.lastGoodAt
	gen := s.generation
	*s = newActivityState()
	s.lastGood, s.lastGoodAt = lastGood, lastGoodAt
	s.generation = gen + 1
}

func (s *ActivityState) invalidate() {
	s.cached = nil
	s.cachedAt = time.Time{}
	s.generation++
}

func (s *ActivityState) openSessions() []openSession {
	out := make([]openSession, 0, len(s.open))
	for _, o := range s.open {
		out = append(out, o)
	}
	return out
}

type focusChange struct {
	changed   bool
	idleEnded time.Duration
	idleBegan bool
}

// observeFocus records the focused sample and updates idle bookkeeping.
func (s *ActivityState) observeFocus(sample *focus.Sample, app *models.TrackedApplication, now time.Time, idleThreshold time.Duration) focusChange {
	var fc focusChange

	key := ""
	if sample != nil {
		key = focus.Normalize(sample.MatchKey)
		if key == "" {
			key = focus.Normalize(sample.DisplayName)
		}
	}

	if key != s.focusKey || s.focusSince.IsZero() {
		fc.changed = key != s.focusKey
		s.focusKey = key
		s.focusSince = now
		if !s.idleSince.IsZero() {
			fc.idleEnded = now.Sub(s.idleSince)
			s.idleSince = time.Time{}
		}
	} else if idleThreshold > 0 && s.idleSince.IsZero() && now.Sub(s.focusSince) >= idleThreshold {
		s.idleSince = now
		fc.idleBegan = true
	}

	if sample != nil {
		cp := *sample
		s.focused = &cp
	} else {
		s.focused = nil
	}
	if app != nil {
		cp := *app
		s.focusedApp = &cp
	} else {
		s.focusedApp = nil
	}
	return fc
}

// buildSnapshot describes the focused application, tracked or not. It returns nil when
// nothing is focused.
func (s *ActivityState) buildSnapshot(now time.Time) *models.CurrentActivity {
	if s.focused == nil {
		return nil
	}

	a := models.CurrentActivity{
		AppName:         s.focused.DisplayName,
		AppCategory:     CategorizeName(s.focused.DisplayName),
		StartTime:       s.focusSince,
		ActiveAppsCount: len(s.open),
	}
	if a.AppName == "" {
		a.AppName = s.focused.MatchKey
	}

	if s.focusedApp != nil {
		a.AppName = s.focusedApp.DisplayName
		a.AppCategory = Categorize(s.focusedApp)
		if o, ok := s.open[s.focusedApp.ID]; ok {
			a.StartTime = o.session.StartTime
			a.IsActive = true
		}
	}

	a = a.WithDurations(now)
	return &a
}

func (s *ActivityState) storeSnapshot(a *models.CurrentActivity, now time.Time) {
	s.cached = a
	s.cachedAt = now
	if a != nil {
		s.lastGood = a
		s.lastGoodAt = now
	}
}
