package tracker

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/actionsum/focustrack/internal/clock"
	"github.com/actionsum/focustrack/internal/models"
	"github.com/actionsum/focustrack/pkg/focus"
)

const matchMemoSize = 256

type matchResult struct {
	index     int
	ambiguous bool
}

// Registry holds the user's tracked applications and resolves samples against them.
type Registry struct {
	collab Collaborator
	userID string
	ttl    time.Duration
	clock  clock.Clock
	logger zerolog.Logger

	mu          sync.Mutex
	apps        []models.TrackedApplication
	loaded      bool
	fetchedAt   time.Time
	fingerprint string
	memo        *lru.Cache[string, matchResult]
}

// NewRegistry creates a registry. A zero ttl re-reads the collaborator on every Refresh.
func NewRegistry(collab Collaborator, userID string, ttl time.Duration, clk clock.Clock, logger zerolog.Logger) *Registry {
	memo, err := lru.New[string, matchResult](matchMemoSize)
	if err != nil {
		panic(err)
	}
	return &Registry{
		collab: collab,
		userID: userID,
		ttl:    ttl,
		clock:  clk,
		logger: logger,
		memo:   memo,
	}
}

// Refresh returns the tracked entries of the user's application list. Untracked
// entries are dropped and an empty list is valid.
func (r *Registry) Refresh(ctx context.Context) ([]models.TrackedApplication, error) {
	now := r.clock.Now()

	r.mu.Lock()
	if r.loaded && r.ttl > 0 && now.Sub(r.fetchedAt) < r.ttl {
		apps := append([]models.TrackedApplication(nil), r.apps...)
		r.mu.Unlock()
		return apps, nil
	}
	r.mu.Unlock()

	listed, err := r.collab.ListTrackedApplications(ctx, r.userID)
	if err != nil {
		return nil, collaboratorError("list tracked applications", err)
	}

	apps := make([]models.TrackedApplication, 0, len(listed))
	for _, a := range listed {
		if a.IsTracked {
			apps = append(apps, a)
		}
	}

	fp := fingerprint(apps)

	r.mu.Lock()
	if fp != r.fingerprint {
		r.memo.Purge()
		r.fingerprint = fp
		r.logger.Debug().Int("apps", len(apps)).Msg("tracked application list changed")
	}
	r.apps = apps
	r.loaded = true
	r.fetchedAt = now
	r.mu.Unlock()

	return append([]models.TrackedApplication(nil), apps...), nil
}

// Invalidate forces the next Refresh to hit the collaborator.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	r.loaded = false
	r.mu.Unlock()
}

// Match resolves a sample against the last refreshed list. An exact normalized match on
// the match key or display name wins; otherwise the first substring match in listing
// order is used. ambiguous reports that more than one application qualified.
func (r *Registry) Match(s *focus.Sample) (*models.TrackedApplication, bool) {
	if s == nil {
		return nil, false
	}
	key := focus.Normalize(s.MatchKey) + "\x00" + focus.Normalize(s.DisplayName)

	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.memo.Get(key)
	if !ok {
		res = matchApps(r.apps, s)
		r.memo.Add(key, res)
	}
	if res.index < 0 || res.index >= len(r.apps) {
		return nil, false
	}
	app := r.apps[res.index]
	return &app, res.ambiguous
}

func matchApps(apps []models.TrackedApplication, s *focus.Sample) matchResult {
	names := []string{s.MatchKey, s.DisplayName}

	first, count := -1, 0
	for i, a := range apps {
		for _, n := range names {
			if focus.ExactMatch(n, a.MatchKey) || focus.ExactMatch(n, a.DisplayName) {
				if first < 0 {
					first = i
				}
				count++
				break
			}
		}
	}
	if first >= 0 {
		return matchResult{index: first, ambiguous: count > 1}
	}

	for i, a := range apps {
		for _, n := range names {
			if focus.NamesMatch(n, a.MatchKey) {
				if first < 0 {
					first = i
				}
				count++
				break
			}
		}
	}
	return matchResult{index: first, ambiguous: count > 1}
}

func fingerprint(apps []models.TrackedApplication) string {
	var b strings.Builder
	for _, a := range apps {
		b.WriteString(a.ID)
		b.WriteByte('|')
		b.WriteString(a.MatchKey)
		b.WriteByte('|')
		b.WriteString(a.DisplayName)
		b.WriteByte('|')
		b.WriteString(a.Category)
		b.WriteByte('\n')
	}
	return b.String()
}
