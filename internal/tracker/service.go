// Package tracker runs the focus polling loop and keeps at most one open time session
// per tracked application.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/actionsum/focustrack/internal/clock"
	"github.com/actionsum/focustrack/internal/config"
	"github.com/actionsum/focustrack/internal/metrics"
	"github.com/actionsum/focustrack/internal/models"
	"github.com/actionsum/focustrack/pkg/focus"
)

// Option customizes a Tracker.
type Option func(*Tracker)

func WithClock(c clock.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithSnapshotSink mirrors every rebuilt snapshot, e.g. into Redis.
func WithSnapshotSink(s SnapshotSink) Option {
	return func(t *Tracker) { t.sink = s }
}

// WithErrorRecorder persists failed ticks.
func WithErrorRecorder(r ErrorRecorder) Option {
	return func(t *Tracker) { t.recorder = r }
}

type Tracker struct {
	cfg      config.TrackerConfig
	probe    focus.Probe
	collab   Collaborator
	clock    clock.Clock
	logger   zerolog.Logger
	sink     SnapshotSink
	recorder ErrorRecorder

	registry *Registry
	sessions *SessionManager

	// mu guards state. It is never held across probe or collaborator calls.
	mu    sync.Mutex
	state ActivityState

	// tickMu serializes ticks with the commands that do session I/O.
	tickMu sync.Mutex

	stopCh chan struct{}
	done   chan struct{}
}

func NewService(cfg config.TrackerConfig, collab Collaborator, probe focus.Probe, opts ...Option) *Tracker {
	t := &Tracker{
		cfg:    cfg,
		probe:  probe,
		collab: collab,
		clock:  clock.System{},
		logger: zerolog.Nop(),
		state:  newActivityState(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With().Str("component", "tracker").Logger()
	t.registry = NewRegistry(collab, cfg.UserID, cfg.RegistryTTL, t.clock, t.logger)
	t.sessions = NewSessionManager(collab, cfg.UserID, t.clock, t.logger)
	return t
}

// ProbeName reports which foreground probe feeds the loop.
func (t *Tracker) ProbeName() string {
	if t.probe == nil {
		return ""
	}
	return t.probe.Name()
}

// Registry exposes the tracked application registry.
func (t *Tracker) Registry() *Registry {
	return t.registry
}

// Sessions exposes the session manager.
func (t *Tracker) Sessions() *SessionManager {
	return t.sessions
}

// StartTracking closes sessions left open by a previous run and starts the polling
// loop in the background. The loop outlives ctx; use StopTracking to end it.
func (t *Tracker) StartTracking(ctx context.Context) error {
	_, err := t.start(ctx)
	return err
}

// start returns the loop's done channel so callers never race StopTracking for it.
func (t *Tracker) start(ctx context.Context) (<-chan struct{}, error) {
	stop := make(chan struct{})
	done := make(chan struct{})

	t.mu.Lock()
	if t.state.tracking {
		t.mu.Unlock()
		return nil, ErrAlreadyTracking
	}
	t.state.tracking = true
	t.stopCh, t.done = stop, done
	t.mu.Unlock()

	if _, err := t.sessions.CleanupOrphaned(ctx); err != nil {
		t.mu.Lock()
		if t.stopCh == stop {
			t.state.tracking = false
			t.stopCh, t.done = nil, nil
		}
		t.mu.Unlock()
		close(done)
		return nil, fmt.Errorf("start tracking: %w", err)
	}

	t.logger.Info().
		Dur("poll_interval", t.cfg.PollInterval).
		Str("probe", t.probe.Name()).
		Msg("starting tracker")

	go t.loop(context.WithoutCancel(ctx), stop, done)
	return done, nil
}

// Run starts tracking and blocks until ctx is cancelled or tracking is stopped,
// then closes every open session.
func (t *Tracker) Run(ctx context.Context) error {
	done, err := t.start(ctx)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		t.logger.Info().Msg("tracker stopped by context")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := t.StopTracking(shutdownCtx); err != nil && !errors.Is(err, ErrNotTracking) {
			return err
		}
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (t *Tracker) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	t.runTick(ctx)

	for {
		select {
		case <-stop:
			t.logger.Info().Msg("tracker stopped")
			return
		case <-ticker.C:
			t.runTick(ctx)
		}
	}
}

func (t *Tracker) runTick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, t.cfg.PollInterval)
	defer cancel()

	err := t.Tick(tickCtx)
	if err == nil || errors.Is(err, ErrNotTracking) {
		return
	}

	t.logger.Error().Err(err).Msg("tick failed")
	if t.recorder == nil {
		return
	}
	if recErr := t.recorder.RecordError(ctx, "tracker", err.Error()); recErr != nil {
		t.logger.Warn().Err(recErr).Msg("failed to record tick error")
	}
}

// StopTracking ends the loop, waits for an in-flight tick and closes every open
// session, including ones the collaborator holds but the tracker never learned about
// (a create whose response was lost). State is reset even when some closes fail; those
// sessions are picked up by the orphan cleanup of the next StartTracking.
func (t *Tracker) StopTracking(ctx context.Context) error {
	t.mu.Lock()
	if !t.state.tracking {
		t.mu.Unlock()
		return ErrNotTracking
	}
	t.state.tracking = false
	stop, done := t.stopCh, t.done
	t.stopCh, t.done = nil, nil
	t.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	t.tickMu.Lock()
	defer t.tickMu.Unlock()

	t.mu.Lock()
	open := t.state.openSessions()
	t.mu.Unlock()

	_, closeErr := t.sessions.closeAll(ctx, sessionsOf(open), reasonStop)
	orphans, orphanErr := t.sessions.CleanupOrphaned(ctx)
	err := errors.Join(closeErr, orphanErr)

	t.mu.Lock()
	t.state.reset()
	t.mu.Unlock()

	metrics.OpenSessions.Set(0)
	t.publish(ctx, nil)

	if err != nil {
		return fmt.Errorf("stop tracking: %w", err)
	}
	t.logger.Info().Int("closed", len(open)+orphans).Msg("tracking stopped")
	return nil
}

// IsTracking reports whether the polling loop is enabled.
func (t *Tracker) IsTracking() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.tracking
}

// IdleSince returns when the current idle period began and whether the user is idle.
func (t *Tracker) IdleSince() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.idleSince, !t.state.idleSince.IsZero()
}

// Tick runs one reconciliation step. It returns ErrNotTracking when tracking is off.
func (t *Tracker) Tick(ctx context.Context) error {
	t.tickMu.Lock()
	defer t.tickMu.Unlock()

	if !t.IsTracking() {
		metrics.TicksTotal.WithLabelValues("skipped").Inc()
		return ErrNotTracking
	}

	started := time.Now()
	defer func() { metrics.TickDuration.Observe(time.Since(started).Seconds()) }()

	sample, err := t.probe.Sample(ctx)
	if err != nil {
		metrics.ProbeFailures.WithLabelValues(t.probe.Name()).Inc()
		t.logger.Debug().Err(err).Msg("probe failed, treating as no focus")
		sample = nil
	}

	if _, err := t.registry.Refresh(ctx); err != nil {
		metrics.TicksTotal.WithLabelValues("error").Inc()
		return err
	}

	app, ambiguous := t.registry.Match(sample)
	if ambiguous {
		t.logger.Warn().
			Str("match_key", sample.MatchKey).
			Str("chosen", app.DisplayName).
			Msg("focused application matches several tracked entries")
	}

	t.mu.Lock()
	open := t.state.openSessions()
	t.mu.Unlock()

	var toClose []models.TimeSession
	needOpen := app != nil
	for _, o := range open {
		if app != nil && o.app.ID == app.ID {
			needOpen = false
			continue
		}
		toClose = append(toClose, o.session)
	}

	closedIDs, closeErr := t.sessions.closeAll(ctx, toClose, reasonFocus)

	var opened *models.TimeSession
	var openErr error
	if needOpen {
		opened, openErr = t.sessions.Open(ctx, app)
	}

	now := t.clock.Now()

	t.mu.Lock()
	closed := make(map[string]bool, len(closedIDs))
	for _, id := range closedIDs {
		closed[id] = true
	}
	for appID, o := range t.state.open {
		if closed[o.session.ID] {
			delete(t.state.open, appID)
		}
	}
	if opened != nil {
		t.state.open[app.ID] = openSession{session: *opened, app: *app}
	}
	if len(closedIDs) > 0 || opened != nil {
		t.invalidateCache()
	}
	fc := t.state.observeFocus(sample, app, now, t.cfg.IdleThreshold)
	if fc.changed {
		t.invalidateCache()
	}
	snap := t.state.buildSnapshot(now)
	t.state.storeSnapshot(snap, now)
	count := len(t.state.open)
	t.mu.Unlock()

	metrics.OpenSessions.Set(float64(count))

	if fc.idleBegan {
		t.logger.Info().Dur("threshold", t.cfg.IdleThreshold).Msg("user idle")
	}
	if fc.idleEnded > 0 {
		t.logger.Info().Dur("idle_for", fc.idleEnded).Msg("idle period ended")
	}
	if fc.changed && sample != nil {
		t.logger.Debug().
			Str("app", sample.DisplayName).
			Str("match_key", sample.MatchKey).
			Str("source", sample.Source).
			Bool("tracked", app != nil).
			Msg("focus changed")
	}

	t.publish(ctx, snap)

	if err := errors.Join(closeErr, openErr); err != nil {
		metrics.TicksTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.TicksTotal.WithLabelValues("ok").Inc()
	return nil
}

// ResolveApp finds the stored application whose id, match key or display name equals
// key after normalization. Untracked applications are included and substring matches
// are not considered.
func (t *Tracker) ResolveApp(ctx context.Context, key string) (*models.TrackedApplication, error) {
	apps, err := t.collab.ListTrackedApplications(ctx, t.cfg.UserID)
	if err != nil {
		return nil, collaboratorError("list tracked applications", err)
	}

	for i := range apps {
		if apps[i].ID == key {
			return &apps[i], nil
		}
	}
	for i := range apps {
		if focus.ExactMatch(key, apps[i].MatchKey) {
			return &apps[i], nil
		}
	}
	for i := range apps {
		if focus.ExactMatch(key, apps[i].DisplayName) {
			return &apps[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrApplicationNotFound, key)
}

// StopTrackingForApp closes the open session of the application resolved from
// matchKey by ResolveApp. Nothing open is not an error; an unknown key is.
func (t *Tracker) StopTrackingForApp(ctx context.Context, matchKey string) error {
	app, err := t.ResolveApp(ctx, matchKey)
	if err != nil {
		return err
	}
	return t.StopTrackingForAppByID(ctx, app.ID)
}

// StopTrackingForAppByID closes the open session of the application with appID.
func (t *Tracker) StopTrackingForAppByID(ctx context.Context, appID string) error {
	return t.stopMatching(ctx, func(app models.TrackedApplication) bool {
		return app.ID == appID
	})
}

func (t *Tracker) stopMatching(ctx context.Context, match func(models.TrackedApplication) bool) error {
	t.tickMu.Lock()
	defer t.tickMu.Unlock()

	t.mu.Lock()
	var targets []models.TimeSession
	for _, o := range t.state.open {
		if match(o.app) {
			targets = append(targets, o.session)
		}
	}
	t.mu.Unlock()

	if len(targets) == 0 {
		return nil
	}

	closedIDs, err := t.sessions.closeAll(ctx, targets, reasonUntrack)

	t.mu.Lock()
	closed := make(map[string]bool, len(closedIDs))
	for _, id := range closedIDs {
		closed[id] = true
	}
	for appID, o := range t.state.open {
		if closed[o.session.ID] {
			delete(t.state.open, appID)
		}
	}
	t.invalidateCache()
	count := len(t.state.open)
	t.mu.Unlock()

	// The application may have just been marked untracked; do not reuse a cached list.
	t.registry.Invalidate()
	metrics.OpenSessions.Set(float64(count))
	return err
}

func (t *Tracker) publish(ctx context.Context, snap *models.CurrentActivity) {
	if t.sink == nil {
		return
	}
	if err := t.sink.PublishActivity(ctx, t.cfg.UserID, snap); err != nil {
		t.logger.Warn().Err(err).Msg("failed to mirror activity snapshot")
	}
}

func sessionsOf(open []openSession) []models.TimeSession {
	out := make([]models.TimeSession, len(open))
	for i, o := range open {
		out[i] = o.session
	}
	return out
}
