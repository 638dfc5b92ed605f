package tracker

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/actionsum/focustrack/internal/clock"
	"github.com/actionsum/focustrack/internal/metrics"
	"github.com/actionsum/focustrack/internal/models"
)

// Close reasons reported in metrics and logs.
const (
	reasonFocus   = "focus"
	reasonStop    = "stop"
	reasonUntrack = "untrack"
	reasonOrphan  = "orphan"
	reasonManual  = "manual"
)

// SessionManager opens and closes time sessions through the collaborator. It holds no
// state; the at-most-one-open invariant comes from re-attaching in Open.
type SessionManager struct {
	collab Collaborator
	userID string
	clock  clock.Clock
	logger zerolog.Logger
}

func NewSessionManager(collab Collaborator, userID string, clk clock.Clock, logger zerolog.Logger) *SessionManager {
	return &SessionManager{collab: collab, userID: userID, clock: clk, logger: logger}
}

// Open returns the existing open session for app, or creates one starting now.
func (m *SessionManager) Open(ctx context.Context, app *models.TrackedApplication) (*models.TimeSession, error) {
	existing, err := m.collab.FindOpenSession(ctx, m.userID, app.ID)
	if err != nil {
		return nil, collaboratorError("find open session", err)
	}
	if existing != nil {
		m.logger.Debug().
			Str("app", app.DisplayName).
			Str("session_id", existing.ID).
			Time("start", existing.StartTime).
			Msg("re-attached to open session")
		metrics.SessionsOpened.Inc()
		return existing, nil
	}

	created, err := m.collab.CreateSession(ctx, m.userID, app.ID, m.clock.Now())
	if err != nil {
		return nil, collaboratorError("create session", err)
	}
	m.logger.Info().
		Str("app", app.DisplayName).
		Str("session_id", created.ID).
		Msg("session opened")
	metrics.SessionsOpened.Inc()
	return created, nil
}

// Close ends s at the current time. A session that is no longer open, or that the
// collaborator no longer knows, is treated as already closed.
func (m *SessionManager) Close(ctx context.Context, s *models.TimeSession) error {
	return m.close(ctx, s, reasonManual)
}

func (m *SessionManager) close(ctx context.Context, s *models.TimeSession, reason string) error {
	current, err := m.collab.FindOpenSession(ctx, m.userID, s.AppID)
	if err != nil {
		return collaboratorError("find open session", err)
	}
	if current == nil || current.ID != s.ID {
		m.logger.Debug().Str("session_id", s.ID).Msg("session already closed")
		return nil
	}
	return m.finish(ctx, current, reason)
}

// finish writes the end time and duration measured from the session's own start.
func (m *SessionManager) finish(ctx context.Context, s *models.TimeSession, reason string) error {
	now := m.clock.Now()
	duration := s.Elapsed(now)

	if _, err := m.collab.UpdateSession(ctx, s.ID, now, duration, false); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			m.logger.Debug().Str("session_id", s.ID).Msg("session vanished before close")
			return nil
		}
		return collaboratorError("update session", err)
	}

	m.logger.Info().
		Str("session_id", s.ID).
		Str("app_id", s.AppID).
		Int64("duration_seconds", duration).
		Str("reason", reason).
		Msg("session closed")
	metrics.SessionsClosed.WithLabelValues(reason).Inc()
	return nil
}

// CleanupOrphaned closes every session a previous run left open and returns how many were closed.
func (m *SessionManager) CleanupOrphaned(ctx context.Context) (int, error) {
	open, err := m.collab.ListOpenSessions(ctx, m.userID)
	if err != nil {
		return 0, collaboratorError("list open sessions", err)
	}

	closed := 0
	var errs []error
	for i := range open {
		if err := m.finish(ctx, &open[i], reasonOrphan); err != nil {
			errs = append(errs, err)
			continue
		}
		closed++
	}
	if closed > 0 {
		m.logger.Info().Int("count", closed).Msg("closed orphaned sessions")
	}
	return closed, errors.Join(errs...)
}

// CloseAll closes each session and returns the ids that are now closed.
func (m *SessionManager) CloseAll(ctx context.Context, sessions []models.TimeSession) ([]string, error) {
	return m.closeAll(ctx, sessions, reasonManual)
}

func (m *SessionManager) closeAll(ctx context.Context, sessions []models.TimeSession, reason string) ([]string, error) {
	var closed []string
	var errs []error
	for i := range sessions {
		if err := m.close(ctx, &sessions[i], reason); err != nil {
			errs = append(errs, err)
			continue
		}
		closed = append(closed, sessions[i].ID)
	}
	return closed, errors.Join(errs...)
}
