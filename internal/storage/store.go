// Package storage defines the persistence contract the tracker depends on.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/actionsum/focustrack/internal/models"
)

var (
	// ErrUnavailable marks network or database failures. The tracker retries on the next tick.
	ErrUnavailable = errors.New("persistence collaborator unavailable")

	// ErrSessionNotFound is returned when a session vanished underneath the tracker.
	ErrSessionNotFound = errors.New("session not found")
)

// Collaborator is the persistence service backing tracked applications and time sessions.
type Collaborator interface {
	// ListTrackedApplications returns the user's applications in a stable listing order.
	ListTrackedApplications(ctx context.Context, userID string) ([]models.TrackedApplication, error)

	// FindOpenSession returns the active session for (user, app), or nil when there is none.
	FindOpenSession(ctx context.Context, userID, appID string) (*models.TimeSession, error)

	CreateSession(ctx context.Context, userID, appID string, start time.Time) (*models.TimeSession, error)

	UpdateSession(ctx context.Context, sessionID string, end time.Time, durationSeconds int64, active bool) (*models.TimeSession, error)

	// ListOpenSessions returns every active session of the user.
	ListOpenSessions(ctx context.Context, userID string) ([]models.TimeSession, error)
}

// SummarySource aggregates tracked time per application for reports.
type SummarySource interface {
	SessionSummarySince(ctx context.Context, userID string, since, now time.Time) ([]models.AppSummary, error)
}

// ErrorRecorder persists tick failures for later inspection.
type ErrorRecorder interface {
	RecordError(ctx context.Context, component, message string) error
}

// ErrApplicationNotFound is returned by application management calls for unknown ids or keys.
var ErrApplicationNotFound = errors.New("application not found")
