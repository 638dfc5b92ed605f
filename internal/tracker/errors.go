package tracker

import (
	"errors"
	"fmt"

	"github.com/actionsum/focustrack/internal/metrics"
	"github.com/actionsum/focustrack/internal/storage"
)

var (
	ErrCollaboratorUnavailable = storage.ErrUnavailable
	ErrSessionNotFound         = storage.ErrSessionNotFound
	ErrApplicationNotFound     = storage.ErrApplicationNotFound

	ErrNotTracking     = errors.New("tracking is not running")
	ErrAlreadyTracking = errors.New("tracking is already running")
)

// collaboratorError tags err with the operation and makes sure it matches one of the
// storage sentinels so callers can branch with errors.Is.
func collaboratorError(op string, err error) error {
	if err == nil {
		return nil
	}
	metrics.CollaboratorErrors.WithLabelValues(op).Inc()
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrCollaboratorUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrCollaboratorUnavailable, err)
}
