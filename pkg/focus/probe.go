// Package focus defines the foreground probe contract shared by every platform integration.
package focus

import (
	"context"
	"errors"
)

// ErrProbeUnavailable is returned when the platform API could not be queried.
// Callers treat it as "nothing focused" for the current tick.
var ErrProbeUnavailable = errors.New("foreground probe unavailable")

// Sample describes the application currently owning input focus.
type Sample struct {
	// DisplayName is the human readable name ("Visual Studio Code", "firefox").
	DisplayName string

	// MatchKey is the identifier compared against tracked applications:
	// process image name on Windows and Linux, bundle identifier on macOS.
	MatchKey string

	// PID of the owning process, zero when unknown.
	PID int

	// Source names the integration that produced the sample ("x11", "windows", "process", ...).
	Source string

	// Authoritative is false for heuristic guesses such as the CPU fallback.
	Authoritative bool
}

// Probe samples the foreground application.
type Probe interface {
	// Sample returns the focused application. A nil sample with a nil error means nothing
	// is focused. It must return well within one polling interval and never panic.
	Sample(ctx context.Context) (*Sample, error)

	// Name identifies the probe in logs.
	Name() string

	// IsAvailable checks if this probe can run on the current system.
	IsAvailable() bool

	// Close releases any resources (connections, helper processes).
	Close() error
}
