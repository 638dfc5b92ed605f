// Package detector selects the foreground probe chain for the running platform.
package detector

import (
	"os"

	"github.com/actionsum/focustrack/pkg/integrations/hybrid"
	"github.com/rs/zerolog"
)

// New builds the probe chain for runtime.GOOS once; the tracker never branches on platform.
func New(logger zerolog.Logger) (*hybrid.Detector, error) {
	primaries, fallback := platformProbes(logger)
	return hybrid.NewDetector(logger, fallback, primaries...), nil
}

func DetectDisplayServer() string {
	sessionType := os.Getenv("XDG_SESSION_TYPE")
	waylandDisplay := os.Getenv("WAYLAND_DISPLAY")
	x11Display := os.Getenv("DISPLAY")

	if sessionType == "wayland" || waylandDisplay != "" {
		return "wayland"
	}

	if sessionType == "x11" || x11Display != "" {
		return "x11"
	}

	return "unknown"
}
