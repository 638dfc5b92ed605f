//go:build darwin

package detector

import (
	"github.com/actionsum/focustrack/pkg/focus"
	"github.com/actionsum/focustrack/pkg/integrations/macos"
	"github.com/actionsum/focustrack/pkg/integrations/process"
	"github.com/rs/zerolog"
)

// The macOS probe owns its heuristic fallback, so the chain has none of its own.
func platformProbes(logger zerolog.Logger) ([]focus.Probe, focus.Probe) {
	return []focus.Probe{macos.NewDetector(logger, process.NewDetector(logger))}, nil
}
