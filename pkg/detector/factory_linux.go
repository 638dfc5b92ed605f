//go:build linux

package detector

import (
	"github.com/actionsum/focustrack/pkg/focus"
	"github.com/actionsum/focustrack/pkg/integrations/process"
	"github.com/actionsum/focustrack/pkg/integrations/wayland"
	"github.com/actionsum/focustrack/pkg/integrations/x11"
	"github.com/rs/zerolog"
)

// Wayland sessions usually also run XWayland, so the compositor IPC goes first.
func platformProbes(logger zerolog.Logger) ([]focus.Probe, focus.Probe) {
	var primaries []focus.Probe
	if DetectDisplayServer() == "wayland" {
		primaries = append(primaries, wayland.NewDetector(logger))
	}
	primaries = append(primaries, x11.NewDetector(logger))
	return primaries, process.NewDetector(logger)
}
