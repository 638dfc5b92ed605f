//go:build windows

package detector

import (
	"github.com/actionsum/focustrack/pkg/focus"
	"github.com/actionsum/focustrack/pkg/integrations/windows"
	"github.com/rs/zerolog"
)

// A failed Win32 lookup means no sample for the tick; there is no heuristic on Windows.
func platformProbes(logger zerolog.Logger) ([]focus.Probe, focus.Probe) {
	return []focus.Probe{windows.NewDetector(logger)}, nil
}
