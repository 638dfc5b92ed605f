//go:build !linux && !darwin && !windows

package detector

import (
	"github.com/actionsum/focustrack/pkg/focus"
	"github.com/actionsum/focustrack/pkg/integrations/process"
	"github.com/rs/zerolog"
)

func platformProbes(logger zerolog.Logger) ([]focus.Probe, focus.Probe) {
	return nil, process.NewDetector(logger)
}
