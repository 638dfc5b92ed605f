// Package macos queries the frontmost application through System Events.
package macos

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/actionsum/focustrack/pkg/focus"
	"github.com/rs/zerolog"
)

const frontmostScript = `tell application "System Events"
	set p to first application process whose frontmost is true
	return (name of p) & "|" & (bundle identifier of p) & "|" & (unix id of p)
end tell`

// excludedBundles are shell surfaces that hold focus without being a real application.
var excludedBundles = map[string]struct{}{
	"com.apple.finder":          {},
	"com.apple.dock":            {},
	"com.apple.menuextra.clock": {},
	"com.apple.systemuiserver":  {},
}

// Runner executes the AppleScript and returns its stdout.
type Runner func(ctx context.Context, script string) ([]byte, error)

// Detector reports the localized name and bundle identifier of the frontmost app.
// When System Events cannot answer it asks the fallback probe, whose samples stay
// non-authoritative.
type Detector struct {
	run      Runner
	fallback focus.Probe
	logger   zerolog.Logger
}

func NewDetector(logger zerolog.Logger, fallback focus.Probe) *Detector {
	return &Detector{
		run:      osascript,
		fallback: fallback,
		logger:   logger.With().Str("component", "macos-probe").Logger(),
	}
}

func (d *Detector) Name() string {
	return "macos"
}

func (d *Detector) IsAvailable() bool {
	_, err := exec.LookPath("osascript")
	return err == nil
}

func (d *Detector) Close() error {
	return nil
}

func (d *Detector) Sample(ctx context.Context) (*focus.Sample, error) {
	out, err := d.run(ctx, frontmostScript)
	if err == nil {
		s, perr := parseFrontmost(string(out))
		if perr == nil {
			if isExcluded(s.MatchKey) {
				return nil, nil
			}
			return s, nil
		}
		err = perr
	}

	d.logger.Debug().Err(err).Msg("System Events query failed")

	if d.fallback == nil {
		return nil, fmt.Errorf("frontmost application: %v: %w", err, focus.ErrProbeUnavailable)
	}

	s, ferr := d.fallback.Sample(ctx)
	if ferr != nil {
		return nil, ferr
	}
	if s != nil {
		s.Authoritative = false
	}
	return s, nil
}

// parseFrontmost reads "name|bundle|pid". A missing bundle identifier falls back to the name.
func parseFrontmost(out string) (*focus.Sample, error) {
	parts := strings.Split(strings.TrimSpace(out), "|")
	if len(parts) != 3 {
		return nil, fmt.Errorf("unexpected osascript output %q", out)
	}

	name := strings.TrimSpace(parts[0])
	bundle := strings.TrimSpace(parts[1])
	if bundle == "missing value" {
		bundle = ""
	}
	if name == "" && bundle == "" {
		return nil, fmt.Errorf("frontmost application has no name")
	}
	if bundle == "" {
		bundle = name
	}
	if name == "" {
		name = bundle
	}

	pid, _ := strconv.Atoi(strings.TrimSpace(parts[2]))

	return &focus.Sample{
		DisplayName:   name,
		MatchKey:      bundle,
		PID:           pid,
		Source:        "macos",
		Authoritative: true,
	}, nil
}

func isExcluded(bundle string) bool {
	_, ok := excludedBundles[strings.ToLower(bundle)]
	return ok
}

func osascript(ctx context.Context, script string) ([]byte, error) {
	return exec.CommandContext(ctx, "osascript", "-e", script).Output()
}
