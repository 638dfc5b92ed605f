// Package process implements the CPU-usage heuristic probe.
//
// It does not observe focus at all: it assumes the busiest user-facing process is the one
// in front of the user. Samples it produces are never authoritative and are only used where
// no platform focus API exists or the real one failed.
package process

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/actionsum/focustrack/pkg/focus"
	"github.com/rs/zerolog"
)

// Runner returns raw `pid pcpu comm` lines for every process.
type Runner func(ctx context.Context) ([]byte, error)

type Detector struct {
	run    Runner
	deny   *Denylist
	logger zerolog.Logger
}

type processInfo struct {
	pid  int
	cpu  float64
	name string
}

func NewDetector(logger zerolog.Logger) *Detector {
	return &Detector{
		run:    psRunner,
		deny:   DefaultDenylist(),
		logger: logger.With().Str("component", "process-probe").Logger(),
	}
}

// NewDetectorWithRunner builds a detector over a custom process source.
func NewDetectorWithRunner(logger zerolog.Logger, run Runner, deny *Denylist) *Detector {
	d := NewDetector(logger)
	d.run = run
	if deny != nil {
		d.deny = deny
	}
	return d
}

func (d *Detector) Name() string {
	return "process"
}

func (d *Detector) IsAvailable() bool {
	_, err := exec.LookPath("ps")
	return err == nil
}

func (d *Detector) Close() error {
	return nil
}

func (d *Detector) Sample(ctx context.Context) (*focus.Sample, error) {
	out, err := d.run(ctx)
	if err != nil {
		return nil, fmt.Errorf("process snapshot failed: %v: %w", err, focus.ErrProbeUnavailable)
	}

	best := d.busiest(parseProcessTable(out))
	if best == nil {
		return nil, nil
	}

	d.logger.Debug().Str("process", best.name).Int("pid", best.pid).Float64("cpu", best.cpu).Msg("Heuristic pick")

	return &focus.Sample{
		DisplayName:   best.name,
		MatchKey:      best.name,
		PID:           best.pid,
		Source:        "process",
		Authoritative: false,
	}, nil
}

func (d *Detector) busiest(procs []processInfo) *processInfo {
	var best *processInfo
	for i := range procs {
		p := &procs[i]
		if d.deny.Denied(p.name) {
			continue
		}
		if best == nil || p.cpu > best.cpu {
			best = p
		}
	}
	return best
}

func psRunner(ctx context.Context) ([]byte, error) {
	return exec.CommandContext(ctx, "ps", "-A", "-o", "pid=,pcpu=,comm=").Output()
}

// parseProcessTable reads `pid pcpu comm` lines. comm may contain spaces or be a full path
// (macOS), so everything after the second field is the command; absolute paths are reduced
// to their base name.
func parseProcessTable(out []byte) []processInfo {
	var procs []processInfo

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}

		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}

		cpu, err := strconv.ParseFloat(strings.ReplaceAll(fields[1], ",", "."), 64)
		if err != nil {
			continue
		}

		name := strings.Join(fields[2:], " ")
		if strings.HasPrefix(name, "/") {
			name = filepath.Base(name)
		}

		procs = append(procs, processInfo{pid: pid, cpu: cpu, name: name})
	}

	return procs
}
