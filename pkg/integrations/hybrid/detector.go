// Package hybrid chains platform probes with an optional heuristic fallback.
package hybrid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/actionsum/focustrack/pkg/focus"
	"github.com/rs/zerolog"
)

// Detector asks each available primary probe in order. The first one that answers without
// error decides the sample, including "nothing focused". The fallback runs only when every
// primary failed, and its samples are never authoritative.
type Detector struct {
	primaries []focus.Probe
	fallback  focus.Probe
	logger    zerolog.Logger

	mu                   sync.Mutex
	lastSuccessfulMethod string
}

func NewDetector(logger zerolog.Logger, fallback focus.Probe, primaries ...focus.Probe) *Detector {
	return &Detector{
		primaries: primaries,
		fallback:  fallback,
		logger:    logger.With().Str("component", "hybrid-probe").Logger(),
	}
}

func (d *Detector) Name() string {
	return "hybrid"
}

func (d *Detector) IsAvailable() bool {
	for _, p := range d.primaries {
		if p.IsAvailable() {
			return true
		}
	}
	return d.fallback != nil && d.fallback.IsAvailable()
}

func (d *Detector) Sample(ctx context.Context) (*focus.Sample, error) {
	var errs []error

	for _, p := range d.primaries {
		if !p.IsAvailable() {
			continue
		}
		s, err := p.Sample(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		d.setLast(p.Name())
		return s, nil
	}

	if d.fallback != nil && d.fallback.IsAvailable() {
		s, err := d.fallback.Sample(ctx)
		if err == nil {
			if len(errs) > 0 {
				d.logger.Debug().Err(errors.Join(errs...)).Msg("Primary probes failed, using heuristic")
			}
			if s != nil {
				s.Authoritative = false
			}
			d.setLast(d.fallback.Name())
			return s, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", d.fallback.Name(), err))
	}

	if len(errs) == 0 {
		return nil, fmt.Errorf("no probe available on this system: %w", focus.ErrProbeUnavailable)
	}
	return nil, fmt.Errorf("all detection methods failed: %w", errors.Join(errs...))
}

func (d *Detector) Close() error {
	var errs []error
	for _, p := range d.primaries {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.fallback != nil {
		if err := d.fallback.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Detector) setLast(name string) {
	d.mu.Lock()
	d.lastSuccessfulMethod = name
	d.mu.Unlock()
}

// LastSource returns the probe that produced the most recent answer.
func (d *Detector) LastSource() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSuccessfulMethod
}

type DetectorInfo struct {
	Name      string
	Available bool
	Fallback  bool
}

// Detectors lists the chain in evaluation order.
func (d *Detector) Detectors() []DetectorInfo {
	var infos []DetectorInfo
	for _, p := range d.primaries {
		infos = append(infos, DetectorInfo{Name: p.Name(), Available: p.IsAvailable()})
	}
	if d.fallback != nil {
		infos = append(infos, DetectorInfo{Name: d.fallback.Name(), Available: d.fallback.IsAvailable(), Fallback: true})
	}
	return infos
}

func (d *Detector) Status() string {
	var b strings.Builder
	b.WriteString("Probe chain:\n")
	for _, info := range d.Detectors() {
		role := "primary"
		if info.Fallback {
			role = "fallback"
		}
		fmt.Fprintf(&b, "  %-18s %-9s available: %v\n", info.Name, role, info.Available)
	}
	last := d.LastSource()
	if last == "" {
		last = "none"
	}
	fmt.Fprintf(&b, "  Last successful method: %s\n", last)
	return b.String()
}
