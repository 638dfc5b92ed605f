// Package wayland asks tiling compositors that expose IPC (sway, Hyprland) for the focused window.
package wayland

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/actionsum/focustrack/pkg/focus"
	"github.com/rs/zerolog"
)

const (
	compositorSway     = "sway"
	compositorHyprland = "hyprland"
	compositorUnknown  = "unknown"
)

// Runner executes a compositor IPC command and returns stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

type Detector struct {
	compositor string
	run        Runner
	logger     zerolog.Logger
}

func NewDetector(logger zerolog.Logger) *Detector {
	return &Detector{
		compositor: detectCompositor(os.Getenv),
		run:        execRunner,
		logger:     logger.With().Str("component", "wayland-probe").Logger(),
	}
}

// detectCompositor uses the IPC socket variables each compositor exports to its clients.
func detectCompositor(getenv func(string) string) string {
	switch {
	case getenv("SWAYSOCK") != "":
		return compositorSway
	case getenv("HYPRLAND_INSTANCE_SIGNATURE") != "":
		return compositorHyprland
	default:
		return compositorUnknown
	}
}

func (d *Detector) Name() string {
	return "wayland-" + d.compositor
}

func (d *Detector) IsAvailable() bool {
	switch d.compositor {
	case compositorSway:
		return commandExists("swaymsg")
	case compositorHyprland:
		return commandExists("hyprctl")
	default:
		return false
	}
}

func (d *Detector) Close() error {
	return nil
}

func (d *Detector) Sample(ctx context.Context) (*focus.Sample, error) {
	var (
		out []byte
		err error
	)

	switch d.compositor {
	case compositorSway:
		out, err = d.run(ctx, "swaymsg", "-t", "get_tree")
	case compositorHyprland:
		out, err = d.run(ctx, "hyprctl", "activewindow", "-j")
	default:
		return nil, fmt.Errorf("unsupported wayland compositor: %w", focus.ErrProbeUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("%s ipc: %v: %w", d.compositor, err, focus.ErrProbeUnavailable)
	}

	var s *focus.Sample
	if d.compositor == compositorSway {
		s, err = parseSwayTree(out)
	} else {
		s, err = parseHyprlandWindow(out)
	}
	if err != nil {
		return nil, fmt.Errorf("%s ipc: %v: %w", d.compositor, err, focus.ErrProbeUnavailable)
	}
	return s, nil
}

type swayNode struct {
	Focused          bool       `json:"focused"`
	Name             string     `json:"name"`
	AppID            string     `json:"app_id"`
	PID              int        `json:"pid"`
	Nodes            []swayNode `json:"nodes"`
	FloatingNodes    []swayNode `json:"floating_nodes"`
	WindowProperties *struct {
		Class    string `json:"class"`
		Instance string `json:"instance"`
	} `json:"window_properties"`
}

func parseSwayTree(data []byte) (*focus.Sample, error) {
	var root swayNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, err
	}

	node := findFocused(&root)
	if node == nil {
		return nil, nil
	}

	key := node.AppID
	display := node.AppID
	if node.WindowProperties != nil {
		if key == "" {
			key = node.WindowProperties.Instance
		}
		if node.WindowProperties.Class != "" {
			display = node.WindowProperties.Class
		}
	}
	if key == "" {
		// Focused workspace or output without a client window.
		return nil, nil
	}
	if display == "" {
		display = key
	}

	return &focus.Sample{
		DisplayName:   display,
		MatchKey:      key,
		PID:           node.PID,
		Source:        "wayland",
		Authoritative: true,
	}, nil
}

func findFocused(n *swayNode) *swayNode {
	if n.Focused {
		return n
	}
	for i := range n.Nodes {
		if f := findFocused(&n.Nodes[i]); f != nil {
			return f
		}
	}
	for i := range n.FloatingNodes {
		if f := findFocused(&n.FloatingNodes[i]); f != nil {
			return f
		}
	}
	return nil
}

type hyprWindow struct {
	Class        string `json:"class"`
	InitialClass string `json:"initialClass"`
	Title        string `json:"title"`
	PID          int    `json:"pid"`
}

func parseHyprlandWindow(data []byte) (*focus.Sample, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "{}" {
		return nil, nil
	}

	var w hyprWindow
	if err := json.Unmarshal([]byte(trimmed), &w); err != nil {
		return nil, err
	}

	key := w.Class
	if key == "" {
		key = w.InitialClass
	}
	if key == "" {
		return nil, nil
	}

	return &focus.Sample{
		DisplayName:   key,
		MatchKey:      key,
		PID:           w.PID,
		Source:        "wayland",
		Authoritative: true,
	}, nil
}

func commandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}
