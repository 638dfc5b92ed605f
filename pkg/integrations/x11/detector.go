// Package x11 reads the focused window over the X11 protocol.
package x11

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/actionsum/focustrack/pkg/focus"
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/rs/zerolog"
)

var atomNames = []string{
	"_NET_ACTIVE_WINDOW",
	"_NET_WM_PID",
	"WM_CLASS",
}

// Detector keeps one X connection open between samples and reconnects after a failure.
type Detector struct {
	mu       sync.Mutex
	client   *client
	procRoot string
	logger   zerolog.Logger
}

type client struct {
	conn  *xgb.Conn
	root  xproto.Window
	atoms map[string]xproto.Atom
}

func NewDetector(logger zerolog.Logger) *Detector {
	return &Detector{
		procRoot: "/proc",
		logger:   logger.With().Str("component", "x11-probe").Logger(),
	}
}

func (d *Detector) Name() string {
	return "x11"
}

func (d *Detector) IsAvailable() bool {
	return os.Getenv("DISPLAY") != ""
}

func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client != nil {
		d.client.conn.Close()
		d.client = nil
	}
	return nil
}

func (d *Detector) Sample(ctx context.Context) (*focus.Sample, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client == nil {
		c, err := dial()
		if err != nil {
			return nil, fmt.Errorf("connect to X server: %v: %w", err, focus.ErrProbeUnavailable)
		}
		d.client = c
	}

	win, err := d.client.activeWindow()
	if err != nil {
		d.client.conn.Close()
		d.client = nil
		return nil, fmt.Errorf("active window: %v: %w", err, focus.ErrProbeUnavailable)
	}
	if win == 0 {
		return nil, nil
	}

	instance, class := parseWMClass(d.client.property(win, d.client.atoms["WM_CLASS"], xproto.AtomString, 256))
	pid := d.client.windowPID(win)

	key := d.processName(pid)
	if key == "" {
		key = instance
	}
	if key == "" {
		return nil, nil
	}

	display := class
	if display == "" {
		display = key
	}

	return &focus.Sample{
		DisplayName:   display,
		MatchKey:      key,
		PID:           pid,
		Source:        "x11",
		Authoritative: true,
	}, nil
}

// processName reads the kernel command name of pid, which is what process-name match keys hold.
func (d *Detector) processName(pid int) string {
	if pid <= 0 {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(d.procRoot, strconv.Itoa(pid), "comm"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func dial() (*client, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, err
	}

	c := &client{
		conn:  conn,
		root:  xproto.Setup(conn).DefaultScreen(conn).Root,
		atoms: make(map[string]xproto.Atom, len(atomNames)),
	}

	for _, name := range atomNames {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return nil, err
		}
		c.atoms[name] = reply.Atom
	}

	return c, nil
}

func (c *client) property(win xproto.Window, atom, typ xproto.Atom, length uint32) []byte {
	reply, err := xproto.GetProperty(c.conn, false, win, atom, typ, 0, length).Reply()
	if err != nil || reply == nil {
		return nil
	}
	return reply.Value
}

// activeWindow prefers the EWMH _NET_ACTIVE_WINDOW hint and falls back to the
// top-level ancestor of the input focus for window managers that do not set it.
func (c *client) activeWindow() (xproto.Window, error) {
	data := c.property(c.root, c.atoms["_NET_ACTIVE_WINDOW"], xproto.AtomWindow, 1)
	if len(data) >= 4 {
		if win := xproto.Window(binary.LittleEndian.Uint32(data)); win != 0 {
			return win, nil
		}
	}

	focusReply, err := xproto.GetInputFocus(c.conn).Reply()
	if err != nil {
		return 0, err
	}
	if focusReply.Focus == 0 || focusReply.Focus == c.root {
		return 0, nil
	}
	return c.topLevel(focusReply.Focus), nil
}

func (c *client) topLevel(win xproto.Window) xproto.Window {
	for {
		reply, err := xproto.QueryTree(c.conn, win).Reply()
		if err != nil || reply.Parent == c.root || reply.Parent == 0 {
			return win
		}
		win = reply.Parent
	}
}

func (c *client) windowPID(win xproto.Window) int {
	data := c.property(win, c.atoms["_NET_WM_PID"], xproto.AtomCardinal, 1)
	if len(data) < 4 {
		return 0
	}
	return int(binary.LittleEndian.Uint32(data))
}

// parseWMClass splits the NUL separated WM_CLASS property into instance and class.
func parseWMClass(data []byte) (instance, class string) {
	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	if len(parts) >= 1 {
		instance = parts[0]
	}
	if len(parts) >= 2 {
		class = parts[1]
	}
	return instance, class
}
