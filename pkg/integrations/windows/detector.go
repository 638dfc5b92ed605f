//go:build windows

package windows

import (
	"context"
	"fmt"
	"strings"
	"unsafe"

	"github.com/actionsum/focustrack/pkg/focus"
	"github.com/rs/zerolog"
	"golang.org/x/sys/windows"
)

type Detector struct {
	logger zerolog.Logger
}

func NewDetector(logger zerolog.Logger) *Detector {
	return &Detector{logger: logger.With().Str("component", "windows-probe").Logger()}
}

func (d *Detector) Name() string {
	return "windows"
}

func (d *Detector) IsAvailable() bool {
	return true
}

func (d *Detector) Close() error {
	return nil
}

// Sample walks foreground window -> owning pid -> image name. Any failing step yields no sample.
func (d *Detector) Sample(ctx context.Context) (*focus.Sample, error) {
	hwnd := windows.GetForegroundWindow()
	if hwnd == 0 {
		return nil, nil
	}

	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil || pid == 0 {
		return nil, fmt.Errorf("foreground window owner: %v: %w", err, focus.ErrProbeUnavailable)
	}

	image, err := imageName(pid)
	if err != nil {
		d.logger.Debug().Err(err).Uint32("pid", pid).Msg("Image name lookup failed")
		return nil, fmt.Errorf("image name for pid %d: %v: %w", pid, err, focus.ErrProbeUnavailable)
	}

	return &focus.Sample{
		DisplayName:   strings.TrimSuffix(image, ".exe"),
		MatchKey:      image,
		PID:           int(pid),
		Source:        "windows",
		Authoritative: true,
	}, nil
}

func imageName(pid uint32) (string, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return "", err
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	if err := windows.Process32First(snapshot, &entry); err != nil {
		return "", err
	}
	for {
		if entry.ProcessID == pid {
			return windows.UTF16ToString(entry.ExeFile[:]), nil
		}
		if err := windows.Process32Next(snapshot, &entry); err != nil {
			break
		}
	}

	return "", fmt.Errorf("process %d not in snapshot", pid)
}
