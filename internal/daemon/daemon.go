package daemon

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/actionsum/focustrack/internal/logging"
)

// ChildEnv marks the detached child started by Spawn.
const ChildEnv = "FOCUSTRACK_DAEMON_CHILD"

var ErrNotRunning = errors.New("daemon is not running")

type Daemon struct {
	pidFile string
	logger  zerolog.Logger
}

func New(pidFile string, logger zerolog.Logger) *Daemon {
	return &Daemon{
		pidFile: pidFile,
		logger:  logging.Component(logger, "daemon"),
	}
}

// IsChild reports whether this process was started by Spawn.
func IsChild() bool {
	return os.Getenv(ChildEnv) == "1"
}

func (d *Daemon) PIDFile() string {
	return d.pidFile
}

func (d *Daemon) WritePID() error {
	pid := os.Getpid()
	return os.WriteFile(d.pidFile, fmt.Appendf([]byte{}, "%d\n", pid), 0644)
}

// ReadPID returns 0 when there is no PID file.
func (d *Daemon) ReadPID() (int, error) {
	data, err := os.ReadFile(d.pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID in file %s: %q", d.pidFile, strings.TrimSpace(string(data)))
	}

	return pid, nil
}

func (d *Daemon) RemovePID() error {
	if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// IsRunning checks the PID file against a live process. A stale file is removed.
func (d *Daemon) IsRunning() (bool, int, error) {
	pid, err := d.ReadPID()
	if err != nil {
		return false, 0, err
	}

	if pid == 0 {
		return false, 0, nil
	}

	if !processAlive(pid) {
		d.logger.Debug().Int("pid", pid).Msg("removing stale PID file")
		_ = d.RemovePID()
		return false, 0, nil
	}

	return true, pid, nil
}

// Stop asks the daemon to terminate and waits up to timeout for it to exit. The
// daemon closes its open sessions before exiting.
func (d *Daemon) Stop(timeout time.Duration) error {
	running, pid, err := d.IsRunning()
	if err != nil {
		return fmt.Errorf("error checking daemon status: %w", err)
	}

	if !running {
		return ErrNotRunning
	}

	if err := terminate(pid); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			_ = d.RemovePID()
			return nil
		}
		return fmt.Errorf("failed to signal daemon: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for processAlive(pid) {
		if time.Now().After(deadline) {
			return fmt.Errorf("daemon (PID %d) did not exit within %s", pid, timeout)
		}
		time.Sleep(100 * time.Millisecond)
	}

	d.logger.Info().Int("pid", pid).Msg("daemon stopped")
	return d.RemovePID()
}

// Spawn re-executes args as a detached child with output appended to logFile.
func Spawn(args []string, logFile string) (int, error) {
	if len(args) == 0 {
		return 0, errors.New("no command to spawn")
	}

	exe, err := os.Executable()
	if err != nil {
		exe = args[0]
	}

	out, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer out.Close()

	procAttr := &os.ProcAttr{
		Env:   append(os.Environ(), ChildEnv+"=1"),
		Files: []*os.File{nil, out, out},
		Sys:   detachedAttr(),
	}

	process, err := os.StartProcess(exe, args, procAttr)
	if err != nil {
		return 0, fmt.Errorf("failed to start daemon process: %w", err)
	}
	pid := process.Pid
	_ = process.Release()
	return pid, nil
}
