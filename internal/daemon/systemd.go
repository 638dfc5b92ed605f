package daemon

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/coreos/go-systemd/v22/activation"
	sddaemon "github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"
)

// NotifyReady sends READY=1 to systemd. Outside a notify unit it reports false.
func NotifyReady() (bool, error) {
	sent, err := sddaemon.SdNotify(false, sddaemon.SdNotifyReady)
	if err != nil {
		return false, fmt.Errorf("failed to send sd_notify: %w", err)
	}
	return sent, nil
}

// NotifyStopping sends STOPPING=1 to systemd.
func NotifyStopping() (bool, error) {
	sent, err := sddaemon.SdNotify(false, sddaemon.SdNotifyStopping)
	if err != nil {
		return false, fmt.Errorf("failed to send sd_notify stopping: %w", err)
	}
	return sent, nil
}

// RunWatchdog pings the systemd watchdog at half its interval until ctx is done.
// It returns immediately when the unit has no watchdog configured.
func RunWatchdog(ctx context.Context, logger zerolog.Logger) {
	interval, err := sddaemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid watchdog configuration")
		return
	}
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := sddaemon.SdNotify(false, sddaemon.SdNotifyWatchdog); err != nil {
				logger.Warn().Err(err).Msg("watchdog notification failed")
			}
		}
	}
}

// ActivatedListener returns the first socket passed by systemd socket activation,
// or nil when the process was not socket activated.
func ActivatedListener() (net.Listener, error) {
	listeners, err := activation.Listeners()
	if err != nil {
		return nil, fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	for _, ln := range listeners {
		if ln != nil {
			return ln, nil
		}
	}
	return nil, nil
}
