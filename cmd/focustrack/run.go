package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/actionsum/focustrack/internal/cache"
	"github.com/actionsum/focustrack/internal/clock"
	"github.com/actionsum/focustrack/internal/config"
	"github.com/actionsum/focustrack/internal/daemon"
	"github.com/actionsum/focustrack/internal/reporter"
	"github.com/actionsum/focustrack/internal/tracker"
	"github.com/actionsum/focustrack/internal/version"
	"github.com/actionsum/focustrack/internal/web"
	"github.com/actionsum/focustrack/pkg/detector"
)

var (
	runNoWeb        bool
	runPort         int
	runPollInterval time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the tracker in the foreground",
	Long: `Run the tracking loop and the local HTTP API in the foreground until interrupted.
Open sessions are closed on shutdown. Suitable for systemd Type=notify units.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if err := applyRunFlags(cfg); err != nil {
			return err
		}
		return runForeground(cfg, logger)
	},
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&runNoWeb, "no-web", false, "Do not serve the local HTTP API")
	cmd.Flags().IntVarP(&runPort, "port", "p", 0, "Override the web API port")
	cmd.Flags().DurationVar(&runPollInterval, "poll-interval", 0, "Override the poll interval (e.g. 10s)")
}

func applyRunFlags(cfg *config.Config) error {
	if runNoWeb {
		cfg.Web.Enabled = false
	}
	if runPort > 0 {
		if err := cfg.SetWebPort(runPort); err != nil {
			return err
		}
	}
	if runPollInterval > 0 {
		if err := cfg.SetPollInterval(runPollInterval); err != nil {
			return err
		}
	}
	return nil
}

func runForeground(cfg *config.Config, logger zerolog.Logger) error {
	dm := daemon.New(cfg.Daemon.PIDFile, logger)
	running, pid, err := dm.IsRunning()
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}
	if running && pid != os.Getpid() {
		return fmt.Errorf("daemon is already running (PID: %d)", pid)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("version", version.Version).
		Str("backend", cfg.Backend).
		Msg("starting focustrack")
	logger.Debug().Msgf("configuration:\n%s", cfg.String())

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.close(); err != nil {
			logger.Error().Err(err).Msg("failed to close backend")
		}
	}()

	det, err := detector.New(logger)
	if err != nil {
		return fmt.Errorf("failed to initialize focus detector: %w", err)
	}
	defer det.Close()
	logger.Info().Str("display_server", detector.DetectDisplayServer()).Msg(det.Status())

	opts := []tracker.Option{tracker.WithLogger(logger)}
	if be.recorder != nil {
		opts = append(opts, tracker.WithErrorRecorder(be.recorder))
	}
	if cfg.Redis.Enabled {
		mirror, err := cache.Open(cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("activity mirror disabled")
		} else {
			defer mirror.Close()
			opts = append(opts, tracker.WithSnapshotSink(mirror))
			logger.Info().Str("key", cache.Key(cfg.Tracker.UserID)).Msg("mirroring activity to Redis")
		}
	}

	tr := tracker.NewService(cfg.Tracker, be.collab, det, opts...)

	if err := dm.WritePID(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer dm.RemovePID()

	var server *web.Server
	serverErr := make(chan error, 1)
	if cfg.Web.Enabled {
		rep := reporter.New(be.summaries, cfg.Tracker.UserID, cfg.Report.TimeZone, clock.System{})
		server = web.NewServer(cfg, web.NewHandler(cfg, tr, rep, be.apps, logger), logger)

		ln, err := daemon.ActivatedListener()
		if err != nil {
			return err
		}
		go func() {
			if ln != nil {
				logger.Info().Msg("serving on systemd-activated socket")
				serverErr <- server.Serve(ln)
				return
			}
			serverErr <- server.Start()
		}()
	}

	if err := tr.StartTracking(ctx); err != nil {
		if server == nil {
			return err
		}
		// The API stays up so tracking can be started once the backend recovers.
		logger.Error().Err(err).Msg("tracking not started")
	}

	if _, err := daemon.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("failed to send systemd ready notification")
	}
	go daemon.RunWatchdog(ctx, logger)

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("web server failed")
		}
	}

	if _, err := daemon.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("failed to send systemd stopping notification")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("error shutting down web server")
		}
	}

	if err := tr.StopTracking(shutdownCtx); err != nil && !errors.Is(err, tracker.ErrNotTracking) {
		logger.Error().Err(err).Msg("failed to close open sessions")
		return err
	}

	logger.Info().Msg("focustrack stopped")
	return nil
}
