package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/actionsum/focustrack/internal/config"
	"github.com/actionsum/focustrack/internal/daemon"
	"github.com/actionsum/focustrack/pkg/utils"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the tracking daemon in the background",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if err := applyRunFlags(cfg); err != nil {
			return err
		}

		if daemon.IsChild() {
			return runForeground(cfg, logger)
		}

		dm := daemon.New(cfg.Daemon.PIDFile, logger)
		running, pid, err := dm.IsRunning()
		if err != nil {
			return fmt.Errorf("failed to check daemon status: %w", err)
		}
		if running {
			return fmt.Errorf("daemon is already running (PID: %d)", pid)
		}

		pid, err = daemon.Spawn(os.Args, cfg.Daemon.LogFile)
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen, color.Bold)
		green.Printf("Daemon started (PID: %d)\n", pid)
		if cfg.Web.Enabled {
			fmt.Printf("Web API: http://%s\n", cfg.WebAddr())
		}
		fmt.Printf("Logs:    %s\n", cfg.Daemon.LogFile)
		return nil
	},
}

var stopTimeout time.Duration

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the tracking daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		dm := daemon.New(cfg.Daemon.PIDFile, logger)
		if err := dm.Stop(stopTimeout); err != nil {
			if errors.Is(err, daemon.ErrNotRunning) {
				color.Yellow("Daemon is not running")
				return nil
			}
			return err
		}

		color.Green("Daemon stopped")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status and the current activity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		dm := daemon.New(cfg.Daemon.PIDFile, logger)
		running, pid, err := dm.IsRunning()
		if err != nil {
			return fmt.Errorf("failed to check daemon status: %w", err)
		}

		if !running {
			fmt.Print("Status:  ")
			color.Red("not running")
			return nil
		}

		fmt.Print("Status:  ")
		color.Green("running (PID: %d)", pid)

		if !cfg.Web.Enabled {
			fmt.Println("Web API disabled, no live details available")
			return nil
		}

		return printLiveStatus(cmd.Context(), cfg)
	},
}

func init() {
	addRunFlags(startCmd)
	stopCmd.Flags().DurationVar(&stopTimeout, "timeout", 15*time.Second, "How long to wait for the daemon to exit")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
}

func printLiveStatus(ctx context.Context, cfg *config.Config) error {
	client := newAPIClient(cfg.WebAddr())

	status, err := client.Status(ctx)
	if err != nil {
		color.Yellow("Could not query daemon: %v", err)
		return nil
	}

	bold := color.New(color.Bold)
	fmt.Print("Tracking: ")
	if status.Tracking {
		color.Green("on")
	} else {
		color.Yellow("off")
	}
	fmt.Printf("Backend:  %s (user %s)\n", status.Backend, status.UserID)
	fmt.Printf("Probe:    %s\n", status.Probe)
	fmt.Printf("Interval: %s\n", status.PollInterval)
	if status.Idle && status.IdleSince != nil {
		color.Yellow("Idle since %s", status.IdleSince.Local().Format("15:04:05"))
	}

	activity, err := client.Activity(ctx)
	if err != nil {
		color.Yellow("Current activity unavailable: %v", err)
		return nil
	}

	fmt.Println()
	if activity == nil {
		fmt.Println("Nothing focused")
		return nil
	}

	bold.Printf("Current: %s", utils.Truncate(activity.AppName, 40))
	fmt.Printf(" [%s]\n", activity.AppCategory)
	if activity.IsActive {
		fmt.Printf("Session: %s since %s\n",
			utils.FormatDuration(activity.DurationMinutes*60),
			activity.StartTime.Local().Format("15:04"))
	} else {
		fmt.Println("Session: not tracked")
	}
	fmt.Printf("Open sessions: %d\n", activity.ActiveAppsCount)
	return nil
}
