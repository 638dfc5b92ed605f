package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/actionsum/focustrack/pkg/detector"
	"github.com/actionsum/focustrack/pkg/utils"
)

var (
	probeInterval time.Duration
	probeDuration time.Duration
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Watch what the foreground probe reports",
	Long: `Sample the focused application repeatedly and print what the probe chain sees.
Switch between applications to check detection on this desktop.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if probeInterval <= 0 {
			return fmt.Errorf("interval must be positive, got %s", probeInterval)
		}

		_, logger, err := loadConfig()
		if err != nil {
			return err
		}

		det, err := detector.New(logger)
		if err != nil {
			return fmt.Errorf("failed to create detector: %w", err)
		}
		defer det.Close()

		fmt.Printf("Display server: %s\n", detector.DetectDisplayServer())
		fmt.Print(det.Status())
		fmt.Println()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		if probeDuration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, probeDuration)
			defer cancel()
		}

		ticker := time.NewTicker(probeInterval)
		defer ticker.Stop()

		dim := color.New(color.Faint)
		for count := 1; ; count++ {
			sampleCtx, cancel := context.WithTimeout(ctx, probeInterval)
			sample, err := det.Sample(sampleCtx)
			cancel()

			switch {
			case err != nil:
				color.Red("[%d] error: %v", count, err)
			case sample == nil:
				dim.Printf("[%d] nothing focused\n", count)
			default:
				auth := color.GreenString("authoritative")
				if !sample.Authoritative {
					auth = color.YellowString("heuristic")
				}
				fmt.Printf("[%d] %-24s key: %-20s pid: %-7d via %s (%s)\n",
					count,
					utils.Truncate(sample.DisplayName, 24),
					utils.Truncate(sample.MatchKey, 20),
					sample.PID,
					sample.Source,
					auth,
				)
			}

			select {
			case <-ctx.Done():
				fmt.Println("\nDone.")
				return nil
			case <-ticker.C:
			}
		}
	},
}

func init() {
	probeCmd.Flags().DurationVar(&probeInterval, "interval", 2*time.Second, "Time between samples")
	probeCmd.Flags().DurationVar(&probeDuration, "duration", 30*time.Second, "Stop after this long (0 runs until interrupted)")
	rootCmd.AddCommand(probeCmd)
}
