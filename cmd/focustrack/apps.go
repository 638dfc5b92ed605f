package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/actionsum/focustrack/internal/daemon"
	"github.com/actionsum/focustrack/internal/models"
	"github.com/actionsum/focustrack/internal/storage"
	"github.com/actionsum/focustrack/internal/tracker"
	"github.com/actionsum/focustrack/pkg/focus"
)

var (
	trackMatchKey string
	trackCategory string
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "Manage tracked applications",
}

var appsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List applications",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		be, err := openBackend(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer be.close()

		apps, err := be.collab.ListTrackedApplications(cmd.Context(), cfg.Tracker.UserID)
		if err != nil {
			return err
		}
		if len(apps) == 0 {
			fmt.Println("No applications registered. Add one with: focustrack apps track <name>")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tMATCH KEY\tCATEGORY\tTRACKED")
		for i := range apps {
			app := &apps[i]
			tracked := color.GreenString("yes")
			if !app.IsTracked {
				tracked = color.YellowString("no")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", app.ID, app.DisplayName, app.MatchKey, tracker.Categorize(app), tracked)
		}
		return w.Flush()
	},
}

var appsTrackCmd = &cobra.Command{
	Use:   "track NAME",
	Short: "Start tracking an application",
	Example: `  focustrack apps track "Visual Studio Code" --key code
  focustrack apps track firefox --category Browser`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		be, err := openBackend(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer be.close()

		if be.registrar == nil {
			return fmt.Errorf("the %s backend does not support registering applications", cfg.Backend)
		}

		key := trackMatchKey
		if key == "" {
			key = args[0]
		}
		app, err := be.registrar.UpsertApplication(cmd.Context(), cfg.Tracker.UserID, args[0], key, trackCategory)
		if err != nil {
			return err
		}

		color.Green("Tracking %s (match key %q, id %s)", app.DisplayName, app.MatchKey, app.ID)
		return nil
	},
}

var appsUntrackCmd = &cobra.Command{
	Use:   "untrack ID|MATCH_KEY",
	Short: "Stop tracking an application and close its running session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		be, err := openBackend(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer be.close()

		app, err := resolveApp(cmd.Context(), be, cfg.Tracker.UserID, args[0])
		if err != nil {
			return err
		}

		// A running daemon has to close the open session itself.
		running, _, _ := daemon.New(cfg.Daemon.PIDFile, logger).IsRunning()
		if running && cfg.Web.Enabled {
			err := newAPIClient(cfg.WebAddr()).Untrack(cmd.Context(), app.ID)
			if err == nil {
				color.Green("Stopped tracking %s", app.DisplayName)
				return nil
			}
			logger.Warn().Err(err).Msg("daemon did not accept untrack, updating the store directly")
		}

		if err := be.apps.SetTracked(cmd.Context(), cfg.Tracker.UserID, app.ID, false); err != nil {
			return err
		}
		color.Green("Stopped tracking %s", app.DisplayName)
		return nil
	},
}

func init() {
	appsTrackCmd.Flags().StringVar(&trackMatchKey, "key", "", "Process or bundle name to match (default: NAME)")
	appsTrackCmd.Flags().StringVar(&trackCategory, "category", "", "Category shown in reports (default: derived from the name)")

	appsCmd.AddCommand(appsListCmd, appsTrackCmd, appsUntrackCmd)
	rootCmd.AddCommand(appsCmd)
}

// resolveApp finds an application by id, or by match key for stores that only list apps.
func resolveApp(ctx context.Context, be *backend, userID, idOrKey string) (*models.TrackedApplication, error) {
	if finder, ok := be.collab.(interface {
		FindApplication(ctx context.Context, userID, idOrKey string) (*models.TrackedApplication, error)
	}); ok {
		return finder.FindApplication(ctx, userID, idOrKey)
	}

	apps, err := be.collab.ListTrackedApplications(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range apps {
		if apps[i].ID == idOrKey || focus.ExactMatch(apps[i].MatchKey, idOrKey) {
			return &apps[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", storage.ErrApplicationNotFound, idOrKey)
}
