package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/actionsum/focustrack/internal/clock"
	"github.com/actionsum/focustrack/internal/reporter"
)

var reportJSON bool

var reportCmd = &cobra.Command{
	Use:       "report [day|week|month]",
	Short:     "Print time spent per application",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"day", "today", "week", "month"},
	Example: `  focustrack report
  focustrack report week --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		periodType := "day"
		if len(args) > 0 {
			periodType = args[0]
		}

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()

		be, err := openBackend(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer be.close()

		rep := reporter.New(be.summaries, cfg.Tracker.UserID, cfg.Report.TimeZone, clock.System{})
		report, err := rep.GenerateReport(ctx, periodType)
		if err != nil {
			return fmt.Errorf("failed to generate report: %w", err)
		}

		if reportJSON {
			out, err := reporter.FormatReportJSON(report)
			if err != nil {
				return fmt.Errorf("failed to format JSON: %w", err)
			}
			fmt.Println(out)
			return nil
		}

		fmt.Println(reporter.FormatReportText(report))
		return nil
	},
}

func init() {
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Print the report as JSON")
	rootCmd.AddCommand(reportCmd)
}
