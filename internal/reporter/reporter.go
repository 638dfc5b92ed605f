package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/actionsum/focustrack/internal/clock"
	"github.com/actionsum/focustrack/internal/models"
	"github.com/actionsum/focustrack/internal/storage"
	"github.com/actionsum/focustrack/internal/tracker"
	"github.com/actionsum/focustrack/pkg/utils"
)

// Reporter handles report generation
type Reporter struct {
	source storage.SummarySource
	userID string
	loc    *time.Location
	clock  clock.Clock
}

// New creates a reporter. An unknown time zone falls back to the local one.
func New(source storage.SummarySource, userID, timeZone string, clk clock.Clock) *Reporter {
	loc, err := time.LoadLocation(timeZone)
	if err != nil || timeZone == "" {
		loc = time.Local
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Reporter{source: source, userID: userID, loc: loc, clock: clk}
}

// GenerateReport generates a report for the specified period
func (r *Reporter) GenerateReport(ctx context.Context, periodType string) (*models.Report, error) {
	now := r.clock.Now().In(r.loc)

	period, err := GetPeriod(periodType, now)
	if err != nil {
		return nil, err
	}

	summaries, err := r.source.SessionSummarySince(ctx, r.userID, period.Start, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get app summary: %w", err)
	}

	var totalSeconds int64
	for i := range summaries {
		if summaries[i].Category == "" {
			summaries[i].Category = tracker.CategorizeName(summaries[i].AppName)
		}
		summaries[i].TotalMinutes = float64(summaries[i].TotalSeconds) / 60.0
		summaries[i].TotalHours = float64(summaries[i].TotalSeconds) / 3600.0
		totalSeconds += summaries[i].TotalSeconds
	}

	if totalSeconds > 0 {
		for i := range summaries {
			summaries[i].Percentage = (float64(summaries[i].TotalSeconds) / float64(totalSeconds)) * 100.0
		}
	}

	return &models.Report{
		Period:       *period,
		Apps:         summaries,
		TotalSeconds: totalSeconds,
		TotalMinutes: float64(totalSeconds) / 60.0,
		TotalHours:   float64(totalSeconds) / 3600.0,
		GeneratedAt:  now,
	}, nil
}

// ValidatePeriod rejects period names GetPeriod does not know.
func ValidatePeriod(periodType string) error {
	switch periodType {
	case "day", "today", "week", "month":
		return nil
	}
	return fmt.Errorf("invalid period type: %s (valid: day, week, month)", periodType)
}

// GetPeriod calculates the time range of a day, week (from Monday) or month containing now.
func GetPeriod(periodType string, now time.Time) (*models.ReportPeriod, error) {
	var start, end time.Time
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch periodType {
	case "day", "today":
		periodType = "day"
		start = midnight
		end = start.AddDate(0, 0, 1)

	case "week":
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday = 7
		}
		start = midnight.AddDate(0, 0, -(weekday - 1))
		end = start.AddDate(0, 0, 7)

	case "month":
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		end = start.AddDate(0, 1, 0)

	default:
		return nil, ValidatePeriod(periodType)
	}

	return &models.ReportPeriod{
		Start: start,
		End:   end,
		Type:  periodType,
	}, nil
}

// FormatReportText formats the report as human-readable text
func FormatReportText(report *models.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Activity Report - %s\n", report.Period.Type)
	fmt.Fprintf(&b, "Period: %s to %s\n",
		report.Period.Start.Format("2006-01-02 15:04"),
		report.Period.End.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Total Time: %s\n\n", utils.FormatDuration(report.TotalSeconds))

	if len(report.Apps) == 0 {
		b.WriteString("No activity recorded for this period.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%-30s %-14s %10s %9s %8s\n", "Application", "Category", "Time", "Sessions", "Percent")
	b.WriteString(strings.Repeat("-", 75) + "\n")

	for _, app := range report.Apps {
		fmt.Fprintf(&b, "%-30s %-14s %10s %9d %7.1f%%\n",
			utils.Truncate(app.AppName, 30),
			utils.Truncate(app.Category, 14),
			utils.FormatDuration(app.TotalSeconds),
			app.SessionCount,
			app.Percentage)
	}

	return b.String()
}

// FormatReportJSON formats the report as JSON
func FormatReportJSON(report *models.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}
