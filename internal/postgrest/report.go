package postgrest

import (
	"context"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/actionsum/focustrack/internal/models"
)

// SessionSummarySince aggregates closed sessions started at or after since, plus the
// part of every open session that falls inside the window.
func (c *Client) SessionSummarySince(ctx context.Context, userID string, since, now time.Time) ([]models.AppSummary, error) {
	var closed []timeEntryRow
	req := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"user_id":    eq(userID),
			"is_active":  eq("false"),
			"start_time": "gte." + since.UTC().Format(time.RFC3339),
		}).
		SetResult(&closed)
	if _, err := c.send(req, resty.MethodGet, tableTimeEntries); err != nil {
		return nil, err
	}

	open, err := c.ListOpenSessions(ctx, userID)
	if err != nil {
		return nil, err
	}

	var apps []applicationRow
	req = c.http.R().
		SetContext(ctx).
		SetQueryParam("user_id", eq(userID)).
		SetResult(&apps)
	if _, err := c.send(req, resty.MethodGet, tableApplications); err != nil {
		return nil, err
	}

	names := make(map[string]models.TrackedApplication, len(apps))
	for _, a := range apps {
		names[a.ID] = a.model()
	}

	byApp := map[string]*models.AppSummary{}
	add := func(appID string, seconds int64) {
		if seconds <= 0 {
			return
		}
		s, ok := byApp[appID]
		if !ok {
			app, known := names[appID]
			if !known {
				return
			}
			s = &models.AppSummary{AppID: appID, AppName: app.DisplayName, Category: app.Category}
			byApp[appID] = s
		}
		s.TotalSeconds += seconds
		s.SessionCount++
	}

	for _, r := range closed {
		if r.AppID == nil || r.DurationSeconds == nil {
			continue
		}
		add(*r.AppID, *r.DurationSeconds)
	}
	for _, s := range open {
		from := s.StartTime
		if from.Before(since) {
			from = since
		}
		add(s.AppID, int64(now.Sub(from)/time.Second))
	}

	out := make([]models.AppSummary, 0, len(byApp))
	for _, s := range byApp {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalSeconds != out[j].TotalSeconds {
			return out[i].TotalSeconds > out[j].TotalSeconds
		}
		return out[i].AppName < out[j].AppName
	})
	return out, nil
}
