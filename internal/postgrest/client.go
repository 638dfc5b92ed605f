// Package postgrest implements the persistence collaborator on top of a
// Supabase-style PostgREST API.
package postgrest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/actionsum/focustrack/internal/config"
	"github.com/actionsum/focustrack/internal/models"
	"github.com/actionsum/focustrack/internal/storage"
)

const (
	tableApplications = "/applications"
	tableTimeEntries  = "/time_entries"
)

type applicationRow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ProcessName string    `json:"process_name"`
	Category    *string   `json:"category"`
	IsTracked   bool      `json:"is_tracked"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r applicationRow) model() models.TrackedApplication {
	app := models.TrackedApplication{
		ID:          r.ID,
		UserID:      r.UserID,
		DisplayName: r.Name,
		MatchKey:    r.ProcessName,
		IsTracked:   r.IsTracked,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.Category != nil {
		app.Category = *r.Category
	}
	return app
}

type timeEntryRow struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	AppID           *string    `json:"app_id"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	DurationSeconds *int64     `json:"duration_seconds"`
	IsActive        bool       `json:"is_active"`
}

func (r timeEntryRow) model() models.TimeSession {
	s := models.TimeSession{
		ID:              r.ID,
		UserID:          r.UserID,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		DurationSeconds: r.DurationSeconds,
		IsActive:        r.IsActive,
	}
	if r.AppID != nil {
		s.AppID = *r.AppID
	}
	return s
}

// Client talks to the applications and time_entries tables.
type Client struct {
	http   *resty.Client
	logger zerolog.Logger
}

var (
	_ storage.Collaborator  = (*Client)(nil)
	_ storage.SummarySource = (*Client)(nil)
)

// New builds a client for cfg. The access token, when set, authenticates as the user;
// otherwise the anon key is sent as bearer token.
func New(cfg config.PostgRESTConfig, logger zerolog.Logger) *Client {
	token := cfg.AccessToken
	if token == "" {
		token = cfg.AnonKey
	}

	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")+"/rest/v1").
		SetHeader("apikey", cfg.AnonKey).
		SetHeader("Accept", "application/json").
		SetAuthToken(token)
	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
	}

	return &Client{
		http:   c,
		logger: logger.With().Str("component", "postgrest").Logger(),
	}
}

func eq(v string) string {
	return "eq." + v
}

// send executes the request and maps transport failures and error statuses onto the
// storage sentinels.
func (c *Client) send(req *resty.Request, method, path string) (*resty.Response, error) {
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", storage.ErrUnavailable, method, path, err)
	}
	if resp.IsError() {
		c.logger.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode()).
			Msg("request rejected")
		if resp.StatusCode() == http.StatusNotFound {
			return resp, fmt.Errorf("%w: %s %s", storage.ErrSessionNotFound, method, path)
		}
		return resp, fmt.Errorf("%w: %s %s: HTTP %d: %s",
			storage.ErrUnavailable, method, path, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return resp, nil
}

// Ping checks that the REST root answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.send(c.http.R().SetContext(ctx), resty.MethodGet, "/")
	return err
}

func (c *Client) ListTrackedApplications(ctx context.Context, userID string) ([]models.TrackedApplication, error) {
	var rows []applicationRow
	req := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"user_id":    eq(userID),
			"is_tracked": eq("true"),
			"order":      "created_at.asc",
		}).
		SetResult(&rows)
	if _, err := c.send(req, resty.MethodGet, tableApplications); err != nil {
		return nil, err
	}

	apps := make([]models.TrackedApplication, len(rows))
	for i, r := range rows {
		apps[i] = r.model()
	}
	return apps, nil
}

func (c *Client) FindOpenSession(ctx context.Context, userID, appID string) (*models.TimeSession, error) {
	var rows []timeEntryRow
	req := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"user_id":   eq(userID),
			"app_id":    eq(appID),
			"is_active": eq("true"),
			"order":     "start_time.desc",
			"limit":     "1",
		}).
		SetResult(&rows)
	if _, err := c.send(req, resty.MethodGet, tableTimeEntries); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	s := rows[0].model()
	return &s, nil
}

func (c *Client) CreateSession(ctx context.Context, userID, appID string, start time.Time) (*models.TimeSession, error) {
	now := time.Now().UTC()
	body := map[string]any{
		"id":               uuid.NewString(),
		"user_id":          userID,
		"app_id":           appID,
		"task_id":          nil,
		"start_time":       start.UTC(),
		"end_time":         nil,
		"duration_seconds": nil,
		"is_active":        true,
		"created_at":       now,
		"updated_at":       now,
	}

	var rows []timeEntryRow
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(body).
		SetResult(&rows)
	if _, err := c.send(req, resty.MethodPost, tableTimeEntries); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: create session returned no rows", storage.ErrUnavailable)
	}
	s := rows[0].model()
	return &s, nil
}

func (c *Client) UpdateSession(ctx context.Context, sessionID string, end time.Time, durationSeconds int64, active bool) (*models.TimeSession, error) {
	body := map[string]any{
		"end_time":         end.UTC(),
		"duration_seconds": durationSeconds,
		"is_active":        active,
		"updated_at":       time.Now().UTC(),
	}

	var rows []timeEntryRow
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParam("id", eq(sessionID)).
		SetBody(body).
		SetResult(&rows)
	if _, err := c.send(req, resty.MethodPatch, tableTimeEntries); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", storage.ErrSessionNotFound, sessionID)
	}
	s := rows[0].model()
	return &s, nil
}

func (c *Client) ListOpenSessions(ctx context.Context, userID string) ([]models.TimeSession, error) {
	var rows []timeEntryRow
	req := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"user_id":   eq(userID),
			"is_active": eq("true"),
			"order":     "start_time.asc",
		}).
		SetResult(&rows)
	if _, err := c.send(req, resty.MethodGet, tableTimeEntries); err != nil {
		return nil, err
	}

	sessions := make([]models.TimeSession, len(rows))
	for i, r := range rows {
		sessions[i] = r.model()
	}
	return sessions, nil
}

// SetTracked flips is_tracked on one of the user's applications.
func (c *Client) SetTracked(ctx context.Context, userID, appID string, tracked bool) error {
	var rows []applicationRow
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParams(map[string]string{
			"id":      eq(appID),
			"user_id": eq(userID),
		}).
		SetBody(map[string]any{"is_tracked": tracked, "updated_at": time.Now().UTC()}).
		SetResult(&rows)
	if _, err := c.send(req, resty.MethodPatch, tableApplications); err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: %q", storage.ErrApplicationNotFound, appID)
	}
	return nil
}
