package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/actionsum/focustrack/internal/models"
)

// apiClient talks to the local HTTP API of a running daemon.
type apiClient struct {
	http *resty.Client
}

type apiError struct {
	Error string `json:"error"`
}

type daemonStatus struct {
	Tracking        bool       `json:"tracking"`
	ActiveAppsCount int        `json:"active_apps_count"`
	PollInterval    string     `json:"poll_interval"`
	Backend         string     `json:"backend"`
	UserID          string     `json:"user_id"`
	Probe           string     `json:"probe"`
	Idle            bool       `json:"idle"`
	IdleSince       *time.Time `json:"idle_since,omitempty"`
}

func newAPIClient(addr string) *apiClient {
	return &apiClient{
		http: resty.New().
			SetBaseURL("http://"+addr).
			SetHeader("Accept", "application/json").
			SetTimeout(3 * time.Second),
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, result any) error {
	var apiErr apiError
	req := c.http.R().SetContext(ctx).SetError(&apiErr)
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("daemon API unreachable: %w", err)
	}
	if resp.IsError() {
		if apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status())
	}
	return nil
}

func (c *apiClient) Status(ctx context.Context) (*daemonStatus, error) {
	var status daemonStatus
	if err := c.do(ctx, resty.MethodGet, "/api/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Activity returns nil when nothing is focused.
func (c *apiClient) Activity(ctx context.Context) (*models.CurrentActivity, error) {
	var activity *models.CurrentActivity
	if err := c.do(ctx, resty.MethodGet, "/api/activity", &activity); err != nil {
		return nil, err
	}
	return activity, nil
}

// Untrack marks the application untracked and closes its running session.
func (c *apiClient) Untrack(ctx context.Context, appID string) error {
	return c.do(ctx, resty.MethodPost, "/api/apps/"+url.PathEscape(appID)+"/untrack", nil)
}
