package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/actionsum/focustrack/internal/config"
	"github.com/actionsum/focustrack/internal/logging"
	"github.com/actionsum/focustrack/internal/models"
	"github.com/actionsum/focustrack/internal/reporter"
	"github.com/actionsum/focustrack/internal/storage"
	"github.com/actionsum/focustrack/internal/tracker"
	"github.com/actionsum/focustrack/pkg/utils"
)

// AppManager flips the tracked flag of stored applications. Both persistence
// backends implement it.
type AppManager interface {
	SetTracked(ctx context.Context, userID, appID string, tracked bool) error
}

type Handler struct {
	config   *config.Config
	tracker  *tracker.Tracker
	reporter *reporter.Reporter
	apps     AppManager
	logger   zerolog.Logger
}

// NewHandler wires the HTTP surface. apps may be nil, in which case untracking only
// closes the running session.
func NewHandler(cfg *config.Config, t *tracker.Tracker, rep *reporter.Reporter, apps AppManager, logger zerolog.Logger) *Handler {
	return &Handler{
		config:   cfg,
		tracker:  t,
		reporter: rep,
		apps:     apps,
		logger:   logging.Component(logger, "web"),
	}
}

func (h *Handler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/activity", h.handleActivity)
	mux.HandleFunc("GET /api/activity/count", h.handleActivityCount)

	mux.HandleFunc("POST /api/tracking/start", h.handleStart)
	mux.HandleFunc("POST /api/tracking/stop", h.handleStop)
	mux.HandleFunc("POST /api/tracking/tick", h.handleTick)

	mux.HandleFunc("POST /api/apps/untrack", h.handleUntrackByKey)
	mux.HandleFunc("POST /api/apps/{id}/untrack", h.handleUntrackByID)

	mux.HandleFunc("GET /api/report", h.handleReport)
	mux.HandleFunc("GET /api/summary", h.handleSummary)
	mux.HandleFunc("GET /api/status", h.handleStatus)

	mux.HandleFunc("GET /health", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
}

func (h *Handler) handleActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := h.tracker.CurrentActivity(r.Context())
	if err != nil {
		h.respondError(w, "activity", err)
		return
	}
	respondJSON(w, activity)
}

func (h *Handler) handleActivityCount(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]int{"active_apps_count": h.tracker.ActiveCount()})
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.StartTracking(r.Context()); err != nil {
		h.respondError(w, "start", err)
		return
	}
	respondJSON(w, map[string]any{"status": "started", "tracking": true})
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.StopTracking(r.Context()); err != nil {
		h.respondError(w, "stop", err)
		return
	}
	respondJSON(w, map[string]any{"status": "stopped", "tracking": false})
}

func (h *Handler) handleTick(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.Tick(r.Context()); err != nil {
		h.respondError(w, "tick", err)
		return
	}
	respondJSON(w, map[string]any{
		"status":            "ok",
		"active_apps_count": h.tracker.ActiveCount(),
	})
}

func (h *Handler) handleUntrackByKey(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.URL.Query().Get("match_key"))
	if key == "" {
		respondStatus(w, http.StatusBadRequest, errorBody("match_key is required"))
		return
	}
	app, err := h.tracker.ResolveApp(r.Context(), key)
	if err != nil {
		h.respondError(w, "untrack", err)
		return
	}
	if !h.untrack(w, r, app.ID) {
		return
	}
	respondJSON(w, map[string]string{"status": "ok", "app_id": app.ID, "match_key": app.MatchKey})
}

func (h *Handler) handleUntrackByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.untrack(w, r, id) {
		return
	}
	respondJSON(w, map[string]string{"status": "ok", "app_id": id})
}

// untrack marks the application untracked so the next tick leaves it alone, then
// closes its running session.
func (h *Handler) untrack(w http.ResponseWriter, r *http.Request, appID string) bool {
	if h.apps != nil {
		if err := h.apps.SetTracked(r.Context(), h.config.Tracker.UserID, appID, false); err != nil {
			h.respondError(w, "untrack", err)
			return false
		}
	}
	if err := h.tracker.StopTrackingForAppByID(r.Context(), appID); err != nil {
		h.respondError(w, "untrack", err)
		return false
	}
	return true
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	report, ok := h.report(w, r)
	if !ok {
		return
	}
	respondJSON(w, report)
}

// handleSummary serves the report as an HTML fragment for HTMX clients and as JSON otherwise.
func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	report, ok := h.report(w, r)
	if !ok {
		return
	}

	if r.Header.Get("HX-Request") != "true" {
		respondJSON(w, report)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if len(report.Apps) == 0 {
		w.Write([]byte(`<div class="loading">No data available</div>`))
		return
	}

	var b strings.Builder
	b.WriteString(`<div class="listing">`)
	for _, app := range report.Apps {
		fmt.Fprintf(&b, `
		<div class="app-item" style="--bar-width: %.1f%%">
			<span class="app-name">%s</span>
			<div>
				<span class="app-time">%s</span>
				<span class="app-percentage">%.1f%%</span>
			</div>
		</div>`, app.Percentage, html.EscapeString(app.AppName), utils.FormatDuration(app.TotalSeconds), app.Percentage)
	}
	b.WriteString(`</div>`)
	fmt.Fprintf(&b, `<div class="total">Total: %s</div>`, utils.FormatDuration(report.TotalSeconds))

	w.Write([]byte(b.String()))
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) (*models.Report, bool) {
	periodType := r.URL.Query().Get("period")
	if periodType == "" {
		periodType = "day"
	}

	if err := reporter.ValidatePeriod(periodType); err != nil {
		respondStatus(w, http.StatusBadRequest, errorBody(err.Error()))
		return nil, false
	}

	report, err := h.reporter.GenerateReport(r.Context(), periodType)
	if err != nil {
		h.respondError(w, "report", err)
		return nil, false
	}
	return report, true
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"running":           true,
		"tracking":          h.tracker.IsTracking(),
		"active_apps_count": h.tracker.ActiveCount(),
		"poll_interval":     h.config.Tracker.PollInterval.String(),
		"backend":           h.config.Backend,
		"user_id":           h.config.Tracker.UserID,
		"probe":             h.tracker.ProbeName(),
		"idle":              false,
	}

	if since, idle := h.tracker.IdleSince(); idle {
		status["idle"] = true
		status["idle_since"] = since
	}

	respondJSON(w, status)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// statusFor maps tracker and storage errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, tracker.ErrNotTracking), errors.Is(err, tracker.ErrAlreadyTracking):
		return http.StatusConflict
	case errors.Is(err, storage.ErrApplicationNotFound):
		return http.StatusNotFound
	case errors.Is(err, tracker.ErrCollaboratorUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("op", op).Int("status", status).Msg("request failed")
	} else {
		h.logger.Debug().Err(err).Str("op", op).Int("status", status).Msg("request rejected")
	}
	respondStatus(w, status, errorBody(err.Error()))
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func respondJSON(w http.ResponseWriter, data any) {
	respondStatus(w, http.StatusOK, data)
}

func respondStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	body, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}
