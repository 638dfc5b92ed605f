package database

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/actionsum/focustrack/internal/models"
	"github.com/actionsum/focustrack/internal/storage"
	"github.com/actionsum/focustrack/pkg/focus"
)

// Repository is the local persistence collaborator: tracked applications, time
// sessions and the error log, all in SQLite.
type Repository struct {
	db *DB
}

var (
	_ storage.Collaborator  = (*Repository)(nil)
	_ storage.ErrorRecorder = (*Repository)(nil)
	_ storage.SummarySource = (*Repository)(nil)
)

// NewRepository creates a new repository instance
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

func unavailable(err error, msg string) error {
	return errors.Wrapf(storage.ErrUnavailable, "%s: %v", msg, err)
}

// ListTrackedApplications returns every application of the user, tracked or not,
// oldest first.
func (r *Repository) ListTrackedApplications(ctx context.Context, userID string) ([]models.TrackedApplication, error) {
	var apps []models.TrackedApplication
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&apps)
	if result.Error != nil {
		return nil, unavailable(result.Error, "failed to list applications")
	}
	return apps, nil
}

// FindOpenSession returns the active session for the app, or nil.
func (r *Repository) FindOpenSession(ctx context.Context, userID, appID string) (*models.TimeSession, error) {
	var s models.TimeSession
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND app_id = ? AND is_active = ?", userID, appID, true).
		Order("start_time DESC").
		First(&s)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, unavailable(result.Error, "failed to find open session")
	}
	return &s, nil
}

func (r *Repository) CreateSession(ctx context.Context, userID, appID string, start time.Time) (*models.TimeSession, error) {
	s := &models.TimeSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		AppID:     appID,
		StartTime: start.UTC(),
		IsActive:  true,
	}
	if result := r.db.WithContext(ctx).Create(s); result.Error != nil {
		return nil, unavailable(result.Error, "failed to insert session")
	}
	return s, nil
}

// UpdateSession writes the end of a session. Unknown ids yield storage.ErrSessionNotFound.
func (r *Repository) UpdateSession(ctx context.Context, sessionID string, end time.Time, durationSeconds int64, active bool) (*models.TimeSession, error) {
	db := r.db.WithContext(ctx)
	result := db.Model(&models.TimeSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]any{
			"end_time":         end.UTC(),
			"duration_seconds": durationSeconds,
			"is_active":        active,
		})
	if result.Error != nil {
		return nil, unavailable(result.Error, "failed to update session")
	}
	if result.RowsAffected == 0 {
		return nil, errors.Wrapf(storage.ErrSessionNotFound, "session %s", sessionID)
	}

	var s models.TimeSession
	if err := db.First(&s, "id = ?", sessionID).Error; err != nil {
		return nil, unavailable(err, "failed to reload session")
	}
	return &s, nil
}

func (r *Repository) ListOpenSessions(ctx context.Context, userID string) ([]models.TimeSession, error) {
	var sessions []models.TimeSession
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("start_time ASC").
		Find(&sessions)
	if result.Error != nil {
		return nil, unavailable(result.Error, "failed to list open sessions")
	}
	return sessions, nil
}

// UpsertApplication registers matchKey for the user, or re-enables and renames an
// existing entry with the same normalized key.
func (r *Repository) UpsertApplication(ctx context.Context, userID, displayName, matchKey, category string) (*models.TrackedApplication, error) {
	key := focus.Normalize(matchKey)
	if key == "" {
		return nil, errors.New("match key cannot be empty")
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = matchKey
	}

	db := r.db.WithContext(ctx)

	var app models.TrackedApplication
	err := db.Where("user_id = ? AND match_key = ?", userID, key).First(&app).Error
	switch {
	case err == nil:
		app.DisplayName = displayName
		app.IsTracked = true
		if category != "" {
			app.Category = category
		}
		if err := db.Save(&app).Error; err != nil {
			return nil, unavailable(err, "failed to update application")
		}
		return &app, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		app = models.TrackedApplication{
			ID:          uuid.NewString(),
			UserID:      userID,
			DisplayName: displayName,
			MatchKey:    key,
			Category:    category,
			IsTracked:   true,
		}
		if err := db.Create(&app).Error; err != nil {
			return nil, unavailable(err, "failed to insert application")
		}
		return &app, nil
	default:
		return nil, unavailable(err, "failed to look up application")
	}
}

// FindApplication resolves an application by id or by normalized match key.
func (r *Repository) FindApplication(ctx context.Context, userID, idOrKey string) (*models.TrackedApplication, error) {
	var app models.TrackedApplication
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND (id = ? OR match_key = ?)", userID, idOrKey, focus.Normalize(idOrKey)).
		First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(storage.ErrApplicationNotFound, "%q", idOrKey)
		}
		return nil, unavailable(err, "failed to find application")
	}
	return &app, nil
}

// SetTracked flips the is_tracked flag of an application.
func (r *Repository) SetTracked(ctx context.Context, userID, appID string, tracked bool) error {
	result := r.db.WithContext(ctx).
		Model(&models.TrackedApplication{}).
		Where("user_id = ? AND id = ?", userID, appID).
		Update("is_tracked", tracked)
	if result.Error != nil {
		return unavailable(result.Error, "failed to update application")
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(storage.ErrApplicationNotFound, "%q", appID)
	}
	return nil
}

// SessionSummarySince aggregates time per application from since until now. Closed
// sessions use their stored duration, open ones are measured up to now.
func (r *Repository) SessionSummarySince(ctx context.Context, userID string, since, now time.Time) ([]models.AppSummary, error) {
	db := r.db.WithContext(ctx)

	var summaries []models.AppSummary
	result := db.Table("time_sessions AS s").
		Select("a.id AS app_id, a.display_name AS app_name, a.category AS category, "+
			"SUM(s.duration_seconds) AS total_seconds, COUNT(*) AS session_count").
		Joins("JOIN tracked_applications AS a ON a.id = s.app_id").
		Where("s.user_id = ? AND s.is_active = ? AND s.start_time >= ? AND s.deleted_at IS NULL", userID, false, since.UTC()).
		Group("a.id, a.display_name, a.category").
		Scan(&summaries)
	if result.Error != nil {
		return nil, unavailable(result.Error, "failed to query session summary")
	}

	open, err := r.ListOpenSessions(ctx, userID)
	if err != nil {
		return nil, err
	}

	byApp := make(map[string]int, len(summaries))
	for i := range summaries {
		byApp[summaries[i].AppID] = i
	}

	for _, s := range open {
		from := s.StartTime
		if from.Before(since) {
			from = since
		}
		elapsed := int64(now.Sub(from) / time.Second)
		if elapsed <= 0 {
			continue
		}

		i, ok := byApp[s.AppID]
		if !ok {
			var app models.TrackedApplication
			if err := db.First(&app, "id = ?", s.AppID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return nil, unavailable(err, "failed to load application")
			}
			summaries = append(summaries, models.AppSummary{AppID: app.ID, AppName: app.DisplayName, Category: app.Category})
			i = len(summaries) - 1
			byApp[s.AppID] = i
		}
		summaries[i].TotalSeconds += elapsed
		summaries[i].SessionCount++
	}

	sort.SliceStable(summaries, func(a, b int) bool {
		return summaries[a].TotalSeconds > summaries[b].TotalSeconds
	})
	return summaries, nil
}

// RecordError inserts a new error log entry.
func (r *Repository) RecordError(ctx context.Context, component, message string) error {
	entry := &models.ErrorLog{
		Timestamp: time.Now().UTC(),
		Component: component,
		ErrorMsg:  message,
	}
	if result := r.db.WithContext(ctx).Create(entry); result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert error log")
	}
	return nil
}

// RecentErrors returns the newest error log entries.
func (r *Repository) RecentErrors(ctx context.Context, limit int) ([]models.ErrorLog, error) {
	var logs []models.ErrorLog
	result := r.db.WithContext(ctx).Order("timestamp DESC").Limit(limit).Find(&logs)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query error log")
	}
	return logs, nil
}
