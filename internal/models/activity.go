package models

import "time"

// CurrentActivity describes what is in front of the user right now.
// IsActive reports whether a session is open for the app, not whether anything is focused.
type CurrentActivity struct {
	AppName         string    `json:"app_name"`
	AppCategory     string    `json:"app_category"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int64     `json:"duration_minutes"`
	DurationHours   float64   `json:"duration_hours"`
	IsActive        bool      `json:"is_active"`
	ActiveAppsCount int       `json:"active_apps_count"`
}

// WithDurations returns a copy whose duration fields are measured from StartTime to now.
func (a CurrentActivity) WithDurations(now time.Time) CurrentActivity {
	elapsed := now.Sub(a.StartTime)
	if elapsed < 0 {
		elapsed = 0
	}
	a.DurationMinutes = int64(elapsed / time.Minute)
	a.DurationHours = elapsed.Hours()
	return a
}
