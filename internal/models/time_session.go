package models

import (
	"time"

	"gorm.io/gorm"
)

// TimeSession is one contiguous interval during which a tracked application was focused.
// EndTime and DurationSeconds stay nil until the session is closed.
type TimeSession struct {
	ID              string         `gorm:"primaryKey;size:36" json:"id"`
	UserID          string         `gorm:"not null;index:idx_user_app_active" json:"user_id"`
	AppID           string         `gorm:"not null;index:idx_user_app_active" json:"app_id"`
	StartTime       time.Time      `gorm:"not null;index" json:"start_time"`
	EndTime         *time.Time     `json:"end_time,omitempty"`
	DurationSeconds *int64         `json:"duration_seconds,omitempty"`
	IsActive        bool           `gorm:"not null;default:true;index:idx_user_app_active" json:"is_active"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// Elapsed returns the whole seconds between StartTime and now, clamped at zero.
func (s *TimeSession) Elapsed(now time.Time) int64 {
	d := int64(now.Sub(s.StartTime) / time.Second)
	if d < 0 {
		return 0
	}
	return d
}
