package models

import (
	"time"

	"gorm.io/gorm"
)

// TrackedApplication is an application the user opted into timing.
// MatchKey is a process name on Windows/Linux or a bundle identifier on macOS.
type TrackedApplication struct {
	ID          string         `gorm:"primaryKey;size:36" json:"id"`
	UserID      string         `gorm:"not null;index;uniqueIndex:idx_user_match_key" json:"user_id"`
	DisplayName string         `gorm:"not null" json:"display_name"`
	MatchKey    string         `gorm:"not null;uniqueIndex:idx_user_match_key" json:"match_key"`
	Category    string         `gorm:"not null;default:''" json:"category"`
	IsTracked   bool           `gorm:"not null;default:true;index" json:"is_tracked"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
