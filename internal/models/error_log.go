package models

import (
	"time"

	"gorm.io/gorm"
)

// ErrorLog records a failed tracking tick so outages can be inspected after the fact.
type ErrorLog struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Timestamp time.Time      `gorm:"not null;index" json:"timestamp"`
	Component string         `gorm:"not null;default:'tracker'" json:"component"`
	ErrorMsg  string         `gorm:"not null" json:"error_msg"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
