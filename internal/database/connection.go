package database

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/actionsum/focustrack/internal/models"
)

const (
	defaultDBName = "focustrack.db"
	defaultDBDir  = ".config/focustrack"
)

type DB struct {
	*gorm.DB
}

func GetDefaultDBPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	dbDir := filepath.Join(homeDir, defaultDBDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create database directory: %w", err)
	}

	return filepath.Join(dbDir, defaultDBName), nil
}

// Connect opens the SQLite store at dbPath, or at the default location when empty.
func Connect(dbPath string) (*DB, error) {
	if dbPath == "" {
		var err error
		dbPath, err = GetDefaultDBPath()
		if err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_busy_timeout=5000&_journal_mode=WAL"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &DB{db}, nil
}

// Initialize migrates the schema. Besides the model indexes it adds a partial unique
// index so the store itself refuses a second open session for the same app.
func (db *DB) Initialize() error {
	err := db.AutoMigrate(&models.TrackedApplication{}, &models.TimeSession{}, &models.ErrorLog{})
	if err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_one_open_session
		ON time_sessions(user_id, app_id)
		WHERE is_active = 1 AND deleted_at IS NULL`).Error
	if err != nil {
		return fmt.Errorf("failed to create open session index: %w", err)
	}

	return nil
}

func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
