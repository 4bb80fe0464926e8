//go:build !nosqlite

package db

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"proxystats/internal/config"
)

func init() {
	registerBackend(config.BackendSQLite, func(cfg *config.Config) (gorm.Dialector, gorm.Config, error) {
		// Create directory if it doesn't exist
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, gorm.Config{}, err
		}
		// busy_timeout lets the daily batch and the vehicle job append
		// collection logs concurrently without SQLITE_BUSY failures.
		dsn := cfg.SQLitePath + "?_busy_timeout=5000&_journal_mode=WAL"
		return sqlite.Open(dsn), gorm.Config{}, nil
	})
}
