//go:build !nopostgres

package db

import (
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"proxystats/internal/config"
)

func init() {
	registerBackend(config.BackendPostgres, func(cfg *config.Config) (gorm.Dialector, gorm.Config, error) {
		dsn := strings.TrimSpace(cfg.DatabaseURL)
		// PrepareStmt: true prevents the GORM postgres migrator from forcing simple protocol
		// for "SELECT * FROM table LIMIT 1", which would otherwise trigger "insufficient arguments".
		return postgres.Open(dsn), gorm.Config{PrepareStmt: true}, nil
	})
}
