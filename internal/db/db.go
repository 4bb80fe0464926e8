package db

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"proxystats/internal/config"
)

// opener builds a gorm dialector for one backend. Backends register
// themselves from build-tagged files so a binary only links the drivers
// it was compiled with.
type opener func(cfg *config.Config) (gorm.Dialector, gorm.Config, error)

var openers = map[config.Backend]opener{}

func registerBackend(b config.Backend, o opener) {
	openers[b] = o
}

// Connect opens the database selected by cfg.Backend and migrates the schema.
// The returned handle is meant to be created once per process and closed with Close.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	open, ok := openers[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("database backend %q is not compiled into this binary", cfg.Backend)
	}

	dialector, gcfg, err := open(cfg)
	if err != nil {
		return nil, err
	}
	if gcfg.Logger == nil {
		gcfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	db, err := gorm.Open(dialector, &gcfg)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Backend, err)
	}

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
