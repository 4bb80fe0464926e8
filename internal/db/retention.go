package db

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// RunRetentionOnce deletes vehicle snapshots and collection logs recorded
// before now minus days. It returns the number of rows removed per table.
func RunRetentionOnce(db *gorm.DB, now time.Time, days int) (vehicles, logs int64, err error) {
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	res := db.Where("recorded_at < ?", cutoff).Delete(&VehicleStatDetail{})
	if res.Error != nil {
		return 0, 0, res.Error
	}
	vehicles = res.RowsAffected

	res = db.Where("recorded_at < ?", cutoff).Delete(&CollectionLog{})
	if res.Error != nil {
		return vehicles, 0, res.Error
	}
	return vehicles, res.RowsAffected, nil
}

// StartRetentionWorker launches a background goroutine that runs the
// retention cleanup once at startup and then once per day until ctx is done.
// A non-positive days value means rows are kept forever and no worker starts.
func StartRetentionWorker(ctx context.Context, db *gorm.DB, days int) {
	if days <= 0 {
		log.Info().Msg("retention disabled, detail tables grow without bound")
		return
	}

	run := func() {
		vehicles, logs, err := RunRetentionOnce(db.WithContext(ctx), time.Now(), days)
		if err != nil {
			log.Error().Err(err).Msg("retention cleanup failed")
			return
		}
		if vehicles > 0 || logs > 0 {
			log.Info().Int64("vehicle_rows", vehicles).Int64("log_rows", logs).Int("days", days).Msg("retention cleanup removed rows")
		}
	}

	go func() {
		run()

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
}
