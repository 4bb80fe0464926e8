package db

import (
	"context"

	"gorm.io/gorm"
)

// insertBatchSize keeps multi-row INSERTs below SQLite's bound-parameter limit.
const insertBatchSize = 200

// Store is the write side used by the collection pipeline.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for the read-side queries.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// SaveUserStats writes the per-user rows and the summary row of one data
// date in a single transaction.
func (s *Store) SaveUserStats(ctx context.Context, details []UserStatDetail, summary *UserStatSummary) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(details) > 0 {
			if err := tx.CreateInBatches(&details, insertBatchSize).Error; err != nil {
				return err
			}
		}
		return tx.Create(summary).Error
	})
}

// SaveVehicleDetails appends one snapshot row per vehicle.
func (s *Store) SaveVehicleDetails(ctx context.Context, rows []VehicleStatDetail) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(&rows, insertBatchSize).Error
}

func (s *Store) SaveVehicleSummary(ctx context.Context, summary *VehicleStatSummary) error {
	return s.db.WithContext(ctx).Create(summary).Error
}

// SaveSystemStats writes the hourly rows and the summary row of one data
// date in a single transaction.
func (s *Store) SaveSystemStats(ctx context.Context, details []SystemStatDetail, summary *SystemStatSummary) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(details) > 0 {
			if err := tx.CreateInBatches(&details, insertBatchSize).Error; err != nil {
				return err
			}
		}
		return tx.Create(summary).Error
	})
}

// WriteLog appends one collection log row. It is a single-row insert, so
// concurrent writers rely on the database for atomicity.
func (s *Store) WriteLog(ctx context.Context, entry *CollectionLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}
