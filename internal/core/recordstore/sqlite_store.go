package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fulfillment-pipeline/internal/core/logger"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// recordRow is the relational shape of one appended record.
type recordRow struct {
	ID        uint   `gorm:"primaryKey"`
	LogName   string `gorm:"index;size:128"`
	Payload   []byte
	CreatedAt time.Time
}

// TableName keeps the table name stable regardless of struct renames.
func (recordRow) TableName() string {
	return "records"
}

// SQLiteStore implements Store on an embedded SQLite database, the
// relational alternative to the JSON-file layout.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (or creates) the database file and migrates the
// records table.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}

	if err := db.AutoMigrate(&recordRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate records table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, log string, record any) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record for log %s: %w", log, err)
	}

	row := recordRow{LogName: log, Payload: raw, CreatedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to append to log %s: %w", log, err)
	}
	return nil
}

// ReadAll implements Store. Rows with unparseable payloads are skipped
// with a warning.
func (s *SQLiteStore) ReadAll(ctx context.Context, log string) ([]json.RawMessage, error) {
	var rows []recordRow
	err := s.db.WithContext(ctx).
		Where("log_name = ?", log).
		Order("id asc").
		Find(&rows).Error
	if err != nil {
		logger.Get().Warn("Failed to read log from sqlite, treating as empty",
			zap.String("log", log),
			zap.Error(err),
		)
		return nil, nil
	}

	records := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		if !json.Valid(row.Payload) {
			logger.Get().Warn("Corrupt row in sqlite log, skipping",
				zap.String("log", log),
				zap.Uint("row_id", row.ID),
			)
			continue
		}
		records = append(records, json.RawMessage(row.Payload))
	}
	return records, nil
}

// Replace implements Store inside one transaction.
func (s *SQLiteStore) Replace(ctx context.Context, log string, records []json.RawMessage) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("log_name = ?", log).Delete(&recordRow{}).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, raw := range records {
			row := recordRow{LogName: log, Payload: []byte(raw), CreatedAt: now}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace log %s: %w", log, err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
