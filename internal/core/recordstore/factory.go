package recordstore

import (
	"fmt"

	"fulfillment-pipeline/internal/core/config"
)

// New builds the record store selected by the storage configuration.
func New(cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "file":
		return NewFileStore(cfg.DataDir)
	case "redis":
		return NewRedisStore(cfg.RedisURL)
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown record store driver: %s", cfg.Driver)
	}
}
