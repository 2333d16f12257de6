package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"fulfillment-pipeline/internal/core/logger"

	"go.uber.org/zap"
)

// FileStore keeps each log as a pretty-printed JSON array in its own file
// under a data directory, mirroring the operational layout reviewed by
// humans (one readable history file per concern).
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create record store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(log string) string {
	return filepath.Join(f.dir, log+".json")
}

// load reads the current contents of a log. A missing or corrupt file is
// treated as an empty log so one damaged history cannot halt the pipeline.
func (f *FileStore) load(log string) []json.RawMessage {
	data, err := os.ReadFile(f.path(log))
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Get().Warn("Failed to read log file, treating as empty",
				zap.String("log", log),
				zap.Error(err),
			)
		}
		return nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		logger.Get().Warn("Log file is corrupted, treating as empty",
			zap.String("log", log),
			zap.Error(err),
		)
		return nil
	}
	return records
}

// write persists the full record slice atomically via temp file + rename.
func (f *FileStore) write(log string, records []json.RawMessage) error {
	if records == nil {
		records = []json.RawMessage{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal log %s: %w", log, err)
	}

	tmp, err := os.CreateTemp(f.dir, log+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for log %s: %w", log, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write log %s: %w", log, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file for log %s: %w", log, err)
	}

	if err := os.Rename(tmpName, f.path(log)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace log %s: %w", log, err)
	}
	return nil
}

// Append implements Store.
func (f *FileStore) Append(ctx context.Context, log string, record any) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record for log %s: %w", log, err)
	}

	records := f.load(log)
	records = append(records, raw)
	return f.write(log, records)
}

// ReadAll implements Store.
func (f *FileStore) ReadAll(ctx context.Context, log string) ([]json.RawMessage, error) {
	return f.load(log), nil
}

// Replace implements Store.
func (f *FileStore) Replace(ctx context.Context, log string, records []json.RawMessage) error {
	return f.write(log, records)
}

// Close implements Store. File handles are not held open between calls.
func (f *FileStore) Close() error {
	return nil
}
