package recordstore

import (
	"context"
	"encoding/json"
	"fmt"

	"fulfillment-pipeline/internal/core/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisKeyPrefix namespaces record logs inside a shared Redis instance.
const redisKeyPrefix = "records:"

// RedisStore implements Store on Redis lists. RPUSH/LRANGE give the
// append + read-all-in-insertion-order semantics the port requires.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed record store.
// The redisURL should be in the format: redis://[:password@]host[:port][/database]
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return &RedisStore{client: redis.NewClient(opts)}, nil
}

func redisKey(log string) string {
	return redisKeyPrefix + log
}

// Append implements Store.
func (r *RedisStore) Append(ctx context.Context, log string, record any) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record for log %s: %w", log, err)
	}

	if err := r.client.RPush(ctx, redisKey(log), raw).Err(); err != nil {
		return fmt.Errorf("failed to append to log %s: %w", log, err)
	}
	return nil
}

// ReadAll implements Store. Entries that are not valid JSON are skipped
// with a warning rather than failing the read.
func (r *RedisStore) ReadAll(ctx context.Context, log string) ([]json.RawMessage, error) {
	values, err := r.client.LRange(ctx, redisKey(log), 0, -1).Result()
	if err != nil {
		logger.Get().Warn("Failed to read log from Redis, treating as empty",
			zap.String("log", log),
			zap.Error(err),
		)
		return nil, nil
	}

	records := make([]json.RawMessage, 0, len(values))
	for _, v := range values {
		raw := json.RawMessage(v)
		if !json.Valid(raw) {
			logger.Get().Warn("Corrupt entry in Redis log, skipping",
				zap.String("log", log),
			)
			continue
		}
		records = append(records, raw)
	}
	return records, nil
}

// Replace implements Store using a transactional pipeline so readers never
// observe a partially rewritten working set.
func (r *RedisStore) Replace(ctx context.Context, log string, records []json.RawMessage) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisKey(log))
		for _, raw := range records {
			pipe.RPush(ctx, redisKey(log), []byte(raw))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace log %s: %w", log, err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close implements Store.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
