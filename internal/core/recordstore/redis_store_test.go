package recordstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	store, err := NewRedisStore("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, mr
}

func TestRedisStore_AppendAndReadAll(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "test_log", testRecord{OrderID: "R1", Success: true}))
	require.NoError(t, store.Append(ctx, "test_log", testRecord{OrderID: "R2"}))

	records, err := ReadAllAs[testRecord](ctx, store, "test_log")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "R1", records[0].OrderID)
	assert.Equal(t, "R2", records[1].OrderID)
}

func TestRedisStore_MissingLogReadsEmpty(t *testing.T) {
	store, _ := newTestRedisStore(t)

	records, err := store.ReadAll(context.Background(), "never_written")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRedisStore_CorruptEntrySkipped(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "mixed", testRecord{OrderID: "R1"}))
	_, err := mr.RPush(redisKey("mixed"), "{definitely not json")
	require.NoError(t, err)

	records, err := store.ReadAll(ctx, "mixed")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRedisStore_Replace(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "pending", testRecord{OrderID: "R1"}))
	require.NoError(t, store.Append(ctx, "pending", testRecord{OrderID: "R2"}))

	require.NoError(t, ReplaceAs(ctx, store, "pending", []testRecord{{OrderID: "R2"}}))

	records, err := ReadAllAs[testRecord](ctx, store, "pending")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "R2", records[0].OrderID)
}

func TestRedisStore_Ping(t *testing.T) {
	store, mr := newTestRedisStore(t)

	require.NoError(t, store.Ping(context.Background()))

	mr.Close()
	assert.Error(t, store.Ping(context.Background()))
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore("not-a-url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse Redis URL")
}
