package recordstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_AppendAndReadAll(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "test_log", testRecord{OrderID: "S1", Success: true}))
	require.NoError(t, store.Append(ctx, "test_log", testRecord{OrderID: "S2"}))
	require.NoError(t, store.Append(ctx, "other_log", testRecord{OrderID: "S3"}))

	records, err := ReadAllAs[testRecord](ctx, store, "test_log")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "S1", records[0].OrderID)
	assert.Equal(t, "S2", records[1].OrderID)
}

func TestSQLiteStore_MissingLogReadsEmpty(t *testing.T) {
	store := newTestSQLiteStore(t)

	records, err := store.ReadAll(context.Background(), "never_written")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSQLiteStore_Replace(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "pending", testRecord{OrderID: "S1"}))
	require.NoError(t, store.Append(ctx, "pending", testRecord{OrderID: "S2"}))

	require.NoError(t, ReplaceAs(ctx, store, "pending", []testRecord{{OrderID: "S2"}}))

	records, err := ReadAllAs[testRecord](ctx, store, "pending")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "S2", records[0].OrderID)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, "durable", testRecord{OrderID: "S1"}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := ReadAllAs[testRecord](ctx, reopened, "durable")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "S1", records[0].OrderID)
}
