package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"go.uber.org/zap"

	"github.com/parity-sale/relay-queue/internal/relay"
	"github.com/parity-sale/relay-queue/internal/storage"
)

func TestLevelDBPagesAreExact(t *testing.T) {
	store := newLevelDBStore(t)
	ctx := context.Background()
	for i := 1; i <= 25; i++ {
		require.NoError(t, store.Set(ctx, entry(i, 1)))
	}

	var (
		cursor = relay.StartCursor
		sizes  []int
	)
	for !cursor.Exhausted() {
		page, err := store.ScanPage(ctx, cursor, 10)
		require.NoError(t, err)
		sizes = append(sizes, len(page.Entries))
		cursor = page.Next
	}
	assert.Equal(t, []int{10, 10, 5}, sizes)
}

func TestLevelDBExactMultipleEndsWithoutEmptyPage(t *testing.T) {
	store := newLevelDBStore(t)
	ctx := context.Background()
	for i := 1; i <= 20; i++ {
		require.NoError(t, store.Set(ctx, entry(i, 1)))
	}

	first, err := store.ScanPage(ctx, relay.StartCursor, 10)
	require.NoError(t, err)
	require.False(t, first.Next.Exhausted())

	second, err := store.ScanPage(ctx, first.Next, 10)
	require.NoError(t, err)
	assert.Len(t, second.Entries, 10)
	assert.True(t, second.Next.Exhausted())
}

func TestLevelDBPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := storage.NewLevelDBQueueStore(dir, "buy", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, entry(9, 99)))
	require.NoError(t, store.Close())

	store, err = storage.NewLevelDBQueueStore(dir, "buy", zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(ctx, entry(9, 99).Address)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(99), got.RequiredValue.Int64())
}

func TestLevelDBPrefixesAreIsolated(t *testing.T) {
	ctx := context.Background()
	db, err := leveldb.Open(lvlstorage.NewMemStorage(), nil)
	require.NoError(t, err)
	defer db.Close()

	buy := storage.NewLevelDBQueueStoreFromDB(db, "buy", zap.NewNop())
	fee := storage.NewLevelDBQueueStoreFromDB(db, "fee", zap.NewNop())

	require.NoError(t, buy.Set(ctx, entry(1, 1)))
	require.NoError(t, buy.Set(ctx, entry(2, 1)))
	require.NoError(t, fee.Set(ctx, entry(3, 1)))

	n, err := buy.PendingCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	visited, err := relay.Scan(ctx, fee, 10, func(context.Context, relay.PendingEntry) {})
	require.NoError(t, err)
	assert.Equal(t, 1, visited)
}
