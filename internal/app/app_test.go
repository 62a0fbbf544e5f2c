package app

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parity-sale/relay-queue/internal/config"
	"github.com/parity-sale/relay-queue/internal/relay"
	"github.com/parity-sale/relay-queue/internal/storage"
)

func testConfig() config.RelayQueueConfig {
	return config.RelayQueueConfig{QueuePrefix: "buy"}
}

func roundTrip(t *testing.T, store relay.QueueStore) {
	ctx := context.Background()
	entry := relay.PendingEntry{Address: "0x00000000000000000000000000000000000000aa", RawTx: "0x01", TxHash: "0x02", RequiredValue: big.NewInt(3)}
	require.NoError(t, store.Set(ctx, entry))

	got, err := store.Get(ctx, entry.Address)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.TxHash, got.TxHash)
}

func TestNewDefaultStorageLevelDB(t *testing.T) {
	cfg := testConfig()
	cfg.StorageBackend = config.StorageBackendLevelDB
	cfg.StoragePath = filepath.Join(t.TempDir(), "leveldb")

	store, err := NewDefaultStorage(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &storage.LevelDBQueueStore{}, store)
	roundTrip(t, store)
}

func TestNewDefaultStorageRedis(t *testing.T) {
	srv := miniredis.RunT(t)

	cfg := testConfig()
	cfg.StorageBackend = config.StorageBackendRedis
	cfg.RedisAddr = srv.Addr()

	store, err := NewDefaultStorage(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &storage.RedisQueueStore{}, store)
	roundTrip(t, store)
	assert.True(t, srv.Exists("buy:queue"))
}

func TestNewDefaultStorageRedisUnreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	cfg := testConfig()
	cfg.StorageBackend = config.StorageBackendRedis
	cfg.RedisAddr = addr

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDefaultStorage(ctx, cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNewDefaultStorageUnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.StorageBackend = "memcached"

	_, err := NewDefaultStorage(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, `unknown storage backend "memcached"`)
}
