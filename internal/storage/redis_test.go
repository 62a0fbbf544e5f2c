package storage_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parity-sale/relay-queue/internal/relay"
	"github.com/parity-sale/relay-queue/internal/storage"
)

func TestRedisKeyLayout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := storage.NewRedisQueueStoreFromClient(client, "buy", zap.NewNop())
	ctx := context.Background()

	e := relay.PendingEntry{
		Address:       "0x00000000000000000000000000000000000000aa",
		RawTx:         "0xf86b",
		TxHash:        "0x01",
		RequiredValue: big.NewInt(1000),
	}
	require.NoError(t, store.Set(ctx, e))
	assert.True(t, mr.Exists("buy:queue"))
	assert.JSONEq(t, `{"v":1,"tx":"0xf86b","hash":"0x01","required":"0x3e8"}`, mr.HGet("buy:queue", e.Address))

	require.NoError(t, store.Confirm(ctx, e.Address, "0x2", "0x01", big.NewInt(900)))
	assert.False(t, mr.Exists("buy:queue"))

	done, err := mr.Get("buy:done:" + e.Address + ":0x2")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1,"kind":"confirmed","hash":"0x01","value":"0x384"}`, done)
}

func TestRedisScanSkipsCorruptEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := storage.NewRedisQueueStoreFromClient(client, "buy", zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, entry(1, 10)))
	mr.HSet("buy:queue", "0xbroken", "{")

	visited, err := relay.Scan(ctx, store, 10, func(context.Context, relay.PendingEntry) {})
	require.NoError(t, err)
	assert.Equal(t, 1, visited)
}

func TestRedisScanFailsWhenServerIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	store := storage.NewRedisQueueStoreFromClient(client, "buy", zap.NewNop())
	mr.Close()

	_, err := relay.Scan(context.Background(), store, 10, func(context.Context, relay.PendingEntry) {})
	assert.Error(t, err)
}

func TestNewRedisQueueStorePings(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := storage.NewRedisQueueStore(context.Background(), storage.RedisOptions{Addr: mr.Addr()}, "buy", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	addr := mr.Addr()
	mr.Close()
	_, err = storage.NewRedisQueueStore(context.Background(), storage.RedisOptions{Addr: addr}, "buy", zap.NewNop())
	assert.Error(t, err)
}
