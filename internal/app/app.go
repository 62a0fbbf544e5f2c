package app

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	nlogger "github.com/neutron-org/neutron-logger"
	"go.uber.org/zap"

	"github.com/parity-sale/relay-queue/internal/config"
	"github.com/parity-sale/relay-queue/internal/consumer"
	"github.com/parity-sale/relay-queue/internal/relay"
	"github.com/parity-sale/relay-queue/internal/storage"
)

var (
	Version = ""
	Commit  = ""
)

const (
	MainContext       = "main"
	ConsumerContext   = "consumer"
	StorageContext    = "storage"
	ChainContext      = "chain"
	ServerContext     = "http"
	MonitoringContext = "monitoring"
)

// LoggerContexts lists every logger the app asks the registry for.
func LoggerContexts() []string {
	return []string{MainContext, ConsumerContext, StorageContext, ChainContext, ServerContext, MonitoringContext}
}

// retries configuration for reaching the node and the storage on startup
var (
	rtyAtt = retry.Attempts(uint(5))
	rtyDel = retry.Delay(time.Second * 2)
	rtyErr = retry.LastErrorOnly(true)
)

// NewDefaultStorage opens the queue store selected by cfg.StorageBackend.
func NewDefaultStorage(ctx context.Context, cfg config.RelayQueueConfig, logger *zap.Logger) (relay.QueueStore, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendLevelDB:
		store, err := storage.NewLevelDBQueueStore(cfg.StoragePath, cfg.QueuePrefix, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create NewLevelDBQueueStore: %w", err)
		}
		return store, nil
	case config.StorageBackendRedis:
		var store *storage.RedisQueueStore
		if err := retry.Do(func() error {
			var err error
			store, err = storage.NewRedisQueueStore(ctx, storage.RedisOptions{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}, cfg.QueuePrefix, logger)
			return err
		}, retry.Context(ctx), rtyAtt, rtyDel, rtyErr, retry.OnRetry(func(n uint, err error) {
			logger.Info("failed to connect to redis", zap.Uint("attempt", n+1), zap.Error(err))
		})); err != nil {
			return nil, fmt.Errorf("failed to create NewRedisQueueStore: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// NewDefaultConsumer returns a queue consumer built with cfg.
func NewDefaultConsumer(
	cfg config.RelayQueueConfig,
	logRegistry *nlogger.Registry,
	store relay.QueueStore,
	deps *DependencyContainer,
) *consumer.QueueConsumer {
	return consumer.NewQueueConsumer(
		consumer.Config{
			PageSize:        cfg.ScanPageSize,
			CallTimeout:     cfg.CallTimeout,
			ExpectedEvent:   cfg.ExpectedEvent,
			AcceptedField:   cfg.AcceptedField,
			ReceiptAttempts: cfg.ReceiptAttempts,
			ReceiptDelay:    cfg.ReceiptDelay,
		},
		store,
		deps.GetConnector(),
		deps.GetCertifier(),
		deps.GetSale(),
		logRegistry.Get(ConsumerContext),
	)
}
