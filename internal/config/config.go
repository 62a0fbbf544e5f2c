package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

const EnvPrefix = "RELAYER"

const (
	StorageBackendRedis   = "redis"
	StorageBackendLevelDB = "leveldb"
)

// RelayQueueConfig describes the whole app configuration.
type RelayQueueConfig struct {
	NodeURL           string `required:"true" split_words:"true" default:"ws://127.0.0.1:8546/"`
	SaleContract      string `required:"true" split_words:"true"`
	CertifierContract string `split_words:"true"`

	StorageBackend string `split_words:"true" default:"redis"`
	RedisAddr      string `split_words:"true" default:"127.0.0.1:6379"`
	RedisPassword  string `split_words:"true"`
	RedisDB        int    `envconfig:"REDIS_DB" default:"0"`
	StoragePath    string `split_words:"true" default:"storage/leveldb"`
	QueuePrefix    string `split_words:"true" default:"buy"`

	ScanPageSize    int           `split_words:"true" default:"10"`
	CallTimeout     time.Duration `split_words:"true" default:"10s"`
	ReceiptAttempts uint          `split_words:"true" default:"5"`
	ReceiptDelay    time.Duration `split_words:"true" default:"2s"`
	PollInterval    time.Duration `split_words:"true" default:"5s"`

	ExpectedEvent string `split_words:"true" default:"Buyin"`
	AcceptedField string `split_words:"true" default:"accepted"`

	ListenAddr string `split_words:"true" default:":9999"`
}

func NewRelayQueueConfig(logger *zap.Logger) (RelayQueueConfig, error) {
	var cfg RelayQueueConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to read config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.CertifierContract == "" {
		logger.Info("certifier contract is not configured, it will be read from the sale contract")
	}

	return cfg, nil
}

func (c RelayQueueConfig) validate() error {
	if !common.IsHexAddress(c.SaleContract) {
		return fmt.Errorf("%s_SALE_CONTRACT is not an address: %q", EnvPrefix, c.SaleContract)
	}
	if c.CertifierContract != "" && !common.IsHexAddress(c.CertifierContract) {
		return fmt.Errorf("%s_CERTIFIER_CONTRACT is not an address: %q", EnvPrefix, c.CertifierContract)
	}
	switch c.StorageBackend {
	case StorageBackendRedis, StorageBackendLevelDB:
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	if c.ScanPageSize <= 0 {
		return fmt.Errorf("%s_SCAN_PAGE_SIZE must be positive", EnvPrefix)
	}
	if c.ReceiptAttempts == 0 {
		return fmt.Errorf("%s_RECEIPT_ATTEMPTS must be positive", EnvPrefix)
	}
	return nil
}
