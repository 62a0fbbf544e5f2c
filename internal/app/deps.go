package app

import (
	"context"
	"fmt"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	nlogger "github.com/neutron-org/neutron-logger"
	"go.uber.org/zap"

	"github.com/parity-sale/relay-queue/internal/chain"
	"github.com/parity-sale/relay-queue/internal/config"
	"github.com/parity-sale/relay-queue/internal/contracts"
	"github.com/parity-sale/relay-queue/internal/relay"
)

type DependencyContainer struct {
	client    *ethclient.Client
	connector *chain.Connector
	sale      *contracts.Sale
	certifier *contracts.Certifier
}

func NewDefaultDependencyContainer(ctx context.Context,
	cfg config.RelayQueueConfig,
	logRegistry *nlogger.Registry) (*DependencyContainer, error) {
	logger := logRegistry.Get(ChainContext)

	var client *ethclient.Client
	if err := retry.Do(func() error {
		var err error
		client, err = chain.Dial(ctx, cfg.NodeURL, cfg.CallTimeout)
		return err
	}, retry.Context(ctx), rtyAtt, rtyDel, rtyErr, retry.OnRetry(func(n uint, err error) {
		logger.Info("failed to dial node", zap.Uint("attempt", n+1), zap.Error(err))
	})); err != nil {
		return nil, fmt.Errorf("could not connect to node: %w", err)
	}

	sale, err := contracts.NewSale(common.HexToAddress(cfg.SaleContract), client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("cannot create sale contract: %w", err)
	}

	certifierAddress, err := resolveCertifier(ctx, cfg, sale, logger)
	if err != nil {
		client.Close()
		return nil, err
	}

	certifier, err := contracts.NewCertifier(certifierAddress, client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("cannot create certifier contract: %w", err)
	}

	logger.Info("loaded contracts",
		zap.String("sale", cfg.SaleContract),
		zap.String("certifier", certifierAddress.Hex()))

	return &DependencyContainer{
		client:    client,
		connector: chain.NewConnector(client, logger, cfg.CallTimeout, cfg.PollInterval),
		sale:      sale,
		certifier: certifier,
	}, nil
}

func resolveCertifier(ctx context.Context, cfg config.RelayQueueConfig, sale *contracts.Sale, logger *zap.Logger) (common.Address, error) {
	if cfg.CertifierContract != "" {
		return common.HexToAddress(cfg.CertifierContract), nil
	}

	var address common.Address
	if err := retry.Do(func() error {
		callCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
		defer cancel()

		var err error
		address, err = sale.Certifier(callCtx)
		return err
	}, retry.Context(ctx), rtyAtt, rtyDel, rtyErr, retry.OnRetry(func(n uint, err error) {
		logger.Info("failed to read certifier from sale contract", zap.Error(err))
	})); err != nil {
		return common.Address{}, fmt.Errorf("failed to read certifier from sale contract: %w", err)
	}

	return address, nil
}

func (c DependencyContainer) GetConnector() *chain.Connector {
	return c.connector
}

func (c DependencyContainer) GetBlockSource() relay.BlockSource {
	return c.connector
}

func (c DependencyContainer) GetSale() *contracts.Sale {
	return c.sale
}

func (c DependencyContainer) GetCertifier() *contracts.Certifier {
	return c.certifier
}

func (c DependencyContainer) Close() {
	c.client.Close()
}
