package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Backend is the part of ethclient.Client the connector talks to.
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
}

// Connector implements relay.Ledger and relay.BlockSource over an Ethereum node.
type Connector struct {
	backend      Backend
	logger       *zap.Logger
	callTimeout  time.Duration
	pollInterval time.Duration
}

func NewConnector(backend Backend, logger *zap.Logger, callTimeout, pollInterval time.Duration) *Connector {
	return &Connector{
		backend:      backend,
		logger:       logger,
		callTimeout:  callTimeout,
		pollInterval: pollInterval,
	}
}

// Balance returns the latest balance of the account in wei.
func (c *Connector) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := c.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance of %s: %w", account.Hex(), err)
	}
	return balance, nil
}

// NonceAt returns the latest confirmed nonce of the account.
func (c *Connector) NonceAt(ctx context.Context, account common.Address) (uint64, error) {
	nonce, err := c.backend.NonceAt(ctx, account, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get nonce of %s: %w", account.Hex(), err)
	}
	return nonce, nil
}

// SendTx broadcasts a signed transaction as is. A node that already holds the
// transaction in its pool is treated as a successful broadcast.
func (c *Connector) SendTx(ctx context.Context, raw []byte) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}

	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		if isAlreadyKnown(err) {
			c.logger.Debug("transaction is already known to the node", zap.String("hash", tx.Hash().Hex()))
			return tx.Hash(), nil
		}
		return common.Hash{}, err
	}

	return tx.Hash(), nil
}

// TransactionReceipt returns ethereum.NotFound while the transaction is not mined.
func (c *Connector) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return c.backend.TransactionReceipt(ctx, hash)
}

func isAlreadyKnown(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already known") || strings.Contains(msg, "known transaction")
}
