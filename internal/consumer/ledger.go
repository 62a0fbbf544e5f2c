package consumer

import (
	"context"
	"errors"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

var (
	retryError     = retry.LastErrorOnly(true)
	retryDelayType = retry.DelayType(retry.FixedDelay)
	retryNotFound  = retry.RetryIf(func(err error) bool {
		return errors.Is(err, ethereum.NotFound)
	})
)

// sendTx broadcasts raw and returns the hash the node accepted it under.
func (q *QueueConsumer) sendTx(ctx context.Context, raw []byte) (common.Hash, error) {
	ctx, cancel := context.WithTimeout(ctx, q.cfg.CallTimeout)
	defer cancel()

	return q.ledger.SendTx(ctx, raw)
}

func (q *QueueConsumer) nonceAt(ctx context.Context, address common.Address) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, q.cfg.CallTimeout)
	defer cancel()

	return q.ledger.NonceAt(ctx, address)
}

// lookupReceipt returns ethereum.NotFound while the transaction is not mined.
func (q *QueueConsumer) lookupReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, q.cfg.CallTimeout)
	defer cancel()

	receipt, err := q.ledger.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

// waitReceipt polls for the receipt of a freshly sent transaction. Only
// ethereum.NotFound is retried.
func (q *QueueConsumer) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt

	if err := retry.Do(func() error {
		var err error
		receipt, err = q.lookupReceipt(ctx, hash)
		return err
	}, retry.Context(ctx), retry.Attempts(q.cfg.ReceiptAttempts), retry.Delay(q.cfg.ReceiptDelay),
		retryDelayType, retryError, retryNotFound, retry.OnRetry(func(n uint, err error) {
			q.logger.Debug("waiting for transaction receipt",
				zap.String("hash", hash.Hex()), zap.Uint("attempt", n+1), zap.Error(err))
		})); err != nil {
		return nil, err
	}

	return receipt, nil
}
