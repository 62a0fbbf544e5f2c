package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

const headersBuffer = 16

// Blocks streams new block numbers until ctx is done. Websocket and IPC endpoints
// are followed with a new-head subscription; endpoints without notifications, and
// subscriptions that break, are polled every pollInterval.
func (c *Connector) Blocks(ctx context.Context) (<-chan uint64, error) {
	out := make(chan uint64, 1)

	headers := make(chan *types.Header, headersBuffer)
	sub, err := c.backend.SubscribeNewHead(ctx, headers)
	switch {
	case errors.Is(err, rpc.ErrNotificationsUnsupported):
		c.logger.Info("node does not support subscriptions, polling for new blocks",
			zap.Duration("interval", c.pollInterval))
		go func() {
			defer close(out)
			c.poll(ctx, out, 0)
		}()
		return out, nil
	case err != nil:
		return nil, fmt.Errorf("failed to subscribe to new heads: %w", err)
	}

	go func() {
		defer close(out)
		last := c.follow(ctx, sub, headers, out)
		if ctx.Err() != nil {
			return
		}
		c.poll(ctx, out, last)
	}()

	return out, nil
}

// follow forwards subscription heads and returns the last number it emitted once
// the subscription fails or ctx is done.
func (c *Connector) follow(ctx context.Context, sub ethereum.Subscription, headers <-chan *types.Header, out chan<- uint64) uint64 {
	defer sub.Unsubscribe()

	var last uint64
	for {
		select {
		case <-ctx.Done():
			return last
		case err := <-sub.Err():
			c.logger.Error("new head subscription failed, falling back to polling", zap.Error(err))
			return last
		case h := <-headers:
			if h == nil || h.Number == nil {
				continue
			}
			number := h.Number.Uint64()
			if number <= last {
				continue
			}
			if !emit(ctx, out, number) {
				return last
			}
			last = number
		}
	}
}

func (c *Connector) poll(ctx context.Context, out chan<- uint64, last uint64) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		number, err := c.blockNumber(ctx)
		switch {
		case err != nil:
			c.logger.Warn("failed to poll block number", zap.Error(err))
		case number > last:
			if !emit(ctx, out, number) {
				return
			}
			last = number
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Connector) blockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return c.backend.BlockNumber(ctx)
}

func emit(ctx context.Context, out chan<- uint64, number uint64) bool {
	select {
	case out <- number:
		return true
	case <-ctx.Done():
		return false
	}
}
