package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/parity-sale/relay-queue/internal/metrics"
	"github.com/parity-sale/relay-queue/internal/relay"
)

// ErrPassInProgress is returned by Update when another pass over the queue is running.
var ErrPassInProgress = errors.New("queue pass already in progress")

type Config struct {
	// PageSize is the number of entries fetched per page, and the bound on entries
	// processed concurrently.
	PageSize    int
	CallTimeout time.Duration
	// ExpectedEvent is the contract event a successful transaction must emit.
	ExpectedEvent string
	// AcceptedField is the integer param of ExpectedEvent stored as the confirmed value.
	AcceptedField   string
	ReceiptAttempts uint
	ReceiptDelay    time.Duration
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = relay.DefaultPageSize
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 10 * time.Second
	}
	if c.ExpectedEvent == "" {
		c.ExpectedEvent = "Buyin"
	}
	if c.AcceptedField == "" {
		c.AcceptedField = "accepted"
	}
	if c.ReceiptAttempts == 0 {
		c.ReceiptAttempts = 5
	}
	if c.ReceiptDelay <= 0 {
		c.ReceiptDelay = 2 * time.Second
	}
	return c
}

// QueueConsumer drains the pending queue: on every trigger it walks all entries and
// broadcasts the ones whose sender became funded and certified.
type QueueConsumer struct {
	cfg       Config
	store     relay.QueueStore
	ledger    relay.Ledger
	certifier relay.Certifier
	parser    relay.EventParser
	logger    *zap.Logger

	running atomic.Bool
	now     func() time.Time
}

func NewQueueConsumer(
	cfg Config,
	store relay.QueueStore,
	ledger relay.Ledger,
	certifier relay.Certifier,
	parser relay.EventParser,
	logger *zap.Logger,
) *QueueConsumer {
	return &QueueConsumer{
		cfg:       cfg.withDefaults(),
		store:     store,
		ledger:    ledger,
		certifier: certifier,
		parser:    parser,
		logger:    logger,
		now:       time.Now,
	}
}

// Run starts a pass on startup and on every block number received from blocks. A
// block arriving while a pass is running does not queue another one. Run returns
// after ctx is done and in-flight passes have finished.
func (q *QueueConsumer) Run(ctx context.Context, blocks <-chan uint64) error {
	wg := &sync.WaitGroup{}
	defer wg.Wait()

	trigger := func(block uint64) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.trigger(ctx, block)
		}()
	}

	q.logger.Info("started queue consumer")
	trigger(0)

	for {
		select {
		case <-ctx.Done():
			q.logger.Info("context cancelled, shutting down queue consumer...")
			return nil
		case block, ok := <-blocks:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("block stream closed")
			}
			trigger(block)
		}
	}
}

func (q *QueueConsumer) trigger(ctx context.Context, block uint64) {
	_, err := q.Update(ctx)
	switch {
	case errors.Is(err, ErrPassInProgress):
		q.logger.Debug("queue pass in progress, skipping block", zap.Uint64("block", block))
	case err != nil:
		q.logger.Error("queue pass failed", zap.Uint64("block", block), zap.Error(err))
	}
}

// Update walks the whole queue once and processes every entry. It returns
// ErrPassInProgress without touching the queue when another pass is running.
func (q *QueueConsumer) Update(ctx context.Context) (relay.PassResult, error) {
	if !q.running.CompareAndSwap(false, true) {
		metrics.IncDroppedTriggers()
		return relay.PassResult{}, ErrPassInProgress
	}
	defer q.running.Store(false)

	var (
		start  = time.Now()
		mu     sync.Mutex
		result relay.PassResult
	)

	visited, err := relay.Scan(ctx, q.store, q.cfg.PageSize, func(ctx context.Context, entry relay.PendingEntry) {
		res := q.processEntry(ctx, entry)

		mu.Lock()
		defer mu.Unlock()
		res.addTo(&result)
	})
	result.Visited = visited

	metrics.AddConfirmed(result.Confirmed)
	metrics.AddRejected(result.Rejected)
	metrics.AddDeferred(result.Deferred)
	metrics.AddSent(result.Sent)

	dur := time.Since(start).Seconds()
	if err != nil {
		metrics.AddFailedPass(dur)
		return result, fmt.Errorf("failed to scan queue: %w", err)
	}
	metrics.AddSuccessPass(dur)

	if result.Sent > 0 {
		q.logger.Info(fmt.Sprintf("Sent %d transactions from the queue", result.Sent),
			zap.Int("confirmed", result.Confirmed),
			zap.Int("rejected", result.Rejected),
			zap.Int("deferred", result.Deferred))
	}

	return result, nil
}
