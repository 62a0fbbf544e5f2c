package http

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/parity-sale/relay-queue/internal/metrics"
	"github.com/parity-sale/relay-queue/internal/relay"
)

const pendingCountTimeout = 5 * time.Second

// PromWrapper refreshes the pending queue gauge before every scrape.
type PromWrapper struct {
	promHandler http.Handler
	store       relay.QueueStore
	logger      *zap.Logger
}

func NewPromWrapper(logger *zap.Logger, store relay.QueueStore) PromWrapper {
	return PromWrapper{
		promHandler: promhttp.Handler(),
		store:       store,
		logger:      logger,
	}
}

func (p PromWrapper) fillPendingMetric(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, pendingCountTimeout)
	defer cancel()

	n, err := p.store.PendingCount(ctx)
	if err != nil {
		p.logger.Error("failed to count pending entries in storage", zap.Error(err))
		return
	}
	metrics.SetPendingEntries(n)
}

func (p PromWrapper) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	p.fillPendingMetric(req.Context())
	p.promHandler.ServeHTTP(res, req)
}
