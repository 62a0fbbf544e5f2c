package consumer

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/parity-sale/relay-queue/internal/relay"
	"github.com/parity-sale/relay-queue/internal/txdecode"
)

type entryState int

const (
	// stateIdle: the sender is not funded or not certified yet.
	stateIdle entryState = iota
	stateDeferred
	stateConfirmed
	stateRejected
)

type entryResult struct {
	state entryState
	sent  bool
}

func (r entryResult) addTo(res *relay.PassResult) {
	switch r.state {
	case stateDeferred:
		res.Deferred++
	case stateConfirmed:
		res.Confirmed++
	case stateRejected:
		res.Rejected++
	}
	if r.sent {
		res.Sent++
	}
}

// entryProcess carries one entry through the pipeline.
type entryProcess struct {
	q        *QueueConsumer
	entry    relay.PendingEntry
	logger   *zap.Logger
	nonceKey string
	sent     bool
}

func (q *QueueConsumer) processEntry(ctx context.Context, entry relay.PendingEntry) (res entryResult) {
	p := &entryProcess{
		q:        q,
		entry:    entry,
		logger:   q.logger.With(zap.String("address", entry.Address), zap.String("hash", entry.TxHash)),
		nonceKey: relay.NonceKey(0),
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic while processing queue entry", zap.Any("panic", r), zap.Stack("stack"))
			res = p.reject(ctx, fmt.Sprintf("internal error: %v", r))
		}
	}()

	return p.run(ctx)
}

func (p *entryProcess) run(ctx context.Context) entryResult {
	address := common.HexToAddress(p.entry.Address)

	submission, err := p.q.store.GetSubmission(ctx, p.entry.Address)
	if err != nil {
		p.logger.Warn("failed to read submission marker, keeping entry", zap.Error(err))
		return p.result(stateDeferred)
	}

	// A submitted transaction may have been mined and spent the balance since, so it is
	// reconciled before eligibility is looked at.
	var tx *txdecode.DecodedTx
	if submission != nil && submission.Hash == p.entry.TxHash {
		if tx, err = p.decode(); err != nil {
			return p.reject(ctx, err.Error())
		}
		if res, done := p.resume(ctx, address, tx); done {
			return res
		}
	}

	eligible, err := p.q.eligible(ctx, address, p.entry.RequiredValue)
	if err != nil {
		p.logger.Warn("failed to check sender eligibility, keeping entry", zap.Error(err))
		return p.result(stateDeferred)
	}
	if !eligible {
		return p.result(stateIdle)
	}

	if tx == nil {
		if tx, err = p.decode(); err != nil {
			return p.reject(ctx, err.Error())
		}
	}

	err = p.q.store.MarkSubmitted(ctx, p.entry.Address, relay.Submission{
		Hash:        tx.Hash,
		NonceKey:    p.nonceKey,
		SubmittedAt: p.q.now(),
	})
	if err != nil {
		p.logger.Warn("failed to write submission marker, keeping entry", zap.Error(err))
		return p.result(stateDeferred)
	}

	hash, err := p.q.sendTx(ctx, tx.Raw)
	if err != nil {
		if ctx.Err() != nil {
			p.logger.Warn("broadcast interrupted, keeping entry", zap.Error(err))
			return p.result(stateDeferred)
		}
		return p.reject(ctx, err.Error())
	}
	p.sent = true
	if hash == (common.Hash{}) {
		hash = tx.Tx.Hash()
	}
	p.logger.Debug("sent queued transaction", zap.String("submitted", hash.Hex()))

	receipt, err := p.q.waitReceipt(ctx, hash)
	switch {
	case errors.Is(err, ethereum.NotFound), err != nil && ctx.Err() != nil:
		p.logger.Info("transaction is not mined yet, keeping entry", zap.Error(err))
		return p.result(stateDeferred)
	case err != nil:
		return p.reject(ctx, err.Error())
	}

	return p.finalize(ctx, tx, receipt)
}

// decode parses the raw transaction of the entry and checks it is signed by the
// entry address.
func (p *entryProcess) decode() (*txdecode.DecodedTx, error) {
	tx, err := txdecode.Decode(p.entry.RawTx)
	if err != nil {
		return nil, err
	}
	p.nonceKey = tx.NonceKey()
	p.logger = p.logger.With(zap.String("nonce", p.nonceKey))

	if tx.Sender != p.entry.Address {
		return nil, fmt.Errorf("transaction is signed by %s", tx.Sender)
	}
	return tx, nil
}

// resume handles an entry whose broadcast was attempted by an earlier pass. done is
// false when the transaction has to be broadcast again, once the sender is eligible.
func (p *entryProcess) resume(ctx context.Context, address common.Address, tx *txdecode.DecodedTx) (entryResult, bool) {
	receipt, err := p.q.lookupReceipt(ctx, tx.Tx.Hash())
	switch {
	case err == nil:
		p.logger.Info("found receipt of previously submitted transaction")
		return p.finalize(ctx, tx, receipt), true
	case !errors.Is(err, ethereum.NotFound):
		p.logger.Warn("failed to look up receipt of submitted transaction, keeping entry", zap.Error(err))
		return p.result(stateDeferred), true
	}

	nonce, err := p.q.nonceAt(ctx, address)
	if err != nil {
		p.logger.Warn("failed to get account nonce, keeping entry", zap.Error(err))
		return p.result(stateDeferred), true
	}
	if nonce > tx.Tx.Nonce() {
		return p.reject(ctx, fmt.Sprintf("nonce %d already used by another transaction", tx.Tx.Nonce())), true
	}

	p.logger.Info("submitted transaction is unknown to the ledger, broadcasting again")
	return entryResult{}, false
}

func (p *entryProcess) finalize(ctx context.Context, tx *txdecode.DecodedTx, receipt *types.Receipt) entryResult {
	if receipt.Status != types.ReceiptStatusSuccessful {
		return p.reject(ctx, fmt.Sprintf("transaction %s reverted", tx.Hash))
	}

	var event *relay.Event
	for _, e := range p.q.parser.Parse(receipt.Logs) {
		if e.Name == p.q.cfg.ExpectedEvent {
			event = &e
			break
		}
	}
	if event == nil {
		return p.reject(ctx, fmt.Sprintf("could not find %s event log in %s", p.q.cfg.ExpectedEvent, tx.Hash))
	}

	accepted, ok := event.Params[p.q.cfg.AcceptedField].(*big.Int)
	if !ok || accepted == nil {
		return p.reject(ctx, fmt.Sprintf("%s event log in %s has no integer %s param",
			p.q.cfg.ExpectedEvent, tx.Hash, p.q.cfg.AcceptedField))
	}

	err := p.q.store.Confirm(ctx, p.entry.Address, p.nonceKey, p.entry.TxHash, accepted)
	if err == nil {
		p.logger.Info("confirmed queued transaction", zap.String("accepted", accepted.String()))
	}
	return p.resolved(err, stateConfirmed)
}

func (p *entryProcess) reject(ctx context.Context, reason string) entryResult {
	p.logger.Error("rejected queued transaction", zap.String("error", reason))
	return p.resolved(p.q.store.Reject(ctx, p.entry.Address, p.nonceKey, p.entry.TxHash, reason), stateRejected)
}

func (p *entryProcess) resolved(err error, state entryState) entryResult {
	switch {
	case err == nil:
		return p.result(state)
	case errors.Is(err, relay.ErrOutcomeExists):
		p.logger.Warn("terminal record already exists, pending entry dropped", zap.Error(err))
		return p.result(stateRejected)
	default:
		p.logger.Error("failed to store terminal record, keeping entry", zap.Error(err))
		return p.result(stateDeferred)
	}
}

func (p *entryProcess) result(state entryState) entryResult {
	return entryResult{state: state, sent: p.sent}
}

// eligible fetches the balance and certification of address concurrently.
func (q *QueueConsumer) eligible(ctx context.Context, address common.Address, required *big.Int) (bool, error) {
	var (
		balance   *big.Int
		certified bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ctx, cancel := context.WithTimeout(gctx, q.cfg.CallTimeout)
		defer cancel()

		var err error
		if balance, err = q.ledger.Balance(ctx, address); err != nil {
			return fmt.Errorf("failed to get balance: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		ctx, cancel := context.WithTimeout(gctx, q.cfg.CallTimeout)
		defer cancel()

		var err error
		if certified, err = q.certifier.IsCertified(ctx, address); err != nil {
			return fmt.Errorf("failed to get certification: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return false, err
	}

	if !certified || balance == nil {
		return false, nil
	}
	if required == nil {
		required = new(big.Int)
	}
	return balance.Cmp(required) >= 0, nil
}
