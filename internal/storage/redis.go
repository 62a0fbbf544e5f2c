package storage

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/parity-sale/relay-queue/internal/relay"
)

// resolveAttempts bounds the optimistic-lock retries of Confirm and Reject.
const resolveAttempts = 10

// RedisQueueStore keeps the queue in Redis:
//   - <prefix>:queue      hash of address -> pending entry
//   - <prefix>:submitted  hash of address -> submission marker
//   - <prefix>:done:<address>:<nonce>  terminal record
type RedisQueueStore struct {
	client       *redis.Client
	queueKey     string
	submittedKey string
	donePrefix   string
	logger       *zap.Logger
}

// RedisOptions describes how to reach the Redis server.
type RedisOptions struct {
	Addr        string
	Password    string
	DB          int
	ReadTimeout time.Duration
}

// NewRedisQueueStore connects to Redis and checks the connection with a PING.
func NewRedisQueueStore(ctx context.Context, opts RedisOptions, prefix string, logger *zap.Logger) (*RedisQueueStore, error) {
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = time.Second * 20
	}

	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		ReadTimeout: opts.ReadTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", opts.Addr, err)
	}

	return NewRedisQueueStoreFromClient(client, prefix, logger), nil
}

// NewRedisQueueStoreFromClient wraps an existing client.
func NewRedisQueueStoreFromClient(client *redis.Client, prefix string, logger *zap.Logger) *RedisQueueStore {
	return &RedisQueueStore{
		client:       client,
		queueKey:     prefix + ":queue",
		submittedKey: prefix + ":submitted",
		donePrefix:   prefix + ":done",
		logger:       logger,
	}
}

func (s *RedisQueueStore) doneKey(address, nonceKey string) string {
	return fmt.Sprintf("%s:%s:%s", s.donePrefix, address, nonceKey)
}

// Set upserts the pending entry of entry.Address; the latest submission wins.
func (s *RedisQueueStore) Set(ctx context.Context, entry relay.PendingEntry) error {
	entry.Address = relay.NormalizeAddress(entry.Address)
	data, err := encodePending(entry)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.queueKey, entry.Address, data)
		pipe.HDel(ctx, s.submittedKey, entry.Address)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set pending entry for %s: %w", entry.Address, err)
	}

	return nil
}

// Get returns the pending entry of address or nil if there is none.
func (s *RedisQueueStore) Get(ctx context.Context, address string) (*relay.PendingEntry, error) {
	address = relay.NormalizeAddress(address)

	data, err := s.client.HGet(ctx, s.queueKey, address).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pending entry for %s: %w", address, err)
	}

	return decodePending(address, data)
}

// ScanPage runs one HSCAN step. COUNT is a hint for Redis, so a page may hold more
// or fewer than count entries, and an entry may show up on more than one page.
func (s *RedisQueueStore) ScanPage(ctx context.Context, cursor relay.Cursor, count int) (relay.Page, error) {
	if cursor.Exhausted() {
		return relay.Page{Next: relay.ExhaustedCursor}, nil
	}

	var wire uint64
	if !cursor.IsStart() {
		var err error
		wire, err = strconv.ParseUint(cursor.Token(), 10, 64)
		if err != nil {
			return relay.Page{}, fmt.Errorf("invalid redis cursor %q: %w", cursor.Token(), err)
		}
	}

	kvs, next, err := s.client.HScan(ctx, s.queueKey, wire, "", int64(count)).Result()
	if err != nil {
		return relay.Page{}, fmt.Errorf("failed to scan %s: %w", s.queueKey, err)
	}

	// kvs alternates field, value.
	entries := make([]relay.PendingEntry, 0, len(kvs)/2)
	for i := 0; i+1 < len(kvs); i += 2 {
		entry, err := decodePending(kvs[i], []byte(kvs[i+1]))
		if err != nil {
			s.logger.Error("skipping undecodable pending entry", zap.String("address", kvs[i]), zap.Error(err))
			continue
		}
		entries = append(entries, *entry)
	}

	page := relay.Page{Entries: entries, Next: relay.CursorAt(strconv.FormatUint(next, 10))}
	// The server reports the end of an iteration with the same 0 it starts from.
	if next == 0 {
		page.Next = relay.ExhaustedCursor
	}

	return page, nil
}

// Confirm resolves the pending transaction hash of address as accepted by the ledger.
func (s *RedisQueueStore) Confirm(ctx context.Context, address, nonceKey, hash string, value *big.Int) error {
	return s.resolve(ctx, address, nonceKey, hash, &relay.Confirmed{Hash: hash, Value: value})
}

// Reject resolves the pending transaction hash of address as failed.
func (s *RedisQueueStore) Reject(ctx context.Context, address, nonceKey, hash, reason string) error {
	return s.resolve(ctx, address, nonceKey, hash, &relay.Rejected{Reason: reason})
}

// resolve writes the terminal record and, when the pending entry of address still
// holds hash, removes it and its submission marker, all in one MULTI/EXEC. The queue
// and the done key are WATCHed: an entry replaced by a newer Set is left alone and an
// existing record is never overwritten (ErrOutcomeExists).
func (s *RedisQueueStore) resolve(ctx context.Context, address, nonceKey, hash string, outcome relay.Outcome) error {
	address = relay.NormalizeAddress(address)
	doneKey := s.doneKey(address, nonceKey)

	data, err := encodeOutcome(outcome)
	if err != nil {
		return err
	}

	txf := func(tx *redis.Tx) error {
		current, err := s.pending(ctx, tx, address)
		if err != nil {
			return err
		}
		owned := holds(current, hash)
		if nonceKey == relay.CancelledNonce && owned != nil {
			return owned
		}

		exists := false
		if nonceKey != relay.CancelledNonce {
			n, err := tx.Exists(ctx, doneKey).Result()
			if err != nil {
				return err
			}
			exists = n > 0
		}
		if exists && owned != nil {
			return relay.ErrOutcomeExists
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if owned == nil {
				pipe.HDel(ctx, s.queueKey, address)
				pipe.HDel(ctx, s.submittedKey, address)
			}
			if !exists {
				pipe.Set(ctx, doneKey, data, 0)
			}
			return nil
		})
		if err == nil && exists {
			return relay.ErrOutcomeExists
		}
		return err
	}

	for i := 0; i < resolveAttempts; i++ {
		err = s.client.Watch(ctx, txf, s.queueKey, doneKey)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, relay.ErrOutcomeExists), errors.Is(err, relay.ErrNoPendingEntry), errors.Is(err, relay.ErrEntryReplaced):
		return fmt.Errorf("failed to resolve %s: %w", doneKey, err)
	default:
		return fmt.Errorf("failed to write terminal record %s: %w", doneKey, err)
	}
}

func (s *RedisQueueStore) pending(ctx context.Context, tx *redis.Tx, address string) (*relay.PendingEntry, error) {
	data, err := tx.HGet(ctx, s.queueKey, address).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodePending(address, data)
}

// MarkSubmitted records that the pending transaction of address is about to be broadcast.
func (s *RedisQueueStore) MarkSubmitted(ctx context.Context, address string, submission relay.Submission) error {
	address = relay.NormalizeAddress(address)
	data, err := encodeSubmission(submission)
	if err != nil {
		return fmt.Errorf("failed to marshal submission: %w", err)
	}

	if err := s.client.HSet(ctx, s.submittedKey, address, data).Err(); err != nil {
		return fmt.Errorf("failed to mark %s submitted: %w", address, err)
	}

	return nil
}

// GetSubmission returns the submission marker of address or nil.
func (s *RedisQueueStore) GetSubmission(ctx context.Context, address string) (*relay.Submission, error) {
	address = relay.NormalizeAddress(address)

	data, err := s.client.HGet(ctx, s.submittedKey, address).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get submission for %s: %w", address, err)
	}

	return decodeSubmission(data)
}

// GetOutcome returns the terminal record for (address, nonceKey) or nil.
func (s *RedisQueueStore) GetOutcome(ctx context.Context, address, nonceKey string) (relay.Outcome, error) {
	doneKey := s.doneKey(relay.NormalizeAddress(address), nonceKey)

	data, err := s.client.Get(ctx, doneKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s: %w", doneKey, err)
	}

	return decodeOutcome(data)
}

// PendingCount returns the number of pending entries.
func (s *RedisQueueStore) PendingCount(ctx context.Context) (int64, error) {
	n, err := s.client.HLen(ctx, s.queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", s.queueKey, err)
	}
	return n, nil
}

func (s *RedisQueueStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	return nil
}
