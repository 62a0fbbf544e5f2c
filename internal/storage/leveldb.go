package storage

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"

	"github.com/parity-sale/relay-queue/internal/relay"
)

// LevelDBQueueStore is an embedded QueueStore for single-process deployments.
// It has three key spaces:
//   - <prefix>:queue:<address>      -> pending entry
//   - <prefix>:submitted:<address>  -> submission marker
//   - <prefix>:done:<address>:<nonce> -> terminal record
//
// Keys are iterated in byte order, so a page cursor is the last address returned.
type LevelDBQueueStore struct {
	sync.Mutex
	db              *leveldb.DB
	queuePrefix     string
	submittedPrefix string
	donePrefix      string
	logger          *zap.Logger
}

func NewLevelDBQueueStore(path, prefix string, logger *zap.Logger) (*LevelDBQueueStore, error) {
	database, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}

	return NewLevelDBQueueStoreFromDB(database, prefix, logger), nil
}

// NewLevelDBQueueStoreFromDB wraps an already opened database.
func NewLevelDBQueueStoreFromDB(db *leveldb.DB, prefix string, logger *zap.Logger) *LevelDBQueueStore {
	return &LevelDBQueueStore{
		db:              db,
		queuePrefix:     prefix + ":queue:",
		submittedPrefix: prefix + ":submitted:",
		donePrefix:      prefix + ":done:",
		logger:          logger,
	}
}

func (s *LevelDBQueueStore) queueKey(address string) []byte {
	return []byte(s.queuePrefix + address)
}

func (s *LevelDBQueueStore) submittedKey(address string) []byte {
	return []byte(s.submittedPrefix + address)
}

func (s *LevelDBQueueStore) doneKey(address, nonceKey string) []byte {
	return []byte(s.donePrefix + address + ":" + nonceKey)
}

// Set upserts the pending entry and drops any submission marker of a previous transaction.
func (s *LevelDBQueueStore) Set(_ context.Context, entry relay.PendingEntry) error {
	s.Lock()
	defer s.Unlock()

	entry.Address = relay.NormalizeAddress(entry.Address)
	data, err := encodePending(entry)
	if err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	batch.Put(s.queueKey(entry.Address), data)
	batch.Delete(s.submittedKey(entry.Address))
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to set pending entry for %s: %w", entry.Address, err)
	}

	return nil
}

func (s *LevelDBQueueStore) Get(_ context.Context, address string) (*relay.PendingEntry, error) {
	address = relay.NormalizeAddress(address)

	data, err := s.db.Get(s.queueKey(address), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed getting data from db: %w", err)
	}

	return decodePending(address, data)
}

// ScanPage returns up to count entries following cursor.
func (s *LevelDBQueueStore) ScanPage(_ context.Context, cursor relay.Cursor, count int) (relay.Page, error) {
	if cursor.Exhausted() {
		return relay.Page{Next: relay.ExhaustedCursor}, nil
	}

	iterator := s.db.NewIterator(util.BytesPrefix([]byte(s.queuePrefix)), nil)
	defer iterator.Release()

	var ok bool
	if cursor.IsStart() {
		ok = iterator.First()
	} else {
		after := s.queueKey(cursor.Token())
		ok = iterator.Seek(after)
		if ok && string(iterator.Key()) == string(after) {
			ok = iterator.Next()
		}
	}

	var (
		entries []relay.PendingEntry
		last    string
	)
	for ; ok && len(entries) < count; ok = iterator.Next() {
		address := string(iterator.Key()[len(s.queuePrefix):])
		last = address
		entry, err := decodePending(address, iterator.Value())
		if err != nil {
			s.logger.Error("skipping undecodable pending entry", zap.String("address", address), zap.Error(err))
			continue
		}
		entries = append(entries, *entry)
	}
	if err := iterator.Error(); err != nil {
		return relay.Page{}, fmt.Errorf("failed to iterate pending entries: %w", err)
	}

	// ok still points at an unread key when the page was cut at count.
	if !ok {
		return relay.Page{Entries: entries, Next: relay.ExhaustedCursor}, nil
	}
	return relay.Page{Entries: entries, Next: relay.CursorAt(last)}, nil
}

func (s *LevelDBQueueStore) Confirm(_ context.Context, address, nonceKey, hash string, value *big.Int) error {
	return s.resolve(address, nonceKey, hash, &relay.Confirmed{Hash: hash, Value: value})
}

func (s *LevelDBQueueStore) Reject(_ context.Context, address, nonceKey, hash, reason string) error {
	return s.resolve(address, nonceKey, hash, &relay.Rejected{Reason: reason})
}

// resolve writes the terminal record inside one leveldb transaction. The pending entry
// and the submission marker are removed only while the entry still holds hash.
func (s *LevelDBQueueStore) resolve(address, nonceKey, hash string, outcome relay.Outcome) error {
	s.Lock()
	defer s.Unlock()

	address = relay.NormalizeAddress(address)
	doneKey := s.doneKey(address, nonceKey)

	data, err := encodeOutcome(outcome)
	if err != nil {
		return err
	}

	t, err := s.db.OpenTransaction()
	if err != nil {
		return fmt.Errorf("failed to open leveldb transaction: %w", err)
	}
	defer t.Discard()

	var current *relay.PendingEntry
	value, err := t.Get(s.queueKey(address), nil)
	switch {
	case err == leveldb.ErrNotFound:
	case err != nil:
		return fmt.Errorf("failed to read pending entry for %s: %w", address, err)
	default:
		if current, err = decodePending(address, value); err != nil {
			return err
		}
	}
	owned := holds(current, hash)
	if nonceKey == relay.CancelledNonce && owned != nil {
		return fmt.Errorf("failed to resolve %s: %w", doneKey, owned)
	}

	exists := false
	if nonceKey != relay.CancelledNonce {
		exists, err = t.Has(doneKey, nil)
		if err != nil {
			return fmt.Errorf("failed to check terminal record: %w", err)
		}
	}
	if exists && owned != nil {
		return fmt.Errorf("failed to resolve %s: %w", doneKey, relay.ErrOutcomeExists)
	}

	if owned == nil {
		if err := t.Delete(s.queueKey(address), nil); err != nil {
			return fmt.Errorf("failed to remove pending entry for %s: %w", address, err)
		}
		if err := t.Delete(s.submittedKey(address), nil); err != nil {
			return fmt.Errorf("failed to remove submission for %s: %w", address, err)
		}
	}
	if !exists {
		if err := t.Put(doneKey, data, nil); err != nil {
			return fmt.Errorf("failed to write terminal record: %w", err)
		}
	}

	if err := t.Commit(); err != nil {
		return fmt.Errorf("failed to commit terminal record: %w", err)
	}
	if exists {
		return fmt.Errorf("failed to resolve %s: %w", doneKey, relay.ErrOutcomeExists)
	}
	return nil
}

func (s *LevelDBQueueStore) MarkSubmitted(_ context.Context, address string, submission relay.Submission) error {
	address = relay.NormalizeAddress(address)
	data, err := encodeSubmission(submission)
	if err != nil {
		return fmt.Errorf("failed to marshal submission: %w", err)
	}

	s.Lock()
	defer s.Unlock()

	if err := s.db.Put(s.submittedKey(address), data, nil); err != nil {
		return fmt.Errorf("failed to mark %s submitted: %w", address, err)
	}
	return nil
}

func (s *LevelDBQueueStore) GetSubmission(_ context.Context, address string) (*relay.Submission, error) {
	data, err := s.db.Get(s.submittedKey(relay.NormalizeAddress(address)), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed getting data from db: %w", err)
	}

	return decodeSubmission(data)
}

func (s *LevelDBQueueStore) GetOutcome(_ context.Context, address, nonceKey string) (relay.Outcome, error) {
	data, err := s.db.Get(s.doneKey(relay.NormalizeAddress(address), nonceKey), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed getting data from db: %w", err)
	}

	return decodeOutcome(data)
}

func (s *LevelDBQueueStore) PendingCount(_ context.Context) (int64, error) {
	iterator := s.db.NewIterator(util.BytesPrefix([]byte(s.queuePrefix)), nil)
	defer iterator.Release()

	var n int64
	for iterator.Next() {
		n++
	}
	if err := iterator.Error(); err != nil {
		return 0, fmt.Errorf("failed to iterate pending entries: %w", err)
	}
	return n, nil
}

func (s *LevelDBQueueStore) Close() error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close db: %w", err)
	}
	return nil
}
