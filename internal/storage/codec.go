package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/parity-sale/relay-queue/internal/relay"
)

const recordVersion = 1

const (
	kindConfirmed = "confirmed"
	kindRejected  = "rejected"
)

// ErrUnknownVersion is returned when a stored record was written with a newer schema.
var ErrUnknownVersion = errors.New("unknown record version")

type pendingRecord struct {
	Version  int          `json:"v"`
	Tx       string       `json:"tx"`
	Hash     string       `json:"hash"`
	Required *hexutil.Big `json:"required"`
}

type submissionRecord struct {
	Version     int       `json:"v"`
	Hash        string    `json:"hash"`
	Nonce       string    `json:"nonce"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// outcomeRecord keeps the {hash, value} / {error} shapes readable by older consumers
// of the done keys and adds an explicit kind tag.
type outcomeRecord struct {
	Version int          `json:"v"`
	Kind    string       `json:"kind"`
	Hash    string       `json:"hash,omitempty"`
	Value   *hexutil.Big `json:"value,omitempty"`
	Error   string       `json:"error,omitempty"`
}

func encodePending(entry relay.PendingEntry) ([]byte, error) {
	if entry.RequiredValue == nil {
		return nil, fmt.Errorf("pending entry for %s has no required value", entry.Address)
	}
	return json.Marshal(pendingRecord{
		Version:  recordVersion,
		Tx:       entry.RawTx,
		Hash:     entry.TxHash,
		Required: (*hexutil.Big)(entry.RequiredValue),
	})
}

func decodePending(address string, data []byte) (*relay.PendingEntry, error) {
	var rec pendingRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending entry for %s: %w", address, err)
	}
	if err := checkVersion(rec.Version); err != nil {
		return nil, err
	}
	if rec.Required == nil {
		return nil, fmt.Errorf("pending entry for %s has no required value", address)
	}

	return &relay.PendingEntry{
		Address:       address,
		RawTx:         rec.Tx,
		TxHash:        rec.Hash,
		RequiredValue: rec.Required.ToInt(),
	}, nil
}

// holds returns nil when entry is the pending transaction hash, ErrNoPendingEntry
// when there is no entry and ErrEntryReplaced when a newer Set put another one.
func holds(entry *relay.PendingEntry, hash string) error {
	switch {
	case entry == nil:
		return relay.ErrNoPendingEntry
	case !strings.EqualFold(entry.TxHash, hash):
		return relay.ErrEntryReplaced
	default:
		return nil
	}
}

func encodeSubmission(s relay.Submission) ([]byte, error) {
	return json.Marshal(submissionRecord{
		Version:     recordVersion,
		Hash:        s.Hash,
		Nonce:       s.NonceKey,
		SubmittedAt: s.SubmittedAt.UTC(),
	})
}

func decodeSubmission(data []byte) (*relay.Submission, error) {
	var rec submissionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal submission: %w", err)
	}
	if err := checkVersion(rec.Version); err != nil {
		return nil, err
	}

	return &relay.Submission{
		Hash:        rec.Hash,
		NonceKey:    rec.Nonce,
		SubmittedAt: rec.SubmittedAt,
	}, nil
}

func encodeOutcome(outcome relay.Outcome) ([]byte, error) {
	rec := outcomeRecord{Version: recordVersion}
	switch o := outcome.(type) {
	case *relay.Confirmed:
		if o.Value == nil {
			return nil, errors.New("confirmed outcome has no value")
		}
		rec.Kind = kindConfirmed
		rec.Hash = o.Hash
		rec.Value = (*hexutil.Big)(o.Value)
	case *relay.Rejected:
		rec.Kind = kindRejected
		rec.Error = o.Reason
	default:
		return nil, fmt.Errorf("unsupported outcome type %T", outcome)
	}

	return json.Marshal(rec)
}

func decodeOutcome(data []byte) (relay.Outcome, error) {
	var rec outcomeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outcome: %w", err)
	}
	if err := checkVersion(rec.Version); err != nil {
		return nil, err
	}

	switch rec.Kind {
	case kindConfirmed:
		value := new(big.Int)
		if rec.Value != nil {
			value = rec.Value.ToInt()
		}
		return &relay.Confirmed{Hash: rec.Hash, Value: value}, nil
	case kindRejected:
		return &relay.Rejected{Reason: rec.Error}, nil
	default:
		return nil, fmt.Errorf("unknown outcome kind %q", rec.Kind)
	}
}

func checkVersion(v int) error {
	if v != recordVersion {
		return fmt.Errorf("%w: %d", ErrUnknownVersion, v)
	}
	return nil
}
