package relay

import (
	"context"
	"errors"
	"math/big"
)

var (
	// ErrOutcomeExists is returned when a terminal record is already stored for an (address, nonce) pair.
	ErrOutcomeExists = errors.New("terminal record already exists")
	// ErrNoPendingEntry is returned when an operation requires a pending entry that is not there.
	ErrNoPendingEntry = errors.New("no pending transaction")
	// ErrEntryReplaced is returned when the pending entry holds another transaction than the one asked for.
	ErrEntryReplaced = errors.New("pending transaction was replaced")
)

// QueueStore is the durable map holding pending entries and their terminal records.
// Confirm and Reject write the terminal record of the transaction hash and, in the same
// atomic transition, remove the pending entry and its submission marker if the entry
// still holds hash. An entry replaced by a later Set survives. A terminal record is never
// replaced: when one already exists for the pair, the entry is dropped all the same and
// ErrOutcomeExists returned. Under CancelledNonce nothing is written unless the entry
// holds hash (ErrNoPendingEntry, ErrEntryReplaced).
type QueueStore interface {
	Set(ctx context.Context, entry PendingEntry) error
	Get(ctx context.Context, address string) (*PendingEntry, error)
	ScanPage(ctx context.Context, cursor Cursor, count int) (Page, error)
	Confirm(ctx context.Context, address, nonceKey, hash string, value *big.Int) error
	Reject(ctx context.Context, address, nonceKey, hash, reason string) error
	MarkSubmitted(ctx context.Context, address string, submission Submission) error
	GetSubmission(ctx context.Context, address string) (*Submission, error)
	GetOutcome(ctx context.Context, address, nonceKey string) (Outcome, error)
	PendingCount(ctx context.Context) (int64, error)
	Close() error
}
