package relay

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// CancelledNonce is the nonce key of a terminal record written for a pending
// entry that was withdrawn by its owner rather than processed.
const CancelledNonce = "-1"

// PendingEntry is a signed transaction waiting until its sender is funded and certified.
type PendingEntry struct {
	// Address is the lowercase 0x-prefixed sender address. There is at most one entry per address.
	Address string
	// RawTx is the 0x-prefixed hex of the signed transaction.
	RawTx string
	// TxHash is the hash of RawTx, known before the transaction is broadcast.
	TxHash string
	// RequiredValue is the minimum balance (value + gas budget) the sender must hold.
	RequiredValue *big.Int
}

// Submission marks that a broadcast of the pending transaction has been attempted.
// It lets a later pass resolve the entry from its receipt instead of broadcasting again.
type Submission struct {
	Hash        string
	NonceKey    string
	SubmittedAt time.Time
}

// Outcome is the immutable terminal record of a queued transaction: either *Confirmed or *Rejected.
type Outcome interface {
	isOutcome()
}

// Confirmed is written when the ledger accepted the transaction and the expected event was emitted.
type Confirmed struct {
	Hash  string
	Value *big.Int
}

// Rejected is written when processing the entry failed for any reason.
type Rejected struct {
	Reason string
}

func (*Confirmed) isOutcome() {}
func (*Rejected) isOutcome()  {}

// Event is a decoded contract log.
type Event struct {
	Name   string
	Params map[string]interface{}
}

// PassResult summarises one scan pass over the queue.
type PassResult struct {
	Visited   int
	Sent      int
	Confirmed int
	Rejected  int
	Deferred  int
}

// NormalizeAddress returns the canonical lowercase form of a hex address.
func NormalizeAddress(address string) string {
	return strings.ToLower(address)
}

// NonceKey formats a nonce the way it appears in terminal record keys.
func NonceKey(nonce uint64) string {
	return hexutil.EncodeUint64(nonce)
}
