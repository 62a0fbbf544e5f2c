package relay

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Ledger is the part of the node connection the queue consumer needs.
type Ledger interface {
	Balance(ctx context.Context, address common.Address) (*big.Int, error)
	SendTx(ctx context.Context, rawTx []byte) (common.Hash, error)
	// TransactionReceipt returns ethereum.NotFound while the transaction is not mined.
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	NonceAt(ctx context.Context, address common.Address) (uint64, error)
}

// BlockSource delivers new block numbers. Delivery is at-least-once.
type BlockSource interface {
	Blocks(ctx context.Context) (<-chan uint64, error)
}

// Certifier tells whether an address passed identity certification.
type Certifier interface {
	IsCertified(ctx context.Context, address common.Address) (bool, error)
}

// EventParser decodes receipt logs into named contract events.
type EventParser interface {
	Parse(logs []*types.Log) []Event
}
