package http

import (
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/parity-sale/relay-queue/internal/relay"
)

const (
	PendingResource   = "/pending/{address}"
	CancelResource    = "/pending/{address}/{signature}"
	OutcomeResource   = "/outcome/{address}/{nonce}"
	PrometheusMetrics = "/metrics"
)

const (
	OutcomeConfirmed = "confirmed"
	OutcomeRejected  = "rejected"
)

type PendingView struct {
	Address  string       `json:"address"`
	Tx       string       `json:"tx"`
	Hash     string       `json:"hash"`
	Required *hexutil.Big `json:"required"`
}

type PendingResponse struct {
	Pending *PendingView `json:"pending"`
}

type OutcomeView struct {
	Kind  string       `json:"kind"`
	Hash  string       `json:"hash,omitempty"`
	Value *hexutil.Big `json:"value,omitempty"`
	Error string       `json:"error,omitempty"`
}

type OutcomeResponse struct {
	Outcome *OutcomeView `json:"outcome"`
}

type ResultResponse struct {
	Result string `json:"result"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func newPendingView(entry *relay.PendingEntry) *PendingView {
	if entry == nil {
		return nil
	}
	return &PendingView{
		Address:  entry.Address,
		Tx:       entry.RawTx,
		Hash:     entry.TxHash,
		Required: (*hexutil.Big)(entry.RequiredValue),
	}
}

func newOutcomeView(outcome relay.Outcome) *OutcomeView {
	switch o := outcome.(type) {
	case *relay.Confirmed:
		return &OutcomeView{Kind: OutcomeConfirmed, Hash: o.Hash, Value: (*hexutil.Big)(o.Value)}
	case *relay.Rejected:
		return &OutcomeView{Kind: OutcomeRejected, Error: o.Reason}
	default:
		return nil
	}
}
