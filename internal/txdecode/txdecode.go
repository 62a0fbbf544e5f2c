package txdecode

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/parity-sale/relay-queue/internal/relay"
)

// DecodedTx holds the fields of a signed transaction the relay needs. Amounts are
// big integers: wei values routinely exceed 64 bits.
type DecodedTx struct {
	Tx       *types.Transaction
	Raw      []byte
	Sender   string
	Hash     string
	Nonce    *big.Int
	Value    *big.Int
	GasPrice *big.Int
	GasLimit *big.Int
}

// Decode parses a 0x-prefixed hex signed transaction (legacy RLP or EIP-2718 typed)
// and recovers its sender. An invalid signature is an error.
func Decode(rawTx string) (*DecodedTx, error) {
	raw, err := hexutil.Decode(strings.TrimSpace(rawTx))
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction hex: %w", err)
	}

	return DecodeBytes(raw)
}

// DecodeBytes is Decode for raw bytes.
func DecodeBytes(raw []byte) (*DecodedTx, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}

	sender, err := types.Sender(signerFor(tx), tx)
	if err != nil {
		return nil, fmt.Errorf("failed to recover transaction sender: %w", err)
	}

	// GasPrice is the fee cap for dynamic fee transactions, the most the sender can be charged.
	gasPrice := tx.GasPrice()
	if gasPrice == nil {
		gasPrice = new(big.Int)
	}
	value := tx.Value()
	if value == nil {
		value = new(big.Int)
	}

	return &DecodedTx{
		Tx:       tx,
		Raw:      raw,
		Sender:   relay.NormalizeAddress(sender.Hex()),
		Hash:     tx.Hash().Hex(),
		Nonce:    new(big.Int).SetUint64(tx.Nonce()),
		Value:    new(big.Int).Set(value),
		GasPrice: new(big.Int).Set(gasPrice),
		GasLimit: new(big.Int).SetUint64(tx.Gas()),
	}, nil
}

// RequiredValue is the balance the sender needs for the transaction to be
// accepted: value + gasPrice * gasLimit.
func (d *DecodedTx) RequiredValue() *big.Int {
	gas := new(big.Int).Mul(d.GasPrice, d.GasLimit)
	return gas.Add(gas, d.Value)
}

// NonceKey is the nonce formatted for terminal record keys.
func (d *DecodedTx) NonceKey() string {
	return relay.NonceKey(d.Nonce.Uint64())
}

// PendingEntry builds the queue entry for the transaction.
func (d *DecodedTx) PendingEntry(rawTx string) relay.PendingEntry {
	return relay.PendingEntry{
		Address:       d.Sender,
		RawTx:         rawTx,
		TxHash:        d.Hash,
		RequiredValue: d.RequiredValue(),
	}
}

func signerFor(tx *types.Transaction) types.Signer {
	if !tx.Protected() {
		return types.HomesteadSigner{}
	}
	return types.LatestSignerForChainID(tx.ChainId())
}
