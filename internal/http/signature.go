package http

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/parity-sale/relay-queue/internal/relay"
)

// CancelMessage is the text the owner of address signs to withdraw the pending transaction hash.
func CancelMessage(hash string) string {
	return "delete_tx_" + hash
}

// verifySignature checks that signature is a personal_sign signature of message by address.
func verifySignature(address, message, signature string) error {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("invalid signature length %d", len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return fmt.Errorf("failed to recover signer: %w", err)
	}

	signer := relay.NormalizeAddress(crypto.PubkeyToAddress(*pub).Hex())
	if signer != relay.NormalizeAddress(strings.TrimSpace(address)) {
		return fmt.Errorf("signature was made by %s", signer)
	}
	return nil
}
