package relay

import (
	"context"
	"fmt"
)

const cancelReason = "cancelled by user"

// CancelPending withdraws the pending transaction hash of address. The entry is resolved
// as rejected under CancelledNonce, so a nonce it may later be resubmitted with stays
// free. ErrEntryReplaced is returned if another transaction was queued in the meantime.
func CancelPending(ctx context.Context, store QueueStore, address, hash string) error {
	if err := store.Reject(ctx, NormalizeAddress(address), CancelledNonce, hash, cancelReason); err != nil {
		return fmt.Errorf("failed to cancel pending entry: %w", err)
	}

	return nil
}
