package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Dial connects to the node at nodeURL (ws, wss, ipc or http).
func Dial(ctx context.Context, nodeURL string, timeout time.Duration) (*ethclient.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, nodeURL)
	if err != nil {
		return nil, fmt.Errorf("could not dial node %s: %w", nodeURL, err)
	}
	return client, nil
}
