package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parity-sale/relay-queue/internal/app"
	"github.com/parity-sale/relay-queue/internal/config"
	"github.com/parity-sale/relay-queue/internal/txdecode"
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode <rawTx>",
	Args:  cobra.ExactArgs(1),
	Short: "Decode a signed transaction and print the fields the queue uses",
	RunE: func(cmd *cobra.Command, args []string) error {
		tx, err := txdecode.Decode(args[0])
		if err != nil {
			return err
		}

		entry := tx.PendingEntry(args[0])
		fmt.Println("Sender:", tx.Sender)
		fmt.Println("Hash:", tx.Hash)
		fmt.Println("Nonce:", tx.NonceKey())
		fmt.Println("Value:", tx.Value)
		fmt.Println("Gas price:", tx.GasPrice)
		fmt.Println("Gas limit:", tx.GasLimit)
		fmt.Println("Required balance:", entry.RequiredValue)
		return nil
	},
}

// enqueueCmd represents the enqueue command
var enqueueCmd = &cobra.Command{
	Use:   "enqueue <rawTx>",
	Args:  cobra.ExactArgs(1),
	Short: "Put a signed transaction into the queue, replacing the pending one of its sender",
	Long: "Put a signed transaction into the queue, replacing the pending one of its sender.\n" +
		"The storage is configured from the same environment as the start command. A LevelDB\n" +
		"storage can only be opened while the relay queue is stopped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := config.NewLogger()
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}

		tx, err := txdecode.Decode(args[0])
		if err != nil {
			return err
		}

		cfg, err := config.NewRelayQueueConfig(logger)
		if err != nil {
			return fmt.Errorf("cannot initialize relay queue config: %w", err)
		}

		ctx := context.Background()
		store, err := app.NewDefaultStorage(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("failed to close storage", zap.Error(err))
			}
		}()

		entry := tx.PendingEntry(args[0])
		if err := store.Set(ctx, entry); err != nil {
			return fmt.Errorf("failed to enqueue transaction: %w", err)
		}

		fmt.Printf("Transaction %s of %s queued, required balance %s\n", entry.TxHash, entry.Address, entry.RequiredValue)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(decodeCmd)
	RootCmd.AddCommand(enqueueCmd)
}
