package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ExecCmd represents the exec command
var ExecCmd = &cobra.Command{
	Use:   "exec",
	Short: "Change the relay queue through its api",
}

func init() {
	ExecCmd.PersistentFlags().StringVarP(&urlRelayQueue, UrlFlagName, "u", "http://localhost:9999", "server url")
	ExecCmd.AddCommand(cancelCmd)
	RootCmd.AddCommand(ExecCmd)
}

// cancelCmd represents the cancel command
var cancelCmd = &cobra.Command{
	Use:   "cancel <address> <signature>",
	Args:  cobra.ExactArgs(2),
	Short: "Cancel a pending transaction with a personal_sign of delete_tx_<hash>",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}

		if err := client.CancelPending(args[0], args[1]); err != nil {
			return fmt.Errorf("failed to cancel pending transaction: %w", err)
		}

		fmt.Printf("Pending transaction of %s cancelled successfully\n", args[0])
		return nil
	},
}
