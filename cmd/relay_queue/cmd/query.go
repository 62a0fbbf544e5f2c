package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	relayhttp "github.com/parity-sale/relay-queue/internal/http"
)

var urlRelayQueue string

const (
	UrlFlagName = "url"
)

// QueryCmd represents the query command
var QueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the relay queue api",
}

func init() {
	QueryCmd.PersistentFlags().StringVarP(&urlRelayQueue, UrlFlagName, "u", "http://localhost:9999", "server url")
	QueryCmd.AddCommand(pendingCmd)
	QueryCmd.AddCommand(outcomeCmd)
	RootCmd.AddCommand(QueryCmd)
}

// pendingCmd represents the pending command
var pendingCmd = &cobra.Command{
	Use:   "pending <address>",
	Args:  cobra.ExactArgs(1),
	Short: "Query the pending transaction of an address",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}

		pending, err := client.GetPending(args[0])
		if err != nil {
			return fmt.Errorf("failed to get pending transaction: %w", err)
		}

		return printJSON("Pending transaction", pending)
	},
}

// outcomeCmd represents the outcome command
var outcomeCmd = &cobra.Command{
	Use:   "outcome <address> <nonce>",
	Args:  cobra.ExactArgs(2),
	Short: "Query the terminal record of an address and a hex nonce (-1 for a cancellation)",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}

		outcome, err := client.GetOutcome(args[0], args[1])
		if err != nil {
			return fmt.Errorf("failed to get outcome: %w", err)
		}

		return printJSON("Outcome", outcome)
	},
}

func newClient(cmd *cobra.Command) (*relayhttp.RelayQueueClient, error) {
	url, err := cmd.Flags().GetString(UrlFlagName)
	if err != nil {
		return nil, err
	}

	client, err := relayhttp.NewRelayQueueClient(url)
	if err != nil {
		return nil, fmt.Errorf("failed to get new relay queue client: %w", err)
	}
	return client, nil
}

func printJSON(title string, v interface{}) error {
	var response bytes.Buffer
	encoder := json.NewEncoder(&response)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	fmt.Printf("%s:\n%s\n", title, response.String())
	return nil
}
