package contracts

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/parity-sale/relay-queue/internal/relay"
)

// Sale decodes auction contract logs and reads its configuration.
type Sale struct {
	address common.Address
	abi     abi.ABI
	caller  ethereum.ContractCaller
}

func NewSale(address common.Address, caller ethereum.ContractCaller) (*Sale, error) {
	parsed, err := parseABI("sale", SaleABI)
	if err != nil {
		return nil, err
	}
	return &Sale{address: address, abi: parsed, caller: caller}, nil
}

// Parse returns the events found in logs emitted by the sale contract, in log
// order. Logs of other contracts, unknown topics and undecodable data are skipped.
func (s *Sale) Parse(logs []*types.Log) []relay.Event {
	var events []relay.Event
	for _, l := range logs {
		if l == nil || l.Address != s.address || len(l.Topics) == 0 {
			continue
		}

		event, err := s.abi.EventByID(l.Topics[0])
		if err != nil {
			continue
		}

		params := make(map[string]interface{}, len(event.Inputs))
		if err := s.abi.UnpackIntoMap(params, event.Name, l.Data); err != nil {
			continue
		}

		var indexed abi.Arguments
		for _, arg := range event.Inputs {
			if arg.Indexed {
				indexed = append(indexed, arg)
			}
		}
		if err := abi.ParseTopicsIntoMap(params, indexed, l.Topics[1:]); err != nil {
			continue
		}

		events = append(events, relay.Event{Name: event.Name, Params: params})
	}
	return events
}

// Certifier reads the certifier contract address configured in the sale.
func (s *Sale) Certifier(ctx context.Context) (common.Address, error) {
	data, err := s.abi.Pack("certifier")
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to pack certifier call: %w", err)
	}

	out, err := s.caller.CallContract(ctx, ethereum.CallMsg{To: &s.address, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to call certifier(): %w", err)
	}

	res, err := s.abi.Unpack("certifier", out)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to unpack certifier(): %w", err)
	}
	address, ok := res[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected certifier() result type %T", res[0])
	}
	return address, nil
}
