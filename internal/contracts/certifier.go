package contracts

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Certifier answers whether an account passed certification.
type Certifier struct {
	address common.Address
	abi     abi.ABI
	caller  ethereum.ContractCaller
}

func NewCertifier(address common.Address, caller ethereum.ContractCaller) (*Certifier, error) {
	parsed, err := parseABI("certifier", CertifierABI)
	if err != nil {
		return nil, err
	}
	return &Certifier{address: address, abi: parsed, caller: caller}, nil
}

func (c *Certifier) IsCertified(ctx context.Context, account common.Address) (bool, error) {
	data, err := c.abi.Pack("certified", account)
	if err != nil {
		return false, fmt.Errorf("failed to pack certified call: %w", err)
	}

	out, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("failed to call certified(%s): %w", account.Hex(), err)
	}

	res, err := c.abi.Unpack("certified", out)
	if err != nil {
		return false, fmt.Errorf("failed to unpack certified(%s): %w", account.Hex(), err)
	}
	certified, ok := res[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected certified() result type %T", res[0])
	}
	return certified, nil
}
