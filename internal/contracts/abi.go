package contracts

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// SaleABI covers the parts of the auction contract the relay reads.
const SaleABI = `[
	{"type":"function","name":"certifier","constant":true,"stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"event","name":"Buyin","anonymous":false,"inputs":[
		{"name":"who","type":"address","indexed":true},
		{"name":"accepted","type":"uint256","indexed":false},
		{"name":"refund","type":"uint256","indexed":false},
		{"name":"price","type":"uint256","indexed":false},
		{"name":"bonus","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"Injected","anonymous":false,"inputs":[
		{"name":"who","type":"address","indexed":true},
		{"name":"accepted","type":"uint256","indexed":false},
		{"name":"bonus","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"Ended","anonymous":false,"inputs":[
		{"name":"price","type":"uint256","indexed":false}
	]}
]`

// CertifierABI is the read side of a certifier contract.
const CertifierABI = `[
	{"type":"function","name":"certified","constant":true,"stateMutability":"view","inputs":[{"name":"who","type":"address"}],"outputs":[{"name":"","type":"bool"}]}
]`

func parseABI(name, definition string) (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse %s abi: %w", name, err)
	}
	return parsed, nil
}
