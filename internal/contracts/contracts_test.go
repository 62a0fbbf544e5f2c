package contracts

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	saleAddress      = common.HexToAddress("0x1812c24112a96487435cb77e8fab92e2eab212ea")
	certifierAddress = common.HexToAddress("0x06c4af12d9e3501c173b5d3db81ea1bbb67a2f00")
	buyer            = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

type fakeCaller struct {
	calls []ethereum.CallMsg
	reply func(call ethereum.CallMsg) ([]byte, error)
}

func (f *fakeCaller) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls = append(f.calls, call)
	return f.reply(call)
}

func buyinLog(t *testing.T, s *Sale, emitter common.Address, who common.Address, accepted int64) *types.Log {
	event := s.abi.Events["Buyin"]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(accepted), big.NewInt(100), big.NewInt(7), big.NewInt(15))
	require.NoError(t, err)
	return &types.Log{
		Address: emitter,
		Topics:  []common.Hash{event.ID, common.BytesToHash(who.Bytes())},
		Data:    data,
	}
}

func TestParseBuyin(t *testing.T) {
	sale, err := NewSale(saleAddress, &fakeCaller{})
	require.NoError(t, err)

	events := sale.Parse([]*types.Log{buyinLog(t, sale, saleAddress, buyer, 900)})
	require.Len(t, events, 1)
	assert.Equal(t, "Buyin", events[0].Name)
	assert.Equal(t, big.NewInt(900), events[0].Params["accepted"])
	assert.Equal(t, big.NewInt(100), events[0].Params["refund"])
	assert.Equal(t, buyer, events[0].Params["who"])
}

func TestParseSkipsForeignAndUnknownLogs(t *testing.T) {
	sale, err := NewSale(saleAddress, &fakeCaller{})
	require.NoError(t, err)

	ended := sale.abi.Events["Ended"]
	endedData, err := ended.Inputs.NonIndexed().Pack(big.NewInt(3))
	require.NoError(t, err)

	logs := []*types.Log{
		buyinLog(t, sale, certifierAddress, buyer, 1),
		{Address: saleAddress, Topics: []common.Hash{common.HexToHash("0xdead")}},
		{Address: saleAddress},
		nil,
		{Address: saleAddress, Topics: []common.Hash{sale.abi.Events["Buyin"].ID}, Data: []byte{0x01}},
		{Address: saleAddress, Topics: []common.Hash{ended.ID}, Data: endedData},
		buyinLog(t, sale, saleAddress, buyer, 5),
	}

	events := sale.Parse(logs)
	require.Len(t, events, 2)
	assert.Equal(t, "Ended", events[0].Name)
	assert.Equal(t, "Buyin", events[1].Name)
	assert.Equal(t, big.NewInt(5), events[1].Params["accepted"])
}

func TestSaleCertifier(t *testing.T) {
	caller := &fakeCaller{}
	sale, err := NewSale(saleAddress, caller)
	require.NoError(t, err)
	caller.reply = func(ethereum.CallMsg) ([]byte, error) {
		return sale.abi.Methods["certifier"].Outputs.Pack(certifierAddress)
	}

	got, err := sale.Certifier(context.Background())
	require.NoError(t, err)
	assert.Equal(t, certifierAddress, got)
	require.Len(t, caller.calls, 1)
	assert.Equal(t, saleAddress, *caller.calls[0].To)
}

func TestIsCertified(t *testing.T) {
	caller := &fakeCaller{}
	certifier, err := NewCertifier(certifierAddress, caller)
	require.NoError(t, err)
	caller.reply = func(call ethereum.CallMsg) ([]byte, error) {
		// certified only for the buyer
		return certifier.abi.Methods["certified"].Outputs.Pack(bytes.HasSuffix(call.Data, common.LeftPadBytes(buyer.Bytes(), 32)))
	}

	ok, err := certifier.IsCertified(context.Background(), buyer)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = certifier.IsCertified(context.Background(), common.HexToAddress("0xbb"))
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, certifierAddress, *caller.calls[0].To)
	assert.Equal(t, certifier.abi.Methods["certified"].ID, caller.calls[0].Data[:4])
}

func TestIsCertifiedErrors(t *testing.T) {
	caller := &fakeCaller{reply: func(ethereum.CallMsg) ([]byte, error) { return nil, errors.New("timeout") }}
	certifier, err := NewCertifier(certifierAddress, caller)
	require.NoError(t, err)

	_, err = certifier.IsCertified(context.Background(), buyer)
	assert.Error(t, err)

	caller.reply = func(ethereum.CallMsg) ([]byte, error) { return nil, nil }
	_, err = certifier.IsCertified(context.Background(), buyer)
	assert.Error(t, err)
}
