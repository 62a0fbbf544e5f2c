package txdecode_test

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parity-sale/relay-queue/internal/txdecode"
)

var saleAddress = common.HexToAddress("0x1812C24112a96487435cb77e8fab92E2eAb212ea")

func encode(t *testing.T, tx *types.Transaction) string {
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return hexutil.Encode(raw)
}

func TestDecodeEIP155Legacy(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(key.PublicKey)

	oneEth := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	tx, err := types.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    7,
		To:       &saleAddress,
		Value:    oneEth,
		Gas:      200000,
		GasPrice: big.NewInt(2000000000),
	}), types.NewEIP155Signer(big.NewInt(1)), key)
	require.NoError(t, err)

	decoded, err := txdecode.Decode(encode(t, tx))
	require.NoError(t, err)

	assert.Equal(t, strings.ToLower(sender.Hex()), decoded.Sender)
	assert.Equal(t, tx.Hash().Hex(), decoded.Hash)
	assert.Equal(t, int64(7), decoded.Nonce.Int64())
	assert.Equal(t, "0x7", decoded.NonceKey())
	assert.Equal(t, 0, oneEth.Cmp(decoded.Value))
	assert.Equal(t, int64(200000), decoded.GasLimit.Int64())

	expected := new(big.Int).Add(oneEth, big.NewInt(2000000000*200000))
	assert.Equal(t, 0, expected.Cmp(decoded.RequiredValue()))
}

func TestDecodeHomesteadWithZeroNonce(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	tx, err := types.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    0,
		To:       &saleAddress,
		Value:    big.NewInt(1000),
		Gas:      21000,
		GasPrice: big.NewInt(1),
	}), types.HomesteadSigner{}, key)
	require.NoError(t, err)

	decoded, err := txdecode.Decode(encode(t, tx))
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex()), decoded.Sender)
	assert.Equal(t, "0x0", decoded.NonceKey())
	assert.Equal(t, int64(22000), decoded.RequiredValue().Int64())
}

func TestDecodeDynamicFeeUsesFeeCap(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	chainID := big.NewInt(11155111)

	tx, err := types.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     3,
		To:        &saleAddress,
		Value:     big.NewInt(5),
		Gas:       100,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(10),
	}), types.LatestSignerForChainID(chainID), key)
	require.NoError(t, err)

	decoded, err := txdecode.Decode(encode(t, tx))
	require.NoError(t, err)
	assert.Equal(t, int64(10), decoded.GasPrice.Int64())
	assert.Equal(t, int64(1005), decoded.RequiredValue().Int64())

	entry := decoded.PendingEntry(encode(t, tx))
	assert.Equal(t, decoded.Sender, entry.Address)
	assert.Equal(t, decoded.Hash, entry.TxHash)
	assert.Equal(t, int64(1005), entry.RequiredValue.Int64())
}

func TestDecodeMalformedInput(t *testing.T) {
	for name, raw := range map[string]string{
		"not hex":     "0xzz",
		"no prefix":   "f86b",
		"empty":       "0x",
		"garbage rlp": "0xdeadbeef",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := txdecode.Decode(raw)
			assert.Error(t, err)
		})
	}
}

func TestDecodeUnsignedIsRejected(t *testing.T) {
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    1,
		To:       &saleAddress,
		Value:    big.NewInt(1),
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})

	_, err := txdecode.Decode(encode(t, tx))
	assert.Error(t, err)
}
