package http_test

import (
	"context"
	"crypto/ecdsa"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	nlogger "github.com/neutron-org/neutron-logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"go.uber.org/zap"

	relayhttp "github.com/parity-sale/relay-queue/internal/http"
	"github.com/parity-sale/relay-queue/internal/relay"
	"github.com/parity-sale/relay-queue/internal/storage"
)

type testServer struct {
	store  relay.QueueStore
	server *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	db, err := leveldb.Open(lvlstorage.NewMemStorage(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := storage.NewLevelDBQueueStoreFromDB(db, "buy", zap.NewNop())

	logRegistry, err := nlogger.NewRegistry(relayhttp.ServerContext, relayhttp.MonitoringContext)
	require.NoError(t, err)

	server := httptest.NewServer(relayhttp.Router(logRegistry, store))
	t.Cleanup(server.Close)
	return &testServer{store: store, server: server}
}

func newAccount(t *testing.T) (*ecdsa.PrivateKey, string) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, relay.NormalizeAddress(crypto.PubkeyToAddress(key.PublicKey).Hex())
}

func personalSign(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func (s *testServer) request(t *testing.T, method, path string) (int, string) {
	req, err := http.NewRequest(method, s.server.URL+path, nil)
	require.NoError(t, err)
	res, err := s.server.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, string(body)
}

func (s *testServer) enqueue(t *testing.T, address string) relay.PendingEntry {
	entry := relay.PendingEntry{Address: address, RawTx: "0xf86b", TxHash: "0xabcdef", RequiredValue: big.NewInt(1000)}
	require.NoError(t, s.store.Set(context.Background(), entry))
	return entry
}

func TestGetPending(t *testing.T) {
	s := newTestServer(t)
	_, address := newAccount(t)
	s.enqueue(t, address)

	status, body := s.request(t, http.MethodGet, "/pending/"+strings.ToUpper(address[:2])+address[2:])
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"pending":{"address":"`+address+`","tx":"0xf86b","hash":"0xabcdef","required":"0x3e8"}}`, body)

	status, body = s.request(t, http.MethodGet, "/pending/0x00000000000000000000000000000000000000ff")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"pending":null}`, body)
}

func TestGetOutcome(t *testing.T) {
	s := newTestServer(t)
	_, address := newAccount(t)
	s.enqueue(t, address)
	require.NoError(t, s.store.Confirm(context.Background(), address, "0x1", "0xabcdef", big.NewInt(900)))

	status, body := s.request(t, http.MethodGet, "/outcome/"+address+"/0x1")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"outcome":{"kind":"confirmed","hash":"0xabcdef","value":"0x384"}}`, body)

	status, body = s.request(t, http.MethodGet, "/outcome/"+address+"/0x2")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"outcome":null}`, body)
}

func TestCancelPending(t *testing.T) {
	s := newTestServer(t)
	key, address := newAccount(t)
	entry := s.enqueue(t, address)

	signature := personalSign(t, key, relayhttp.CancelMessage(entry.TxHash))
	status, body := s.request(t, http.MethodDelete, "/pending/"+address+"/"+signature)
	require.Equal(t, http.StatusOK, status, body)
	assert.JSONEq(t, `{"result":"ok"}`, body)

	got, err := s.store.Get(context.Background(), address)
	require.NoError(t, err)
	assert.Nil(t, got)

	outcome, err := s.store.GetOutcome(context.Background(), address, relay.CancelledNonce)
	require.NoError(t, err)
	assert.Equal(t, &relay.Rejected{Reason: "cancelled by user"}, outcome)

	// nothing left to cancel
	status, body = s.request(t, http.MethodDelete, "/pending/"+address+"/"+signature)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `{"error":"No pending transaction to delete"}`, body)
}

func TestCancelPendingRejectsForeignSignature(t *testing.T) {
	s := newTestServer(t)
	_, address := newAccount(t)
	other, _ := newAccount(t)
	entry := s.enqueue(t, address)

	for name, signature := range map[string]string{
		"other signer": personalSign(t, other, relayhttp.CancelMessage(entry.TxHash)),
		"other hash":   personalSign(t, other, relayhttp.CancelMessage("0x01")),
		"not hex":      "zz",
		"too short":    "0x1234",
	} {
		t.Run(name, func(t *testing.T) {
			status, _ := s.request(t, http.MethodDelete, "/pending/"+address+"/"+signature)
			assert.Equal(t, http.StatusBadRequest, status)
		})
	}

	got, err := s.store.Get(context.Background(), address)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

// staleStore answers Get with an entry that was replaced in the store underneath.
type staleStore struct {
	relay.QueueStore
	stale relay.PendingEntry
}

func (s staleStore) Get(context.Context, string) (*relay.PendingEntry, error) {
	return &s.stale, nil
}

func TestCancelPendingKeepsReplacedEntry(t *testing.T) {
	s := newTestServer(t)
	key, address := newAccount(t)
	newer := s.enqueue(t, address)
	old := newer
	old.TxHash = "0x0123"

	logRegistry, err := nlogger.NewRegistry(relayhttp.ServerContext, relayhttp.MonitoringContext)
	require.NoError(t, err)
	server := httptest.NewServer(relayhttp.Router(logRegistry, staleStore{QueueStore: s.store, stale: old}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodDelete,
		server.URL+"/pending/"+address+"/"+personalSign(t, key, relayhttp.CancelMessage(old.TxHash)), nil)
	require.NoError(t, err)
	res, err := server.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	got, err := s.store.Get(context.Background(), address)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, newer.TxHash, got.TxHash)

	outcome, err := s.store.GetOutcome(context.Background(), address, relay.CancelledNonce)
	require.NoError(t, err)
	assert.Nil(t, outcome)
}

func TestMetricsReportPendingCount(t *testing.T) {
	s := newTestServer(t)
	_, a := newAccount(t)
	_, b := newAccount(t)
	s.enqueue(t, a)
	s.enqueue(t, b)

	status, body := s.request(t, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "relay_queue_pending 2")
}

func TestClient(t *testing.T) {
	s := newTestServer(t)
	key, address := newAccount(t)
	entry := s.enqueue(t, address)

	client, err := relayhttp.NewRelayQueueClient(s.server.URL)
	require.NoError(t, err)

	pending, err := client.GetPending(address)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, entry.TxHash, pending.Hash)
	assert.Equal(t, int64(1000), pending.Required.ToInt().Int64())

	err = client.CancelPending(address, personalSign(t, key, "delete_tx_0x00"))
	assert.Error(t, err)

	require.NoError(t, client.CancelPending(address, personalSign(t, key, relayhttp.CancelMessage(entry.TxHash))))

	outcome, err := client.GetOutcome(address, relay.CancelledNonce)
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, relayhttp.OutcomeRejected, outcome.Kind)
	assert.Equal(t, "cancelled by user", outcome.Error)

	pending, err = client.GetPending(address)
	require.NoError(t, err)
	assert.Nil(t, pending)
}
