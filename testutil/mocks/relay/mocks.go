// Package mock_relay holds gomock mocks of the interfaces in internal/relay/ledger.go.
// They follow the layout mockgen emits and can be replaced by its output:
//
//	mockgen -source ledger.go -destination ../../testutil/mocks/relay/mocks.go -package mock_relay
package mock_relay

import (
	context "context"
	big "math/big"
	reflect "reflect"

	common "github.com/ethereum/go-ethereum/common"
	types "github.com/ethereum/go-ethereum/core/types"
	relay "github.com/parity-sale/relay-queue/internal/relay"
	gomock "go.uber.org/mock/gomock"
)

// MockBlockSource is a mock of BlockSource interface.
type MockBlockSource struct {
	ctrl     *gomock.Controller
	recorder *MockBlockSourceMockRecorder
}

// MockBlockSourceMockRecorder is the mock recorder for MockBlockSource.
type MockBlockSourceMockRecorder struct {
	mock *MockBlockSource
}

// NewMockBlockSource creates a new mock instance.
func NewMockBlockSource(ctrl *gomock.Controller) *MockBlockSource {
	mock := &MockBlockSource{ctrl: ctrl}
	mock.recorder = &MockBlockSourceMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockBlockSource) EXPECT() *MockBlockSourceMockRecorder {
	return m.recorder
}

// Blocks mocks base method.
func (m *MockBlockSource) Blocks(ctx context.Context) (<-chan uint64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Blocks", ctx)
	ret0, _ := ret[0].(<-chan uint64)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Blocks indicates an expected call of Blocks.
func (mr *MockBlockSourceMockRecorder) Blocks(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Blocks", reflect.TypeOf((*MockBlockSource)(nil).Blocks), ctx)
}

// MockCertifier is a mock of Certifier interface.
type MockCertifier struct {
	ctrl     *gomock.Controller
	recorder *MockCertifierMockRecorder
}

// MockCertifierMockRecorder is the mock recorder for MockCertifier.
type MockCertifierMockRecorder struct {
	mock *MockCertifier
}

// NewMockCertifier creates a new mock instance.
func NewMockCertifier(ctrl *gomock.Controller) *MockCertifier {
	mock := &MockCertifier{ctrl: ctrl}
	mock.recorder = &MockCertifierMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockCertifier) EXPECT() *MockCertifierMockRecorder {
	return m.recorder
}

// IsCertified mocks base method.
func (m *MockCertifier) IsCertified(ctx context.Context, address common.Address) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "IsCertified", ctx, address)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// IsCertified indicates an expected call of IsCertified.
func (mr *MockCertifierMockRecorder) IsCertified(ctx, address any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "IsCertified", reflect.TypeOf((*MockCertifier)(nil).IsCertified), ctx, address)
}

// MockEventParser is a mock of EventParser interface.
type MockEventParser struct {
	ctrl     *gomock.Controller
	recorder *MockEventParserMockRecorder
}

// MockEventParserMockRecorder is the mock recorder for MockEventParser.
type MockEventParserMockRecorder struct {
	mock *MockEventParser
}

// NewMockEventParser creates a new mock instance.
func NewMockEventParser(ctrl *gomock.Controller) *MockEventParser {
	mock := &MockEventParser{ctrl: ctrl}
	mock.recorder = &MockEventParserMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockEventParser) EXPECT() *MockEventParserMockRecorder {
	return m.recorder
}

// Parse mocks base method.
func (m *MockEventParser) Parse(logs []*types.Log) []relay.Event {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Parse", logs)
	ret0, _ := ret[0].([]relay.Event)
	return ret0
}

// Parse indicates an expected call of Parse.
func (mr *MockEventParserMockRecorder) Parse(logs any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Parse", reflect.TypeOf((*MockEventParser)(nil).Parse), logs)
}

// MockLedger is a mock of Ledger interface.
type MockLedger struct {
	ctrl     *gomock.Controller
	recorder *MockLedgerMockRecorder
}

// MockLedgerMockRecorder is the mock recorder for MockLedger.
type MockLedgerMockRecorder struct {
	mock *MockLedger
}

// NewMockLedger creates a new mock instance.
func NewMockLedger(ctrl *gomock.Controller) *MockLedger {
	mock := &MockLedger{ctrl: ctrl}
	mock.recorder = &MockLedgerMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockLedger) EXPECT() *MockLedgerMockRecorder {
	return m.recorder
}

// Balance mocks base method.
func (m *MockLedger) Balance(ctx context.Context, address common.Address) (*big.Int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Balance", ctx, address)
	ret0, _ := ret[0].(*big.Int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Balance indicates an expected call of Balance.
func (mr *MockLedgerMockRecorder) Balance(ctx, address any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Balance", reflect.TypeOf((*MockLedger)(nil).Balance), ctx, address)
}

// NonceAt mocks base method.
func (m *MockLedger) NonceAt(ctx context.Context, address common.Address) (uint64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "NonceAt", ctx, address)
	ret0, _ := ret[0].(uint64)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// NonceAt indicates an expected call of NonceAt.
func (mr *MockLedgerMockRecorder) NonceAt(ctx, address any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "NonceAt", reflect.TypeOf((*MockLedger)(nil).NonceAt), ctx, address)
}

// SendTx mocks base method.
func (m *MockLedger) SendTx(ctx context.Context, rawTx []byte) (common.Hash, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SendTx", ctx, rawTx)
	ret0, _ := ret[0].(common.Hash)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// SendTx indicates an expected call of SendTx.
func (mr *MockLedgerMockRecorder) SendTx(ctx, rawTx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SendTx", reflect.TypeOf((*MockLedger)(nil).SendTx), ctx, rawTx)
}

// TransactionReceipt mocks base method.
func (m *MockLedger) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "TransactionReceipt", ctx, hash)
	ret0, _ := ret[0].(*types.Receipt)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// TransactionReceipt indicates an expected call of TransactionReceipt.
func (mr *MockLedgerMockRecorder) TransactionReceipt(ctx, hash any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "TransactionReceipt", reflect.TypeOf((*MockLedger)(nil).TransactionReceipt), ctx, hash)
}
