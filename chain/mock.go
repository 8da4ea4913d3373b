package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/indexer-metadata-gateway/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockBackend mocks the Backend interface
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	args := m.Called(ctx, number)
	header, _ := args.Get(0).(*types.Header)
	return header, args.Error(1)
}

func (m *MockBackend) SyncProgress(ctx context.Context) (*ethereum.SyncProgress, error) {
	args := m.Called(ctx)
	progress, _ := args.Get(0).(*ethereum.SyncProgress)
	return progress, args.Error(1)
}

func (m *MockBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

// MockStateProvider mocks interfaces.StateSnapshotProvider
type MockStateProvider struct {
	mock.Mock
}

func (m *MockStateProvider) GetState(ctx context.Context) (interfaces.ChainState, error) {
	args := m.Called(ctx)
	return args.Get(0).(interfaces.ChainState), args.Error(1)
}

// MockBroadcaster mocks interfaces.NodeBroadcaster
type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Send(ctx context.Context, signedTx []byte) (string, error) {
	args := m.Called(ctx, signedTx)
	return args.String(0), args.Error(1)
}
