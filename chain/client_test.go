package chain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGetState(t *testing.T) {
	backend := &MockBackend{}
	header := &types.Header{Number: big.NewInt(4242), Time: 1700000000, Difficulty: big.NewInt(0)}
	backend.On("HeaderByNumber", mock.Anything, (*big.Int)(nil)).Return(header, nil)
	backend.On("SyncProgress", mock.Anything).Return(nil, nil).Once()

	c := NewClient(backend, testLogger())
	state, err := c.GetState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, header.Hash().Hex(), state.Hash)
	assert.Equal(t, uint64(4242), state.Level)
	assert.Equal(t, int64(1700000000), state.Timestamp.Unix())
	assert.True(t, state.Synced)

	backend.On("SyncProgress", mock.Anything).Return(&ethereum.SyncProgress{CurrentBlock: 4242, HighestBlock: 5000}, nil)
	state, err = c.GetState(context.Background())
	require.NoError(t, err)
	assert.False(t, state.Synced)
}

func TestGetStateNodeDown(t *testing.T) {
	backend := &MockBackend{}
	backend.On("HeaderByNumber", mock.Anything, (*big.Int)(nil)).Return(nil, errors.New("connection refused"))

	_, err := NewClient(backend, testLogger()).GetState(context.Background())
	assert.Error(t, err)
}

func TestSend(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	signer := types.LatestSignerForChainID(big.NewInt(1))
	tx, err := types.SignNewTx(key, signer, &types.DynamicFeeTx{
		ChainID:   big.NewInt(1),
		Nonce:     7,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(10),
		Gas:       21000,
		Value:     big.NewInt(1),
	})
	require.NoError(t, err)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)

	backend := &MockBackend{}
	backend.On("SendTransaction", mock.Anything, mock.MatchedBy(func(sent *types.Transaction) bool {
		return sent.Hash() == tx.Hash()
	})).Return(nil)

	c := NewClient(backend, testLogger())
	hash, err := c.Send(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, tx.Hash().Hex(), hash)

	_, err = c.Send(context.Background(), []byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrInvalidTransaction)
	backend.AssertNumberOfCalls(t, "SendTransaction", 1)
}
