package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ruteri/indexer-metadata-gateway/interfaces"
)

// ErrInvalidTransaction is returned by Send for bytes that do not decode as a
// signed transaction.
var ErrInvalidTransaction = errors.New("invalid transaction encoding")

// Backend is the subset of ethclient.Client used by Client.
type Backend interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SyncProgress(ctx context.Context) (*ethereum.SyncProgress, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Client reports the chain head and forwards transactions to a JSON-RPC node.
// It implements interfaces.StateSnapshotProvider and interfaces.NodeBroadcaster.
type Client struct {
	backend Backend
	log     *slog.Logger
}

// Dial connects to rpcURL.
func Dial(ctx context.Context, rpcURL string, log *slog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to node: %w", err)
	}
	return NewClient(eth, log), nil
}

func NewClient(backend Backend, log *slog.Logger) *Client {
	return &Client{backend: backend, log: log}
}

func (c *Client) GetState(ctx context.Context) (interfaces.ChainState, error) {
	header, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return interfaces.ChainState{}, fmt.Errorf("failed to fetch head: %w", err)
	}

	progress, err := c.backend.SyncProgress(ctx)
	if err != nil {
		return interfaces.ChainState{}, fmt.Errorf("failed to fetch sync progress: %w", err)
	}

	return interfaces.ChainState{
		Hash:      header.Hash().Hex(),
		Level:     header.Number.Uint64(),
		Timestamp: time.Unix(int64(header.Time), 0).UTC(),
		Synced:    progress == nil,
	}, nil
}

func (c *Client) Send(ctx context.Context, signedTx []byte) (string, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(signedTx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}

	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		return "", fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	c.log.Info("Transaction broadcast", slog.String("hash", tx.Hash().Hex()))
	return tx.Hash().Hex(), nil
}
