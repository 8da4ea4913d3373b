package interfaces

import (
	"context"
	"time"
)

// ChainState is the indexer's view of the chain head.
type ChainState struct {
	Hash      string    `json:"hash"`
	Level     uint64    `json:"level"`
	Timestamp time.Time `json:"timestamp"`
	Synced    bool      `json:"synced"`
}

// StateSnapshotProvider reports the current chain head.
type StateSnapshotProvider interface {
	GetState(ctx context.Context) (ChainState, error)
}

// NodeBroadcaster forwards a signed transaction to a node and returns its hash.
type NodeBroadcaster interface {
	Send(ctx context.Context, signedTx []byte) (string, error)
}

// StatsSnapshot is the aggregated dashboard view.
type StatsSnapshot struct {
	GeneratedAt  time.Time     `json:"generated_at"`
	RecordCounts map[Table]int `json:"record_counts"`
	Head         *ChainState   `json:"head,omitempty"`
}

// StatsCache serves the latest StatsSnapshot, refreshing it when stale.
type StatsCache interface {
	RefreshAndGet(ctx context.Context) (*StatsSnapshot, error)
}
