package stats

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ruteri/indexer-metadata-gateway/chain"
	"github.com/ruteri/indexer-metadata-gateway/interfaces"
	"github.com/ruteri/indexer-metadata-gateway/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRefreshAndGet(t *testing.T) {
	store := &storage.MockStore{}
	store.On("Count", mock.Anything, interfaces.SoftwareTable).Return(3, nil)
	store.On("Count", mock.Anything, interfaces.ProtocolsTable).Return(1, nil)

	head := &chain.MockStateProvider{}
	head.On("GetState", mock.Anything).Return(interfaces.ChainState{Hash: "0xabc", Level: 10, Synced: true}, nil)

	now := time.Unix(1700000000, 0)
	c := NewCache(store, head, time.Minute, testLogger())
	c.now = func() time.Time { return now }

	snap, err := c.RefreshAndGet(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[interfaces.Table]int{interfaces.SoftwareTable: 3, interfaces.ProtocolsTable: 1}, snap.RecordCounts)
	require.NotNil(t, snap.Head)
	assert.Equal(t, uint64(10), snap.Head.Level)

	// Within TTL the same snapshot is served without touching collaborators.
	now = now.Add(30 * time.Second)
	again, err := c.RefreshAndGet(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, again)
	store.AssertNumberOfCalls(t, "Count", 2)

	now = now.Add(time.Minute)
	refreshed, err := c.RefreshAndGet(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, snap, refreshed)
	store.AssertNumberOfCalls(t, "Count", 4)
}

func TestRefreshSingleFlight(t *testing.T) {
	release := make(chan time.Time)
	store := &storage.MockStore{}
	store.On("Count", mock.Anything, interfaces.SoftwareTable).
		WaitUntil(release).Return(1, nil)
	store.On("Count", mock.Anything, interfaces.ProtocolsTable).Return(2, nil)

	c := NewCache(store, nil, time.Minute, testLogger())

	var wg sync.WaitGroup
	results := make([]*interfaces.StatsSnapshot, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.RefreshAndGet(context.Background())
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, r := range results {
		require.NotNil(t, r)
		assert.Same(t, results[0], r)
		assert.Nil(t, r.Head)
	}
	store.AssertNumberOfCalls(t, "Count", 2)
}

func TestRefreshFailureServesStale(t *testing.T) {
	store := &storage.MockStore{}
	store.On("Count", mock.Anything, interfaces.SoftwareTable).Return(1, nil).Once()
	store.On("Count", mock.Anything, interfaces.ProtocolsTable).Return(1, nil).Once()
	store.On("Count", mock.Anything, mock.Anything).Return(0, errors.New("store down"))

	now := time.Unix(1700000000, 0)
	c := NewCache(store, nil, time.Minute, testLogger())
	c.now = func() time.Time { return now }

	first, err := c.RefreshAndGet(context.Background())
	require.NoError(t, err)

	now = now.Add(time.Hour)
	stale, err := c.RefreshAndGet(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, stale)
}

func TestRefreshFailureWithoutSnapshot(t *testing.T) {
	store := &storage.MockStore{}
	store.On("Count", mock.Anything, mock.Anything).Return(0, errors.New("store down"))

	_, err := NewCache(store, nil, time.Minute, testLogger()).RefreshAndGet(context.Background())
	assert.Error(t, err)
}

func TestHeadFailureLeavesHeadEmpty(t *testing.T) {
	head := &chain.MockStateProvider{}
	head.On("GetState", mock.Anything).Return(interfaces.ChainState{}, errors.New("node down"))

	c := NewCache(storage.NewMemoryStore(testLogger()), head, time.Minute, testLogger())
	snap, err := c.RefreshAndGet(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap.Head)
	assert.Equal(t, 0, snap.RecordCounts[interfaces.SoftwareTable])
}
