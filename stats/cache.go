package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/indexer-metadata-gateway/interfaces"
	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"
)

const DefaultTTL = 30 * time.Second

// Cache aggregates record counts and the chain head into a StatsSnapshot.
// Concurrent callers that find the snapshot stale share one refresh, and the
// result is published with a single pointer swap so readers never see a
// partially built snapshot.
type Cache struct {
	store interfaces.MetadataStore
	head  interfaces.StateSnapshotProvider
	ttl   time.Duration
	now   func() time.Time
	log   *slog.Logger

	group   singleflight.Group
	current atomic.Pointer[interfaces.StatsSnapshot]
}

// NewCache creates a stats cache. head may be nil when no node is configured.
func NewCache(store interfaces.MetadataStore, head interfaces.StateSnapshotProvider, ttl time.Duration, log *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		store: store,
		head:  head,
		ttl:   ttl,
		now:   time.Now,
		log:   log,
	}
}

func (c *Cache) fresh() *interfaces.StatsSnapshot {
	snap := c.current.Load()
	if snap != nil && c.now().Sub(snap.GeneratedAt) < c.ttl {
		return snap
	}
	return nil
}

// RefreshAndGet returns the current snapshot, rebuilding it first if it is
// older than the TTL. If a rebuild fails and an older snapshot exists, the
// older snapshot is returned.
func (c *Cache) RefreshAndGet(ctx context.Context) (*interfaces.StatsSnapshot, error) {
	if snap := c.fresh(); snap != nil {
		return snap, nil
	}

	v, err, _ := c.group.Do("stats", func() (interface{}, error) {
		if snap := c.fresh(); snap != nil {
			return snap, nil
		}

		snap, err := c.build(ctx)
		if err != nil {
			return nil, err
		}
		c.current.Store(snap)
		return snap, nil
	})
	if err != nil {
		if stale := c.current.Load(); stale != nil {
			c.log.Warn("Stats refresh failed, serving stale snapshot", "err", err,
				slog.Time("generatedAt", stale.GeneratedAt))
			return stale, nil
		}
		return nil, err
	}
	return v.(*interfaces.StatsSnapshot), nil
}

func (c *Cache) build(ctx context.Context) (*interfaces.StatsSnapshot, error) {
	counts := make(map[interfaces.Table]int, len(interfaces.AllTables))
	for _, table := range interfaces.AllTables {
		n, err := c.store.Count(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("counting %s: %w", table, err)
		}
		counts[table] = n
	}

	snap := &interfaces.StatsSnapshot{
		GeneratedAt:  c.now(),
		RecordCounts: counts,
	}

	if c.head != nil {
		state, err := c.head.GetState(ctx)
		if err != nil {
			c.log.Warn("Chain head unavailable for stats", "err", err)
		} else {
			snap.Head = &state
		}
	}
	return snap, nil
}
