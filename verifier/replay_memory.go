package verifier

import (
	"context"
	"sync"
	"time"
)

const sweepEvery = 1024

// MemoryReplayGuard keeps seen keys in process memory. It is only suitable
// for single-replica deployments.
type MemoryReplayGuard struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	inserts int
	now     func() time.Time
}

func NewMemoryReplayGuard() *MemoryReplayGuard {
	return &MemoryReplayGuard{
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (g *MemoryReplayGuard) Record(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if expiry, ok := g.seen[key]; ok && now.Before(expiry) {
		return false, nil
	}

	g.seen[key] = now.Add(ttl)
	g.inserts++
	if g.inserts%sweepEvery == 0 {
		for k, expiry := range g.seen {
			if !now.Before(expiry) {
				delete(g.seen, k)
			}
		}
	}
	return true, nil
}

func (g *MemoryReplayGuard) Forget(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, key)
	return nil
}

// Len returns the number of tracked keys, expired ones included.
func (g *MemoryReplayGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
