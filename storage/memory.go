package storage

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/ruteri/indexer-metadata-gateway/interfaces"
)

var errTxDone = errors.New("transaction already finished")

type recordKey struct {
	table interfaces.Table
	key   string
}

// MemoryStore keeps records in process memory. A transaction holds the lock of
// every key it touched from the first Get or Put until Commit or Rollback, so
// batches overlapping on a key are serialized while disjoint batches run in
// parallel.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[interfaces.Table]map[string]interfaces.Fields
	keyLocks map[recordKey]*sync.Mutex
	log      *slog.Logger
}

func NewMemoryStore(log *slog.Logger) *MemoryStore {
	records := make(map[interfaces.Table]map[string]interfaces.Fields, len(interfaces.AllTables))
	for _, table := range interfaces.AllTables {
		records[table] = make(map[string]interfaces.Fields)
	}
	return &MemoryStore{
		records:  records,
		keyLocks: make(map[recordKey]*sync.Mutex),
		log:      log,
	}
}

func (s *MemoryStore) lockFor(k recordKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.keyLocks[k]
	if !ok {
		l = &sync.Mutex{}
		s.keyLocks[k] = l
	}
	return l
}

func (s *MemoryStore) Begin(ctx context.Context) (interfaces.MetadataTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memoryTx{
		store:  s,
		held:   make(map[recordKey]*sync.Mutex),
		writes: make(map[recordKey]interfaces.Fields),
	}, nil
}

func (s *MemoryStore) List(ctx context.Context, table interfaces.Table, offset, limit int) ([]interfaces.MetadataRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.records[table]
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	keys = pageOf(keys, offset, limit)
	out := make([]interfaces.MetadataRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, interfaces.MetadataRecord{Table: table, Key: k, Fields: rows[k].Clone()})
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context, table interfaces.Table) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[table]), nil
}

func (s *MemoryStore) Available(ctx context.Context) bool {
	return true
}

func (s *MemoryStore) Name() string {
	return "memory"
}

func (s *MemoryStore) LocationURI() string {
	return "memory://"
}

func (s *MemoryStore) Close() error {
	return nil
}

type memoryTx struct {
	store  *MemoryStore
	held   map[recordKey]*sync.Mutex
	writes map[recordKey]interfaces.Fields
	done   bool
}

func (tx *memoryTx) acquire(k recordKey) {
	if _, ok := tx.held[k]; ok {
		return
	}
	l := tx.store.lockFor(k)
	l.Lock()
	tx.held[k] = l
}

func (tx *memoryTx) release() {
	for k, l := range tx.held {
		l.Unlock()
		delete(tx.held, k)
	}
	tx.done = true
}

func (tx *memoryTx) Get(ctx context.Context, table interfaces.Table, key string) (interfaces.Fields, bool, error) {
	if tx.done {
		return nil, false, errTxDone
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	k := recordKey{table, key}
	tx.acquire(k)

	if staged, ok := tx.writes[k]; ok {
		return staged.Clone(), true, nil
	}

	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	fields, ok := tx.store.records[table][key]
	if !ok {
		return nil, false, nil
	}
	return fields.Clone(), true, nil
}

func (tx *memoryTx) Put(ctx context.Context, table interfaces.Table, key string, fields interfaces.Fields) error {
	if tx.done {
		return errTxDone
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	k := recordKey{table, key}
	tx.acquire(k)
	tx.writes[k] = fields.Clone()
	return nil
}

func (tx *memoryTx) Commit(ctx context.Context) error {
	if tx.done {
		return errTxDone
	}

	tx.store.mu.Lock()
	for k, fields := range tx.writes {
		rows, ok := tx.store.records[k.table]
		if !ok {
			rows = make(map[string]interfaces.Fields)
			tx.store.records[k.table] = rows
		}
		rows[k.key] = fields
	}
	tx.store.mu.Unlock()

	tx.release()
	return nil
}

func (tx *memoryTx) Rollback(ctx context.Context) error {
	if tx.done {
		return nil
	}
	tx.writes = nil
	tx.release()
	return nil
}

// pageOf applies offset/limit to an ordered slice. limit <= 0 means no limit.
func pageOf[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
