package metadata

import (
	"context"
	"fmt"

	"github.com/ruteri/indexer-metadata-gateway/interfaces"
)

// Query serves paginated reads of a table.
type Query struct {
	store interfaces.MetadataStore
}

func NewQuery(store interfaces.MetadataStore) *Query {
	return &Query{store: store}
}

// Get returns records of table ordered by key. offset=0, limit=0 returns the
// whole table; any other limit of 0 returns nothing.
func (q *Query) Get(ctx context.Context, table interfaces.Table, offset, limit int) ([]interfaces.MetadataRecord, error) {
	if !table.Valid() {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	if offset < 0 || limit < 0 {
		return nil, fmt.Errorf("%w: offset=%d limit=%d", interfaces.ErrInvalidRange, offset, limit)
	}
	if limit == 0 && offset != 0 {
		return []interfaces.MetadataRecord{}, nil
	}

	records, err := q.store.List(ctx, table, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", interfaces.ErrStoreUnavailable, err)
	}
	if records == nil {
		records = []interfaces.MetadataRecord{}
	}
	return records, nil
}
