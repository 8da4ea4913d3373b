package metadata

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ruteri/indexer-metadata-gateway/interfaces"
	"github.com/ruteri/indexer-metadata-gateway/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T, n int) *storage.MemoryStore {
	s := storage.NewMemoryStore(testLogger())
	batch := make([]interfaces.MetadataRecord, 0, n)
	for i := 0; i < n; i++ {
		batch = append(batch, interfaces.MetadataRecord{Key: fmt.Sprintf("k%02d", i)})
	}
	_, err := NewMerger(s, testLogger()).Update(context.Background(), interfaces.SoftwareTable, batch)
	require.NoError(t, err)
	return s
}

func keys(records []interfaces.MetadataRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Key)
	}
	return out
}

func TestQueryPaginationConvention(t *testing.T) {
	q := NewQuery(seeded(t, 5))
	ctx := context.Background()

	all, err := q.Get(ctx, interfaces.SoftwareTable, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"k00", "k01", "k02", "k03", "k04"}, keys(all))

	none, err := q.Get(ctx, interfaces.SoftwareTable, 2, 0)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	page, err := q.Get(ctx, interfaces.SoftwareTable, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"k01", "k02"}, keys(page))

	tail, err := q.Get(ctx, interfaces.SoftwareTable, 4, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"k04"}, keys(tail))

	empty, err := q.Get(ctx, interfaces.ProtocolsTable, 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestQueryInvalidRange(t *testing.T) {
	q := NewQuery(seeded(t, 1))
	for _, r := range [][2]int{{-1, 0}, {0, -1}, {-3, -3}} {
		_, err := q.Get(context.Background(), interfaces.SoftwareTable, r[0], r[1])
		assert.ErrorIs(t, err, interfaces.ErrInvalidRange)
	}
}

func TestQueryStoreFailure(t *testing.T) {
	store := &storage.MockStore{}
	store.On("List", mock.Anything, interfaces.SoftwareTable, 0, 0).Return(nil, errors.New("timeout"))

	_, err := NewQuery(store).Get(context.Background(), interfaces.SoftwareTable, 0, 0)
	assert.ErrorIs(t, err, interfaces.ErrStoreUnavailable)
}
