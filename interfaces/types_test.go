package interfaces

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBatch(t *testing.T) {
	batch, err := DecodeBatch(SoftwareTable, []byte(` [{"ShortHash":"abc123","version":"v1"}] `))
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "abc123", batch[0].Key)
	assert.Equal(t, SoftwareTable, batch[0].Table)
	assert.JSONEq(t, `"v1"`, string(batch[0].Fields["version"]))
	assert.NotContains(t, batch[0].Fields, "ShortHash")

	empty, err := DecodeBatch(SoftwareTable, []byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, body := range []string{`null`, ``, `{"ShortHash":"a"}`, `[null]`, `[1]`} {
		_, err := DecodeBatch(SoftwareTable, []byte(body))
		assert.Error(t, err, body)
	}
}
