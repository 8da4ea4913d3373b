package metadata

import (
	"testing"

	"github.com/ruteri/indexer-metadata-gateway/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name  string
		table interfaces.Table
		batch []interfaces.MetadataRecord
		kind  error
		key   string
		field string
	}{
		{
			name:  "empty key",
			table: interfaces.SoftwareTable,
			batch: []interfaces.MetadataRecord{{Key: "", Fields: interfaces.Fields{"version": []byte(`"v1"`)}}},
			kind:  interfaces.ErrMalformedRecord,
			field: "ShortHash",
		},
		{
			name:  "duplicate key",
			table: interfaces.SoftwareTable,
			batch: []interfaces.MetadataRecord{{Key: "abc"}, {Key: "def"}, {Key: "abc"}},
			kind:  interfaces.ErrDuplicateKeyInBatch,
			key:   "abc",
			field: "ShortHash",
		},
		{
			name:  "unknown field",
			table: interfaces.ProtocolsTable,
			batch: []interfaces.MetadataRecord{{Key: "PtA", Fields: interfaces.Fields{"tags": []byte(`["x"]`)}}},
			kind:  interfaces.ErrSchemaViolation,
			key:   "PtA",
			field: "tags",
		},
		{
			name:  "null value",
			table: interfaces.SoftwareTable,
			batch: []interfaces.MetadataRecord{{Key: "abc", Fields: interfaces.Fields{"notes": []byte(`null`)}}},
			kind:  interfaces.ErrSchemaViolation,
			key:   "abc",
			field: "notes",
		},
		{
			name:  "key field mismatch",
			table: interfaces.ProtocolsTable,
			batch: []interfaces.MetadataRecord{{Key: "PtA", Fields: interfaces.Fields{"Hash": []byte(`"PtB"`)}}},
			kind:  interfaces.ErrMalformedRecord,
			key:   "PtA",
			field: "Hash",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.table, tt.batch)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)

			var mergeErr *interfaces.MergeError
			require.ErrorAs(t, err, &mergeErr)
			assert.Equal(t, tt.key, mergeErr.Key)
			assert.Equal(t, tt.field, mergeErr.Field)
		})
	}
}

func TestValidateMissingKeyFromWire(t *testing.T) {
	for _, body := range []string{`[{"version":"v1"}]`, `[{"ShortHash":42}]`, `[{"ShortHash":""}]`} {
		batch, err := interfaces.DecodeBatch(interfaces.SoftwareTable, []byte(body))
		require.NoError(t, err)

		_, err = Validate(interfaces.SoftwareTable, batch)
		assert.ErrorIs(t, err, interfaces.ErrMalformedRecord, body)
	}
}

func TestValidateSortsAndCanonicalizes(t *testing.T) {
	prepared, err := Validate(interfaces.SoftwareTable, []interfaces.MetadataRecord{
		{Key: "c", Fields: interfaces.Fields{"extras": []byte(`{ "z": 1, "a": [1, 2] }`)}},
		{Key: "a", Fields: interfaces.Fields{"ShortHash": []byte(`"a"`), "version": []byte(` "v1" `)}},
		{Key: "b"},
	})
	require.NoError(t, err)
	require.Len(t, prepared, 3)

	assert.Equal(t, "a", prepared[0].Key)
	assert.Equal(t, "b", prepared[1].Key)
	assert.Equal(t, "c", prepared[2].Key)
	assert.Equal(t, `{"a":[1,2],"z":1}`, string(prepared[2].Fields["extras"]))
	assert.Equal(t, `"v1"`, string(prepared[0].Fields["version"]))
	assert.NotContains(t, prepared[0].Fields, "ShortHash", "key field is carried by Key only")
}

func TestValidateUnknownTable(t *testing.T) {
	_, err := Validate(interfaces.Table("Bakers"), []interfaces.MetadataRecord{{Key: "a"}})
	assert.Error(t, err)
}

func TestFieldKinds(t *testing.T) {
	tests := []struct {
		kind FieldKind
		ok   []string
		bad  []string
	}{
		{KindString, []string{`"x"`, `""`}, []string{`1`, `["x"]`, `null`, `true`}},
		{KindTimestamp, []string{`"2024-01-02T15:04:05Z"`, `"2024-01-02T15:04:05+02:00"`}, []string{`"yesterday"`, `1704207845`}},
		{KindHex, []string{`"deadbeef"`, `"0xabc"`}, []string{`"xyz"`, `""`, `"0x"`, `123`}},
		{KindStringList, []string{`[]`, `["a","b"]`}, []string{`"a"`, `[1]`, `["a",null]`, `{}`}},
		{KindInteger, []string{`0`, `-5`, `42`}, []string{`1.5`, `"1"`, `1e3`, `[]`}},
		{KindNonNegativeInteger, []string{`0`, `100`}, []string{`-1`, `"100"`}},
		{KindObject, []string{`{}`, `{"a":{"b":[1]}}`}, []string{`[]`, `"{}"`, `null`}},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			for _, v := range tt.ok {
				assert.NoError(t, checkValue(tt.kind, []byte(v)), v)
			}
			for _, v := range tt.bad {
				assert.Error(t, checkValue(tt.kind, []byte(v)), v)
			}
		})
	}
}
