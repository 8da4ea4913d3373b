package interfaces

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Table identifies one of the metadata tables exposed by the gateway.
type Table string

const (
	// SoftwareTable holds software release descriptors keyed by ShortHash.
	SoftwareTable Table = "Software"

	// ProtocolsTable holds protocol descriptors keyed by Hash.
	ProtocolsTable Table = "Protocols"
)

// AllTables lists every table in a stable order.
var AllTables = []Table{SoftwareTable, ProtocolsTable}

// ParseTable resolves a table name, ignoring case ("software", "Software").
func ParseTable(name string) (Table, error) {
	for _, t := range AllTables {
		if strings.EqualFold(string(t), strings.TrimSpace(name)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown table %q", name)
}

// KeyField returns the name of the field carrying the record key.
func (t Table) KeyField() string {
	switch t {
	case SoftwareTable:
		return "ShortHash"
	case ProtocolsTable:
		return "Hash"
	default:
		return ""
	}
}

// Valid reports whether t is a known table.
func (t Table) Valid() bool {
	return t.KeyField() != ""
}

func (t Table) String() string {
	return string(t)
}

// Fields maps field names to raw JSON values. Values are validated against the
// table schema before they reach a store.
type Fields map[string]json.RawMessage

// Clone returns a shallow copy; the raw values are never mutated in place.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Merge overwrites fields of f with those present in update and keeps the
// rest. The result is a new map. It also reports whether anything changed.
func (f Fields) Merge(update Fields) (Fields, bool) {
	merged := f.Clone()
	changed := false
	for k, v := range update {
		old, exists := merged[k]
		if !exists || !bytes.Equal(old, v) {
			changed = true
		}
		merged[k] = v
	}
	return merged, changed
}

// SortedNames returns the field names in ascending order.
func (f Fields) SortedNames() []string {
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// MetadataRecord is one keyed entry of a metadata table.
type MetadataRecord struct {
	Table  Table
	Key    string
	Fields Fields
}

// MarshalJSON renders the record as a flat object with the key field set.
func (r MetadataRecord) MarshalJSON() ([]byte, error) {
	obj := make(map[string]json.RawMessage, len(r.Fields)+1)
	for k, v := range r.Fields {
		obj[k] = v
	}
	key, err := json.Marshal(r.Key)
	if err != nil {
		return nil, err
	}
	if kf := r.Table.KeyField(); kf != "" {
		obj[kf] = key
	}
	return json.Marshal(obj)
}

// DecodeRecord parses a flat JSON object into a record of the given table.
// The key field is lifted out of the field set; a missing or non-string key
// yields an empty Key so that validation can report it.
func DecodeRecord(table Table, raw []byte) (MetadataRecord, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return MetadataRecord{}, fmt.Errorf("record is not a JSON object: %w", err)
	}
	if obj == nil {
		return MetadataRecord{}, errors.New("record is null")
	}

	rec := MetadataRecord{Table: table, Fields: Fields{}}
	for k, v := range obj {
		if k == table.KeyField() {
			var key string
			if err := json.Unmarshal(v, &key); err == nil {
				rec.Key = key
			}
			continue
		}
		rec.Fields[k] = v
	}
	return rec, nil
}

// DecodeBatch parses a JSON array of flat records. Anything but an array,
// null included, is rejected.
func DecodeBatch(table Table, body []byte) ([]MetadataRecord, error) {
	if trimmed := bytes.TrimSpace(body); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New("batch is not a JSON array")
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("batch is not a JSON array: %w", err)
	}

	batch := make([]MetadataRecord, 0, len(raws))
	for i, raw := range raws {
		rec, err := DecodeRecord(table, raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		batch = append(batch, rec)
	}
	return batch, nil
}
