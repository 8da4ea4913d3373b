package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ruteri/indexer-metadata-gateway/cryptoutils"
	"github.com/ruteri/indexer-metadata-gateway/interfaces"
)

// Merger applies batches of partial records to a MetadataStore. Each record
// is shallow-merged into the stored one: supplied fields overwrite, absent
// fields are kept, and a record that does not exist yet is created.
type Merger struct {
	store interfaces.MetadataStore
	log   *slog.Logger
}

func NewMerger(store interfaces.MetadataStore, log *slog.Logger) *Merger {
	return &Merger{store: store, log: log}
}

// Update validates batch and applies it in one transaction. It returns the
// number of records whose stored state changed. Either every record is
// applied or none is.
func (m *Merger) Update(ctx context.Context, table interfaces.Table, batch []interfaces.MetadataRecord) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	prepared, err := Validate(table, batch)
	if err != nil {
		return 0, err
	}

	tx, err := m.store.Begin(ctx)
	if err != nil {
		return 0, storeError(err, "")
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil {
			m.log.Warn("Rollback failed", "err", err, slog.String("table", table.String()))
		}
	}()

	changed := 0
	for _, rec := range prepared {
		current, exists, err := tx.Get(ctx, table, rec.Key)
		if err != nil {
			return 0, storeError(err, rec.Key)
		}

		merged, dirty := current.Merge(rec.Fields)
		if exists && !dirty {
			continue
		}
		if err := tx.Put(ctx, table, rec.Key, merged); err != nil {
			return 0, storeError(err, rec.Key)
		}
		changed++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, storeError(err, "")
	}
	committed = true

	m.log.Debug("Batch applied",
		slog.String("table", table.String()),
		slog.Int("records", len(batch)),
		slog.Int("changed", changed))
	return changed, nil
}

// Validate checks batch against the table schema without touching any store.
// It returns a copy sorted by key with field values in canonical form, so
// that overlapping batches lock keys in the same order and resubmitting the
// same values compares equal byte for byte.
func Validate(table interfaces.Table, batch []interfaces.MetadataRecord) ([]interfaces.MetadataRecord, error) {
	schema, ok := SchemaFor(table)
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	keyField := table.KeyField()

	seen := make(map[string]struct{}, len(batch))
	prepared := make([]interfaces.MetadataRecord, 0, len(batch))
	for _, rec := range batch {
		if rec.Key == "" {
			return nil, &interfaces.MergeError{Kind: interfaces.ErrMalformedRecord, Field: keyField,
				Err: errors.New("missing or empty key")}
		}
		if _, dup := seen[rec.Key]; dup {
			return nil, &interfaces.MergeError{Kind: interfaces.ErrDuplicateKeyInBatch, Key: rec.Key, Field: keyField}
		}
		seen[rec.Key] = struct{}{}

		fields := make(interfaces.Fields, len(rec.Fields))
		for _, name := range rec.Fields.SortedNames() {
			raw := rec.Fields[name]

			if name == keyField {
				if v, err := decodeString(raw); err != nil || v != rec.Key {
					return nil, &interfaces.MergeError{Kind: interfaces.ErrMalformedRecord, Key: rec.Key, Field: keyField,
						Err: errors.New("key field does not match record key")}
				}
				continue
			}

			kind, known := schema[name]
			if !known {
				return nil, &interfaces.MergeError{Kind: interfaces.ErrSchemaViolation, Key: rec.Key, Field: name,
					Err: errors.New("unknown field")}
			}
			if err := checkValue(kind, raw); err != nil {
				return nil, &interfaces.MergeError{Kind: interfaces.ErrSchemaViolation, Key: rec.Key, Field: name, Err: err}
			}

			canonical, err := cryptoutils.CanonicalizeJSON(raw)
			if err != nil {
				return nil, &interfaces.MergeError{Kind: interfaces.ErrSchemaViolation, Key: rec.Key, Field: name, Err: err}
			}
			fields[name] = canonical
		}

		prepared = append(prepared, interfaces.MetadataRecord{Table: table, Key: rec.Key, Fields: fields})
	}

	sort.Slice(prepared, func(i, j int) bool { return prepared[i].Key < prepared[j].Key })
	return prepared, nil
}

// storeError classifies a store failure as retryable conflict or
// unavailability.
func storeError(err error, key string) error {
	kind := interfaces.ErrStoreUnavailable
	if errors.Is(err, interfaces.ErrStoreConflict) {
		kind = interfaces.ErrStoreConflict
	}
	return &interfaces.MergeError{Kind: kind, Key: key, Err: err}
}
