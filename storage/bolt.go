package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/indexer-metadata-gateway/interfaces"
	"go.etcd.io/bbolt"
)

// BoltStore persists records in a single bbolt file with one bucket per table.
// bbolt allows a single writer at a time, so every batch runs in its own
// read-write transaction and batches are fully serialized.
type BoltStore struct {
	db          *bbolt.DB
	path        string
	log         *slog.Logger
	locationURI string
}

// NewBoltStore opens (or creates) the database at path.
func NewBoltStore(path string, noSync bool, log *slog.Logger) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{
		Timeout: 1 * time.Second,
		NoSync:  noSync,
	})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, table := range interfaces.AllTables {
			if _, err := tx.CreateBucketIfNotExists([]byte(table)); err != nil {
				return fmt.Errorf("creating bucket %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Debug("Opened bolt metadata store", slog.String("path", path), slog.Bool("noSync", noSync))

	return &BoltStore{
		db:          db,
		path:        path,
		log:         log,
		locationURI: "bolt://" + path,
	}, nil
}

func (s *BoltStore) Begin(ctx context.Context) (interfaces.MetadataTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx, err := s.db.Begin(true)
	if err != nil {
		return nil, fmt.Errorf("beginning bolt transaction: %w", err)
	}
	return &boltTx{tx: tx}, nil
}

func (s *BoltStore) List(ctx context.Context, table interfaces.Table, offset, limit int) ([]interfaces.MetadataRecord, error) {
	var out []interfaces.MetadataRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(table))
		if bucket == nil {
			return nil
		}

		skipped := 0
		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if skipped < offset {
				skipped++
				continue
			}
			if limit > 0 && len(out) >= limit {
				break
			}

			fields, err := decodeFields(v)
			if err != nil {
				return fmt.Errorf("decoding %s/%s: %w", table, k, err)
			}
			out = append(out, interfaces.MetadataRecord{Table: table, Key: string(k), Fields: fields})
		}
		return nil
	})
	return out, err
}

func (s *BoltStore) Count(ctx context.Context, table interfaces.Table) (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		if bucket := tx.Bucket([]byte(table)); bucket != nil {
			n = bucket.Stats().KeyN
		}
		return nil
	})
	return n, err
}

func (s *BoltStore) Available(ctx context.Context) bool {
	return s.db.View(func(tx *bbolt.Tx) error { return nil }) == nil
}

func (s *BoltStore) Name() string {
	return "bolt"
}

func (s *BoltStore) LocationURI() string {
	return s.locationURI
}

func (s *BoltStore) Close() error {
	s.log.Debug("Closing bolt metadata store", slog.String("path", s.path))
	return s.db.Close()
}

type boltTx struct {
	tx *bbolt.Tx
}

func (t *boltTx) bucket(table interfaces.Table) (*bbolt.Bucket, error) {
	bucket := t.tx.Bucket([]byte(table))
	if bucket == nil {
		return nil, fmt.Errorf("bucket for table %s not found", table)
	}
	return bucket, nil
}

func (t *boltTx) Get(ctx context.Context, table interfaces.Table, key string) (interfaces.Fields, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	bucket, err := t.bucket(table)
	if err != nil {
		return nil, false, err
	}

	v := bucket.Get([]byte(key))
	if v == nil {
		return nil, false, nil
	}
	fields, err := decodeFields(v)
	if err != nil {
		return nil, false, err
	}
	return fields, true, nil
}

func (t *boltTx) Put(ctx context.Context, table interfaces.Table, key string, fields interfaces.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bucket, err := t.bucket(table)
	if err != nil {
		return err
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding fields: %w", err)
	}
	return bucket.Put([]byte(key), data)
}

func (t *boltTx) Commit(ctx context.Context) error {
	return t.tx.Commit()
}

func (t *boltTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, bbolt.ErrTxClosed) {
		return err
	}
	return nil
}

// decodeFields copies v; bolt values are only valid inside their transaction.
func decodeFields(v []byte) (interfaces.Fields, error) {
	fields := interfaces.Fields{}
	if err := json.Unmarshal(v, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
