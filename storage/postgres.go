package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ruteri/indexer-metadata-gateway/interfaces"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS metadata_records (
	tbl        TEXT        NOT NULL,
	key        TEXT        NOT NULL,
	fields     JSONB       NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tbl, key)
)`

var (
	postgresConnectRetries = 10
	postgresRetryDelay     = 2 * time.Second
	postgresPingTimeout    = 2 * time.Second
)

// PostgresStore keeps all tables in one metadata_records relation keyed by
// (tbl, key) with the fields in a JSONB column.
//
// Batches run in READ COMMITTED transactions. Get takes a row lock with
// SELECT ... FOR UPDATE, and Put upserts with a JSONB concatenation so two
// batches racing to create the same key both keep their fields.
type PostgresStore struct {
	pool        *pgxpool.Pool
	log         *slog.Logger
	locationURI string
}

// NewPostgresStore connects to dsn, retrying until the database answers a
// ping, and creates the schema if needed.
func NewPostgresStore(ctx context.Context, dsn string, log *slog.Logger) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres DSN: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute

	var pool *pgxpool.Pool
	var lastErr error
	for i := 0; i < postgresConnectRetries; i++ {
		pool, lastErr = pgxpool.NewWithConfig(ctx, cfg)
		if lastErr == nil {
			pingCtx, cancel := context.WithTimeout(ctx, postgresPingTimeout)
			lastErr = pool.Ping(pingCtx)
			cancel()
			if lastErr == nil {
				break
			}
			pool.Close()
			pool = nil
		}

		log.Warn("Postgres not ready, retrying", "err", lastErr, slog.Int("attempt", i+1))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(postgresRetryDelay):
		}
	}
	if pool == nil {
		return nil, fmt.Errorf("db ping retries exhausted: %w", lastErr)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &PostgresStore{
		pool:        pool,
		log:         log,
		locationURI: redactDSN(dsn),
	}, nil
}

func (s *PostgresStore) Begin(ctx context.Context) (interfaces.MetadataTx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, classifyPostgresError(err)
	}
	return &postgresTx{tx: tx}, nil
}

func (s *PostgresStore) List(ctx context.Context, table interfaces.Table, offset, limit int) ([]interfaces.MetadataRecord, error) {
	query := `SELECT key, fields FROM metadata_records WHERE tbl = $1 ORDER BY key COLLATE "C" OFFSET $2`
	args := []any{string(table), offset}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classifyPostgresError(err)
	}
	defer rows.Close()

	var out []interfaces.MetadataRecord
	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding %s/%s: %w", table, key, err)
		}
		out = append(out, interfaces.MetadataRecord{Table: table, Key: key, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPostgresError(err)
	}
	return out, nil
}

func (s *PostgresStore) Count(ctx context.Context, table interfaces.Table) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM metadata_records WHERE tbl = $1`, string(table)).Scan(&n)
	if err != nil {
		return 0, classifyPostgresError(err)
	}
	return n, nil
}

func (s *PostgresStore) Available(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, postgresPingTimeout)
	defer cancel()
	return s.pool.Ping(pingCtx) == nil
}

func (s *PostgresStore) Name() string {
	return "postgres"
}

func (s *PostgresStore) LocationURI() string {
	return s.locationURI
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) Get(ctx context.Context, table interfaces.Table, key string) (interfaces.Fields, bool, error) {
	var raw []byte
	err := t.tx.QueryRow(ctx,
		`SELECT fields FROM metadata_records WHERE tbl = $1 AND key = $2 FOR UPDATE`,
		string(table), key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, classifyPostgresError(err)
	}

	fields, err := decodeFields(raw)
	if err != nil {
		return nil, false, err
	}
	return fields, true, nil
}

func (t *postgresTx) Put(ctx context.Context, table interfaces.Table, key string, fields interfaces.Fields) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding fields: %w", err)
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO metadata_records (tbl, key, fields, updated_at)
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (tbl, key) DO UPDATE
		SET fields = metadata_records.fields || EXCLUDED.fields, updated_at = now()`,
		string(table), key, string(data))
	if err != nil {
		return classifyPostgresError(err)
	}
	return nil
}

func (t *postgresTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return classifyPostgresError(err)
	}
	return nil
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

// classifyPostgresError marks serialization failures, deadlocks and lock
// timeouts as ErrStoreConflict.
func classifyPostgresError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %s (%s)", interfaces.ErrStoreConflict, pgErr.Message, pgErr.Code)
		}
	}
	return err
}
