package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"koalaswap/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS operations (
	id                 TEXT PRIMARY KEY,
	network            TEXT NOT NULL,
	chain_id           BIGINT NOT NULL,
	operation          TEXT NOT NULL,
	wallet             TEXT NOT NULL,
	pool_address       TEXT,
	position_id        TEXT,
	tx_hash            TEXT,
	status             SMALLINT NOT NULL,
	fee                TEXT,
	base_wrap_tx_hash  TEXT,
	quote_wrap_tx_hash TEXT,
	stage              TEXT NOT NULL,
	error              TEXT,
	started_at         TEXT NOT NULL,
	finished_at        TEXT NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const upsertOperation = `
	INSERT INTO operations (
		id, network, chain_id, operation, wallet, pool_address, position_id, tx_hash, status, fee,
		base_wrap_tx_hash, quote_wrap_tx_hash, stage, error, started_at, finished_at, created_at, updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now(),now())
	ON CONFLICT (id)
	DO UPDATE SET
		tx_hash = EXCLUDED.tx_hash,
		status = EXCLUDED.status,
		fee = EXCLUDED.fee,
		base_wrap_tx_hash = EXCLUDED.base_wrap_tx_hash,
		quote_wrap_tx_hash = EXCLUDED.quote_wrap_tx_hash,
		stage = EXCLUDED.stage,
		error = EXCLUDED.error,
		finished_at = EXCLUDED.finished_at,
		updated_at = now()
`

// Store provides Postgres persistence for the operation journal.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// EnsureSchema creates the operations table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create operations table: %w", err)
	}
	return nil
}

// PutOperation inserts or updates one record.
func (s *Store) PutOperation(ctx context.Context, record model.OperationRecord) error {
	_, err := s.pool.Exec(ctx, upsertOperation, operationArgs(record)...)
	return err
}

// PutOperations inserts or updates records in one batch.
func (s *Store) PutOperations(ctx context.Context, records []model.OperationRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, record := range records {
		batch.Queue(upsertOperation, operationArgs(record)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func operationArgs(r model.OperationRecord) []interface{} {
	return []interface{}{
		r.ID,
		r.Network,
		int64(r.ChainID),
		r.Operation,
		r.Wallet,
		r.PoolAddress,
		r.PositionID,
		r.TxHash,
		int16(r.Status),
		r.Fee,
		r.BaseWrapTxHash,
		r.QuoteWrapTxHash,
		r.Stage,
		r.Error,
		r.StartedAt,
		r.FinishedAt,
	}
}
