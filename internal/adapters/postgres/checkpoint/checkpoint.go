// Package checkpoint is the Postgres-backed Repository for the poller's
// durable high-water mark, grounded on the same repository shape as
// internal/adapters/postgres/invoice.
package checkpoint

import (
	"context"
	"database/sql"

	"github.com/shiftpay/usdt-gateway/internal/domain/checkpoint"
	"github.com/shiftpay/usdt-gateway/pkg/dbtx"
)

// Repository defines the single-row read/upsert the poller depends on.
type Repository interface {
	Get(ctx context.Context, key string) (*checkpoint.Checkpoint, error)
	Upsert(ctx context.Context, cp *checkpoint.Checkpoint) error
}

// PostgresRepository is the Postgres implementation of Repository.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a Repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns the checkpoint row for key, or sql.ErrNoRows if the poller
// has never run — the caller is responsible for seeding a first window.
func (r *PostgresRepository) Get(ctx context.Context, key string) (*checkpoint.Checkpoint, error) {
	exec := dbtx.GetExecutor(ctx, r.db)

	row := exec.QueryRowContext(ctx, `SELECT key, last_insert_time_ms, last_tx_id FROM poller_checkpoints WHERE key = $1`, key)

	var cp checkpoint.Checkpoint

	if err := row.Scan(&cp.Key, &cp.LastInsertTimeMS, &cp.LastTxID); err != nil {
		return nil, err
	}

	return &cp, nil
}

// Upsert advances the checkpoint. Always called inside the poller's
// per-deposit transaction, alongside the matcher's writes for that deposit.
func (r *PostgresRepository) Upsert(ctx context.Context, cp *checkpoint.Checkpoint) error {
	exec := dbtx.GetExecutor(ctx, r.db)

	_, err := exec.ExecContext(ctx, `
		INSERT INTO poller_checkpoints (key, last_insert_time_ms, last_tx_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET last_insert_time_ms = EXCLUDED.last_insert_time_ms, last_tx_id = EXCLUDED.last_tx_id`,
		cp.Key, cp.LastInsertTimeMS, cp.LastTxID)

	return err
}
