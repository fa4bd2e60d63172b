// Package depositraw is the Postgres-backed Repository for the poller's
// ingested deposit records, grounded on the same repository shape as
// internal/adapters/postgres/invoice.
package depositraw

import (
	"context"
	"database/sql"
	"errors"
	"reflect"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shiftpay/usdt-gateway/internal/domain/depositraw"
	"github.com/shiftpay/usdt-gateway/pkg/constant"
	"github.com/shiftpay/usdt-gateway/pkg/dbtx"
)

const uniqueViolation = "23505"

// Repository defines the persistence operations the poller and matcher
// depend on.
type Repository interface {
	Insert(ctx context.Context, d *depositraw.DepositRaw) error
	FindByTxID(ctx context.Context, txID string) (*depositraw.DepositRaw, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
}

// PostgresRepository is the Postgres implementation of Repository.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a Repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert attempts an idempotent insert keyed by tx_id. A unique-violation
// here is expected and meaningful: the poller treats it as "already seen",
// per §7 of the error-handling design.
func (r *PostgresRepository) Insert(ctx context.Context, d *depositraw.DepositRaw) error {
	exec := dbtx.GetExecutor(ctx, r.db)

	_, err := exec.ExecContext(ctx, `
		INSERT INTO deposit_raw (id, tx_id, coin, network, amount, status, address, address_tag, insert_time_ms, complete_time_ms, confirm_times, processed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())`,
		d.ID, d.TxID, d.Coin, d.Network, d.Amount, d.Status, d.Address, d.AddressTag,
		d.InsertTimeMS, d.CompleteTimeMS, d.ConfirmTimes, d.Processed)

	return err
}

// IsUniqueViolation reports whether err came from the unique index on tx_id.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// FindByTxID returns the existing row for an already-seen deposit.
func (r *PostgresRepository) FindByTxID(ctx context.Context, txID string) (*depositraw.DepositRaw, error) {
	exec := dbtx.GetExecutor(ctx, r.db)

	row := exec.QueryRowContext(ctx, `SELECT id, tx_id, coin, network, amount, status, address, address_tag, insert_time_ms, complete_time_ms, confirm_times, processed, created_at
		FROM deposit_raw WHERE tx_id = $1`, txID)

	var d depositraw.DepositRaw

	if err := row.Scan(&d.ID, &d.TxID, &d.Coin, &d.Network, &d.Amount, &d.Status, &d.Address, &d.AddressTag,
		&d.InsertTimeMS, &d.CompleteTimeMS, &d.ConfirmTimes, &d.Processed, &d.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, constant.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(depositraw.DepositRaw{}).Name())
		}

		return nil, err
	}

	return &d, nil
}

// MarkProcessed sets processed = true, one of the matcher's writes on a
// successfully credited deposit.
func (r *PostgresRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	exec := dbtx.GetExecutor(ctx, r.db)

	_, err := exec.ExecContext(ctx, `UPDATE deposit_raw SET processed = true WHERE id = $1`, id)

	return err
}
