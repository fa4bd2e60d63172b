// Package payment is the Postgres-backed Repository for settled payments,
// grounded on the same repository shape as internal/adapters/postgres/invoice.
package payment

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shiftpay/usdt-gateway/internal/domain/payment"
	"github.com/shiftpay/usdt-gateway/pkg/dbtx"
)

const uniqueViolation = "23505"

// Repository defines the persistence operations the matcher depends on.
type Repository interface {
	Create(ctx context.Context, p *payment.Payment) error
}

// PostgresRepository is the Postgres implementation of Repository.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a Repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts p. It is always called inside the matcher's crediting
// transaction, one of the five atomic writes per §4.4.
func (r *PostgresRepository) Create(ctx context.Context, p *payment.Payment) error {
	exec := dbtx.GetExecutor(ctx, r.db)

	_, err := exec.ExecContext(ctx, `
		INSERT INTO payments (id, invoice_id, deposit_raw_id, tx_id, amount, network, address, address_tag, status, used_amount_diff, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())`,
		p.ID, p.InvoiceID, p.DepositRawID, p.TxID, p.Amount, p.Network, p.Address, p.AddressTag,
		p.Status, p.UsedAmountDiff)

	return err
}

// IsUniqueViolation reports whether err came from the unique index on
// (tx_id, invoice_id) — the matcher treats this as "already credited" when
// a poller window is retried after a crash.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
