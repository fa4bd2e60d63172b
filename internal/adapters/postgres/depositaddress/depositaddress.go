// Package depositaddress is the Postgres-backed Repository for the pool of
// addresses the invoice creator allocates to invoices.
package depositaddress

import (
	"context"
	"database/sql"
	"errors"
	"reflect"

	"github.com/google/uuid"

	"github.com/shiftpay/usdt-gateway/internal/domain/depositaddress"
	"github.com/shiftpay/usdt-gateway/pkg/constant"
	"github.com/shiftpay/usdt-gateway/pkg/dbtx"
)

// Repository defines the persistence operations the invoice creator
// depends on.
type Repository interface {
	LockNextUnallocated(ctx context.Context, network string) (*depositaddress.DepositAddress, error)
	Allocate(ctx context.Context, id uuid.UUID, invoiceID uuid.UUID) error
}

// PostgresRepository is the Postgres implementation of Repository.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a Repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// LockNextUnallocated returns and locks the oldest free address for
// network, skipping rows a concurrent invoice-creation request already has
// locked.
func (r *PostgresRepository) LockNextUnallocated(ctx context.Context, network string) (*depositaddress.DepositAddress, error) {
	tx := dbtx.TxFromContext(ctx)
	if tx == nil {
		return nil, errors.New("depositaddress: LockNextUnallocated requires an open transaction")
	}

	row := tx.QueryRowContext(ctx, `
		SELECT id, address, network, allocated_to, created_at
		FROM deposit_addresses
		WHERE network = $1 AND allocated_to IS NULL
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`, network)

	var a depositaddress.DepositAddress

	if err := row.Scan(&a.ID, &a.Address, &a.Network, &a.AllocatedTo, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, constant.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(depositaddress.DepositAddress{}).Name())
		}

		return nil, err
	}

	return &a, nil
}

// Allocate marks an address as belonging to invoiceID.
func (r *PostgresRepository) Allocate(ctx context.Context, id uuid.UUID, invoiceID uuid.UUID) error {
	exec := dbtx.GetExecutor(ctx, r.db)

	_, err := exec.ExecContext(ctx, `UPDATE deposit_addresses SET allocated_to = $1 WHERE id = $2`, invoiceID, id)

	return err
}
