// Package ledgerentry is the Postgres-backed Repository for the append-only
// ledger. It exposes Create only: the store itself rejects UPDATE and
// DELETE via trigger, and this package doesn't pretend otherwise.
package ledgerentry

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/shiftpay/usdt-gateway/internal/domain/ledgerentry"
	"github.com/shiftpay/usdt-gateway/pkg/dbtx"
)

// Repository defines the persistence operations the matcher depends on.
type Repository interface {
	Create(ctx context.Context, e *ledgerentry.LedgerEntry) error
}

// PostgresRepository is the Postgres implementation of Repository.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a Repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts e, one of the five atomic writes in the matcher's
// crediting transaction (§4.4).
func (r *PostgresRepository) Create(ctx context.Context, e *ledgerentry.LedgerEntry) error {
	exec := dbtx.GetExecutor(ctx, r.db)

	metadata, err := json.Marshal(metadataOrEmpty(e.Metadata))
	if err != nil {
		return err
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, merchant_id, amount, currency, entry_type, reference_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		e.ID, e.MerchantID, e.Amount, e.Currency, e.EntryType, e.ReferenceID, metadata)

	return err
}

func metadataOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}

	return m
}
