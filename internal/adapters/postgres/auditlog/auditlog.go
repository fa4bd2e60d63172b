// Package auditlog is the Postgres-backed Repository for the append-only
// audit trail. Create is the only operation: the store rejects UPDATE and
// DELETE via trigger.
package auditlog

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/shiftpay/usdt-gateway/internal/domain/auditlog"
	"github.com/shiftpay/usdt-gateway/pkg/dbtx"
)

// Repository defines the persistence operation the matcher and invoice
// creator depend on.
type Repository interface {
	Create(ctx context.Context, a *auditlog.AuditLog) error
}

// PostgresRepository is the Postgres implementation of Repository.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a Repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a, written inside the same transaction as the anomaly it
// documents (a collision or a collision-exhaustion).
func (r *PostgresRepository) Create(ctx context.Context, a *auditlog.AuditLog) error {
	exec := dbtx.GetExecutor(ctx, r.db)

	detail, err := json.Marshal(detailOrEmpty(a.Detail))
	if err != nil {
		return err
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO audit_logs (id, merchant_id, action, detail, created_at)
		VALUES ($1, $2, $3, $4, now())`,
		a.ID, a.MerchantID, a.Action, detail)

	return err
}

func detailOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}

	return m
}
