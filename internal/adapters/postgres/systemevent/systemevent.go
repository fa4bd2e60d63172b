// Package systemevent is the Postgres-backed Repository for the
// append-only operational event stream, mirrored onto RabbitMQ by
// internal/adapters/rabbitmq for external consumers.
package systemevent

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/shiftpay/usdt-gateway/internal/domain/systemevent"
	"github.com/shiftpay/usdt-gateway/pkg/dbtx"
)

// Repository defines the persistence operation the matcher and invoice
// creator depend on.
type Repository interface {
	Create(ctx context.Context, e *systemevent.SystemEvent) error
}

// PostgresRepository is the Postgres implementation of Repository.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a Repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts e in the same transaction as the AuditLog entry it
// accompanies.
func (r *PostgresRepository) Create(ctx context.Context, e *systemevent.SystemEvent) error {
	exec := dbtx.GetExecutor(ctx, r.db)

	payload, err := json.Marshal(payloadOrEmpty(e.Payload))
	if err != nil {
		return err
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO system_events (id, type, payload, created_at)
		VALUES ($1, $2, $3, now())`,
		e.ID, e.Type, payload)

	return err
}

func payloadOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}

	return m
}
