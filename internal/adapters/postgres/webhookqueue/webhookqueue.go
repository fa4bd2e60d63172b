// Package webhookqueue is the Postgres-backed Repository for outbound
// merchant notifications, grounded on the same repository shape as
// internal/adapters/postgres/invoice.
package webhookqueue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/shiftpay/usdt-gateway/internal/domain/webhookqueue"
	"github.com/shiftpay/usdt-gateway/pkg/constant"
	"github.com/shiftpay/usdt-gateway/pkg/dbtx"
)

// Repository defines the persistence operations the matcher and dispatcher
// depend on.
type Repository interface {
	Create(ctx context.Context, w *webhookqueue.WebhookQueue) error
	LockNextPending(ctx context.Context) (*webhookqueue.WebhookQueue, error)
	RecordAttempt(ctx context.Context, id uuid.UUID, status webhookqueue.Status, lastErr *string, nextAttemptAt *time.Time) error
}

// PostgresRepository is the Postgres implementation of Repository.
type PostgresRepository struct {
	db        *sql.DB
	tableName string
}

// NewPostgresRepository returns a Repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, tableName: "webhook_queue"}
}

// Create enqueues w, one of the five atomic writes in the matcher's
// crediting transaction (§4.4).
func (r *PostgresRepository) Create(ctx context.Context, w *webhookqueue.WebhookQueue) error {
	exec := dbtx.GetExecutor(ctx, r.db)

	payload, err := json.Marshal(w.Payload)
	if err != nil {
		return err
	}

	headers, err := json.Marshal(headersOrEmpty(w.Headers))
	if err != nil {
		return err
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO webhook_queue (id, merchant_id, payload, headers, attempts, status, last_error, idempotency_key, next_attempt_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())`,
		w.ID, w.MerchantID, payload, headers, w.Attempts, w.Status, w.LastError, w.IdempotencyKey, w.NextAttemptAt)

	return err
}

// LockNextPending selects and locks the oldest due, pending row for the
// dispatcher's single in-flight delivery attempt, skipping rows already
// locked by a concurrent dispatcher replica.
func (r *PostgresRepository) LockNextPending(ctx context.Context) (*webhookqueue.WebhookQueue, error) {
	tx := dbtx.TxFromContext(ctx)
	if tx == nil {
		return nil, errors.New("webhookqueue: LockNextPending requires an open transaction")
	}

	b := squirrel.Select("id", "merchant_id", "payload", "headers", "attempts", "status", "last_error", "idempotency_key", "next_attempt_at", "created_at").
		From(r.tableName).
		Where(squirrel.Eq{"status": webhookqueue.StatusPending}).
		Where(squirrel.Or{
			squirrel.Eq{"next_attempt_at": nil},
			squirrel.LtOrEq{"next_attempt_at": squirrel.Expr("now()")},
		}).
		OrderBy("created_at ASC").
		Limit(1).
		Suffix("FOR UPDATE SKIP LOCKED").
		PlaceholderFormat(squirrel.Dollar)

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	row := tx.QueryRowContext(ctx, query, args...)

	w, err := scanWebhookQueue(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, constant.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(webhookqueue.WebhookQueue{}).Name())
	}

	return w, err
}

// RecordAttempt updates a row's delivery outcome after one dispatch
// attempt, the dispatcher's only mutation.
func (r *PostgresRepository) RecordAttempt(ctx context.Context, id uuid.UUID, status webhookqueue.Status, lastErr *string, nextAttemptAt *time.Time) error {
	exec := dbtx.GetExecutor(ctx, r.db)

	_, err := exec.ExecContext(ctx, `
		UPDATE webhook_queue
		SET status = $1, attempts = attempts + 1, last_error = $2, next_attempt_at = $3
		WHERE id = $4`,
		status, lastErr, nextAttemptAt, id)

	return err
}

func headersOrEmpty(h map[string]string) map[string]string {
	if h == nil {
		return map[string]string{}
	}

	return h
}

type scanner func(dest ...any) error

func scanWebhookQueue(scan scanner) (*webhookqueue.WebhookQueue, error) {
	var w webhookqueue.WebhookQueue

	var payload, headers []byte

	if err := scan(&w.ID, &w.MerchantID, &payload, &headers, &w.Attempts, &w.Status, &w.LastError,
		&w.IdempotencyKey, &w.NextAttemptAt, &w.CreatedAt); err != nil {
		return nil, err
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &w.Payload); err != nil {
			return nil, err
		}
	}

	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &w.Headers); err != nil {
			return nil, err
		}
	}

	return &w, nil
}
