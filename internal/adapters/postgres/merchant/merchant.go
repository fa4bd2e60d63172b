// Package merchant is the Postgres-backed Repository for merchant lookups.
// Onboarding and API-key issuance are out of scope, so this package only
// reads.
package merchant

import (
	"context"
	"database/sql"
	"errors"
	"reflect"

	"github.com/google/uuid"

	"github.com/shiftpay/usdt-gateway/internal/domain/merchant"
	"github.com/shiftpay/usdt-gateway/pkg/constant"
	"github.com/shiftpay/usdt-gateway/pkg/dbtx"
)

// Repository defines the merchant lookup the webhook dispatcher depends on.
type Repository interface {
	Find(ctx context.Context, id uuid.UUID) (*merchant.Merchant, error)
}

// PostgresRepository is the Postgres implementation of Repository.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a Repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Find returns the merchant with the given id.
func (r *PostgresRepository) Find(ctx context.Context, id uuid.UUID) (*merchant.Merchant, error) {
	exec := dbtx.GetExecutor(ctx, r.db)

	row := exec.QueryRowContext(ctx, `SELECT id, name, risk_tier, webhook_url, onboarded, created_at FROM merchants WHERE id = $1`, id)

	return scanMerchant(row.Scan)
}

type scanner func(dest ...any) error

func scanMerchant(scan scanner) (*merchant.Merchant, error) {
	var m merchant.Merchant

	if err := scan(&m.ID, &m.Name, &m.RiskTier, &m.WebhookURL, &m.Onboarded, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, constant.ValidateBusinessError(constant.ErrMerchantNotFound, reflect.TypeOf(merchant.Merchant{}).Name())
		}

		return nil, err
	}

	return &m, nil
}
