// Package invoice is the Postgres-backed Repository for the invoice
// aggregate, grounded on the teacher's
// components/consumer/internal/adapters/postgresql/transaction repository
// shape (squirrel + database/sql), adapted to run inside or outside a
// dbtx-scoped transaction.
package invoice

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"reflect"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shiftpay/usdt-gateway/internal/domain/invoice"
	"github.com/shiftpay/usdt-gateway/pkg/constant"
	"github.com/shiftpay/usdt-gateway/pkg/dbtx"
)

const uniqueViolation = "23505"

// Repository defines the invoice persistence operations the invoice
// creator, matcher and HTTP layer depend on.
type Repository interface {
	Create(ctx context.Context, inv *invoice.Invoice) error
	Find(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error)
	FindOpenByAddress(ctx context.Context, network, address string, addressTag *string, limit int) ([]*invoice.Invoice, error)
	LockForUpdate(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error)
	SetStatus(ctx context.Context, id uuid.UUID, status invoice.Status) error
	SetStatusBatch(ctx context.Context, ids []uuid.UUID, status invoice.Status) error
}

// PostgresRepository is the Postgres implementation of Repository.
type PostgresRepository struct {
	db        *sql.DB
	tableName string
}

// NewPostgresRepository returns a Repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, tableName: "invoices"}
}

// Create inserts inv in its own statement. A unique-violation on
// (merchant_id, publish_amount, address) is surfaced as-is so the invoice
// creator's collision-retry loop can detect it with errors.As.
func (r *PostgresRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	exec := dbtx.GetExecutor(ctx, r.db)

	metadata, err := json.Marshal(metadataOrEmpty(inv.Metadata))
	if err != nil {
		return err
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO invoices (id, merchant_id, base_amount, publish_amount, currency, network, address, address_tag, status, metadata, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		inv.ID, inv.MerchantID, inv.BaseAmount, inv.PublishAmount, inv.Currency, inv.Network,
		inv.Address, inv.AddressTag, inv.Status, metadata, inv.ExpiresAt, inv.CreatedAt)

	return err
}

// IsUniqueViolation reports whether err came from the partial unique index
// on (merchant_id, publish_amount, address).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Find returns the invoice with the given id.
func (r *PostgresRepository) Find(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	exec := dbtx.GetExecutor(ctx, r.db)

	row := exec.QueryRowContext(ctx, `SELECT id, merchant_id, base_amount, publish_amount, currency, network, address, address_tag, status, metadata, expires_at, created_at
		FROM invoices WHERE id = $1`, id)

	inv, err := scanInvoice(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, constant.ValidateBusinessError(constant.ErrInvoiceNotFound, reflect.TypeOf(invoice.Invoice{}).Name())
	}

	return inv, err
}

// FindOpenByAddress returns up to limit pending invoices matching
// (network, address[, address_tag]), the matcher's candidate set.
func (r *PostgresRepository) FindOpenByAddress(ctx context.Context, network, address string, addressTag *string, limit int) ([]*invoice.Invoice, error) {
	exec := dbtx.GetExecutor(ctx, r.db)

	b := squirrel.Select("id", "merchant_id", "base_amount", "publish_amount", "currency", "network", "address", "address_tag", "status", "metadata", "expires_at", "created_at").
		From(r.tableName).
		Where(squirrel.Eq{"network": network, "address": address, "status": invoice.StatusPending}).
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar)

	if addressTag != nil {
		b = b.Where(squirrel.Eq{"address_tag": *addressTag})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []*invoice.Invoice

	for rows.Next() {
		inv, err := scanInvoice(rows.Scan)
		if err != nil {
			return nil, err
		}

		invoices = append(invoices, inv)
	}

	return invoices, rows.Err()
}

// LockForUpdate re-reads id with SELECT ... FOR UPDATE. Must be called
// inside a transaction (i.e. with ctx carrying a dbtx transaction).
func (r *PostgresRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	tx := dbtx.TxFromContext(ctx)
	if tx == nil {
		return nil, errors.New("invoice: LockForUpdate requires an open transaction")
	}

	row := tx.QueryRowContext(ctx, `SELECT id, merchant_id, base_amount, publish_amount, currency, network, address, address_tag, status, metadata, expires_at, created_at
		FROM invoices WHERE id = $1 FOR UPDATE`, id)

	inv, err := scanInvoice(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, constant.ValidateBusinessError(constant.ErrInvoiceNotFound, reflect.TypeOf(invoice.Invoice{}).Name())
	}

	return inv, err
}

// SetStatus transitions a single invoice; together with SetStatusBatch it is
// the only invoice mutation the matcher performs.
func (r *PostgresRepository) SetStatus(ctx context.Context, id uuid.UUID, status invoice.Status) error {
	exec := dbtx.GetExecutor(ctx, r.db)

	_, err := exec.ExecContext(ctx, `UPDATE invoices SET status = $1 WHERE id = $2`, status, id)

	return err
}

// SetStatusBatch transitions every invoice in ids, used when a collision
// sends every candidate to pending_manual_resolution together.
func (r *PostgresRepository) SetStatusBatch(ctx context.Context, ids []uuid.UUID, status invoice.Status) error {
	if len(ids) == 0 {
		return nil
	}

	exec := dbtx.GetExecutor(ctx, r.db)

	_, err := exec.ExecContext(ctx, `UPDATE invoices SET status = $1 WHERE id = ANY($2)`, status, ids)

	return err
}

func metadataOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}

	return m
}

type scanner func(dest ...any) error

func scanInvoice(scan scanner) (*invoice.Invoice, error) {
	var inv invoice.Invoice

	var metadata []byte

	if err := scan(&inv.ID, &inv.MerchantID, &inv.BaseAmount, &inv.PublishAmount, &inv.Currency, &inv.Network,
		&inv.Address, &inv.AddressTag, &inv.Status, &metadata, &inv.ExpiresAt, &inv.CreatedAt); err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &inv.Metadata); err != nil {
			return nil, err
		}
	}

	return &inv, nil
}
