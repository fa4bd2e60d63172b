// Package invoice implements the invoice creator (§4.2): given a base
// amount and placement details, find a published amount that is unique
// among the merchant's open invoices at the same address by probing
// sequential invoice ids, grounded on the teacher's commands.UseCase
// aggregation-of-repositories shape (components/consumer/internal/services/commands/command.go),
// with tracer spans dropped since this repository doesn't wire OpenTelemetry.
package invoice

import (
	"context"
	"crypto/rand"
	"database/sql"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/shiftpay/usdt-gateway/internal/domain/auditlog"
	"github.com/shiftpay/usdt-gateway/internal/domain/invoice"
	"github.com/shiftpay/usdt-gateway/internal/domain/systemevent"
	postgresauditlog "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/auditlog"
	postgresdepositaddress "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/depositaddress"
	postgresinvoice "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/invoice"
	postgressystemevent "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/systemevent"
	"github.com/shiftpay/usdt-gateway/internal/services/amountdiff"
	"github.com/shiftpay/usdt-gateway/pkg/constant"
	"github.com/shiftpay/usdt-gateway/pkg/dbtx"
	"github.com/shiftpay/usdt-gateway/pkg/mlog"
)

var two128 = new(big.Int).Lsh(big.NewInt(1), 128)

// DefaultMaxAttempts is the default number of sequential invoice-id probes
// per §4.2 before escalating to CollisionExhausted.
const DefaultMaxAttempts = 5

// UseCase aggregates the repositories the invoice creator depends on,
// mirroring the teacher's commands.UseCase shape.
type UseCase struct {
	DB                 *sql.DB
	InvoiceRepo        postgresinvoice.Repository
	AuditLogRepo       postgresauditlog.Repository
	SystemEventRepo    postgressystemevent.Repository
	DepositAddressRepo postgresdepositaddress.Repository
	Logger             mlog.Logger

	AmountDiffK int32
	MaxAttempts int
}

// NewUseCase returns a UseCase with defaults applied. DepositAddressRepo
// may be nil, in which case callers must always supply an explicit address
// in CreateInput.
func NewUseCase(db *sql.DB, invoiceRepo postgresinvoice.Repository, auditLogRepo postgresauditlog.Repository, systemEventRepo postgressystemevent.Repository, depositAddressRepo postgresdepositaddress.Repository, logger mlog.Logger, amountDiffK int32, maxAttempts int) *UseCase {
	if logger == nil {
		logger = mlog.NoneLogger{}
	}

	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	return &UseCase{
		DB:                 db,
		InvoiceRepo:        invoiceRepo,
		AuditLogRepo:       auditLogRepo,
		SystemEventRepo:    systemEventRepo,
		DepositAddressRepo: depositAddressRepo,
		Logger:             logger,
		AmountDiffK:        amountDiffK,
		MaxAttempts:        maxAttempts,
	}
}

// Create runs the collision-retry loop of §4.2 and returns the persisted
// invoice, or constant.ErrCollisionExhausted after MaxAttempts collisions.
func (uc *UseCase) Create(ctx context.Context, in invoice.CreateInput) (*invoice.Invoice, error) {
	u0, err := randomUint128()
	if err != nil {
		return nil, err
	}

	network := in.Network
	currency := in.Currency

	if currency == "" {
		currency = "USDT"
	}

	var expiresAt *time.Time

	if in.ExpirySeconds != nil {
		t := time.Now().Add(time.Duration(*in.ExpirySeconds) * time.Second)
		expiresAt = &t
	}

	address := in.Address

	if address == nil && uc.DepositAddressRepo != nil && network != "" {
		allocated, err := uc.allocateAddress(ctx, network, u0)
		if err != nil {
			return nil, err
		}

		address = allocated
	}

	for attempt := 0; attempt < uc.MaxAttempts; attempt++ {
		id := addMod128(u0, attempt)

		adjusted, err := amountdiff.Derive(in.BaseAmount, id, network, uc.AmountDiffK)
		if err != nil {
			return nil, constant.ValidateBusinessError(constant.ErrAmountDiffPrecisionError, "Invoice")
		}

		candidate := &invoice.Invoice{
			ID:            id,
			MerchantID:    in.MerchantID,
			BaseAmount:    in.BaseAmount,
			PublishAmount: adjusted,
			Currency:      currency,
			Network:       network,
			Address:       address,
			AddressTag:    in.AddressTag,
			Status:        invoice.StatusPending,
			Metadata:      in.Metadata,
			ExpiresAt:     expiresAt,
			CreatedAt:     time.Now(),
		}

		err = uc.InvoiceRepo.Create(ctx, candidate)
		if err == nil {
			return candidate, nil
		}

		if !postgresinvoice.IsUniqueViolation(err) {
			return nil, err
		}

		uc.Logger.Infof("invoice creation collision on attempt %d for merchant %s, retrying", attempt, in.MerchantID)
	}

	return nil, uc.escalateExhaustion(ctx, in, currency, network, expiresAt)
}

// escalateExhaustion records the pending_manual_resolution invoice and the
// accompanying AuditLog/SystemEvent pair required when every probe
// collides.
func (uc *UseCase) escalateExhaustion(ctx context.Context, in invoice.CreateInput, currency, network string, expiresAt *time.Time) error {
	fallbackID := uuid.New()

	fallback := &invoice.Invoice{
		ID:            fallbackID,
		MerchantID:    in.MerchantID,
		BaseAmount:    in.BaseAmount,
		PublishAmount: in.BaseAmount,
		Currency:      currency,
		Network:       network,
		Address:       in.Address,
		AddressTag:    in.AddressTag,
		Status:        invoice.StatusPendingManualResolution,
		Metadata:      in.Metadata,
		ExpiresAt:     expiresAt,
		CreatedAt:     time.Now(),
	}

	err := dbtx.RunInTransaction(ctx, uc.DB, func(ctx context.Context) error {
		if err := uc.InvoiceRepo.Create(ctx, fallback); err != nil {
			return err
		}

		if err := uc.AuditLogRepo.Create(ctx, &auditlog.AuditLog{
			ID:         uuid.New(),
			MerchantID: &in.MerchantID,
			Action:     auditlog.ActionCollisionExhausted,
			Detail: map[string]any{
				"invoice_id":  fallbackID.String(),
				"base_amount": in.BaseAmount.String(),
				"network":     network,
			},
			CreatedAt: time.Now(),
		}); err != nil {
			return err
		}

		return uc.SystemEventRepo.Create(ctx, &systemevent.SystemEvent{
			ID:   uuid.New(),
			Type: systemevent.TypeCollisionExhausted,
			Payload: map[string]any{
				"invoice_id":  fallbackID.String(),
				"merchant_id": in.MerchantID.String(),
			},
			CreatedAt: time.Now(),
		})
	})
	if err != nil {
		return err
	}

	return constant.ValidateBusinessError(constant.ErrCollisionExhausted, "Invoice", in.MerchantID)
}

// allocateAddress locks and allocates the oldest free pool address for
// network, associating it with the probe sequence's first candidate id.
// Whichever attempt in the retry loop ultimately succeeds reuses the same
// address, since the association is bookkeeping (which invoice "owns" the
// address), not the uniqueness anchor — that's the partial unique index on
// (merchant, publish_amount, address).
func (uc *UseCase) allocateAddress(ctx context.Context, network string, invoiceID uuid.UUID) (*string, error) {
	var address string

	err := dbtx.RunInTransaction(ctx, uc.DB, func(ctx context.Context) error {
		a, err := uc.DepositAddressRepo.LockNextUnallocated(ctx, network)
		if err != nil {
			return err
		}

		if err := uc.DepositAddressRepo.Allocate(ctx, a.ID, invoiceID); err != nil {
			return err
		}

		address = a.Address

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &address, nil
}

func randomUint128() (uuid.UUID, error) {
	var buf [16]byte

	if _, err := rand.Read(buf[:]); err != nil {
		return uuid.UUID{}, err
	}

	return uuid.UUID(buf), nil
}

// addMod128 computes (u0 + attempt) mod 2^128, per §4.2's probe sequence.
func addMod128(u0 uuid.UUID, attempt int) uuid.UUID {
	n := new(big.Int).SetBytes(u0[:])
	n.Add(n, big.NewInt(int64(attempt)))
	n.Mod(n, two128)

	var out [16]byte

	b := n.Bytes()
	copy(out[16-len(b):], b)

	return uuid.UUID(out)
}
