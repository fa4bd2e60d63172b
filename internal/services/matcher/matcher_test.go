package matcher

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftpay/usdt-gateway/internal/domain/auditlog"
	"github.com/shiftpay/usdt-gateway/internal/domain/depositraw"
	"github.com/shiftpay/usdt-gateway/internal/domain/invoice"
	"github.com/shiftpay/usdt-gateway/internal/domain/ledgerentry"
	"github.com/shiftpay/usdt-gateway/internal/domain/payment"
	"github.com/shiftpay/usdt-gateway/internal/domain/systemevent"
	"github.com/shiftpay/usdt-gateway/internal/domain/webhookqueue"
	"github.com/shiftpay/usdt-gateway/internal/services/amountdiff"
)

// The repositories the matcher depends on are small enough that hand-written
// in-memory fakes exercise the use case's control flow directly; sqlmock is
// used only where a test drives a real transaction boundary (the invoice,
// poller, webhook and dbtx tests). This avoids depending on
// mockgen-generated code that can't be regenerated without running the Go
// toolchain.

type fakeInvoiceRepo struct {
	byID map[uuid.UUID]*invoice.Invoice
}

func newFakeInvoiceRepo(invoices ...*invoice.Invoice) *fakeInvoiceRepo {
	m := make(map[uuid.UUID]*invoice.Invoice)
	for _, inv := range invoices {
		cp := *inv
		m[inv.ID] = &cp
	}

	return &fakeInvoiceRepo{byID: m}
}

func (f *fakeInvoiceRepo) Create(context.Context, *invoice.Invoice) error { return nil }

func (f *fakeInvoiceRepo) Find(_ context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	return f.byID[id], nil
}

func (f *fakeInvoiceRepo) FindOpenByAddress(_ context.Context, network, address string, addressTag *string, limit int) ([]*invoice.Invoice, error) {
	var out []*invoice.Invoice

	for _, inv := range f.byID {
		if inv.Network == network && inv.Address != nil && *inv.Address == address && inv.Status == invoice.StatusPending {
			out = append(out, inv)
		}

		if len(out) >= limit {
			break
		}
	}

	return out, nil
}

func (f *fakeInvoiceRepo) LockForUpdate(_ context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	return f.byID[id], nil
}

func (f *fakeInvoiceRepo) SetStatus(_ context.Context, id uuid.UUID, status invoice.Status) error {
	f.byID[id].Status = status
	return nil
}

func (f *fakeInvoiceRepo) SetStatusBatch(_ context.Context, ids []uuid.UUID, status invoice.Status) error {
	for _, id := range ids {
		f.byID[id].Status = status
	}

	return nil
}

type fakeDepositRawRepo struct {
	processed map[uuid.UUID]bool
}

func (f *fakeDepositRawRepo) Insert(context.Context, *depositraw.DepositRaw) error { return nil }

func (f *fakeDepositRawRepo) FindByTxID(context.Context, string) (*depositraw.DepositRaw, error) {
	return nil, nil
}

func (f *fakeDepositRawRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	if f.processed == nil {
		f.processed = make(map[uuid.UUID]bool)
	}

	f.processed[id] = true

	return nil
}

type fakePaymentRepo struct {
	created []*payment.Payment
}

func (f *fakePaymentRepo) Create(_ context.Context, p *payment.Payment) error {
	f.created = append(f.created, p)
	return nil
}

type fakeLedgerRepo struct {
	created []*ledgerentry.LedgerEntry
}

func (f *fakeLedgerRepo) Create(_ context.Context, e *ledgerentry.LedgerEntry) error {
	f.created = append(f.created, e)
	return nil
}

type fakeWebhookRepo struct {
	created []*webhookqueue.WebhookQueue
}

func (f *fakeWebhookRepo) Create(_ context.Context, w *webhookqueue.WebhookQueue) error {
	f.created = append(f.created, w)
	return nil
}

func (f *fakeWebhookRepo) LockNextPending(context.Context) (*webhookqueue.WebhookQueue, error) {
	return nil, nil
}

func (f *fakeWebhookRepo) RecordAttempt(context.Context, uuid.UUID, webhookqueue.Status, *string, *time.Time) error {
	return nil
}

type fakeAuditLogRepo struct {
	created []*auditlog.AuditLog
}

func (f *fakeAuditLogRepo) Create(_ context.Context, a *auditlog.AuditLog) error {
	f.created = append(f.created, a)
	return nil
}

type fakeSystemEventRepo struct {
	created []*systemevent.SystemEvent
}

func (f *fakeSystemEventRepo) Create(_ context.Context, e *systemevent.SystemEvent) error {
	f.created = append(f.created, e)
	return nil
}

func newInvoice(merchantID uuid.UUID, publishAmount decimal.Decimal, address string) *invoice.Invoice {
	return &invoice.Invoice{
		ID:            uuid.New(),
		MerchantID:    merchantID,
		BaseAmount:    publishAmount,
		PublishAmount: publishAmount,
		Currency:      "USDT",
		Network:       "ERC20",
		Address:       &address,
		Status:        invoice.StatusPending,
		CreatedAt:     time.Now(),
	}
}

func newDeposit(txID, address string, amount decimal.Decimal, confirmTimes int) *depositraw.DepositRaw {
	return &depositraw.DepositRaw{
		ID:           uuid.New(),
		TxID:         txID,
		Coin:         "USDT",
		Network:      "ERC20",
		Amount:       amount,
		Status:       depositraw.StatusSuccess,
		Address:      address,
		ConfirmTimes: confirmTimes,
	}
}

func TestMatch_IgnoresNonUSDT(t *testing.T) {
	uc := NewUseCase(newFakeInvoiceRepo(), &fakeDepositRawRepo{}, &fakePaymentRepo{}, &fakeLedgerRepo{}, &fakeWebhookRepo{}, &fakeAuditLogRepo{}, &fakeSystemEventRepo{}, nil, 3)

	d := newDeposit("tx1", "0xabc", decimal.NewFromInt(10), 12)
	d.Coin = "BTC"

	outcome, err := uc.Match(t.Context(), d)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnoredWrongCoin, outcome)
}

func TestMatch_InsufficientConfirmations(t *testing.T) {
	uc := NewUseCase(newFakeInvoiceRepo(), &fakeDepositRawRepo{}, &fakePaymentRepo{}, &fakeLedgerRepo{}, &fakeWebhookRepo{}, &fakeAuditLogRepo{}, &fakeSystemEventRepo{}, nil, 3)

	d := newDeposit("tx1", "0xabc", decimal.NewFromInt(10), 3) // ERC20 requires 12

	outcome, err := uc.Match(t.Context(), d)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotReady, outcome)
}

func TestMatch_ExactAmountCredits(t *testing.T) {
	merchantID := uuid.New()
	base := decimal.RequireFromString("10.000000")
	inv := newInvoice(merchantID, base, "0xabc")

	invoiceRepo := newFakeInvoiceRepo(inv)
	depositRepo := &fakeDepositRawRepo{}
	paymentRepo := &fakePaymentRepo{}
	ledgerRepo := &fakeLedgerRepo{}
	webhookRepo := &fakeWebhookRepo{}

	uc := NewUseCase(invoiceRepo, depositRepo, paymentRepo, ledgerRepo, webhookRepo, &fakeAuditLogRepo{}, &fakeSystemEventRepo{}, nil, 3)

	d := newDeposit("tx1", "0xabc", base, 12)

	outcome, err := uc.Match(t.Context(), d)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCredited, outcome)

	assert.Equal(t, invoice.StatusPaid, invoiceRepo.byID[inv.ID].Status)
	require.Len(t, paymentRepo.created, 1)
	assert.False(t, paymentRepo.created[0].UsedAmountDiff)
	require.Len(t, ledgerRepo.created, 1)
	assert.True(t, ledgerRepo.created[0].Amount.Equal(base))
	require.Len(t, webhookRepo.created, 1)
	assert.True(t, depositRepo.processed[d.ID])
}

func TestMatch_AmountDiffSingleMatchCredits(t *testing.T) {
	merchantID := uuid.New()
	base := decimal.RequireFromString("10.00")
	invA := newInvoice(merchantID, base, "0xabc")
	invB := newInvoice(merchantID, base, "0xabc")

	adjustedB, err := amountdiff.Derive(invB.PublishAmount, invB.ID, invB.Network, 3)
	require.NoError(t, err)

	invoiceRepo := newFakeInvoiceRepo(invA, invB)
	paymentRepo := &fakePaymentRepo{}

	uc := NewUseCase(invoiceRepo, &fakeDepositRawRepo{}, paymentRepo, &fakeLedgerRepo{}, &fakeWebhookRepo{}, &fakeAuditLogRepo{}, &fakeSystemEventRepo{}, nil, 3)

	// Only plausible if invA's own amount-diff output isn't also adjustedB;
	// with distinct random UUIDs this holds with overwhelming probability.
	d := newDeposit("tx1", "0xabc", adjustedB, 12)

	outcome, err := uc.Match(t.Context(), d)
	require.NoError(t, err)

	if outcome == OutcomeCollision {
		t.Skip("both candidates collided on the same amount-diff output by chance; not the scenario under test")
	}

	assert.Equal(t, OutcomeCreditedAmountDiff, outcome)
	require.Len(t, paymentRepo.created, 1)
	assert.True(t, paymentRepo.created[0].UsedAmountDiff)
	assert.Equal(t, invB.ID, paymentRepo.created[0].InvoiceID)
	assert.Equal(t, invoice.StatusPaid, invoiceRepo.byID[invB.ID].Status)
	assert.Equal(t, invoice.StatusPending, invoiceRepo.byID[invA.ID].Status)
}

// uuidFromUint64 builds a UUID whose big-endian integer value is n, so
// tests can construct two distinct ids with the same value modulo 10^k.
func uuidFromUint64(n uint64) uuid.UUID {
	var id uuid.UUID

	for i := 0; i < 8; i++ {
		id[15-i] = byte(n >> (8 * i))
	}

	return id
}

func TestMatch_AmountDiffCollisionEscalates(t *testing.T) {
	merchantID := uuid.New()
	base := decimal.RequireFromString("10.00")

	invA := newInvoice(merchantID, base, "0xabc")
	invA.ID = uuidFromUint64(5)

	invB := newInvoice(merchantID, base, "0xabc")
	invB.ID = uuidFromUint64(1005) // same value mod 10^3 as invA.ID

	invoiceRepo := newFakeInvoiceRepo(invA, invB)
	auditRepo := &fakeAuditLogRepo{}
	eventRepo := &fakeSystemEventRepo{}

	uc := NewUseCase(invoiceRepo, &fakeDepositRawRepo{}, &fakePaymentRepo{}, &fakeLedgerRepo{}, &fakeWebhookRepo{}, auditRepo, eventRepo, nil, 3)

	adjusted, err := amountdiff.Derive(base, invA.ID, invA.Network, 3)
	require.NoError(t, err)
	require.False(t, adjusted.Equal(base), "fixture invalid: adjusted amount must differ from the raw publish amount so the exact pass doesn't short-circuit the collision")

	d := newDeposit("tx1", "0xabc", adjusted, 12)

	outcome, err := uc.Match(t.Context(), d)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCollision, outcome)

	assert.Equal(t, invoice.StatusPendingManualResolution, invoiceRepo.byID[invA.ID].Status)
	assert.Equal(t, invoice.StatusPendingManualResolution, invoiceRepo.byID[invB.ID].Status)
	require.Len(t, auditRepo.created, 1)
	require.Len(t, eventRepo.created, 1)
}

func TestMatch_NoCandidateMatchLeavesUnprocessed(t *testing.T) {
	merchantID := uuid.New()
	base := decimal.RequireFromString("10.00")
	inv := newInvoice(merchantID, base, "0xabc")

	invoiceRepo := newFakeInvoiceRepo(inv)
	depositRepo := &fakeDepositRawRepo{}

	uc := NewUseCase(invoiceRepo, depositRepo, &fakePaymentRepo{}, &fakeLedgerRepo{}, &fakeWebhookRepo{}, &fakeAuditLogRepo{}, &fakeSystemEventRepo{}, nil, 3)

	d := newDeposit("tx1", "0xabc", decimal.RequireFromString("999.00"), 12)

	outcome, err := uc.Match(t.Context(), d)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoMatch, outcome)
	assert.False(t, depositRepo.processed[d.ID])
	assert.Equal(t, invoice.StatusPending, invoiceRepo.byID[inv.ID].Status)
}
