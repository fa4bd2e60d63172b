// Package matcher implements the transactional heart of the settlement
// pipeline (§4.4): given a freshly inserted DepositRaw row, it decides
// whether to credit an invoice, escalate a collision, or leave the row
// unprocessed for a later poll. Grounded on the same commands.UseCase
// aggregation-of-repositories shape as internal/services/invoice, with the
// row-locking pattern read off the teacher's balance-update command
// (components/ledger/internal/services/command/update-balance.go), which
// also re-reads a row with SELECT ... FOR UPDATE before mutating it inside
// a single transaction.
package matcher

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shiftpay/usdt-gateway/internal/domain/auditlog"
	"github.com/shiftpay/usdt-gateway/internal/domain/depositraw"
	"github.com/shiftpay/usdt-gateway/internal/domain/invoice"
	"github.com/shiftpay/usdt-gateway/internal/domain/ledgerentry"
	"github.com/shiftpay/usdt-gateway/internal/domain/payment"
	"github.com/shiftpay/usdt-gateway/internal/domain/systemevent"
	"github.com/shiftpay/usdt-gateway/internal/domain/webhookqueue"

	postgresauditlog "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/auditlog"
	postgresdepositraw "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/depositraw"
	postgresinvoice "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/invoice"
	postgresledgerentry "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/ledgerentry"
	postgrespayment "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/payment"
	postgressystemevent "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/systemevent"
	postgreswebhookqueue "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/webhookqueue"

	"github.com/shiftpay/usdt-gateway/internal/metrics"
	"github.com/shiftpay/usdt-gateway/internal/services/amountdiff"
	"github.com/shiftpay/usdt-gateway/pkg/mlog"
)

// MaxCandidates caps the candidate set per §4.4's "Candidate set" step.
const MaxCandidates = 50

// Outcome classifies how a single deposit was resolved, returned so callers
// (chiefly the poller, for logging) can distinguish "ignored" from
// "credited" without inspecting errors.
type Outcome string

const (
	OutcomeIgnoredWrongCoin      Outcome = "ignored_wrong_coin"
	OutcomeNotReady              Outcome = "not_ready"
	OutcomeNoMatch               Outcome = "no_match"
	OutcomeCredited              Outcome = "credited"
	OutcomeCreditedAmountDiff    Outcome = "credited_amount_diff"
	OutcomeCollision             Outcome = "collision"
)

// USDT is the only settled coin; anything else is ignored per the filter
// gate.
const USDT = "USDT"

// UseCase aggregates the repositories the matcher depends on.
type UseCase struct {
	InvoiceRepo     postgresinvoice.Repository
	DepositRawRepo  postgresdepositraw.Repository
	PaymentRepo     postgrespayment.Repository
	LedgerRepo      postgresledgerentry.Repository
	WebhookRepo     postgreswebhookqueue.Repository
	AuditLogRepo    postgresauditlog.Repository
	SystemEventRepo postgressystemevent.Repository
	Logger          mlog.Logger

	AmountDiffK int32
}

// NewUseCase returns a UseCase with defaults applied.
func NewUseCase(
	invoiceRepo postgresinvoice.Repository,
	depositRawRepo postgresdepositraw.Repository,
	paymentRepo postgrespayment.Repository,
	ledgerRepo postgresledgerentry.Repository,
	webhookRepo postgreswebhookqueue.Repository,
	auditLogRepo postgresauditlog.Repository,
	systemEventRepo postgressystemevent.Repository,
	logger mlog.Logger,
	amountDiffK int32,
) *UseCase {
	if logger == nil {
		logger = mlog.NoneLogger{}
	}

	return &UseCase{
		InvoiceRepo:     invoiceRepo,
		DepositRawRepo:  depositRawRepo,
		PaymentRepo:     paymentRepo,
		LedgerRepo:      ledgerRepo,
		WebhookRepo:     webhookRepo,
		AuditLogRepo:    auditLogRepo,
		SystemEventRepo: systemEventRepo,
		Logger:          logger,
		AmountDiffK:     amountDiffK,
	}
}

// Match runs the filter gate, candidate selection and matching passes of
// §4.4 against d. It must be called with ctx carrying an open transaction
// (see pkg/dbtx) so that every row lock acquired here is released only on
// commit or rollback by the caller.
func (uc *UseCase) Match(ctx context.Context, d *depositraw.DepositRaw) (Outcome, error) {
	if d.Coin != USDT {
		return OutcomeIgnoredWrongCoin, nil
	}

	required := amountdiff.RequiredConfirmations(d.Network)

	if d.Status != depositraw.StatusSuccess || d.ConfirmTimes < required {
		uc.Logger.Infof("matcher: deposit %s not ready (status=%d confirmTimes=%d required=%d)", d.TxID, d.Status, d.ConfirmTimes, required)
		return OutcomeNotReady, nil
	}

	candidates, err := uc.InvoiceRepo.FindOpenByAddress(ctx, d.Network, d.Address, d.AddressTag, MaxCandidates)
	if err != nil {
		return "", err
	}

	if outcome, err := uc.exactPass(ctx, d, candidates); outcome != "" || err != nil {
		return outcome, err
	}

	return uc.amountDiffPass(ctx, d, candidates)
}

// exactPass implements §4.4 step 1: lock each candidate in turn and credit
// on the first exact amount match. Returns ("", nil) if no candidate
// matched, so the caller falls through to the amount-diff pass.
func (uc *UseCase) exactPass(ctx context.Context, d *depositraw.DepositRaw, candidates []*invoice.Invoice) (Outcome, error) {
	for _, c := range candidates {
		locked, err := uc.InvoiceRepo.LockForUpdate(ctx, c.ID)
		if err != nil {
			return "", err
		}

		if locked.Status != invoice.StatusPending {
			continue
		}

		if !locked.PublishAmount.Equal(d.Amount) {
			continue
		}

		if err := uc.credit(ctx, locked, d, false); err != nil {
			return "", err
		}

		metrics.DepositsProcessedTotal.Inc()

		return OutcomeCredited, nil
	}

	return "", nil
}

// amountDiffPass implements §4.4 step 2: for each candidate, recompute the
// amount-diff output and collect the set matching the deposit's amount.
func (uc *UseCase) amountDiffPass(ctx context.Context, d *depositraw.DepositRaw, candidates []*invoice.Invoice) (Outcome, error) {
	var matched []*invoice.Invoice

	for _, c := range candidates {
		adjusted, err := amountdiff.Derive(c.PublishAmount, c.ID, c.Network, uc.AmountDiffK)
		if err != nil {
			uc.Logger.Warnf("matcher: amount-diff recompute failed for invoice %s: %v", c.ID, err)
			continue
		}

		if adjusted.Equal(d.Amount) {
			matched = append(matched, c)
		}
	}

	switch len(matched) {
	case 0:
		return OutcomeNoMatch, nil
	case 1:
		locked, err := uc.InvoiceRepo.LockForUpdate(ctx, matched[0].ID)
		if err != nil {
			return "", err
		}

		if locked.Status != invoice.StatusPending {
			return OutcomeNoMatch, nil
		}

		if err := uc.credit(ctx, locked, d, true); err != nil {
			return "", err
		}

		metrics.DepositsProcessedTotal.Inc()

		return OutcomeCreditedAmountDiff, nil
	default:
		if err := uc.escalateCollision(ctx, d, matched); err != nil {
			return "", err
		}

		return OutcomeCollision, nil
	}
}

// credit performs the five atomic writes of §4.4's crediting step.
func (uc *UseCase) credit(ctx context.Context, inv *invoice.Invoice, d *depositraw.DepositRaw, usedAmountDiff bool) error {
	now := time.Now()

	p := &payment.Payment{
		ID:             uuid.New(),
		InvoiceID:      inv.ID,
		DepositRawID:   d.ID,
		TxID:           d.TxID,
		Amount:         d.Amount,
		Network:        d.Network,
		Address:        d.Address,
		AddressTag:     d.AddressTag,
		Status:         payment.StatusSettled,
		UsedAmountDiff: usedAmountDiff,
		CreatedAt:      now,
	}

	if err := uc.PaymentRepo.Create(ctx, p); err != nil {
		if postgrespayment.IsUniqueViolation(err) {
			uc.Logger.Infof("matcher: payment for tx %s invoice %s already exists, treating as already-credited", d.TxID, inv.ID)
			return nil
		}

		return err
	}

	if err := uc.LedgerRepo.Create(ctx, &ledgerentry.LedgerEntry{
		ID:          uuid.New(),
		MerchantID:  inv.MerchantID,
		Amount:      d.Amount,
		Currency:    USDT,
		EntryType:   ledgerentry.EntryTypeCreditInvoice,
		ReferenceID: p.ID,
		Metadata: map[string]any{
			"invoice_id":    inv.ID.String(),
			"tx_id":         d.TxID,
			"confirmations": d.ConfirmTimes,
		},
		CreatedAt: now,
	}); err != nil {
		return err
	}

	if err := uc.InvoiceRepo.SetStatus(ctx, inv.ID, invoice.StatusPaid); err != nil {
		return err
	}

	if err := uc.DepositRawRepo.MarkProcessed(ctx, d.ID); err != nil {
		return err
	}

	var completedAt time.Time
	if d.CompleteTimeMS != nil {
		completedAt = time.UnixMilli(*d.CompleteTimeMS).UTC()
	} else {
		completedAt = now
	}

	return uc.WebhookRepo.Create(ctx, &webhookqueue.WebhookQueue{
		ID:         uuid.New(),
		MerchantID: inv.MerchantID,
		Payload: structPayload(webhookqueue.Payload{
			InvoiceID:     inv.ID,
			MerchantID:    inv.MerchantID,
			Status:        string(invoice.StatusPaid),
			Amount:        d.Amount.String(),
			Network:       d.Network,
			TxHash:        d.TxID,
			Confirmations: d.ConfirmTimes,
			ConfirmedAt:   completedAt,
			Metadata:      map[string]any{"used_amount_diff": usedAmountDiff},
		}),
		Status:         webhookqueue.StatusPending,
		IdempotencyKey: idempotencyKey(p.ID),
		CreatedAt:      now,
	})
}

// escalateCollision implements the |M| > 1 branch of §4.4: every member of
// matched is sent to pending_manual_resolution, the deposit is left
// unprocessed, and one AuditLog + one SystemEvent record the anomaly.
func (uc *UseCase) escalateCollision(ctx context.Context, d *depositraw.DepositRaw, matched []*invoice.Invoice) error {
	ids := make([]uuid.UUID, 0, len(matched))
	for _, m := range matched {
		if _, err := uc.InvoiceRepo.LockForUpdate(ctx, m.ID); err != nil {
			return err
		}

		ids = append(ids, m.ID)
	}

	if err := uc.InvoiceRepo.SetStatusBatch(ctx, ids, invoice.StatusPendingManualResolution); err != nil {
		return err
	}

	metrics.CollisionsTotal.Inc()

	detail := map[string]any{
		"tx_id":       d.TxID,
		"invoice_ids": uuidStrings(ids),
		"amount":      d.Amount.String(),
		"network":     d.Network,
	}

	merchantID := matched[0].MerchantID

	if err := uc.AuditLogRepo.Create(ctx, &auditlog.AuditLog{
		ID:         uuid.New(),
		MerchantID: &merchantID,
		Action:     auditlog.ActionCollision,
		Detail:     detail,
		CreatedAt:  time.Now(),
	}); err != nil {
		return err
	}

	return uc.SystemEventRepo.Create(ctx, &systemevent.SystemEvent{
		ID:        uuid.New(),
		Type:      systemevent.TypeAmountDiffCollision,
		Payload:   detail,
		CreatedAt: time.Now(),
	})
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}

	return out
}

func idempotencyKey(paymentID uuid.UUID) *string {
	s := "payment:" + paymentID.String()
	return &s
}

// structPayload converts the typed webhook payload to a map so the
// repository's json.Marshal sees the same shape regardless of caller.
func structPayload(p webhookqueue.Payload) map[string]any {
	return map[string]any{
		"invoiceId":     p.InvoiceID.String(),
		"merchantId":    p.MerchantID.String(),
		"status":        p.Status,
		"amount":        p.Amount,
		"network":       p.Network,
		"txHash":        p.TxHash,
		"confirmations": p.Confirmations,
		"confirmedAt":   p.ConfirmedAt,
		"metadata":      p.Metadata,
	}
}
