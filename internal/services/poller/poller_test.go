package poller

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftpay/usdt-gateway/internal/adapters/exchange"
	"github.com/shiftpay/usdt-gateway/internal/domain/auditlog"
	"github.com/shiftpay/usdt-gateway/internal/domain/checkpoint"
	"github.com/shiftpay/usdt-gateway/internal/domain/depositraw"
	"github.com/shiftpay/usdt-gateway/internal/domain/invoice"
	"github.com/shiftpay/usdt-gateway/internal/domain/ledgerentry"
	"github.com/shiftpay/usdt-gateway/internal/domain/payment"
	"github.com/shiftpay/usdt-gateway/internal/domain/systemevent"
	"github.com/shiftpay/usdt-gateway/internal/domain/webhookqueue"
	"github.com/shiftpay/usdt-gateway/internal/services/matcher"
)

// --- fakes mirroring matcher_test.go's, kept local since that file's types
// are unexported in another package ---

type fakeInvoiceRepo struct{}

func (fakeInvoiceRepo) Create(context.Context, *invoice.Invoice) error { return nil }
func (fakeInvoiceRepo) Find(context.Context, uuid.UUID) (*invoice.Invoice, error) {
	return nil, nil
}
func (fakeInvoiceRepo) FindOpenByAddress(context.Context, string, string, *string, int) ([]*invoice.Invoice, error) {
	return nil, nil
}
func (fakeInvoiceRepo) LockForUpdate(context.Context, uuid.UUID) (*invoice.Invoice, error) {
	return nil, nil
}
func (fakeInvoiceRepo) SetStatus(context.Context, uuid.UUID, invoice.Status) error { return nil }
func (fakeInvoiceRepo) SetStatusBatch(context.Context, []uuid.UUID, invoice.Status) error {
	return nil
}

type fakeDepositRawRepo struct {
	inserted map[string]*depositraw.DepositRaw
}

func newFakeDepositRawRepo() *fakeDepositRawRepo {
	return &fakeDepositRawRepo{inserted: make(map[string]*depositraw.DepositRaw)}
}

func (f *fakeDepositRawRepo) Insert(_ context.Context, d *depositraw.DepositRaw) error {
	if _, ok := f.inserted[d.TxID]; ok {
		return errDuplicateTx
	}

	f.inserted[d.TxID] = d

	return nil
}

func (f *fakeDepositRawRepo) FindByTxID(_ context.Context, txID string) (*depositraw.DepositRaw, error) {
	return f.inserted[txID], nil
}

func (f *fakeDepositRawRepo) MarkProcessed(context.Context, uuid.UUID) error { return nil }

type fakePaymentRepo struct{}

func (fakePaymentRepo) Create(context.Context, *payment.Payment) error { return nil }

type fakeLedgerRepo struct{}

func (fakeLedgerRepo) Create(context.Context, *ledgerentry.LedgerEntry) error { return nil }

type fakeWebhookRepo struct{}

func (fakeWebhookRepo) Create(context.Context, *webhookqueue.WebhookQueue) error { return nil }
func (fakeWebhookRepo) LockNextPending(context.Context) (*webhookqueue.WebhookQueue, error) {
	return nil, nil
}
func (fakeWebhookRepo) RecordAttempt(context.Context, uuid.UUID, webhookqueue.Status, *string, *time.Time) error {
	return nil
}

type fakeAuditLogRepo struct{}

func (fakeAuditLogRepo) Create(context.Context, *auditlog.AuditLog) error { return nil }

type fakeSystemEventRepo struct{}

func (fakeSystemEventRepo) Create(context.Context, *systemevent.SystemEvent) error { return nil }

type fakeCheckpointRepo struct {
	cp *checkpoint.Checkpoint
}

func (f *fakeCheckpointRepo) Get(_ context.Context, key string) (*checkpoint.Checkpoint, error) {
	if f.cp == nil {
		return nil, sql.ErrNoRows
	}

	return f.cp, nil
}

func (f *fakeCheckpointRepo) Upsert(_ context.Context, cp *checkpoint.Checkpoint) error {
	f.cp = cp
	return nil
}

type fakeExchangeClient struct {
	syncTimeCalls int
	windows       [][2]int64
	deposits      []exchange.Deposit
}

func (f *fakeExchangeClient) SyncTime(context.Context) error {
	f.syncTimeCalls++
	return nil
}

func (f *fakeExchangeClient) DepositHistory(_ context.Context, startMS, endMS int64, _ int) ([]exchange.Deposit, error) {
	f.windows = append(f.windows, [2]int64{startMS, endMS})

	var out []exchange.Deposit

	for _, d := range f.deposits {
		if d.InsertTime >= startMS && d.InsertTime < endMS {
			out = append(out, d)
		}
	}

	return out, nil
}

var errDuplicateTx = &pgconn.PgError{Code: "23505"}

func newTestMatcher(t *testing.T) *matcher.UseCase {
	t.Helper()

	return matcher.NewUseCase(fakeInvoiceRepo{}, newFakeDepositRawRepo(), fakePaymentRepo{}, fakeLedgerRepo{}, fakeWebhookRepo{}, fakeAuditLogRepo{}, fakeSystemEventRepo{}, nil, 3)
}

func TestIngestOne_DuplicateTxIDIsIdempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	depositRepo := newFakeDepositRawRepo()
	checkpointRepo := &fakeCheckpointRepo{}
	client := &fakeExchangeClient{}

	uc := NewUseCase(db, client, checkpointRepo, depositRepo, newTestMatcher(t), nil, nil, DefaultConfig("binance-usdt"))

	d := exchange.Deposit{TxID: "abc", Coin: "XRP", Network: "ERC20", Amount: "1.0", InsertTime: 1000}

	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err = uc.ingestOne(context.Background(), d)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err = uc.ingestOne(context.Background(), d)
	require.NoError(t, err)

	assert.Len(t, depositRepo.inserted, 1, "second ingest of the same tx_id must not create a second row")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalkWindows_SeedsCheckpointOnFirstRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	checkpointRepo := &fakeCheckpointRepo{}
	client := &fakeExchangeClient{}

	cfg := DefaultConfig("binance-usdt")
	cfg.WindowMS = 1000
	cfg.InitialLookbackMS = 2000

	uc := NewUseCase(db, client, checkpointRepo, newFakeDepositRawRepo(), newTestMatcher(t), nil, nil, cfg)

	err = uc.walkWindows(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(client.windows), 2, "a 2000ms lookback over 1000ms windows should walk at least twice")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalkWindows_AdvancesCheckpointAcrossDeposits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := uc_adjustedNowForTest()

	checkpointRepo := &fakeCheckpointRepo{cp: &checkpoint.Checkpoint{Key: "binance-usdt", LastInsertTimeMS: now - 1000}}
	client := &fakeExchangeClient{
		deposits: []exchange.Deposit{
			{TxID: "tx1", Coin: "BTC", Network: "ERC20", Amount: "1", InsertTime: now - 900},
			{TxID: "tx2", Coin: "BTC", Network: "ERC20", Amount: "1", InsertTime: now - 500},
		},
	}

	cfg := DefaultConfig("binance-usdt")
	cfg.WindowMS = 2000

	uc := NewUseCase(db, client, checkpointRepo, newFakeDepositRawRepo(), newTestMatcher(t), nil, nil, cfg)

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	err = uc.walkWindows(context.Background())
	require.NoError(t, err)

	require.NotNil(t, checkpointRepo.cp)
	assert.Equal(t, "tx2", checkpointRepo.cp.LastTxID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func uc_adjustedNowForTest() int64 {
	return (&UseCase{}).adjustedNow()
}
