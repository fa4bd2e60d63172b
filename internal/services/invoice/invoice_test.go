package invoice

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftpay/usdt-gateway/internal/domain/auditlog"
	"github.com/shiftpay/usdt-gateway/internal/domain/depositaddress"
	"github.com/shiftpay/usdt-gateway/internal/domain/invoice"
	"github.com/shiftpay/usdt-gateway/internal/domain/systemevent"
	"github.com/shiftpay/usdt-gateway/pkg/apperr"
	"github.com/shiftpay/usdt-gateway/pkg/mlog"
)

var errUniqueViolation = &pgconn.PgError{Code: "23505"}

type fakeInvoiceRepo struct {
	byID        map[uuid.UUID]*invoice.Invoice
	collideFor  int
	createCalls int
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{byID: make(map[uuid.UUID]*invoice.Invoice)}
}

func (f *fakeInvoiceRepo) Create(_ context.Context, inv *invoice.Invoice) error {
	f.createCalls++

	if f.createCalls <= f.collideFor {
		return errUniqueViolation
	}

	f.byID[inv.ID] = inv

	return nil
}

func (f *fakeInvoiceRepo) Find(_ context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	inv, ok := f.byID[id]
	if !ok {
		return nil, apperr.EntityNotFoundError{EntityType: "Invoice"}
	}

	return inv, nil
}

func (f *fakeInvoiceRepo) FindOpenByAddress(context.Context, string, string, *string, int) ([]*invoice.Invoice, error) {
	return nil, nil
}

func (f *fakeInvoiceRepo) LockForUpdate(context.Context, uuid.UUID) (*invoice.Invoice, error) {
	return nil, nil
}

func (f *fakeInvoiceRepo) SetStatus(context.Context, uuid.UUID, invoice.Status) error { return nil }

func (f *fakeInvoiceRepo) SetStatusBatch(context.Context, []uuid.UUID, invoice.Status) error {
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

type fakeDepositAddressRepo struct {
	next       *depositaddress.DepositAddress
	allocated  map[uuid.UUID]uuid.UUID
	lockCalled int
}

func (f *fakeDepositAddressRepo) LockNextUnallocated(context.Context, string) (*depositaddress.DepositAddress, error) {
	f.lockCalled++

	if f.next == nil {
		return nil, apperr.EntityNotFoundError{EntityType: "DepositAddress"}
	}

	return f.next, nil
}

func (f *fakeDepositAddressRepo) Allocate(_ context.Context, id, invoiceID uuid.UUID) error {
	if f.allocated == nil {
		f.allocated = make(map[uuid.UUID]uuid.UUID)
	}

	f.allocated[id] = invoiceID

	return nil
}

func newTestUseCase(t *testing.T, invoiceRepo *fakeInvoiceRepo, auditRepo *fakeAuditLogRepo, eventRepo *fakeSystemEventRepo, addrRepo *fakeDepositAddressRepo) (*UseCase, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	uc := &UseCase{
		DB:          db,
		InvoiceRepo: invoiceRepo,
		AmountDiffK: 3,
		MaxAttempts: DefaultMaxAttempts,
		Logger:      mlog.NoneLogger{},
	}

	if auditRepo != nil {
		uc.AuditLogRepo = auditRepo
	}

	if eventRepo != nil {
		uc.SystemEventRepo = eventRepo
	}

	if addrRepo != nil {
		uc.DepositAddressRepo = addrRepo
	}

	return uc, mock
}

func TestCreate_FirstAttemptSucceeds(t *testing.T) {
	invoiceRepo := newFakeInvoiceRepo()
	uc, _ := newTestUseCase(t, invoiceRepo, nil, nil, nil)

	addr := "TQrZ8F6qS1nM9Xn4g3"

	in := invoice.CreateInput{
		MerchantID: uuid.New(),
		BaseAmount: decimal.RequireFromString("10.00"),
		Network:    "TRC20",
		Address:    &addr,
	}

	inv, err := uc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPending, inv.Status)
	assert.True(t, inv.PublishAmount.GreaterThanOrEqual(in.BaseAmount))
	assert.Equal(t, 1, invoiceRepo.createCalls)
}

func TestCreate_RetriesOnCollisionThenSucceeds(t *testing.T) {
	invoiceRepo := newFakeInvoiceRepo()
	invoiceRepo.collideFor = 2

	uc, _ := newTestUseCase(t, invoiceRepo, nil, nil, nil)

	addr := "TQrZ8F6qS1nM9Xn4g3"

	in := invoice.CreateInput{
		MerchantID: uuid.New(),
		BaseAmount: decimal.RequireFromString("10.00"),
		Network:    "TRC20",
		Address:    &addr,
	}

	inv, err := uc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.NotNil(t, inv)
	assert.Equal(t, 3, invoiceRepo.createCalls)
}

func TestCreate_ExhaustsAndEscalates(t *testing.T) {
	invoiceRepo := newFakeInvoiceRepo()
	invoiceRepo.collideFor = DefaultMaxAttempts

	auditRepo := &fakeAuditLogRepo{}
	eventRepo := &fakeSystemEventRepo{}

	uc, mock := newTestUseCase(t, invoiceRepo, auditRepo, eventRepo, nil)

	mock.ExpectBegin()
	mock.ExpectCommit()

	addr := "TQrZ8F6qS1nM9Xn4g3"

	in := invoice.CreateInput{
		MerchantID: uuid.New(),
		BaseAmount: decimal.RequireFromString("10.00"),
		Network:    "TRC20",
		Address:    &addr,
	}

	_, err := uc.Create(context.Background(), in)
	require.Error(t, err)

	var conflict apperr.EntityConflictError
	require.ErrorAs(t, err, &conflict)

	assert.Len(t, auditRepo.created, 1)
	assert.Equal(t, auditlog.ActionCollisionExhausted, auditRepo.created[0].Action)
	assert.Len(t, eventRepo.created, 1)
	assert.Equal(t, systemevent.TypeCollisionExhausted, eventRepo.created[0].Type)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_AllocatesFromDepositAddressPoolWhenAddressOmitted(t *testing.T) {
	invoiceRepo := newFakeInvoiceRepo()

	poolAddr := &depositaddress.DepositAddress{
		ID:      uuid.New(),
		Address: "TPoolAddr111",
		Network: "TRC20",
	}
	addrRepo := &fakeDepositAddressRepo{next: poolAddr}

	uc, mock := newTestUseCase(t, invoiceRepo, nil, nil, addrRepo)

	mock.ExpectBegin()
	mock.ExpectCommit()

	in := invoice.CreateInput{
		MerchantID: uuid.New(),
		BaseAmount: decimal.RequireFromString("5.00"),
		Network:    "TRC20",
	}

	inv, err := uc.Create(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, inv.Address)
	assert.Equal(t, poolAddr.Address, *inv.Address)
	assert.Equal(t, 1, addrRepo.lockCalled)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_UnderlyingErrorIsNotRetried(t *testing.T) {
	invoiceRepo := newFakeInvoiceRepo()
	realErr := context.DeadlineExceeded
	invoiceRepo.collideFor = 0

	uc, _ := newTestUseCase(t, invoiceRepo, nil, nil, nil)
	uc.InvoiceRepo = &erroringInvoiceRepo{fakeInvoiceRepo: invoiceRepo, err: realErr}

	addr := "TQrZ8F6qS1nM9Xn4g3"

	in := invoice.CreateInput{
		MerchantID: uuid.New(),
		BaseAmount: decimal.RequireFromString("10.00"),
		Network:    "TRC20",
		Address:    &addr,
	}

	_, err := uc.Create(context.Background(), in)
	require.ErrorIs(t, err, realErr)
	assert.Equal(t, 1, invoiceRepo.createCalls)
}

type erroringInvoiceRepo struct {
	*fakeInvoiceRepo
	err error
}

func (f *erroringInvoiceRepo) Create(_ context.Context, inv *invoice.Invoice) error {
	f.createCalls++
	return f.err
}
