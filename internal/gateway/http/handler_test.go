package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftpay/usdt-gateway/internal/domain/invoice"
	"github.com/shiftpay/usdt-gateway/pkg/apperr"
	"github.com/shiftpay/usdt-gateway/pkg/constant"
)

type fakeCreator struct {
	result *invoice.Invoice
	err    error
}

func (f *fakeCreator) Create(context.Context, invoice.CreateInput) (*invoice.Invoice, error) {
	return f.result, f.err
}

type fakeReader struct {
	result *invoice.Invoice
	err    error
}

func (f *fakeReader) Find(context.Context, uuid.UUID) (*invoice.Invoice, error) {
	return f.result, f.err
}

func TestCreateInvoice_Success(t *testing.T) {
	inv := &invoice.Invoice{
		ID:            uuid.New(),
		MerchantID:    uuid.New(),
		BaseAmount:    decimal.RequireFromString("10.00"),
		PublishAmount: decimal.RequireFromString("10.001"),
		Currency:      "USDT",
		Status:        invoice.StatusPending,
		CreatedAt:     time.Now(),
	}

	h := NewInvoiceHandler(&fakeCreator{result: inv}, &fakeReader{}, nil)
	app := NewRouter(nil, h, &HealthHandler{Service: "gateway"})

	body, err := json.Marshal(invoice.CreateInput{MerchantID: inv.MerchantID, BaseAmount: inv.BaseAmount})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/invoices", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var got invoice.Invoice
	require.NoError(t, json.Unmarshal(respBody, &got))
	assert.Equal(t, inv.ID, got.ID)
}

func TestCreateInvoice_CollisionExhaustedReturns409(t *testing.T) {
	collisionErr := constant.ValidateBusinessError(constant.ErrCollisionExhausted, "Invoice", uuid.New())

	h := NewInvoiceHandler(&fakeCreator{err: collisionErr}, &fakeReader{}, nil)
	app := NewRouter(nil, h, &HealthHandler{Service: "gateway"})

	body, err := json.Marshal(invoice.CreateInput{MerchantID: uuid.New(), BaseAmount: decimal.RequireFromString("1.00")})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/invoices", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 409, resp.StatusCode)
}

func TestCreateInvoice_MissingRequiredFieldReturns400(t *testing.T) {
	h := NewInvoiceHandler(&fakeCreator{}, &fakeReader{}, nil)
	app := NewRouter(nil, h, &HealthHandler{Service: "gateway"})

	req := httptest.NewRequest("POST", "/api/invoices", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestGetInvoice_NotFoundReturns404(t *testing.T) {
	notFoundErr := apperr.EntityNotFoundError{EntityType: "Invoice", Code: constant.ErrInvoiceNotFound.Error()}

	h := NewInvoiceHandler(&fakeCreator{}, &fakeReader{err: notFoundErr}, nil)
	app := NewRouter(nil, h, &HealthHandler{Service: "gateway"})

	req := httptest.NewRequest("GET", "/api/invoices/"+uuid.New().String(), nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestGetInvoice_InvalidUUIDReturns400(t *testing.T) {
	h := NewInvoiceHandler(&fakeCreator{}, &fakeReader{}, nil)
	app := NewRouter(nil, h, &HealthHandler{Service: "gateway"})

	req := httptest.NewRequest("GET", "/api/invoices/not-a-uuid", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHealth_AlwaysOK(t *testing.T) {
	h := NewInvoiceHandler(&fakeCreator{}, &fakeReader{}, nil)
	app := NewRouter(nil, h, &HealthHandler{Service: "gateway", Version: "test"})

	req := httptest.NewRequest("GET", "/api/health", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}
