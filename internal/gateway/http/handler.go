// Package http implements the gateway's inbound HTTP surface of §6: invoice
// creation/read-back and the health/ready probes. Grounded on the teacher's
// handler shape (one struct per resource, methods taking *fiber.Ctx,
// decoded bodies passed in by pkg/nethttp.WithBody) read off
// components/ledger/internal/bootstrap/http/account.go, trimmed since this
// service carries no OpenTelemetry tracer.
package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/shiftpay/usdt-gateway/internal/domain/invoice"
	"github.com/shiftpay/usdt-gateway/pkg/apperr"
	"github.com/shiftpay/usdt-gateway/pkg/mlog"
	"github.com/shiftpay/usdt-gateway/pkg/nethttp"
)

// InvoiceCreator is the subset of internal/services/invoice.UseCase the
// handler depends on.
type InvoiceCreator interface {
	Create(ctx context.Context, in invoice.CreateInput) (*invoice.Invoice, error)
}

// InvoiceReader is the subset of the invoice postgres Repository the
// handler depends on for the read-back endpoint.
type InvoiceReader interface {
	Find(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error)
}

// InvoiceHandler serves POST /api/invoices and GET /api/invoices/:id.
type InvoiceHandler struct {
	Creator InvoiceCreator
	Reader  InvoiceReader
	Logger  mlog.Logger
}

// NewInvoiceHandler returns a handler with defaults applied.
func NewInvoiceHandler(creator InvoiceCreator, reader InvoiceReader, logger mlog.Logger) *InvoiceHandler {
	if logger == nil {
		logger = mlog.NoneLogger{}
	}

	return &InvoiceHandler{Creator: creator, Reader: reader, Logger: logger}
}

// CreateInvoice handles POST /api/invoices, per §6's contract: 201 with the
// invoice, 409 on CollisionExhausted, 500 on any other failure.
func (h *InvoiceHandler) CreateInvoice(i any, c *fiber.Ctx) error {
	ctx := c.UserContext()

	payload := i.(*invoice.CreateInput)

	h.Logger.Infof("creating invoice for merchant %s", payload.MerchantID)

	inv, err := h.Creator.Create(ctx, *payload)
	if err != nil {
		return nethttp.WithError(c, err)
	}

	return nethttp.Created(c, inv)
}

// GetInvoice handles GET /api/invoices/:id.
func (h *InvoiceHandler) GetInvoice(c *fiber.Ctx) error {
	ctx := c.UserContext()

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nethttp.WithError(c, apperr.ValidationError{
			Code:    "0010",
			Title:   "Bad Request",
			Message: "The invoice id is not a valid UUID.",
		})
	}

	inv, err := h.Reader.Find(ctx, id)
	if err != nil {
		return nethttp.WithError(c, err)
	}

	return nethttp.OK(c, inv)
}
