package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"

	"github.com/shiftpay/usdt-gateway/internal/domain/invoice"
	"github.com/shiftpay/usdt-gateway/pkg/mlog"
	"github.com/shiftpay/usdt-gateway/pkg/nethttp"
)

const headerCorrelationID = "X-Correlation-ID"

// withCorrelationID stamps every request/response with a correlation id,
// ported from the teacher's common/net/http.WithCorrelationID.
func withCorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		cid := uuid.New().String()

		c.Set(headerCorrelationID, cid)
		c.Request().Header.Add(headerCorrelationID, cid)

		return c.Next()
	}
}

// withAccessLog logs one line per request, the trimmed equivalent of the
// teacher's common/net/http.WithHTTPLogging (which pulls in an
// OpenTelemetry/gRPC dependency this repository doesn't carry).
func withAccessLog(logger mlog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		logger.Infof("%s %s -> %d (%s)", c.Method(), c.Path(), c.Response().StatusCode(), time.Since(start))

		return err
	}
}

// NewRouter builds the gateway's fiber.App, registering every endpoint in
// §6's inbound HTTP surface.
func NewRouter(logger mlog.Logger, ih *InvoiceHandler, hh *HealthHandler) *fiber.App {
	if logger == nil {
		logger = mlog.NoneLogger{}
	}

	f := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	f.Use(cors.New())
	f.Use(withCorrelationID())
	f.Use(withAccessLog(logger))

	f.Get("/api/health", hh.Health)
	f.Get("/api/ready", hh.Ready)

	f.Post("/api/invoices", nethttp.WithBody(func() any { return new(invoice.CreateInput) }, ih.CreateInvoice))
	f.Get("/api/invoices/:id", ih.GetInvoice)

	return f
}
