package http

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/shiftpay/usdt-gateway/pkg/nethttp"
)

const readyTimeout = 2 * time.Second

// HealthHandler serves GET /api/health and GET /api/ready.
type HealthHandler struct {
	Service string
	Version string
	DB      *sql.DB
	Redis   *redis.Client
}

// Health handles GET /api/health, per §6: 200 with no dependency checks.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return nethttp.OK(c, fiber.Map{
		"status":    "ok",
		"service":   h.Service,
		"timestamp": time.Now().UTC(),
		"version":   h.Version,
	})
}

// Ready handles GET /api/ready, per §6: 200 if Postgres and Redis are
// reachable, else 503 with the dependency error detail.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readyTimeout)
	defer cancel()

	if err := h.DB.PingContext(ctx); err != nil {
		return nethttp.ServiceUnavailable(c, fiber.Map{"status": "unavailable", "dependency": "postgres", "error": err.Error()})
	}

	if h.Redis != nil {
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			return nethttp.ServiceUnavailable(c, fiber.Map{"status": "unavailable", "dependency": "redis", "error": err.Error()})
		}
	}

	return nethttp.OK(c, fiber.Map{"status": "ok"})
}
