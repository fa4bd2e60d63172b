// Package bootstrap wires each service's Config, adapters and use cases
// together into a launcher.Launcher, the same InitServers-style role the
// teacher's internal/bootstrap packages play for its components.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	postgresauditlog "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/auditlog"
	postgresdepositaddress "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/depositaddress"
	postgresinvoice "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/invoice"
	postgressystemevent "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/systemevent"
	"github.com/shiftpay/usdt-gateway/internal/adapters/rabbitmq"
	httpgw "github.com/shiftpay/usdt-gateway/internal/gateway/http"
	invoicesvc "github.com/shiftpay/usdt-gateway/internal/services/invoice"
	"github.com/shiftpay/usdt-gateway/pkg/envconfig"
	"github.com/shiftpay/usdt-gateway/pkg/launcher"
	"github.com/shiftpay/usdt-gateway/pkg/mlog"
	"github.com/shiftpay/usdt-gateway/pkg/mpostgres"
	"github.com/shiftpay/usdt-gateway/pkg/mrabbitmq"
	"github.com/shiftpay/usdt-gateway/pkg/mredis"
)

// GatewayConfig is the API server's environment configuration (§6).
type GatewayConfig struct {
	EnvName  string `env:"ENV_NAME" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Version  string `env:"VERSION" envDefault:"dev"`

	ServerAddress string `env:"SERVER_ADDRESS" envDefault:":3000"`

	DatabaseURL    string `env:"DATABASE_URL"`
	DatabaseName   string `env:"DATABASE_NAME" envDefault:"usdt_gateway"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"migrations"`
	RedisURL       string `env:"REDIS_URL"`
	RabbitMQURL    string `env:"RABBITMQ_URL"`

	AmountDiffK                int `env:"AMOUNT_DIFF_K" envDefault:"3"`
	InvoiceCreationMaxAttempts int `env:"INVOICE_CREATION_MAX_ATTEMPTS" envDefault:"5"`
}

// httpApp adapts a *fiber.App into a launcher.App, serving ServerAddress
// until ctx is cancelled, the same pattern internal/metrics.Server uses.
type httpApp struct {
	app  *fiber.App
	addr string
}

func (a *httpApp) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := a.app.Listen(a.addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return a.app.ShutdownWithContext(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// InitGateway loads GatewayConfig from the environment and wires the API
// server's dependencies, returning a launcher.Launcher ready to Run.
func InitGateway(logger mlog.Logger) (*launcher.Launcher, error) {
	var cfg GatewayConfig
	if err := envconfig.Load(&cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: load gateway config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("bootstrap: DATABASE_URL is required")
	}

	pg := &mpostgres.PostgresConnection{
		ConnectionString: cfg.DatabaseURL,
		DBName:           cfg.DatabaseName,
		MigrationsPath:   cfg.MigrationsPath,
		Logger:           logger,
	}

	if err := pg.Connect(); err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}

	db, err := pg.GetDB(context.Background())
	if err != nil {
		return nil, fmt.Errorf("bootstrap: get db handle: %w", err)
	}

	var redisConn *mredis.RedisConnection
	if cfg.RedisURL != "" {
		redisConn = &mredis.RedisConnection{ConnectionStringSource: cfg.RedisURL, Logger: logger}
		if err := redisConn.Connect(context.Background()); err != nil {
			return nil, fmt.Errorf("bootstrap: connect redis: %w", err)
		}
	}

	var sysEventRepo postgressystemevent.Repository = postgressystemevent.NewPostgresRepository(db)

	if cfg.RabbitMQURL != "" {
		mq := &mrabbitmq.RabbitMQConnection{ConnectionStringSource: cfg.RabbitMQURL, Logger: logger}
		if err := mq.Connect(); err != nil {
			return nil, fmt.Errorf("bootstrap: connect rabbitmq: %w", err)
		}

		producer := rabbitmq.NewProducerRabbitMQ(mq, logger)
		sysEventRepo = rabbitmq.NewMirroringSystemEventRepository(sysEventRepo, producer, logger)
	}

	invoiceRepo := postgresinvoice.NewPostgresRepository(db)
	auditLogRepo := postgresauditlog.NewPostgresRepository(db)
	depositAddressRepo := postgresdepositaddress.NewPostgresRepository(db)

	invoiceUC := invoicesvc.NewUseCase(db, invoiceRepo, auditLogRepo, sysEventRepo, depositAddressRepo, logger,
		int32(cfg.AmountDiffK), cfg.InvoiceCreationMaxAttempts)

	invoiceHandler := httpgw.NewInvoiceHandler(invoiceUC, invoiceRepo, logger)

	var redisClient *redis.Client
	if redisConn != nil {
		redisClient, err = redisConn.GetClient(context.Background())
		if err != nil {
			return nil, fmt.Errorf("bootstrap: get redis client: %w", err)
		}
	}

	healthHandler := &httpgw.HealthHandler{
		Service: "usdt-gateway",
		Version: cfg.Version,
		DB:      db,
		Redis:   redisClient,
	}

	router := httpgw.NewRouter(logger, invoiceHandler, healthHandler)

	l := launcher.New(launcher.WithLogger(logger))
	l.Add("http", &httpApp{app: router, addr: cfg.ServerAddress})

	return l, nil
}
