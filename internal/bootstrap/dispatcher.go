package bootstrap

import (
	"context"
	"fmt"
	"time"

	postgresmerchant "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/merchant"
	postgreswebhookqueue "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/webhookqueue"
	"github.com/shiftpay/usdt-gateway/internal/metrics"
	"github.com/shiftpay/usdt-gateway/internal/services/webhook"
	"github.com/shiftpay/usdt-gateway/pkg/envconfig"
	"github.com/shiftpay/usdt-gateway/pkg/launcher"
	"github.com/shiftpay/usdt-gateway/pkg/mlog"
	"github.com/shiftpay/usdt-gateway/pkg/mpostgres"
)

// DispatcherConfig is the webhook dispatcher's environment configuration
// (§6).
type DispatcherConfig struct {
	EnvName  string `env:"ENV_NAME" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL    string `env:"DATABASE_URL"`
	DatabaseName   string `env:"DATABASE_NAME" envDefault:"usdt_gateway"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"migrations"`
	WebhookSecret  string `env:"WEBHOOK_SECRET"`

	WorkerPollSeconds  int    `env:"WEBHOOK_WORKER_POLL_SECONDS" envDefault:"2"`
	MaxAttempts        int    `env:"WEBHOOK_MAX_ATTEMPTS" envDefault:"10"`
	BackoffBaseSeconds int    `env:"WEBHOOK_BACKOFF_BASE_SECONDS" envDefault:"1"`
	MetricsPort        string `env:"WEBHOOK_METRICS_PORT" envDefault:":8001"`
}

// InitDispatcher loads DispatcherConfig from the environment and wires the
// dispatcher's dependencies, returning a launcher.Launcher ready to Run.
func InitDispatcher(logger mlog.Logger) (*launcher.Launcher, error) {
	var cfg DispatcherConfig
	if err := envconfig.Load(&cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: load dispatcher config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("bootstrap: DATABASE_URL is required")
	}

	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("bootstrap: WEBHOOK_SECRET is required")
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

	webhookRepo := postgreswebhookqueue.NewPostgresRepository(db)
	merchantRepo := postgresmerchant.NewPostgresRepository(db)

	dispatcherCfg := webhook.DefaultConfig()
	if cfg.WorkerPollSeconds > 0 {
		dispatcherCfg.PollInterval = time.Duration(cfg.WorkerPollSeconds) * time.Second
	}

	if cfg.MaxAttempts > 0 {
		dispatcherCfg.MaxAttempts = cfg.MaxAttempts
	}

	if cfg.BackoffBaseSeconds > 0 {
		dispatcherCfg.BackoffBase = time.Duration(cfg.BackoffBaseSeconds) * time.Second
	}

	dispatcherUC := webhook.NewUseCase(db, webhookRepo, merchantRepo, cfg.WebhookSecret, logger, dispatcherCfg)

	l := launcher.New(launcher.WithLogger(logger))
	l.Add("dispatcher", dispatcherUC)
	l.Add("metrics", metrics.NewServer(cfg.MetricsPort, logger))

	return l, nil
}
