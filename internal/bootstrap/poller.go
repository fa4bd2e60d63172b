package bootstrap

import (
	"context"
	"fmt"
	"time"

	postgresauditlog "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/auditlog"
	postgrescheckpoint "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/checkpoint"
	postgresdepositraw "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/depositraw"
	postgresinvoice "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/invoice"
	postgresledgerentry "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/ledgerentry"
	postgrespayment "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/payment"
	postgressystemevent "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/systemevent"
	postgreswebhookqueue "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/webhookqueue"
	"github.com/shiftpay/usdt-gateway/internal/adapters/exchange"
	"github.com/shiftpay/usdt-gateway/internal/adapters/rabbitmq"
	redislock "github.com/shiftpay/usdt-gateway/internal/adapters/redis"
	"github.com/shiftpay/usdt-gateway/internal/metrics"
	"github.com/shiftpay/usdt-gateway/internal/services/matcher"
	"github.com/shiftpay/usdt-gateway/internal/services/poller"
	"github.com/shiftpay/usdt-gateway/pkg/envconfig"
	"github.com/shiftpay/usdt-gateway/pkg/launcher"
	"github.com/shiftpay/usdt-gateway/pkg/mlog"
	"github.com/shiftpay/usdt-gateway/pkg/mpostgres"
	"github.com/shiftpay/usdt-gateway/pkg/mrabbitmq"
	"github.com/shiftpay/usdt-gateway/pkg/mredis"
)

// PollerConfig is the poller service's environment configuration (§6).
type PollerConfig struct {
	EnvName  string `env:"ENV_NAME" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL      string `env:"DATABASE_URL"`
	DatabaseName     string `env:"DATABASE_NAME" envDefault:"usdt_gateway"`
	MigrationsPath   string `env:"MIGRATIONS_PATH" envDefault:"migrations"`
	RedisURL         string `env:"REDIS_URL"`
	RabbitMQURL      string `env:"RABBITMQ_URL"`
	BinanceAPIKey    string `env:"BINANCE_API_KEY"`
	BinanceAPISecret string `env:"BINANCE_API_SECRET"`
	BinanceBaseURL   string `env:"BINANCE_BASE_URL" envDefault:"https://api.binance.com"`

	AmountDiffK         int    `env:"AMOUNT_DIFF_K" envDefault:"3"`
	PollIntervalSeconds int    `env:"POLLER_POLL_INTERVAL_SECONDS" envDefault:"20"`
	WindowMS            int64  `env:"POLLER_WINDOW_MS" envDefault:"300000"`
	InitialLookbackMS   int64  `env:"POLLER_INITIAL_LOOKBACK_MS" envDefault:"86400000"`
	MaxLimit            int    `env:"POLLER_MAX_LIMIT" envDefault:"200"`
	MetricsPort         string `env:"POLLER_METRICS_PORT" envDefault:":8002"`
}

// InitPoller loads PollerConfig from the environment and wires the
// poller's dependencies, returning a launcher.Launcher ready to Run.
func InitPoller(logger mlog.Logger) (*launcher.Launcher, error) {
	var cfg PollerConfig
	if err := envconfig.Load(&cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: load poller config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("bootstrap: DATABASE_URL is required")
	}

	if cfg.BinanceAPIKey == "" || cfg.BinanceAPISecret == "" {
		return nil, fmt.Errorf("bootstrap: BINANCE_API_KEY and BINANCE_API_SECRET are required")
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

	var sysEventRepo postgressystemevent.Repository = postgressystemevent.NewPostgresRepository(db)

	if cfg.RabbitMQURL != "" {
		mq := &mrabbitmq.RabbitMQConnection{ConnectionStringSource: cfg.RabbitMQURL, Logger: logger}
		if err := mq.Connect(); err != nil {
			return nil, fmt.Errorf("bootstrap: connect rabbitmq: %w", err)
		}

		producer := rabbitmq.NewProducerRabbitMQ(mq, logger)
		sysEventRepo = rabbitmq.NewMirroringSystemEventRepository(sysEventRepo, producer, logger)
	}

	var locker poller.Locker
	if cfg.RedisURL != "" {
		redisConn := &mredis.RedisConnection{ConnectionStringSource: cfg.RedisURL, Logger: logger}
		if err := redisConn.Connect(context.Background()); err != nil {
			return nil, fmt.Errorf("bootstrap: connect redis: %w", err)
		}

		locker = redislock.NewLocker(redisConn)
	}

	invoiceRepo := postgresinvoice.NewPostgresRepository(db)
	depositRawRepo := postgresdepositraw.NewPostgresRepository(db)
	paymentRepo := postgrespayment.NewPostgresRepository(db)
	ledgerRepo := postgresledgerentry.NewPostgresRepository(db)
	webhookRepo := postgreswebhookqueue.NewPostgresRepository(db)
	auditLogRepo := postgresauditlog.NewPostgresRepository(db)
	checkpointRepo := postgrescheckpoint.NewPostgresRepository(db)

	matcherUC := matcher.NewUseCase(invoiceRepo, depositRawRepo, paymentRepo, ledgerRepo, webhookRepo,
		auditLogRepo, sysEventRepo, logger, int32(cfg.AmountDiffK))

	client := exchange.NewClient(cfg.BinanceBaseURL, cfg.BinanceAPIKey, cfg.BinanceAPISecret, logger)

	pollerCfg := poller.DefaultConfig("binance")
	pollerCfg.WindowMS = cfg.WindowMS
	pollerCfg.InitialLookbackMS = cfg.InitialLookbackMS
	pollerCfg.MaxLimit = cfg.MaxLimit

	if cfg.PollIntervalSeconds > 0 {
		pollerCfg.PollInterval = time.Duration(cfg.PollIntervalSeconds) * time.Second
	}

	pollerUC := poller.NewUseCase(db, client, checkpointRepo, depositRawRepo, matcherUC, locker, logger, pollerCfg)

	l := launcher.New(launcher.WithLogger(logger))
	l.Add("poller", pollerUC)
	l.Add("metrics", metrics.NewServer(cfg.MetricsPort, logger))

	return l, nil
}
