package webhook

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shiftpay/usdt-gateway/internal/domain/webhookqueue"
	"github.com/shiftpay/usdt-gateway/internal/metrics"
	"github.com/shiftpay/usdt-gateway/pkg/apperr"
	"github.com/shiftpay/usdt-gateway/pkg/dbtx"
	"github.com/shiftpay/usdt-gateway/pkg/mlog"

	postgresmerchant "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/merchant"
	postgreswebhookqueue "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/webhookqueue"
)

const requestTimeout = 15 * time.Second

// Config holds the dispatcher's retry parameters, the §6 defaults.
type Config struct {
	PollInterval time.Duration
	MaxAttempts  int
	BackoffBase  time.Duration
}

// DefaultConfig returns the §6 environment defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval: 2 * time.Second,
		MaxAttempts:  10,
		BackoffBase:  time.Second,
	}
}

// UseCase drains the webhook queue, one row per iteration, per §4.5.
type UseCase struct {
	DB           *sql.DB
	Repo         postgreswebhookqueue.Repository
	MerchantRepo postgresmerchant.Repository
	Secret       string
	Logger       mlog.Logger
	Config       Config

	http *http.Client
	now  func() time.Time
}

// NewUseCase returns a UseCase with defaults applied.
func NewUseCase(db *sql.DB, repo postgreswebhookqueue.Repository, merchantRepo postgresmerchant.Repository, secret string, logger mlog.Logger, cfg Config) *UseCase {
	if logger == nil {
		logger = mlog.NoneLogger{}
	}

	return &UseCase{
		DB:           db,
		Repo:         repo,
		MerchantRepo: merchantRepo,
		Secret:       secret,
		Logger:       logger,
		Config:       cfg,
		http:         &http.Client{Timeout: requestTimeout},
		now:          time.Now,
	}
}

// Run implements launcher.App: it ticks every PollInterval until ctx is
// cancelled, draining at most one queue row per tick.
func (uc *UseCase) Run(ctx context.Context) error {
	ticker := time.NewTicker(uc.Config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := uc.dispatchOne(ctx); err != nil {
				uc.Logger.Errorf("webhook dispatcher: %v", err)
			}
		}
	}
}

// dispatchOne locks the oldest due row, attempts delivery, and records the
// outcome, all inside one transaction (the row lock is held throughout per
// §5's shared-resource policy).
func (uc *UseCase) dispatchOne(ctx context.Context) error {
	return dbtx.RunInTransaction(ctx, uc.DB, func(ctx context.Context) error {
		row, err := uc.Repo.LockNextPending(ctx)
		if err != nil {
			var notFound apperr.EntityNotFoundError
			if errors.As(err, &notFound) {
				return nil
			}

			return err
		}

		m, err := uc.MerchantRepo.Find(ctx, row.MerchantID)
		if err != nil {
			return err
		}

		deliverErr := uc.deliver(ctx, m.WebhookURL, row)

		return uc.recordOutcome(ctx, row, deliverErr)
	})
}

// deliver sends row's payload to url, signed per §4.5. A non-2xx response
// or transport failure is returned as an error describing the reason.
func (uc *UseCase) deliver(ctx context.Context, url string, row *webhookqueue.WebhookQueue) error {
	body, err := json.Marshal(row.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	timestamp, signature := Sign(uc.Secret, body, uc.now().Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-PS-Timestamp", timestamp)
	req.Header.Set("X-PS-Signature", signature)

	if row.IdempotencyKey != nil {
		req.Header.Set("Idempotency-Key", *row.IdempotencyKey)
	}

	resp, err := uc.http.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	return fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
}

// recordOutcome applies §4.5's outcome table: success clears the error and
// marks the row done; failure bumps attempts and either escalates to
// failed or schedules a backed-off retry.
func (uc *UseCase) recordOutcome(ctx context.Context, row *webhookqueue.WebhookQueue, deliverErr error) error {
	if deliverErr == nil {
		metrics.WebhookSuccessTotal.Inc()
		return uc.Repo.RecordAttempt(ctx, row.ID, webhookqueue.StatusSuccess, nil, nil)
	}

	metrics.WebhookFailTotal.Inc()

	reason := deliverErr.Error()
	attempts := row.Attempts + 1

	if attempts >= uc.Config.MaxAttempts {
		return uc.Repo.RecordAttempt(ctx, row.ID, webhookqueue.StatusFailed, &reason, nil)
	}

	next := uc.now().Add(backoffDelay(uc.Config.BackoffBase, attempts))

	return uc.Repo.RecordAttempt(ctx, row.ID, webhookqueue.StatusPending, &reason, &next)
}

// backoffDelay returns min(600s, base * 2^(attempts-1)) per §4.5.
func backoffDelay(base time.Duration, attempts int) time.Duration {
	d := base

	for i := 1; i < attempts; i++ {
		d *= 2

		if d >= 600*time.Second {
			return 600 * time.Second
		}
	}

	return d
}
