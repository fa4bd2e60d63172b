// Package metrics exposes the Prometheus counters and gauges the poller
// and webhook dispatcher update, and the plain HTTP server (§6) that
// serves them on the component's metrics port.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shiftpay/usdt-gateway/pkg/mlog"
)

var (
	DepositsProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deposits_processed_total",
		Help: "Deposits the matcher has credited, by exact match or amount-diff match.",
	})

	DepositsErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deposits_errors_total",
		Help: "Per-deposit exceptions encountered while matching, excluding window-level failures.",
	})

	CollisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collisions_total",
		Help: "Amount-diff ambiguities escalated to pending_manual_resolution.",
	})

	PollerLastSuccessUnixtime = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "poller_last_success_unixtime",
		Help: "Unix time of the poller's last successfully completed poll cycle.",
	})

	WebhookSuccessTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_success_total",
		Help: "Webhook deliveries that received a 2xx response.",
	})

	WebhookFailTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_fail_total",
		Help: "Webhook delivery attempts that did not receive a 2xx response.",
	})
)

// Server serves the Prometheus text exposition format on its own port, the
// same sidecar shape both the poller (8002) and dispatcher (8001) run.
type Server struct {
	addr   string
	logger mlog.Logger
}

// NewServer returns a metrics Server listening on addr (e.g. ":8002").
func NewServer(addr string, logger mlog.Logger) *Server {
	if logger == nil {
		logger = mlog.NoneLogger{}
	}

	return &Server{addr: addr, logger: logger}
}

// Run implements launcher.App: it serves /metrics until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: s.addr, Handler: mux}

	errCh := make(chan error, 1)

	go func() {
		s.logger.Infof("metrics: listening on %s", s.addr)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
