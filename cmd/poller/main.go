// Command poller runs the checkpointed, windowed exchange deposit ingestion
// loop (spec.md §4.3) and the matcher it drives on every newly ingested
// deposit (spec.md §4.4).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/shiftpay/usdt-gateway/internal/bootstrap"
	"github.com/shiftpay/usdt-gateway/pkg/mzap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("usdt-gateway: no .env file found, reading from process environment")
	}

	logger := mzap.NewOrExit(os.Getenv("LOG_LEVEL"))
	defer func() { _ = logger.Sync() }()

	logger.Info("usdt-gateway: starting deposit poller")

	l, err := bootstrap.InitPoller(logger)
	if err != nil {
		logger.Fatalf("poller: failed to initialize: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l.Run(ctx)
}
