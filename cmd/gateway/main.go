// Command gateway runs the API server: invoice creation/read-back and the
// health/ready probes (spec.md §6).
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

	logger.Info("usdt-gateway: starting api server")

	l, err := bootstrap.InitGateway(logger)
	if err != nil {
		logger.Fatalf("gateway: failed to initialize: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l.Run(ctx)
}
