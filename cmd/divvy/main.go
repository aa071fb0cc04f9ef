package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"divvy/internal/amqp"
	"divvy/internal/cli"
	apphttp "divvy/internal/http"
	"divvy/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg)

	store, cleanup := cli.InitBackend(logger, cfg)

	// The AMQP broker is optional: without it receipts stay pending until a
	// worker picks them up through the periodic sweep.
	var publisher services.ExtractPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, receipt extraction will rely on the worker sweep", "error", err)
		} else {
			publisher = amqpClient
		}
	}

	trips := services.NewTripService(store, cfg.AllocationToleranceCents)
	ledger := services.NewLedgerService(store)
	receipts := services.NewReceiptService(store, publisher)
	bootstrap := services.NewBootstrapper(store)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, trips, ledger, receipts, bootstrap, store)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", "error", err)
			}
		}
		if cleanup != nil {
			if err := cleanup(); err != nil {
				logger.Error("Storage cleanup error", "error", err)
			}
		}
	})

	logger.Info("Starting divvy server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
