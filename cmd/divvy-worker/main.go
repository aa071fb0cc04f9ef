package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"divvy/internal/amqp"
	"divvy/internal/cli"
	"divvy/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg)

	logger.Info("Starting divvy-worker")

	if cfg.ExtractorURL == "" {
		logger.Error("EXTRACTOR_URL is required for the extraction worker")
		os.Exit(1)
	}

	store, cleanup := cli.InitBackend(logger, cfg)
	if cleanup != nil {
		defer func() {
			if err := cleanup(); err != nil {
				logger.Error("Storage cleanup error", "error", err)
			}
		}()
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	extractor := worker.NewHTTPExtractor(cfg.ExtractorURL)
	extractWorker := worker.NewExtractWorker(store, extractor, cfg.WorkerBatchSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Catch up on receipts whose broker message was lost.
	logger.Info("Performing startup extraction check")
	if err := extractWorker.StartupCheck(ctx); err != nil {
		logger.Error("Startup extraction check failed", "error", err)
		// Keep running, the periodic sweep retries.
	}

	go func() {
		handler := func(msg *amqp.ReceiptExtractMessage) error {
			return extractWorker.HandleExtractMessage(ctx, msg)
		}
		if err := amqpClient.ConsumeReceiptExtract(ctx, handler); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
			cancel()
		}
	}()

	// Periodic sweep for receipts that never got a message delivered.
	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := extractWorker.ProcessPendingReceipts(ctx); err != nil {
					logger.Error("Periodic extraction sweep failed", "error", err)
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down worker")
	cancel()

	select {
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached")
	case <-time.After(5 * time.Second):
		logger.Info("Worker shutdown complete")
	}
}
