package main

import (
	"context"
	"errors"
	"os"
	"sync"

	"financy/internal/cli"
	"financy/internal/log"
	"financy/internal/services"
	"financy/internal/worker"
)

// financy-worker confirms due parcels on a timer and exports confirmed
// parcels from the queue to Google Sheets. It shares the sqlite store with
// the server but not its dashboard cache: summaries served by the server
// reflect worker confirmations once DASHBOARD_CACHE_TTL expires.
func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Worker configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	store := cli.InitBackend(ctx, logger, cfg)
	defer store.Cleanup()

	amqpClient, err := cli.InitAMQP(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	writer, err := cli.NewParcelWriter(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize parcel writer", log.FieldError, err)
		os.Exit(1)
	}

	installments := services.NewInstallmentService(store.Store, amqpClient, nil)
	due := worker.NewDueParcelWorker(installments, cfg.DueParcelInterval)
	export := worker.NewExportWorker(writer)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		due.Run(runCtx)
	}()
	go func() {
		defer wg.Done()
		defer stop()
		if err := export.Run(runCtx, amqpClient); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
		}
	}()

	logger.Info("Starting financy-worker", "backend", cfg.DataBackend, "interval", cfg.DueParcelInterval)
	wg.Wait()
	if ctx.Err() != nil {
		<-done
	}
	logger.Info("Worker stopped")
}
