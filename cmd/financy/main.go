package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"financy/internal/cache"
	"financy/internal/cli"
	apphttp "financy/internal/http"
	"financy/internal/log"
	"financy/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	store := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Error("Failed to close store", log.FieldError, err)
		}
	}()

	// Publishing is optional: without a broker, confirmations are only stored.
	amqpClient, err := cli.InitAMQP(ctx, logger, cfg)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without export", log.FieldError, err)
	}
	var publisher services.Publisher
	if amqpClient != nil {
		publisher = amqpClient
		defer amqpClient.Close()
	}

	summaries := cache.NewLRUCache[services.MonthSummary](cfg.DashboardCacheSize, cfg.DashboardCacheTTL)
	caches := cache.NewManager(logger.Logger)
	caches.Register(summaries)
	caches.StartCleanup(cfg.DashboardCacheTTL)
	defer caches.Stop()

	dashboard := services.NewDashboardService(store.Store, summaries)
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Store:        store.Store,
		Dashboard:    dashboard,
		Installments: services.NewInstallmentService(store.Store, publisher, dashboard),
		Timesheet:    services.NewTimesheetService(store.Store, cfg.DefaultExpectedHours),
		Logger:       logger,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	_, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting financy server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
