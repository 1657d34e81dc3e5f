package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Guizzs26/go-sync-sheets/internal/app"
	"github.com/Guizzs26/go-sync-sheets/internal/broker"
	"github.com/Guizzs26/go-sync-sheets/internal/config"
	"github.com/Guizzs26/go-sync-sheets/internal/processor"
	"github.com/Guizzs26/go-sync-sheets/pkg/infra"
	_ "github.com/Guizzs26/go-sync-sheets/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg)
	slog.SetDefault(logger)
	defer infra.CloseLogger()

	// Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Sync consumer initializing", "pid", os.Getpid())

	core, err := app.OpenCore(ctx, cfg, logger)
	if err != nil {
		logger.Error("CRITICAL: startup failed", "error", err)
		os.Exit(1)
	}
	defer core.Close()

	handler := processor.NewSyncHandler(core.Sync, cfg.SyncTimeout, logger)

	go startObservabilityServer(cfg.MetricsPort, logger)

	connBackoff := infra.NewBackoff(1*time.Second, 60*time.Second, 2.0)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received")
			return
		default:
			consumer, err := broker.NewSyncConsumer(cfg.RabbitMQURL, 1, handler, logger)
			if err != nil {
				logger.Error("RabbitMQ connection failed, retrying...", "attempt", connBackoff.Attempts()+1, "error", err)
				if !connBackoff.Wait(ctx) {
					return
				}
				continue
			}

			connBackoff.Reset()
			logger.Info("Connected to broker, listening for sync requests")

			if err := consumer.Listen(ctx); err != nil {
				logger.Error("Consumer connection lost", "error", err)
			}

			consumer.Close()
		}
	}
}

func startObservabilityServer(port string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("CONSUMER ALIVE"))
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Info("Observability server online", "url", "http://localhost:"+port+"/metrics")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Observability server failed", "error", err)
	}
}
