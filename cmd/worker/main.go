package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anakena-lab/study-viewer/internal/bootstrap"
	"github.com/anakena-lab/study-viewer/internal/config"
	"github.com/anakena-lab/study-viewer/internal/observability/logging"
	"github.com/anakena-lab/study-viewer/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logging.Setup("study-viewer-worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("study-viewer-worker")
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", workerMetrics.Handler())
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := http.ListenAndServe(":"+cfg.WorkerMetricsPort, mux); err != nil && err != http.ErrServerClosed {
			slog.Error("worker_metrics_server_error", "error", err)
		}
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeInstanceStored(ctx, func(handlerCtx context.Context, objectKey string) error {
		ingestCtx, cancel := context.WithTimeout(handlerCtx, 2*time.Minute)
		defer cancel()

		workerMetrics.StartIngest()
		start := time.Now()
		ingestErr := app.IngestUC.IngestByKey(ingestCtx, objectKey)
		workerMetrics.FinishIngest("study-viewer-worker", time.Since(start), ingestErr)
		return ingestErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
