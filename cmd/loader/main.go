package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/anakena-lab/study-viewer/internal/bootstrap"
	"github.com/anakena-lab/study-viewer/internal/config"
	"github.com/anakena-lab/study-viewer/internal/observability/logging"
)

// The loader is a one-shot batch process: labels first, imaging second.
// Either phase can be skipped by leaving its path unset.
func main() {
	cfg := config.Load()
	logging.Setup("study-viewer-loader", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	if cfg.LoaderLabelsPath != "" {
		studies, err := app.Loader.LoadLabels(ctx, cfg.LoaderLabelsPath, cfg.LoaderDictionaryPath, cfg.LoaderReportsPath)
		if err != nil {
			log.Fatalf("load labels: %v", err)
		}
		slog.Info("labels_done", "studies", studies)
	}

	if cfg.LoaderDicomPath != "" {
		objects, err := app.Loader.LoadImaging(ctx, cfg.LoaderDicomPath)
		if err != nil {
			log.Fatalf("load imaging: %v", err)
		}
		slog.Info("imaging_done", "objects", objects)
	}
}
