package bootstrap

import (
	"context"
	"fmt"

	"github.com/anakena-lab/study-viewer/internal/config"
	"github.com/anakena-lab/study-viewer/internal/core/ports"
	"github.com/anakena-lab/study-viewer/internal/core/usecase"
	"github.com/anakena-lab/study-viewer/internal/infrastructure/dicomio"
	"github.com/anakena-lab/study-viewer/internal/infrastructure/loader"
	"github.com/anakena-lab/study-viewer/internal/infrastructure/queue/nats"
	"github.com/anakena-lab/study-viewer/internal/infrastructure/repository/postgres"
	"github.com/anakena-lab/study-viewer/internal/infrastructure/resilience"
	"github.com/anakena-lab/study-viewer/internal/infrastructure/storage/localfs"
)

// App wires the shared object graph. The api, worker, and loader binaries
// all start here and pick the pieces they need.
type App struct {
	Config config.Config

	Queue    ports.MessageQueue
	Repo     ports.StudyRepository
	BrowseUC ports.StudyBrowser
	SourceUC ports.InstanceSource
	IngestUC ports.InstanceIngestor
	Loader   *loader.Loader

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewStudyRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	objects, err := localfs.New(cfg.DicomStoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.QueuePolicy()),
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	// The loader/worker write path retries transient store failures; the
	// API's read path stays plain.
	writeRepo := postgres.NewResilientStudyRepository(repo,
		resilience.NewExecutor(resilience.StorePolicy()))

	browseUC := usecase.NewBrowseUseCase(repo, cfg.DefaultPageSize)
	sourceUC := usecase.NewRetrieveUseCase(repo, objects)
	ingestUC := usecase.NewIngestInstanceUseCase(writeRepo, objects, dicomio.NewHeaderParser())

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,

		BrowseUC: browseUC,
		SourceUC: sourceUC,
		IngestUC: ingestUC,
		Loader:   loader.New(writeRepo, objects, queue, nil),

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
