// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	cloudpubsub "cloud.google.com/go/pubsub"

	"notecrawler/internal/archive"
	archivegcs "notecrawler/internal/archive/gcs"
	archivelocal "notecrawler/internal/archive/local"
	archivemem "notecrawler/internal/archive/memory"
	"notecrawler/internal/config"
	"notecrawler/internal/crawl"
	"notecrawler/internal/logging"
	"notecrawler/internal/metrics"
	"notecrawler/internal/progress"
	"notecrawler/internal/progress/sinks"
	"notecrawler/internal/provider/mcp"
	"notecrawler/internal/publisher"
	pubsubpub "notecrawler/internal/publisher/pubsub"
	"notecrawler/internal/runner"
	"notecrawler/internal/store"
	storemem "notecrawler/internal/store/memory"
	storepg "notecrawler/internal/store/postgres"
)

// App holds the shared, long-lived services for the application. It is
// initialized once at startup and passed to the components that need it.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	hub    *progress.Hub
	runs   store.RunStore
	runner *runner.Runner

	pgStore      *storepg.RunStore
	pubsubClient *cloudpubsub.Client
	gcsClient    *gcstorage.Client
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Runs exposes the configured run store.
func (a *App) Runs() store.RunStore {
	return a.runs
}

// Runner returns the configured run executor.
func (a *App) Runner() *runner.Runner {
	return a.runner
}

// New creates and initializes the App from configuration. It is the central
// point for service initialization and fails fast when any critical service
// cannot be built.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	metrics.Init()

	a := &App{cfg: cfg, logger: logger}

	blobStore, err := a.buildBlobStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.buildRunStore(ctx); err != nil {
		return nil, err
	}

	pub, err := a.buildPublisher(ctx)
	if err != nil {
		return nil, err
	}

	a.hub = progress.NewHub(
		progress.Config{Logger: logger},
		sinks.NewLogSink(logger),
		sinks.NewPrometheusSink(),
	)

	client, err := mcp.New(mcp.Config{
		BaseURL: cfg.Provider.BaseURL,
		Timeout: time.Duration(cfg.Provider.TimeoutSeconds) * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build provider client: %w", err)
	}

	var archiver *archive.Archiver
	if blobStore != nil {
		archiver = archive.New(blobStore, cfg.Storage.Prefix, logger)
	}

	orch := crawl.New(client, client, a.hub, logger)
	a.runner, err = runner.New(runner.Config{
		Crawler:   orch,
		Runs:      a.runs,
		Archiver:  archiver,
		Publisher: pub,
		Topic:     cfg.PubSub.TopicName,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build runner: %w", err)
	}

	logger.Info("application services initialized",
		zap.String("storage_provider", cfg.Storage.Provider),
		zap.Bool("postgres", cfg.DB.DSN != ""),
		zap.Bool("pubsub", cfg.PubSub.TopicName != ""),
	)
	return a, nil
}

func (a *App) buildBlobStore(ctx context.Context) (archive.BlobStore, error) {
	switch a.cfg.Storage.Provider {
	case "local":
		a.logger.Info("using local blob storage", zap.String("base_dir", a.cfg.Storage.BaseDir))
		blobStore, err := archivelocal.New(archivelocal.Config{BaseDir: a.cfg.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		return blobStore, nil
	case "gcs":
		a.logger.Info("using GCS blob storage", zap.String("bucket", a.cfg.Storage.GCSBucket))
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.gcsClient = client
		blobStore, err := archivegcs.New(client, archivegcs.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs storage: %w", err)
		}
		return blobStore, nil
	case "memory":
		return archivemem.NewBlobStore(), nil
	case "none":
		a.logger.Info("run output archival disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", a.cfg.Storage.Provider)
	}
}

func (a *App) buildRunStore(ctx context.Context) error {
	if a.cfg.DB.DSN == "" {
		a.logger.Info("using in-memory run store; run history is lost on restart")
		a.runs = storemem.NewRunStore()
		return nil
	}
	a.logger.Info("connecting to PostgreSQL run store")
	pg, err := storepg.NewRunStore(ctx, storepg.Config{
		DSN:      a.cfg.DB.DSN,
		MaxConns: a.cfg.DB.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("init postgres run store: %w", err)
	}
	a.pgStore = pg
	a.runs = pg
	return nil
}

func (a *App) buildPublisher(ctx context.Context) (publisher.Publisher, error) {
	if a.cfg.PubSub.TopicName == "" {
		return publisher.NoOp{}, nil
	}
	if a.cfg.PubSub.ProjectID == "" {
		return nil, fmt.Errorf("pubsub.project_id is required when pubsub.topic_name is set")
	}
	a.logger.Info("connecting to Pub/Sub",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	client, err := cloudpubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("init pubsub client: %w", err)
	}
	a.pubsubClient = client
	return pubsubpub.New(client), nil
}

// Close gracefully shuts down all services held by the container.
func (a *App) Close(ctx context.Context) {
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("error closing progress hub", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("error closing pubsub client", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("error closing gcs client", zap.Error(err))
		}
	}
	// Best effort; stderr sync failures on shutdown are not actionable.
	_ = a.logger.Sync()
}
