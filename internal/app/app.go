// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gcppubsub "cloud.google.com/go/pubsub"
	gcpstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/platemetrics/review-crawler/internal/config"
	"github.com/platemetrics/review-crawler/internal/crawler"
	"github.com/platemetrics/review-crawler/internal/logging"
	"github.com/platemetrics/review-crawler/internal/publisher"
	pubsubpublisher "github.com/platemetrics/review-crawler/internal/publisher/pubsub"
	"github.com/platemetrics/review-crawler/internal/storage"
	"github.com/platemetrics/review-crawler/internal/storage/gcs"
	"github.com/platemetrics/review-crawler/internal/storage/local"
	memorystore "github.com/platemetrics/review-crawler/internal/store/memory"
	"github.com/platemetrics/review-crawler/internal/store/postgres"
	"github.com/platemetrics/review-crawler/internal/telemetry"
)

// App holds the shared, long-lived services: logger, store, snapshot sink,
// and event publisher. It is initialized once at startup and passed to the
// commands that need it.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Store     crawler.Store
	Snapshots crawler.SnapshotSink
	Publisher crawler.Publisher

	metricsSrv *http.Server
	pubsubStop func()
	gcsClient  *gcpstorage.Client
	pubsubConn *gcppubsub.Client
}

// New creates and initializes an App from configuration. It fails fast when
// any critical service cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	a := &App{Config: cfg, Logger: logger}

	switch cfg.DB.Provider {
	case "postgres":
		logger.Info("connecting to postgres")
		store, err := postgres.New(ctx, postgres.Config{
			DSN:              cfg.DB.DSN,
			MaxConns:         cfg.DB.MaxConns,
			MinConns:         cfg.DB.MinConns,
			RefreshCrawlDate: cfg.DB.RefreshCrawlDate,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize postgres store: %w", err)
		}
		a.Store = store
	case "memory":
		logger.Info("using in-memory store, data is not persisted")
		a.Store = memorystore.New()
	default:
		return nil, fmt.Errorf("unknown db provider: %s", cfg.DB.Provider)
	}

	switch cfg.Storage.Provider {
	case "gcs":
		client, err := gcpstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialize gcs client: %w", err)
		}
		a.gcsClient = client
		sink, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("initialize gcs sink: %w", err)
		}
		logger.Info("using gcs snapshot sink", zap.String("bucket", cfg.Storage.GCSBucket))
		a.Snapshots = sink
	case "local":
		sink, err := local.New(local.Config{BaseDir: cfg.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("initialize local sink: %w", err)
		}
		logger.Info("using local snapshot sink", zap.String("base_dir", cfg.Storage.BaseDir))
		a.Snapshots = sink
	case "none":
		logger.Info("snapshots disabled, raw pages will be discarded")
		a.Snapshots = &storage.NoOpSink{}
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Storage.Provider)
	}

	switch cfg.PubSub.Provider {
	case "gcp":
		client, err := gcppubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("initialize pubsub client: %w", err)
		}
		a.pubsubConn = client
		pub, err := pubsubpublisher.New(client, cfg.PubSub.TopicName)
		if err != nil {
			return nil, fmt.Errorf("initialize pubsub publisher: %w", err)
		}
		logger.Info("publishing ingest events", zap.String("topic", cfg.PubSub.TopicName))
		a.Publisher = pub
		a.pubsubStop = pub.Stop
	case "none":
		a.Publisher = publisher.NoOp{}
	default:
		return nil, fmt.Errorf("unknown pubsub provider: %s", cfg.PubSub.Provider)
	}

	if cfg.Metrics.Enabled {
		a.metricsSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           telemetry.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("starting metrics server", zap.Int("port", cfg.Metrics.Port))
			if err := a.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	return a, nil
}

// Close gracefully shuts down all services in the container. It is called by
// a Cobra hook after the command finishes execution.
func (a *App) Close() {
	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			a.Logger.Warn("error shutting down metrics server", zap.Error(err))
		}
	}
	if a.pubsubStop != nil {
		a.pubsubStop()
	}
	if a.pubsubConn != nil {
		if err := a.pubsubConn.Close(); err != nil {
			a.Logger.Warn("error closing pubsub client", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.Logger.Warn("error closing gcs client", zap.Error(err))
		}
	}
	if a.Store != nil {
		a.Store.Close()
	}
	// Best-effort flush; logging itself might be failing at this point.
	_ = a.Logger.Sync()
}
