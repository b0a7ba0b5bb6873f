package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rpattn/leadstream/internal/config"
	"github.com/rpattn/leadstream/internal/db"
	"github.com/rpattn/leadstream/internal/enrichment"
	"github.com/rpattn/leadstream/internal/export"
	"github.com/rpattn/leadstream/internal/ingestion"
	"github.com/rpattn/leadstream/internal/provider"
	"github.com/rpattn/leadstream/internal/repository"
	"github.com/rpattn/leadstream/internal/repository/memory"
	"github.com/rpattn/leadstream/internal/storage"
)

// app holds the wired services of one process.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	conn  *db.Connection
	store repository.Store
	files storage.Store

	uploads    *ingestion.Service
	enrichment *enrichment.Service
	exports    *export.Service
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repository.Store, *db.Connection, error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn("using in-memory store; data is lost on exit")
		return memory.NewStore(), nil, nil
	}
	conn, err := db.NewConnection(ctx, cfg.Database.DB(), logger.Named("db"))
	if err != nil {
		return nil, nil, err
	}
	return repository.NewPostgresStore(conn.Pool, logger.Named("repository")), conn, nil
}

func openFiles(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "minio":
		return storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			Region:    cfg.Minio.Region,
			UseSSL:    cfg.Minio.UseSSL,
		})
	case "local":
		return storage.NewLocalStore(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	store, conn, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, conn: conn, store: store}

	a.files, err = openFiles(ctx, cfg.Storage)
	if err != nil {
		_ = a.close(ctx)
		return nil, fmt.Errorf("failed to open file storage: %w", err)
	}

	policy, err := ingestion.ParseDuplicatePolicy(cfg.Upload.DuplicatePolicy)
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}
	a.uploads = ingestion.NewService(store, a.files,
		ingestion.WithDuplicatePolicy(policy),
		ingestion.WithMaxUploadSize(cfg.Upload.MaxSizeBytes()),
		ingestion.WithAcceptedMimeTypes(cfg.Upload.AcceptedMimeTypes),
		ingestion.WithLogger(logger.Named("ingestion")),
	)

	if cfg.Enrichment.APIKey == "" {
		logger.Warn("enrichment.api_key is empty; provider calls will be rejected")
	}
	client := provider.NewClient(cfg.Enrichment.APIKey,
		provider.WithBaseURL(cfg.Enrichment.BaseURL),
		provider.WithTimeout(cfg.Enrichment.Timeout),
		provider.WithRateLimit(cfg.Enrichment.RateLimit),
		provider.WithBatchSize(cfg.Enrichment.BatchSize),
		provider.WithLogger(logger.Named("provider")),
	)
	a.enrichment = enrichment.NewService(store, a.uploads, client, logger.Named("enrichment"),
		enrichment.WithWorkers(cfg.Enrichment.Workers),
		enrichment.WithQueueSize(cfg.Enrichment.QueueSize),
		enrichment.WithJobTimeout(cfg.Enrichment.JobTimeout),
	)
	a.exports = export.NewService(store, export.WithLogger(logger.Named("export")))
	return a, nil
}

// close drains the enrichment queue and releases the database pool.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.enrichment != nil {
		if err := a.enrichment.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("enrichment shutdown: %w", err))
		}
	}
	if a.conn != nil {
		a.conn.Close()
	}
	return errors.Join(errs...)
}
