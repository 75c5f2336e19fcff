package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/csvingest/internal/config"
	"github.com/JonMunkholm/csvingest/internal/core"
	"github.com/JonMunkholm/csvingest/internal/database"
	"github.com/JonMunkholm/csvingest/internal/logging"
	"github.com/JonMunkholm/csvingest/internal/storage"
	"github.com/JonMunkholm/csvingest/internal/store/memory"
	"github.com/JonMunkholm/csvingest/internal/store/postgres"
	"github.com/JonMunkholm/csvingest/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// uploadStore is what the service and processor need from persistence.
type uploadStore interface {
	core.UploadRepository
	core.RecordStore
}

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	store, db, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		slog.Error("failed to open blob storage", "error", err)
		os.Exit(1)
	}

	processor := core.NewProcessor(store, store, blobs, core.ProcessorConfig{
		TempDir:          cfg.Upload.TempDir,
		ChunkSize:        cfg.Upload.ChunkSize,
		ProgressInterval: cfg.Upload.ProgressInterval,
		JobTimeout:       cfg.Upload.JobTimeout,
	})

	queue := core.NewJobQueue(cfg.Queue.Workers, cfg.Queue.Capacity, processor.Handle)
	queue.Start(ctx)

	limiter := core.NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)

	service := core.NewService(store, blobs, queue, limiter, core.ServiceConfig{
		MaxFileSize:   cfg.Upload.MaxFileSize,
		TempDir:       cfg.Upload.TempDir,
		StoragePrefix: cfg.Upload.StoragePrefix,
	})

	// Pick up uploads left unfinished by a previous run or a full queue.
	if _, err := service.ResumePending(ctx); err != nil {
		slog.Warn("could not resume unfinished uploads", "error", err)
	}

	// Background maintenance stops on shutdown; jobs themselves are not cancelled.
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	go service.StartPendingSweeper(sweepCtx, cfg.Queue.RetryInterval)

	server := web.NewServer(cfg, web.Deps{
		Service: service,
		Queue:   queue,
		Limiter: limiter,
		DB:      db,
	})

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		stopSweeper()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Uploads still being received hold a limiter slot.
		if active := limiter.ActiveCount(); active > 0 {
			slog.Info("waiting for uploads to complete", "active", active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			}
		}

		queue.Close()
		if err := queue.Wait(shutdownCtx); err != nil {
			// Unfinished uploads stay processing and are resumed on next start.
			slog.Warn("ingestion jobs did not finish in time", "error", err, "queue", queue.Status())
		} else {
			slog.Info("all ingestion jobs finished")
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-stopped
	slog.Info("server stopped")
}

// openStore connects the configured persistence backend. db is nil for the
// memory driver.
func openStore(ctx context.Context, cfg *config.Config) (uploadStore, web.Pinger, func(), error) {
	if strings.EqualFold(cfg.Database.Driver, config.DriverMemory) {
		slog.Warn("using in-memory store; uploads are lost on restart")
		return memory.New(), nil, func() {}, nil
	}

	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("ping database: %w", err)
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		slog.Info("database schema applied")
	}

	store := postgres.New(pool)
	return store, store, pool.Close, nil
}

// openBlobs returns the configured blob backend.
func openBlobs(ctx context.Context, cfg *config.Config) (core.BlobStore, error) {
	if strings.EqualFold(cfg.Storage.Backend, config.StorageMinio) {
		m, err := storage.NewMinio(ctx, storage.MinioConfig{
			Endpoint:  cfg.Storage.MinioEndpoint,
			AccessKey: cfg.Storage.MinioAccessKey,
			SecretKey: cfg.Storage.MinioSecretKey,
			Bucket:    cfg.Storage.MinioBucket,
			UseSSL:    cfg.Storage.MinioUseSSL,
			Region:    cfg.Storage.MinioRegion,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("using minio blob storage", "endpoint", cfg.Storage.MinioEndpoint, "bucket", cfg.Storage.MinioBucket)
		return m, nil
	}

	local, err := storage.NewLocal(cfg.Storage.LocalDir)
	if err != nil {
		return nil, err
	}
	slog.Info("using local blob storage", "root", local.Root())
	return local, nil
}
