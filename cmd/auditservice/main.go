// Package main wires together the audit service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	gcppubsub "cloud.google.com/go/pubsub"

	"github.com/sitewarden/site-auditor/internal/analyzer/images"
	"github.com/sitewarden/site-auditor/internal/analyzer/metatags"
	"github.com/sitewarden/site-auditor/internal/analyzer/performance"
	"github.com/sitewarden/site-auditor/internal/api"
	"github.com/sitewarden/site-auditor/internal/audit"
	"github.com/sitewarden/site-auditor/internal/clock/system"
	"github.com/sitewarden/site-auditor/internal/config"
	"github.com/sitewarden/site-auditor/internal/dispatcher"
	"github.com/sitewarden/site-auditor/internal/hash/sha256"
	"github.com/sitewarden/site-auditor/internal/id/uuid"
	"github.com/sitewarden/site-auditor/internal/logging"
	"github.com/sitewarden/site-auditor/internal/metrics"
	"github.com/sitewarden/site-auditor/internal/orchestrator"
	memorypublisher "github.com/sitewarden/site-auditor/internal/publisher/memory"
	pubsubpublisher "github.com/sitewarden/site-auditor/internal/publisher/pubsub"
	queuememory "github.com/sitewarden/site-auditor/internal/queue/memory"
	"github.com/sitewarden/site-auditor/internal/quota"
	"github.com/sitewarden/site-auditor/internal/storage/gcs"
	storememory "github.com/sitewarden/site-auditor/internal/storage/memory"
	"github.com/sitewarden/site-auditor/internal/storage/postgres"
	"github.com/sitewarden/site-auditor/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	var repo audit.JobRepository
	if cfg.DB.DSN != "" {
		pgRepo, err := postgres.NewJobRepository(ctx, postgres.JobRepositoryConfig{
			DSN:             cfg.DB.DSN,
			MaxConns:        int32(cfg.DB.MaxConns),
			MinConns:        int32(cfg.DB.MinConns),
			MaxConnLifetime: time.Duration(cfg.DB.ConnLifetimeMinutes) * time.Minute,
		})
		if err != nil {
			logger.Fatal("postgres init failed", zap.Error(err))
		}
		defer pgRepo.Close()
		repo = pgRepo
	} else {
		logger.Info("no database DSN configured, using in-memory job repository")
		repo = storememory.NewJobRepository()
	}

	var counters quota.CounterStore
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				logger.Warn("redis close failed", zap.Error(closeErr))
			}
		}()
		store, err := quota.NewRedisCounterStore(client)
		if err != nil {
			logger.Fatal("redis counter store init failed", zap.Error(err))
		}
		counters = store
	} else {
		logger.Info("no redis address configured, using in-memory quota counters")
		counters = quota.NewMemoryCounterStore()
	}

	var blobStore audit.BlobStore
	if cfg.Storage.Backend == "gcs" {
		gcsClient, err := gcstorage.NewClient(ctx)
		if err != nil {
			logger.Fatal("gcs client init failed", zap.Error(err))
		}
		store, err := gcs.New(gcsClient, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			logger.Fatal("gcs blob store init failed", zap.Error(err))
		}
		blobStore = store
	} else {
		blobStore = storememory.NewBlobStore()
	}

	var publisher audit.Publisher
	if cfg.PubSub.Enabled {
		psClient, err := gcppubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("pubsub client init failed", zap.Error(err))
		}
		psPublisher, err := pubsubpublisher.New(psClient)
		if err != nil {
			logger.Fatal("pubsub publisher init failed", zap.Error(err))
		}
		defer psPublisher.Close()
		publisher = psPublisher
	} else {
		publisher = memorypublisher.New()
	}

	clock := system.New()
	idGen := uuid.New()
	hasher := sha256.New()
	queue := queuememory.NewQueue(cfg.Audit.QueueDepth)

	gate := quota.NewGate(counters, clock, logger.Named("quota"))

	var perf *performance.Analyzer
	if cfg.Headless.Enabled {
		perf, err = performance.New(performance.Config{
			UserAgent:      cfg.Analyzers.UserAgent,
			Timeout:        time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
			MaxConcurrency: cfg.Headless.MaxParallel,
		}, logger.Named("performance"))
		if err != nil {
			logger.Warn("performance analyzer init failed, continuing without it", zap.Error(err))
			perf = nil
		} else {
			defer perf.Close()
		}
	}
	meta, err := metatags.New(metatags.Config{
		UserAgent: cfg.Analyzers.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	}, logger.Named("metatags"))
	if err != nil {
		logger.Fatal("meta tag analyzer init failed", zap.Error(err))
	}
	imageAnalyzer, err := images.New(images.Config{
		UserAgent:    cfg.Analyzers.UserAgent,
		Timeout:      cfg.FetchTimeout(),
		ProbeTimeout: time.Duration(cfg.Analyzers.ProbeTimeoutSeconds) * time.Second,
		MaxProbes:    cfg.Analyzers.MaxProbes,
	}, logger.Named("images"))
	if err != nil {
		logger.Fatal("image analyzer init failed", zap.Error(err))
	}

	workerCfg := worker.Config{
		EventTopic:   cfg.Audit.EventTopic,
		ReportPrefix: cfg.Audit.ReportPrefix,
		JobTimeout:   cfg.JobTimeout(),
	}
	var workers []*worker.Worker
	for i := 0; i < cfg.Audit.Concurrency; i++ {
		workers = append(workers, worker.New(
			queue,
			repo,
			blobStore,
			publisher,
			hasher,
			clock,
			perf,
			meta,
			imageAnalyzer,
			workerCfg,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	dispatch := dispatcher.New(queue, workers, logger.Named("dispatcher"))

	orch := orchestrator.New(repo, gate, queue, clock, idGen, logger.Named("orchestrator"))
	apiServer := api.NewServer(orch, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	go func() {
		logger.Info("dispatcher started", zap.Int("workers", cfg.Audit.Concurrency))
		dispatch.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	grace := time.Duration(cfg.Server.ShutdownGraceSeconds) * time.Second
	if grace <= 0 {
		grace = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	logger.Info("shutdown complete")
}
