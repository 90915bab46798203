package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/consolidator/internal/config"
	"github.com/kailas-cloud/consolidator/internal/domain"
	logpkg "github.com/kailas-cloud/consolidator/internal/logger"
	"github.com/kailas-cloud/consolidator/internal/metrics"
	documentrepo "github.com/kailas-cloud/consolidator/internal/repository/document"
	triplerepo "github.com/kailas-cloud/consolidator/internal/repository/triples"
	chiTransport "github.com/kailas-cloud/consolidator/internal/transport/chi"
	"github.com/kailas-cloud/consolidator/internal/usecase/convergence"
	documentuc "github.com/kailas-cloud/consolidator/internal/usecase/document"
	"github.com/kailas-cloud/consolidator/internal/usecase/extraction"
	healthuc "github.com/kailas-cloud/consolidator/internal/usecase/health"
	"github.com/kailas-cloud/consolidator/internal/usecase/pipeline"
	"github.com/kailas-cloud/consolidator/internal/usecase/refinement"
	reportuc "github.com/kailas-cloud/consolidator/internal/usecase/report"
	"github.com/kailas-cloud/consolidator/internal/usecase/triples"
	"github.com/kailas-cloud/consolidator/internal/version"
)

func main() {
	// .env is optional; real env vars win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		panic("failed to load .env: " + err.Error())
	}

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting consolidator API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("vector_store", cfg.VectorStore.Driver),
		zap.String("embedding_provider", cfg.Embedding.Provider),
	)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Server stopped gracefully")
}

//nolint:gocyclo,funlen // composition root
func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	store, err := buildStore(cfg.Database)
	if err != nil {
		return fmt.Errorf("create database store: %w", err)
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database")

	embedder, err := buildEmbedder(cfg.Embedding, store, logger)
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	vectors, err := buildVectorStore(ctx, cfg, store, logger)
	if err != nil {
		return fmt.Errorf("create vector store: %w", err)
	}

	// Triple store, restored from the last snapshot
	tripleStore := triples.New(triplerepo.New(store, cfg.Storage.KeyPrefix), logger)
	if n, err := tripleStore.Load(ctx); err != nil {
		logger.Warn("Triple snapshot not restored", zap.Error(err))
	} else {
		logger.Info("Triple snapshot restored", zap.Int("triples", n))
	}

	extractor, err := extraction.New(extraction.Options{
		HighRelevanceThreshold: cfg.Extraction.HighRelevanceThreshold,
		CacheSize:              cfg.Extraction.CacheSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("create extractor: %w", err)
	}

	persistEnriched := cfg.Convergence.PersistEnriched
	analyzer, err := convergence.New(convergence.Config{
		Embedder: embedder,
		Writer:   vectors,
		Defaults: convergence.Options{
			SimilarityThreshold: cfg.Convergence.SimilarityThreshold,
			MinChainLength:      cfg.Convergence.MinChainLength,
			MaxDocuments:        cfg.Convergence.MaxDocuments,
			PersistEnriched:     &persistEnriched,
		},
		EmbedConcurrency: cfg.Embedding.MaxConcurrency,
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("create convergence analyzer: %w", err)
	}

	// Broker first: the orchestrator publishes into it and the coordinator fans it out
	broker := pipeline.NewBroker()
	defer broker.Close()

	docSvc := documentuc.New(documentrepo.New(store, cfg.Storage.KeyPrefix), vectors, embedder, nil, logger).
		WithPagination(cfg.Index.DefaultPageSize, cfg.Index.MaxPageSize)

	orchestrator, err := refinement.New(refinement.Config{
		Documents: docSvc,
		Embedder:  embedder,
		Searcher:  vectors,
		Triples:   tripleStore,
		Notifier:  broker,
		Defaults: refinement.Options{
			MaxIterations:          cfg.Refinement.MaxIterations,
			ConvergenceThreshold:   cfg.Refinement.ConvergenceThreshold,
			MinConfidenceGain:      cfg.Refinement.MinConfidenceGain,
			IterationDelay:         time.Duration(cfg.Refinement.IterationDelayMs) * time.Millisecond,
			GraceWindow:            time.Duration(cfg.Refinement.GraceWindowSec) * time.Second,
			GraceIterations:        cfg.Refinement.GraceIterations,
			NeighborLimit:          cfg.Refinement.NeighborLimit,
			NeighborScoreThreshold: cfg.Refinement.NeighborScoreThreshold,
		},
		Queue: refinement.QueueOptions{
			BatchSize:      cfg.Refinement.BatchSize,
			BatchPause:     time.Duration(cfg.Refinement.BatchPauseMs) * time.Millisecond,
			RetriggerDelay: time.Duration(cfg.Refinement.RetriggerDelayMs) * time.Millisecond,
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("create refinement orchestrator: %w", err)
	}
	defer orchestrator.Close()

	coordCfg := pipeline.Config{
		Extractor: extractor,
		Triples:   tripleStore,
		Analyzer:  analyzer,
		Broker:    broker,
		Logger:    logger,
	}
	if cfg.Refinement.AutoTrigger {
		coordCfg.Refiner = orchestrator
	}
	coordinator, err := pipeline.New(coordCfg)
	if err != nil {
		return fmt.Errorf("create coordinator: %w", err)
	}
	docSvc.WithNotifier(coordinator)

	healthSvc := healthuc.New(store, embedder, vectorHealthChecker(vectors), logger)
	reportSvc := reportuc.New(vectors, cfg.Index.ScrollPageSize, logger)

	categories := make(domain.StaticCategories, 0, len(cfg.Categories))
	for _, c := range cfg.Categories {
		id := c.ID
		if id == "" {
			id = c.Name
		}
		categories = append(categories, domain.Category{ID: id, Name: c.Name, Color: c.Color})
	}

	server := chiTransport.NewServer(chiTransport.Services{
		Documents:   docSvc,
		Extractor:   extractor,
		Triples:     tripleStore,
		Analyzer:    coordinator,
		Refinements: orchestrator,
		Events:      coordinator,
		Reports:     reportSvc,
		Health:      healthSvc,
		Categories:  categories,
	}, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return coordinator.Run(gctx) })
	g.Go(func() error { return orchestrator.Run(gctx) })
	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
		defer cancel()

		orchestrator.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during shutdown", zap.Error(err))
		}
		if cfg.Extraction.SnapshotOnShutdown {
			if err := tripleStore.Save(shutdownCtx); err != nil {
				logger.Error("Triple snapshot failed", zap.Error(err))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
