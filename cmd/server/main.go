// Package main provides the entry point for the paper feed service.
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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scholarstream/paper-feed-service/internal/config"
	"github.com/scholarstream/paper-feed-service/internal/database"
	"github.com/scholarstream/paper-feed-service/internal/deepsearch"
	"github.com/scholarstream/paper-feed-service/internal/events"
	"github.com/scholarstream/paper-feed-service/internal/feed"
	"github.com/scholarstream/paper-feed-service/internal/feedcache"
	"github.com/scholarstream/paper-feed-service/internal/jobs"
	"github.com/scholarstream/paper-feed-service/internal/llm"
	"github.com/scholarstream/paper-feed-service/internal/normalize"
	"github.com/scholarstream/paper-feed-service/internal/observability"
	"github.com/scholarstream/paper-feed-service/internal/orchestrator"
	"github.com/scholarstream/paper-feed-service/internal/papersources"
	"github.com/scholarstream/paper-feed-service/internal/papersources/biorxiv"
	"github.com/scholarstream/paper-feed-service/internal/papersources/openalex"
	"github.com/scholarstream/paper-feed-service/internal/papersources/semanticscholar"
	"github.com/scholarstream/paper-feed-service/internal/repository"
	httpserver "github.com/scholarstream/paper-feed-service/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("paper-feed-service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Create repositories.
	profileRepo := repository.NewPgProfileRepository(db)
	feedbackRepo := repository.NewPgFeedbackRepository(db)
	folderRepo := repository.NewPgFolderRepository(db)
	paperRepo := repository.NewPgPaperRepository(db)

	// Metrics are registered up front so every component can record from
	// the first request.
	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics("paper_feed")
	}

	// Register upstream paper sources.
	registry := papersources.NewRegistry()

	registry.Register(openalex.New(openalex.Config{
		BaseURL:    cfg.Sources.OpenAlex.BaseURL,
		Email:      cfg.Sources.OpenAlex.Email,
		Timeout:    cfg.Sources.OpenAlex.Timeout,
		RateLimit:  cfg.Sources.OpenAlex.RateLimit,
		MaxResults: cfg.Sources.OpenAlex.MaxResults,
		Enabled:    cfg.Sources.OpenAlex.Enabled,
	}))

	registry.Register(semanticscholar.NewClient(semanticscholar.Config{
		BaseURL:    cfg.Sources.SemanticScholar.BaseURL,
		APIKey:     cfg.Sources.SemanticScholar.APIKey,
		Timeout:    cfg.Sources.SemanticScholar.Timeout,
		RateLimit:  cfg.Sources.SemanticScholar.RateLimit,
		MaxResults: cfg.Sources.SemanticScholar.MaxResults,
		Enabled:    cfg.Sources.SemanticScholar.Enabled,
	}, nil))

	bioClient := biorxiv.New(biorxiv.Config{
		BaseURL:   cfg.Sources.BioRxiv.BaseURL,
		Server:    cfg.Sources.BioRxiv.Server,
		Timeout:   cfg.Sources.BioRxiv.Timeout,
		RateLimit: cfg.Sources.BioRxiv.RateLimit,
		Enabled:   cfg.Sources.BioRxiv.Enabled,
	}, logger)
	registry.Register(bioClient)

	// LLM-backed query parsing and summaries are optional; without them
	// free-text queries stay literal and TLDRs come from truncation.
	var (
		parser     feed.QueryParser
		summarizer normalize.Summarizer
	)
	if cfg.LLM.Enabled {
		provider, err := llm.NewProvider(llm.FactoryConfig{
			Provider:    cfg.LLM.Provider,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
			MaxRetries:  cfg.LLM.MaxRetries,
			OpenAI: llm.OpenAIConfig{
				APIKey:  cfg.LLM.OpenAI.APIKey,
				Model:   cfg.LLM.OpenAI.Model,
				BaseURL: cfg.LLM.OpenAI.BaseURL,
			},
			Anthropic: llm.AnthropicConfig{
				APIKey:  cfg.LLM.Anthropic.APIKey,
				Model:   cfg.LLM.Anthropic.Model,
				BaseURL: cfg.LLM.Anthropic.BaseURL,
			},
		})
		if err != nil {
			return fmt.Errorf("create LLM provider: %w", err)
		}
		var recorder llm.Recorder
		if metrics != nil {
			recorder = metrics
		}
		parser = llm.NewQueryParser(llm.Instrument(provider, "query_parse", recorder), logger)
		summarizer = llm.NewSummarizer(llm.Instrument(provider, "summarize", recorder), logger)
		logger.Info().Str("provider", cfg.LLM.Provider).Msg("LLM provider initialized")
	}

	normalizer := normalize.New(summarizer, logger)

	// Feed cache, deep-search cursors and the background job pool.
	var cacheOpts []feedcache.Option
	if metrics != nil {
		cacheOpts = append(cacheOpts, feedcache.WithEvictionHook(metrics.RecordCacheEviction))
	}
	cache, err := feedcache.New(cfg.Feed.CacheMaxQueries, logger, cacheOpts...)
	if err != nil {
		return fmt.Errorf("create feed cache: %w", err)
	}

	cursors := deepsearch.NewCursorStore()

	var poolOpts []jobs.Option
	if metrics != nil {
		poolOpts = append(poolOpts, jobs.WithCompletionHook(func(name string, err error, took time.Duration) {
			metrics.RecordJobCompleted(name, err, took.Seconds())
		}))
	}
	pool := jobs.NewPool(cfg.Feed.Workers, cfg.Feed.QueueSize, logger, poolOpts...)

	orch := orchestrator.New(orchestrator.Config{
		MinViableResults:    cfg.Feed.MinViableResults,
		MinLoadMoreBatch:    cfg.Feed.MinLoadMoreBatch,
		PageSize:            cfg.Feed.PageSize,
		PreprintLowWater:    cfg.Feed.PreprintLowWater,
		FetchLimit:          cfg.Feed.FetchLimit,
		ReplenishWindowDays: cfg.Feed.ReplenishWindowDays,
		MaxDeepSweepsPerJob: cfg.Feed.MaxDeepSweepsPerJob,
	}, orchestrator.Deps{
		Registry:   registry,
		Sweeper:    bioClient,
		Normalizer: normalizer,
		Cache:      cache,
		Cursors:    cursors,
		Jobs:       pool,
		Metrics:    metrics,
	}, logger)

	feedService := feed.NewService(feed.Deps{
		Feeder:     orch,
		Parser:     parser,
		Profiles:   profileRepo,
		Feedback:   feedbackRepo,
		Papers:     paperRepo,
		Sources:    registry,
		Normalizer: normalizer,
	}, logger)

	// Activity events. Disabled config yields a no-op publisher.
	publisher := events.NewPublisher(cfg.Kafka, logger)
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close event publisher")
		}
	}()

	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}

	httpSrv := httpserver.NewServer(httpCfg, httpserver.Deps{
		Feed:           feedService,
		Profiles:       profileRepo,
		Feedback:       feedbackRepo,
		Folders:        folderRepo,
		DB:             db,
		Events:         publisher,
		Metrics:        metrics,
		AuthMiddleware: httpserver.NewAuthMiddleware(cfg.Auth.JWTSecret, logger),
	}, logger)

	// Prometheus metrics handler on a separate port if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	// Channel to collect server errors.
	errCh := make(chan error, 2)

	go func() {
		logger.Info().Str("address", httpCfg.Address).Msg("HTTP server starting")
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().Str("http_address", httpCfg.Address)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("paper-feed-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down paper-feed-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	// Stop background replenishment before the process exits so in-flight
	// sweeps do not write to a closing pool.
	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("job pool forced shutdown due to timeout")
	}

	logger.Info().Msg("paper-feed-service shutdown complete")
	return nil
}
