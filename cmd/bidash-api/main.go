package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bhaskar9298/ai-bi-dashboard/internal/api"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/auth"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/config"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/ingest"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/llm"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/nlq"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/observability"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/orchestrator"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/schema"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/store"
	"github.com/bhaskar9298/ai-bi-dashboard/internal/viz"
)

func main() {
	cfg, err := config.LoadFromEnv("bidash-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	mongo, err := store.Open(cfg.Mongo)
	if err != nil {
		logger.Error("failed to open mongo client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongo.Close(ctx)
	}()

	// A down database at startup is tolerated; readiness reports it and the
	// service recovers once the database comes back.
	pingCtx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.ConnectTimeout)
	if err := mongo.Ping(pingCtx); err != nil {
		logger.Warn("mongo not reachable at startup", slog.Any("error", err))
	}
	cancel()

	completer, err := llm.New(cfg.LLM)
	if err != nil {
		logger.Error("failed to initialize llm client", slog.Any("error", err))
		os.Exit(1)
	}

	sampler := schema.NewSampler(mongo, cfg.Sampler.SampleSize, observability.Component(logger, "schema"))
	synthesizer := nlq.NewSynthesizer(completer, observability.Component(logger, "nlq"))
	selector := viz.NewSelector(completer, cfg.Sampler.PreviewRows, observability.Component(logger, "viz"))
	runner := orchestrator.New(sampler, synthesizer, mongo, selector, cfg.Mongo.DefaultCollection, observability.Component(logger, "orchestrator"))
	ingester := ingest.NewIngester(mongo, cfg.Mongo.Database, observability.Component(logger, "ingest"))
	flowIngester := ingest.NewFlowIngester(mongo, observability.Component(logger, "ingest"))

	deps := api.Dependencies{
		Logger:            logger,
		Readiness:         mongo.Ping,
		DependencyTimeout: time.Second,
		Runner:            runner,
		Sampler:           sampler,
		Store:             mongo,
		Ingester:          ingester,
		FlowIngester:      flowIngester,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
