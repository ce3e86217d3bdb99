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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/renoted/renoted/internal/config"
	dbRedis "github.com/renoted/renoted/internal/db/redis"
	"github.com/renoted/renoted/internal/indexer"
	logpkg "github.com/renoted/renoted/internal/logger"
	annotationrepo "github.com/renoted/renoted/internal/repository/annotation"
	pagerepo "github.com/renoted/renoted/internal/repository/page"
	searchindexrepo "github.com/renoted/renoted/internal/repository/searchindex"
	sharerepo "github.com/renoted/renoted/internal/repository/share"
	stackrepo "github.com/renoted/renoted/internal/repository/stack"
	"github.com/renoted/renoted/internal/sqldb"
	chiTransport "github.com/renoted/renoted/internal/transport/chi"
	annotationuc "github.com/renoted/renoted/internal/usecase/annotation"
	healthuc "github.com/renoted/renoted/internal/usecase/health"
	pageuc "github.com/renoted/renoted/internal/usecase/page"
	searchuc "github.com/renoted/renoted/internal/usecase/search"
	shareuc "github.com/renoted/renoted/internal/usecase/share"
	stackuc "github.com/renoted/renoted/internal/usecase/stack"
	"github.com/renoted/renoted/internal/version"
)

func main() {
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

	logger.Info("Starting renoted API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("search_addrs", cfg.Search.Addrs),
		zap.String("store_path", cfg.Store.Path),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Search.Addrs,
		Password: cfg.Search.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create search store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Search.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Search backend not ready", zap.Error(err))
	}
	logger.Info("Connected to search backend")

	sqlDB, err := sqldb.Open(cfg.Store.Path)
	if err != nil {
		logger.Fatal("Failed to open relational store", zap.Error(err))
	}
	defer func() { _ = sqlDB.Close() }()

	// Repositories
	annRepo := annotationrepo.New(sqlDB)
	pageRepo := pagerepo.New(sqlDB)
	shareRepo := sharerepo.New(sqlDB)
	stackRepo := stackrepo.New(store, cfg.Search.StackPrefix)
	indexRepo := searchindexrepo.New(store, searchindexrepo.Config{
		AnnIndex:     cfg.Search.AnnIndex,
		AnnPrefix:    cfg.Search.AnnPrefix,
		SharedIndex:  cfg.Search.SharedIndex,
		SharedPrefix: cfg.Search.SharedPrefix,
		QueryTimeout: time.Duration(cfg.Search.QueryTimeoutSec) * time.Second,
	})
	if err := indexRepo.EnsureIndexes(ctx); err != nil {
		logger.Fatal("Failed to create search indexes", zap.Error(err))
	}

	// Index propagation
	bus := indexer.NewBus(cfg.Indexer.QueueSize)
	worker, err := indexer.NewWorker(bus, indexRepo, annRepo, shareRepo, stackRepo, cfg.Indexer.Workers)
	if err != nil {
		logger.Fatal("Failed to build index worker", zap.Error(err))
	}

	// Use case services
	annSvc := annotationuc.New(annRepo, pageRepo, bus)
	pageSvc := pageuc.New(pageRepo, annRepo, bus)
	searchSvc := searchuc.New(indexRepo, annRepo, pageRepo, shareRepo, stackRepo)
	shareSvc := shareuc.New(annRepo, shareRepo, bus)
	stackSvc := stackuc.New(stackRepo, annRepo, bus)
	healthSvc := healthuc.New(store, sqlDB)

	server := chiTransport.NewServer(
		annSvc, pageSvc, searchSvc, shareSvc, stackSvc, healthSvc,
		logger, cfg.Search.DefaultPageSize,
	)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Routes(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return worker.Run(logpkg.ContextWithLogger(gctx, logger))
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	// The HTTP server is down, so no new events arrive. Give the queued
	// ones a bounded chance to reach the index before exit.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), time.Duration(cfg.Indexer.StopTimeoutSec)*time.Second)
	defer cancelDrain()
	if n := worker.Drain(logpkg.ContextWithLogger(drainCtx, logger)); n > 0 {
		logger.Info("Drained indexing queue", zap.Int("events", n))
	}

	logger.Info("Server stopped gracefully")
}
