// Command renoted-reindex rebuilds the search mirrors from the relational
// store. Run it after an index schema change or a search backend wipe.
package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/renoted/renoted/internal/config"
	dbRedis "github.com/renoted/renoted/internal/db/redis"
	"github.com/renoted/renoted/internal/indexer"
	logpkg "github.com/renoted/renoted/internal/logger"
	annotationrepo "github.com/renoted/renoted/internal/repository/annotation"
	searchindexrepo "github.com/renoted/renoted/internal/repository/searchindex"
	sharerepo "github.com/renoted/renoted/internal/repository/share"
	stackrepo "github.com/renoted/renoted/internal/repository/stack"
	"github.com/renoted/renoted/internal/sqldb"
)

func main() {
	env := config.GetEnv()
	cfg := config.MustLoad(env)

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Search.Addrs,
		Password: cfg.Search.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create search store", zap.Error(err))
	}
	defer store.Close()

	ctx := logpkg.ContextWithLogger(context.Background(), logger)
	if err := store.WaitForReady(ctx, time.Duration(cfg.Search.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Search backend not ready", zap.Error(err))
	}

	sqlDB, err := sqldb.Open(cfg.Store.Path)
	if err != nil {
		logger.Fatal("Failed to open relational store", zap.Error(err))
	}
	defer func() { _ = sqlDB.Close() }()

	indexRepo := searchindexrepo.New(store, searchindexrepo.Config{
		AnnIndex:     cfg.Search.AnnIndex,
		AnnPrefix:    cfg.Search.AnnPrefix,
		SharedIndex:  cfg.Search.SharedIndex,
		SharedPrefix: cfg.Search.SharedPrefix,
		QueryTimeout: time.Duration(cfg.Search.QueryTimeoutSec) * time.Second,
	})
	if err := indexRepo.RebuildIndexes(ctx); err != nil {
		logger.Fatal("Failed to rebuild search indexes", zap.Error(err))
	}

	worker, err := indexer.NewWorker(
		indexer.NewBus(1),
		indexRepo,
		annotationrepo.New(sqlDB),
		sharerepo.New(sqlDB),
		stackrepo.New(store, cfg.Search.StackPrefix),
		1,
	)
	if err != nil {
		logger.Fatal("Failed to build index worker", zap.Error(err))
	}

	count, err := worker.ReindexAll(ctx)
	if err != nil {
		logger.Fatal("Reindex failed", zap.Int("indexed", count), zap.Error(err))
	}
	logger.Info("Reindex finished", zap.Int("indexed", count))
}
