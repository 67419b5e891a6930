// Package app assembles the article service from configuration.
package app

import (
	"article-service/internal/article"
	"article-service/internal/collab"
	"article-service/internal/config"
	"article-service/internal/db"
	"article-service/internal/search"
	"article-service/internal/tag"
	"article-service/internal/user"
	"article-service/internal/worker"
	"article-service/redis"
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	taskQueueSize = 256
	taskTimeout   = 5 * time.Second
)

type App struct {
	Config   config.Config
	DB       *gorm.DB
	Redis    *goredis.Client
	Workers  *worker.WorkerPool
	Users    user.Service
	Articles article.Service
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	gdb, err := db.ConnectDb(cfg)
	if err != nil {
		return nil, err
	}

	indexer, err := newIndexer(ctx, cfg)
	if err != nil {
		db.CloseDb(gdb)
		return nil, err
	}

	redisClient := redis.InitRedis(ctx, cfg.RedisAddress)
	workers := worker.NewWorkerPool(cfg.WorkerCount, taskQueueSize, taskTimeout)

	tags := tag.NewService(gdb)
	articles := article.NewService(
		article.NewRepository(gdb, tags),
		tags,
		indexer,
		workers,
		redis.NewCache(redisClient),
		observers(cfg),
		cfg.BaseURL,
		cfg.DefaultRenderer,
	)

	return &App{
		Config:   cfg,
		DB:       gdb,
		Redis:    redisClient,
		Workers:  workers,
		Users:    user.NewService(user.NewRepository(gdb)),
		Articles: articles,
	}, nil
}

// Close drains queued background tasks before closing connections.
func (a *App) Close() {
	a.Workers.Shutdown()
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Warn().Err(err).Msg("redis close failed")
		}
	}
	db.CloseDb(a.DB)
}

func newIndexer(ctx context.Context, cfg config.Config) (search.Indexer, error) {
	if cfg.WeaviateURL == "" {
		log.Info().Msg("WEAVIATE_URL not set, search indexing disabled")
		return search.Noop{}, nil
	}
	indexer, err := search.NewWeaviateIndexer(cfg.WeaviateURL, cfg.WeaviateClass)
	if err != nil {
		return nil, fmt.Errorf("search indexer: %w", err)
	}
	if err := indexer.EnsureSchema(ctx); err != nil {
		// The data API still works against auto-schema instances.
		log.Warn().Err(err).Msg("search schema not ensured")
	}
	return indexer, nil
}

func observers(cfg config.Config) []article.PageObserver {
	var list []article.PageObserver
	if cfg.ForumAddress != "" {
		list = append(list, collab.NewForum(cfg.ForumAddress))
		log.Info().Str("addr", cfg.ForumAddress).Msg("forum integration enabled")
	}
	if cfg.GalleryAddress != "" {
		list = append(list, collab.NewGallery(cfg.GalleryAddress))
		log.Info().Str("addr", cfg.GalleryAddress).Msg("gallery integration enabled")
	}
	return list
}
