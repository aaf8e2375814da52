// Package app 负责按配置装配应用依赖
package app

import (
	"context"
	"fmt"

	"video-rag-qa-api/internal/application/chat"
	"video-rag-qa-api/internal/application/ingest"
	"video-rag-qa-api/internal/application/memory"
	"video-rag-qa-api/internal/application/retrieval"
	"video-rag-qa-api/internal/config"
	"video-rag-qa-api/internal/infrastructure/embedding"
	"video-rag-qa-api/internal/infrastructure/llm"
	"video-rag-qa-api/internal/infrastructure/persistence/memlog"
	"video-rag-qa-api/internal/infrastructure/persistence/milvus"
	"video-rag-qa-api/internal/infrastructure/persistence/redis"
	"video-rag-qa-api/internal/infrastructure/persistence/vectorfile"
	"video-rag-qa-api/internal/infrastructure/youtube"
	"video-rag-qa-api/pkg/logger"
)

// App 装配完成的应用依赖
type App struct {
	Config *config.Config

	Index    *retrieval.Manager
	Memory   *memory.Store
	Pipeline *ingest.Pipeline
	Chat     *chat.Service

	Redis   *redis.Client
	Milvus  *milvus.Client
	Catalog *redis.CatalogCache

	cleanups []func() error
}

// New 按配置装配应用。索引后端由 vector.backend 决定（file 或 milvus）。
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	embedder, err := embedding.NewEinoEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	var store retrieval.IndexStore
	switch cfg.Vector.Backend {
	case "", "file":
		store, err = vectorfile.Open(ctx, cfg.Vector.IndexPath, cfg.Embedding.Dimension)
		if err != nil {
			return nil, fmt.Errorf("failed to open index snapshot: %w", err)
		}
	case "milvus":
		client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to milvus: %w", err)
		}
		a.Milvus = client
		a.cleanups = append(a.cleanups, client.Close)

		store, err = milvus.Open(ctx, client, cfg.Embedding.Dimension)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open milvus index: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown vector backend: %s", cfg.Vector.Backend)
	}

	a.Index = retrieval.NewManager(embedder, store, cfg.Vector.TopK, cfg.Embedding.BatchSize)
	a.Memory = memory.NewStore(memlog.NewStore(cfg.Memory.LogPath), cfg.Memory.Retention)

	factory := llm.NewEinoFactory(cfg)
	composer := chat.NewComposer(a.Index, a.Memory, factory)
	a.Chat = chat.NewService(composer, a.Memory)

	a.Pipeline = ingest.NewPipeline(
		youtube.NewMetadataClient(&cfg.YouTube),
		youtube.NewTranscriptClient(&cfg.YouTube),
		a.Index,
		cfg.Ingest.ChunkSize,
		cfg.Ingest.ChunkOverlap,
		cfg.YouTube.FetchTimeout,
	)

	if cfg.Cache.Redis.Enabled {
		redisClient, err := redis.NewClient(&cfg.Cache.Redis)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.Redis = redisClient
		a.Catalog = redis.NewCatalogCache(redisClient, cfg.Cache.Redis.CatalogTTL)
		a.cleanups = append(a.cleanups, redisClient.Close)
	}

	logger.Info(ctx, "application assembled",
		"vector_backend", store.Backend(),
		"redis_enabled", cfg.Cache.Redis.Enabled,
	)
	return a, nil
}

// Close 释放外部连接
func (a *App) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if err := a.cleanups[i](); err != nil {
			logger.Error(context.Background(), "cleanup failed", err)
		}
	}
	a.cleanups = nil
}
