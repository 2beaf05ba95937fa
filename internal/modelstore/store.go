// Package modelstore 提供分类器模型的持久化后端
package modelstore

import (
	"context"
	"database/sql"
	"fmt"

	"wisefido-triage/internal/classifier"
	"wisefido-triage/internal/config"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Store 可关闭的模型存储
type Store interface {
	classifier.BlobStore
	Close() error
}

// VersionLister 可列出已保存模型版本的存储（file 后端只有单个文件，不实现）
type VersionLister interface {
	Versions(ctx context.Context) ([]string, error)
}

// Backends 外部共享连接（postgres / redis 后端使用）
type Backends struct {
	DB    *sql.DB
	Redis *redis.Client
}

// Open 按配置选择存储后端
func Open(ctx context.Context, cfg *config.Config, backends Backends, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Model.Store {
	case config.StoreFile, "":
		logger.Info("Using file model store", zap.String("path", cfg.Model.Path))
		return NewFileStore(cfg.Model.Path), nil

	case config.StoreSQLite:
		s, err := NewSQLiteStore(cfg.Model.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite model store: %w", err)
		}
		logger.Info("Using sqlite model store", zap.String("path", cfg.Model.SQLitePath))
		return s, nil

	case config.StorePostgres:
		if backends.DB == nil {
			return nil, fmt.Errorf("postgres model store requires a database connection")
		}
		s := NewPostgresStore(backends.DB)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		logger.Info("Using postgres model store")
		return s, nil

	case config.StoreRedis:
		if backends.Redis == nil {
			return nil, fmt.Errorf("redis model store requires a redis client")
		}
		logger.Info("Using redis model store", zap.String("key", cfg.Model.RedisKey))
		return NewRedisStore(backends.Redis, cfg.Model.RedisKey), nil

	default:
		return nil, fmt.Errorf("unknown model store: %s", cfg.Model.Store)
	}
}
