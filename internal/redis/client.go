package redis

import (
	"context"
	"fmt"
	"time"

	"wisefido-triage/internal/config"

	"github.com/go-redis/redis/v8"
)

// Client Redis客户端类型别名
type Client = redis.Client

// NewRedisClient 创建Redis客户端（不建立连接）
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
}

// Connect 创建客户端并检查连通性，失败时关闭客户端
func Connect(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := NewRedisClient(cfg)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Close 关闭Redis连接
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
