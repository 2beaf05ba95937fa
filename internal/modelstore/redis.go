package modelstore

import (
	"context"
	"errors"
	"fmt"

	"wisefido-triage/internal/classifier"

	"github.com/go-redis/redis/v8"
)

// RedisStore Redis 模型存储，key 保存最新模型，key:id 保存其模型 ID
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore 创建存储（连接由调用方管理）
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

// LoadBlob 读取模型
func (s *RedisStore) LoadBlob(ctx context.Context) ([]byte, error) {
	blob, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, classifier.ErrModelNotFound
		}
		return nil, fmt.Errorf("failed to get model: %w", err)
	}
	return blob, nil
}

// SaveBlob 写入模型（不过期）
func (s *RedisStore) SaveBlob(ctx context.Context, modelID string, blob []byte) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key, blob, 0)
		pipe.Set(ctx, s.key+":id", modelID, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", classifier.ErrPersistence, err)
	}
	return nil
}

// Versions 只保留最新模型，返回其 ID（未保存过则为空）
func (s *RedisStore) Versions(ctx context.Context) ([]string, error) {
	id, err := s.client.Get(ctx, s.key+":id").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get model id: %w", err)
	}
	return []string{id}, nil
}

// Close 连接由调用方关闭
func (s *RedisStore) Close() error {
	return nil
}
