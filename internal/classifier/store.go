package classifier

import (
	"context"
	"errors"
	"fmt"
)

// BlobStore 模型二进制存储（文件、SQLite、PostgreSQL、Redis 等）
// LoadBlob 在不存在时返回 ErrModelNotFound
type BlobStore interface {
	LoadBlob(ctx context.Context) ([]byte, error)
	SaveBlob(ctx context.Context, modelID string, blob []byte) error
}

// Persist 序列化并写入存储
func Persist(ctx context.Context, store BlobStore, m *Model) error {
	blob, err := Marshal(m)
	if err != nil {
		return err
	}
	if err := store.SaveBlob(ctx, m.ID, blob); err != nil {
		if errors.Is(err, ErrPersistence) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// Load 从存储读取并反序列化
func Load(ctx context.Context, store BlobStore) (*Model, error) {
	blob, err := store.LoadBlob(ctx)
	if err != nil {
		return nil, err
	}
	return Unmarshal(blob)
}
