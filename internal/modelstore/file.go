package modelstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"wisefido-triage/internal/classifier"
)

// FileStore 单文件模型存储
// 写入先落临时文件再 rename，读取方不会看到写了一半的文件
type FileStore struct {
	Path string
}

// NewFileStore 创建文件存储
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// LoadBlob 读取模型文件
func (s *FileStore) LoadBlob(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", classifier.ErrModelNotFound, s.Path)
		}
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	return data, nil
}

// SaveBlob 原子写入模型文件
func (s *FileStore) SaveBlob(ctx context.Context, modelID string, blob []byte) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", classifier.ErrPersistence, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", classifier.ErrPersistence, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %w", classifier.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %w", classifier.ErrPersistence, err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %w", classifier.ErrPersistence, err)
	}
	return nil
}

// Close 无需释放资源
func (s *FileStore) Close() error {
	return nil
}
