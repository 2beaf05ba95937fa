package modelstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"wisefido-triage/internal/classifier"
)

// PostgresSchema fusion_models 建表语句
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS fusion_models (
	id          BIGSERIAL PRIMARY KEY,
	model_id    UUID NOT NULL,
	model_json  JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresStore PostgreSQL 模型存储（连接由调用方管理）
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore 创建存储
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema 建表（已存在则跳过）
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("failed to create fusion_models table: %w", err)
	}
	return nil
}

// LoadBlob 读取最新模型
func (s *PostgresStore) LoadBlob(ctx context.Context) ([]byte, error) {
	query := `
		SELECT model_json
		FROM fusion_models
		ORDER BY id DESC
		LIMIT 1
	`
	var blob []byte
	err := s.db.QueryRowContext(ctx, query).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, classifier.ErrModelNotFound
		}
		return nil, fmt.Errorf("failed to query model: %w", err)
	}
	return blob, nil
}

// SaveBlob 追加一个模型版本
func (s *PostgresStore) SaveBlob(ctx context.Context, modelID string, blob []byte) error {
	query := `
		INSERT INTO fusion_models (model_id, model_json)
		VALUES ($1, $2)
	`
	if _, err := s.db.ExecContext(ctx, query, modelID, string(blob)); err != nil {
		return fmt.Errorf("%w: %w", classifier.ErrPersistence, err)
	}
	return nil
}

// Versions 返回已保存的模型 ID（旧到新）
func (s *PostgresStore) Versions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT model_id FROM fusion_models ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query model versions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close 连接由调用方关闭
func (s *PostgresStore) Close() error {
	return nil
}
