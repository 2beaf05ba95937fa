package modelstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wisefido-triage/internal/classifier"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS fusion_models (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	model_id    TEXT NOT NULL,
	model_json  TEXT NOT NULL,
	created_at  TEXT NOT NULL
);
`

// SQLiteStore 本地 SQLite 模型存储
// 每次保存追加一行，读取时取最新一行
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore 打开数据库并建表
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// LoadBlob 读取最新模型
func (s *SQLiteStore) LoadBlob(ctx context.Context) ([]byte, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT model_json FROM fusion_models ORDER BY id DESC LIMIT 1`,
	).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, classifier.ErrModelNotFound
		}
		return nil, fmt.Errorf("failed to query model: %w", err)
	}
	return []byte(blob), nil
}

// SaveBlob 追加一个模型版本
func (s *SQLiteStore) SaveBlob(ctx context.Context, modelID string, blob []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fusion_models (model_id, model_json, created_at) VALUES (?, ?, ?)`,
		modelID, string(blob), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", classifier.ErrPersistence, err)
	}
	return nil
}

// Versions 返回已保存的模型 ID（旧到新）
func (s *SQLiteStore) Versions(ctx context.Context) ([]string, error) {
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

// Close 关闭数据库连接
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
