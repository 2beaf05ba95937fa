package service

import (
	"context"
	"encoding/json"
	"fmt"

	"wisefido-triage/internal/models"
	redisx "wisefido-triage/internal/redis"

	"github.com/go-redis/redis/v8"
)

// StreamPublisher 将研判结果发布到 Redis Stream，也可从 Stream 读取最近结果
type StreamPublisher struct {
	client *redis.Client
	stream string
}

// NewStreamPublisher 创建发布器
func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream}
}

// PublishAssessment 发布一条研判结果
func (p *StreamPublisher) PublishAssessment(ctx context.Context, a *models.Assessment) error {
	_, err := redisx.PublishJSONToStream(ctx, p.client, p.stream, a)
	return err
}

// ListRecentAssessments 读取 Stream 中最近 limit 条消息，再按 minLevel 过滤
func (p *StreamPublisher) ListRecentAssessments(ctx context.Context, limit int, minLevel models.UrgencyLevel) ([]*models.Assessment, error) {
	if minLevel != "" && !minLevel.Valid() {
		return nil, fmt.Errorf("invalid urgency level: %s", minLevel)
	}
	if limit <= 0 {
		limit = 20
	}

	messages, err := redisx.ReadRecentJSON(ctx, p.client, p.stream, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to read stream %s: %w", p.stream, err)
	}

	out := make([]*models.Assessment, 0, len(messages))
	for _, data := range messages {
		var a models.Assessment
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			return nil, fmt.Errorf("failed to decode stream message: %w", err)
		}
		if minLevel != "" && a.Urgency.UrgencyLevel.Rank() < minLevel.Rank() {
			continue
		}
		out = append(out, &a)
	}
	return out, nil
}
