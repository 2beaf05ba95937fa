package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// PublishJSONToStream 发布 JSON 消息到 Redis Streams
// 消息格式：data = JSON 字符串，timestamp = Unix 秒
func PublishJSONToStream(ctx context.Context, client *redis.Client, stream string, data interface{}) (string, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stream message: %w", err)
	}

	return client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"data":      string(jsonBytes),
			"timestamp": fmt.Sprintf("%d", time.Now().Unix()),
		},
	}).Result()
}

// ReadRecentJSON 读取最近 count 条消息的 data 字段（新消息在前）
func ReadRecentJSON(ctx context.Context, client *redis.Client, stream string, count int64) ([]string, error) {
	msgs, err := client.XRevRangeN(ctx, stream, "+", "-", count).Result()
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if data, ok := msg.Values["data"].(string); ok {
			out = append(out, data)
		}
	}
	return out, nil
}
