package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"basegraph.app/pulse/internal/model"
)

// defaultMaxLen bounds the notification stream; older entries are trimmed.
const defaultMaxLen = 10_000

type RedisPublisher struct {
	client redis.Cmdable
	stream string
	maxLen int64
	logger *slog.Logger
}

func NewRedisPublisher(client redis.Cmdable, stream string, logger *slog.Logger) *RedisPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{
		client: client,
		stream: stream,
		maxLen: defaultMaxLen,
		logger: logger,
	}
}

// Publish appends the notification to the stream.
func (p *RedisPublisher) Publish(ctx context.Context, n model.Notification) error {
	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: notificationValues(n),
	}).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	p.logger.DebugContext(ctx, "published notification",
		"stream", p.stream,
		"task_id", n.TaskID,
		"category", n.Category)
	return nil
}

func notificationValues(n model.Notification) map[string]any {
	return map[string]any{
		"cycle_id":   n.CycleID,
		"task_id":    n.TaskID,
		"task_title": n.TaskTitle,
		"recipient":  n.Recipient,
		"category":   string(n.Category),
		"body":       n.Body,
		"posted_at":  n.PostedAt.UTC().Format(time.RFC3339Nano),
	}
}
