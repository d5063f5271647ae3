package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"basegraph.app/pulse/common/logger"
	"basegraph.app/pulse/internal/model"
)

// LatestID asks Read for entries added after the call. Read pins it to the
// stream's current tail, so nothing published between two reads is missed.
const LatestID = "$"

// emptyStreamID precedes every entry id.
const emptyStreamID = "0-0"

type Message struct {
	ID           string
	Notification model.Notification
}

// RedisSubscriber tails the notification stream without a consumer group:
// every reader sees every entry, which is what a live feed wants.
type RedisSubscriber struct {
	client redis.Cmdable
	stream string
	block  time.Duration
	count  int64
}

func NewRedisSubscriber(client redis.Cmdable, stream string, block time.Duration) *RedisSubscriber {
	return &RedisSubscriber{
		client: client,
		stream: stream,
		block:  block,
		count:  50,
	}
}

// Read blocks until entries newer than lastID arrive or the block timeout
// elapses. It returns the id to pass to the next call, never LatestID.
func (s *RedisSubscriber) Read(ctx context.Context, lastID string) ([]Message, string, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "pulse.queue.subscriber",
	})

	if lastID == "" || lastID == LatestID {
		tail, err := s.tail(ctx)
		if err != nil {
			return nil, LatestID, err
		}
		lastID = tail
	}

	streams, err := s.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{s.stream, lastID},
		Count:   s.count,
		Block:   s.block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, lastID, nil
		}
		return nil, lastID, fmt.Errorf("reading from stream: %w", err)
	}

	var messages []Message
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			lastID = msg.ID
			n, parseErr := ParseNotification(msg)
			if parseErr != nil {
				slog.WarnContext(ctx, "skipping malformed notification",
					"error", parseErr,
					"raw_message_id", msg.ID,
					"stream", s.stream)
				continue
			}
			messages = append(messages, Message{ID: msg.ID, Notification: n})
		}
	}

	return messages, lastID, nil
}

// tail is the id of the newest entry, or emptyStreamID for an empty stream.
func (s *RedisSubscriber) tail(ctx context.Context) (string, error) {
	msgs, err := s.client.XRevRangeN(ctx, s.stream, "+", "-", 1).Result()
	if err != nil {
		return "", fmt.Errorf("reading stream tail: %w", err)
	}
	if len(msgs) == 0 {
		return emptyStreamID, nil
	}
	return msgs[0].ID, nil
}

func ParseNotification(msg redis.XMessage) (model.Notification, error) {
	cycleID, err := parseInt64(msg.Values, "cycle_id")
	if err != nil {
		return model.Notification{}, err
	}
	taskID, err := parseString(msg.Values, "task_id")
	if err != nil {
		return model.Notification{}, err
	}
	body, err := parseString(msg.Values, "body")
	if err != nil {
		return model.Notification{}, err
	}
	category, err := parseString(msg.Values, "category")
	if err != nil {
		return model.Notification{}, err
	}
	postedRaw, err := parseString(msg.Values, "posted_at")
	if err != nil {
		return model.Notification{}, err
	}
	postedAt, err := time.Parse(time.RFC3339Nano, postedRaw)
	if err != nil {
		return model.Notification{}, fmt.Errorf("parsing posted_at: %w", err)
	}

	return model.Notification{
		CycleID:   cycleID,
		TaskID:    taskID,
		TaskTitle: parseOptionalString(msg.Values, "task_title"),
		Recipient: parseOptionalString(msg.Values, "recipient"),
		Category:  model.MessageCategory(category),
		Body:      body,
		PostedAt:  postedAt,
	}, nil
}

func parseInt64(values map[string]any, key string) (int64, error) {
	raw, ok := values[key]
	if !ok {
		return 0, fmt.Errorf("missing %s", key)
	}
	num, err := strconv.ParseInt(fmt.Sprint(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func parseString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	return fmt.Sprint(raw), nil
}

func parseOptionalString(values map[string]any, key string) string {
	raw, ok := values[key]
	if !ok {
		return ""
	}
	return fmt.Sprint(raw)
}
