package monitor

import (
	"context"
	"time"

	"basegraph.app/pulse/internal/model"
)

// TaskStore is the external system of record for tasks and their comments.
type TaskStore interface {
	// FetchOpenTasks returns pending tasks plus recently completed ones.
	FetchOpenTasks(ctx context.Context) ([]model.TaskSnapshot, error)
	// FetchComments returns the task's comments ordered oldest-first.
	FetchComments(ctx context.Context, taskID string) ([]model.CommentRecord, error)
	AppendComment(ctx context.Context, taskID, authorID, body string, at time.Time) error
}

// IdentityResolver maps a display name to a stable identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, displayName string) (id string, canonicalName string, err error)
}

// TextGenerator produces the literal comment text for a category.
type TextGenerator interface {
	Generate(ctx context.Context, category model.MessageCategory, recipientName string, vars map[string]any) (string, error)
}

// CooldownGuard is an optional cross-instance lease taken right before a write.
type CooldownGuard interface {
	Acquire(ctx context.Context, taskID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, taskID string) error
}

// NotificationPublisher receives every posted comment, best-effort.
type NotificationPublisher interface {
	Publish(ctx context.Context, n model.Notification) error
}
