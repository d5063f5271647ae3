package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment, so a task id set once at the top of the
// per-task loop shows up on every log line below it.
type LogFields struct {
	CycleID    *int64  // Scan cycle snowflake ID
	TaskID     *string // Task store ID (e.g. "42" or "7/13" for GitLab project/iid)
	AssigneeID *string // Task assignee
	Category   *string // Message category being generated
	RequestID  *string // HTTP request ID on the operational API
	Component  string  // Component name (OTel semantic convention style, e.g., "pulse.monitor.engine")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// mergeFields merges two LogFields, preferring non-nil/non-empty values from 'new'.
func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.CycleID != nil {
		result.CycleID = new.CycleID
	}
	if new.TaskID != nil {
		result.TaskID = new.TaskID
	}
	if new.AssigneeID != nil {
		result.AssigneeID = new.AssigneeID
	}
	if new.Category != nil {
		result.Category = new.Category
	}
	if new.RequestID != nil {
		result.RequestID = new.RequestID
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{TaskID: logger.Ptr(task.ID)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
// Useful for logging potentially long strings like comment bodies or error messages.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
