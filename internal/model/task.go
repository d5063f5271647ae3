package model

import "time"

type TaskStatus string

const (
	TaskStatusOpen      TaskStatus = "open"
	TaskStatusCompleted TaskStatus = "completed"
)

// TaskSnapshot is one task as of a scan instant. Snapshots are rebuilt from the
// task store on every scan and never mutated afterwards.
type TaskSnapshot struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	AssigneeID       string     `json:"assignee_id"`
	AssigneeName     string     `json:"assignee_name"`
	// DueAt is a calendar date held as midnight UTC.
	DueAt            *time.Time `json:"due_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	Status           TaskStatus `json:"status"`
	BotCommentCount  int        `json:"bot_comment_count"`
	LastBotCommentAt *time.Time `json:"last_bot_comment_at,omitempty"`
}

// IsCompleted reports whether the task carries a completion date or a
// completed status.
func (t TaskSnapshot) IsCompleted() bool {
	return t.CompletedAt != nil || t.Status == TaskStatusCompleted
}

// Recipient is the name used when addressing the assignee.
func (t TaskSnapshot) Recipient() string {
	if t.AssigneeName != "" {
		return t.AssigneeName
	}
	if t.AssigneeID != "" {
		return t.AssigneeID
	}
	return "team"
}

// CommentRecord is one historical comment on a task. The sequence is owned by
// the task store and treated as read-only input.
type CommentRecord struct {
	ID            string    `json:"id"`
	TaskID        string    `json:"task_id"`
	AuthorID      string    `json:"author_id"`
	AuthorName    string    `json:"author_name,omitempty"`
	Body          string    `json:"body"`
	CreatedAt     time.Time `json:"created_at"`
	IsBotAuthored bool      `json:"is_bot_authored"`
}
