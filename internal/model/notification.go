package model

import "time"

type MessageCategory string

const (
	CategoryCelebration             MessageCategory = "celebration"
	CategoryFollowUpIssue           MessageCategory = "follow_up_issue"
	CategoryFollowUpProgress        MessageCategory = "follow_up_progress"
	CategoryFollowUpGeneric         MessageCategory = "follow_up_generic"
	CategoryStatusRequestCompletion MessageCategory = "status_request_completion"
	CategoryTestingCheck            MessageCategory = "testing_check"
	CategoryAssistanceOffer         MessageCategory = "assistance_offer"
	CategoryProgressCheck           MessageCategory = "progress_check"
	CategoryGentleReminder          MessageCategory = "gentle_reminder"
	CategoryConcern                 MessageCategory = "concern"
	CategoryUrgent                  MessageCategory = "urgent"
	CategoryGeneric                 MessageCategory = "generic"
)

// Notification is a comment the engine posted, as published on the
// notification stream.
type Notification struct {
	CycleID   int64           `json:"cycle_id"`
	TaskID    string          `json:"task_id"`
	TaskTitle string          `json:"task_title"`
	Recipient string          `json:"recipient"`
	Category  MessageCategory `json:"category"`
	Body      string          `json:"body"`
	PostedAt  time.Time       `json:"posted_at"`
}
