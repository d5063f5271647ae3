package model

type Topic string

const (
	TopicUnknown             Topic = "unknown"
	TopicCompletionMentioned Topic = "completion_mentioned"
	TopicProgressUpdate      Topic = "progress_update"
	TopicBlocked             Topic = "blocked"
	TopicTesting             Topic = "testing"
	TopicDeployment          Topic = "deployment"
)

// ConversationState summarizes a task's comment thread from the bot's point of
// view. It is a pure function of the comments and the evaluation instant.
type ConversationState struct {
	TotalComments int            `json:"total_comments"`
	BotComments   int            `json:"bot_comments"`
	HumanComments int            `json:"human_comments"`
	LastBot       *CommentRecord `json:"last_bot,omitempty"`
	LastHuman     *CommentRecord `json:"last_human,omitempty"`
	CurrentTopic  Topic          `json:"current_topic"`
	NeedsFollowUp bool           `json:"needs_follow_up"`
}
