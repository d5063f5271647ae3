package monitor

import (
	"context"
	"time"

	"basegraph.app/pulse/internal/model"
)

// SelectCategory picks what kind of message to post. It is a lookup with no
// side effects. A stalled thread is followed up first, then a known topic is
// addressed, and only then does urgency alone decide.
func SelectCategory(conv model.ConversationState, state model.UrgencyState, daysLate int) model.MessageCategory {
	if conv.NeedsFollowUp {
		switch conv.CurrentTopic {
		case model.TopicBlocked:
			return model.CategoryFollowUpIssue
		case model.TopicProgressUpdate:
			return model.CategoryFollowUpProgress
		default:
			return model.CategoryFollowUpGeneric
		}
	}

	switch conv.CurrentTopic {
	case model.TopicCompletionMentioned:
		return model.CategoryStatusRequestCompletion
	case model.TopicTesting:
		return model.CategoryTestingCheck
	case model.TopicBlocked:
		return model.CategoryAssistanceOffer
	case model.TopicProgressUpdate, model.TopicDeployment:
		return model.CategoryProgressCheck
	}

	switch state {
	case model.UrgencyCompleted:
		return model.CategoryCelebration
	case model.UrgencyDueSoon:
		return model.CategoryGentleReminder
	case model.UrgencyOverdue:
		switch {
		case daysLate <= 1:
			return model.CategoryGentleReminder
		case daysLate <= 5:
			return model.CategoryConcern
		default:
			return model.CategoryUrgent
		}
	default:
		return model.CategoryGeneric
	}
}

// Template variables handed to the TextGenerator.
const (
	VarDaysLate  = "days_late"
	VarTaskTitle = "task_title"
	VarDueAt     = "due_at"
	VarTopic     = "topic"
	VarRecipient = "recipient"
)

// MessageVars builds the generator context for one task.
func MessageVars(task model.TaskSnapshot, u model.Urgency, conv model.ConversationState) map[string]any {
	vars := map[string]any{
		VarDaysLate:  u.DaysLate,
		VarTaskTitle: task.Title,
		VarTopic:     string(conv.CurrentTopic),
		VarRecipient: task.Recipient(),
	}
	if task.DueAt != nil {
		vars[VarDueAt] = task.DueAt.UTC().Format(time.DateOnly)
	}
	return vars
}

// Compose selects the category and asks the generator for the text. A
// generator failure comes back as a *GenerationError.
func Compose(ctx context.Context, gen TextGenerator, task model.TaskSnapshot, u model.Urgency, conv model.ConversationState) (model.MessageCategory, string, error) {
	category := SelectCategory(conv, u.State, u.DaysLate)
	body, err := gen.Generate(ctx, category, task.Recipient(), MessageVars(task, u, conv))
	if err != nil {
		return category, "", &GenerationError{TaskID: task.ID, Category: category, Err: err}
	}
	if body == "" {
		return category, "", &GenerationError{TaskID: task.ID, Category: category, Err: errEmptyMessage}
	}
	return category, body, nil
}
