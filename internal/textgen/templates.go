package textgen

import (
	"context"
	"fmt"
	"strings"

	"basegraph.app/pulse/internal/model"
	"basegraph.app/pulse/internal/monitor"
)

// Placeholders are written as {name} where name is one of the monitor.Var* keys.
var defaultBank = map[model.MessageCategory][]string{
	model.CategoryCelebration: {
		"Nice work on \"{task_title}\", {recipient}! Thanks for getting it over the line.",
		"{recipient}, \"{task_title}\" is done. Great job!",
		"Congrats {recipient}, another one closed out. Thanks for the effort on this.",
	},
	model.CategoryFollowUpIssue: {
		"Hi {recipient}, checking back on the blocker you mentioned. Is there anything I can help unblock?",
		"{recipient}, did the issue you ran into get resolved? Happy to loop someone in if not.",
	},
	model.CategoryFollowUpProgress: {
		"Hi {recipient}, following up on your last update. How far along is it now?",
		"{recipient}, any further progress since your last note?",
	},
	model.CategoryFollowUpGeneric: {
		"Hi {recipient}, just following up on my earlier question when you get a moment.",
		"{recipient}, circling back on this one. Any news?",
	},
	model.CategoryStatusRequestCompletion: {
		"Hi {recipient}, sounds like this might be done. Can we mark \"{task_title}\" as complete?",
		"{recipient}, is \"{task_title}\" finished? If so, please close it out.",
	},
	model.CategoryTestingCheck: {
		"Hi {recipient}, how is testing going? Any failures worth flagging?",
		"{recipient}, did the tests pass on this one?",
	},
	model.CategoryAssistanceOffer: {
		"Hi {recipient}, it sounds like you're blocked. What do you need to move forward?",
		"{recipient}, can I help with whatever is holding this up?",
	},
	model.CategoryProgressCheck: {
		"Hi {recipient}, how is \"{task_title}\" coming along?",
		"{recipient}, any update on where this stands?",
	},
	model.CategoryGentleReminder: {
		"Hi {recipient}, friendly reminder that \"{task_title}\" is due {due_at}.",
		"{recipient}, just a heads-up that this one is coming due.",
	},
	model.CategoryConcern: {
		"Hi {recipient}, \"{task_title}\" is {days_late} days past due. Is there anything getting in the way?",
		"{recipient}, this has slipped {days_late} days. Can you share an updated estimate?",
	},
	model.CategoryUrgent: {
		"{recipient}, \"{task_title}\" is now {days_late} days overdue and needs attention today.",
		"Urgent: {recipient}, this task is {days_late} days late. Please post a status update.",
	},
	model.CategoryGeneric: {
		"Hi {recipient}, how are things going with \"{task_title}\"?",
		"{recipient}, any update on this task?",
	},
}

// TemplateGenerator renders a randomly chosen phrasing from a fixed bank.
type TemplateGenerator struct {
	bank map[model.MessageCategory][]string
	r    monitor.Rand
}

func NewTemplateGenerator(r monitor.Rand) *TemplateGenerator {
	return &TemplateGenerator{bank: defaultBank, r: r}
}

// WithBank replaces the phrasing bank. Categories missing from bank fall back
// to the generic phrasings.
func (g *TemplateGenerator) WithBank(bank map[model.MessageCategory][]string) *TemplateGenerator {
	g.bank = bank
	return g
}

func (g *TemplateGenerator) Generate(_ context.Context, category model.MessageCategory, recipientName string, vars map[string]any) (string, error) {
	variants := g.bank[category]
	if len(variants) == 0 {
		variants = g.bank[model.CategoryGeneric]
	}
	if len(variants) == 0 {
		return "", fmt.Errorf("no templates for category %q", category)
	}

	tmpl := variants[g.r.IntN(len(variants))]
	return render(tmpl, recipientName, vars), nil
}

func render(tmpl, recipient string, vars map[string]any) string {
	pairs := []string{"{" + monitor.VarRecipient + "}", recipient}
	for k, v := range vars {
		if k == monitor.VarRecipient {
			continue
		}
		pairs = append(pairs, "{"+k+"}", fmt.Sprint(v))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
