package textgen

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"basegraph.app/pulse/common/llm"
	"basegraph.app/pulse/internal/model"
)

const systemPrompt = `You write short comments that a project-tracking assistant posts on a team member's task.
Write one or two friendly, professional sentences addressed to the recipient by name.
Match the intent of the scenario exactly. Do not invent facts, dates or people.
Never use markdown, hashtags or emoji.`

var categoryIntent = map[model.MessageCategory]string{
	model.CategoryCelebration:             "The task was just completed. Congratulate the recipient.",
	model.CategoryFollowUpIssue:           "The recipient previously reported a problem and has not replied to your question. Follow up on the problem.",
	model.CategoryFollowUpProgress:        "The recipient previously reported progress and has not replied to your question. Ask for the latest progress.",
	model.CategoryFollowUpGeneric:         "You asked a question earlier and got no reply. Follow up politely.",
	model.CategoryStatusRequestCompletion: "The recipient hinted the work is finished. Ask them to confirm and close the task.",
	model.CategoryTestingCheck:            "The conversation is about testing. Ask how testing is going.",
	model.CategoryAssistanceOffer:         "The recipient seems blocked. Offer help.",
	model.CategoryProgressCheck:           "Work is in progress. Ask for a progress update.",
	model.CategoryGentleReminder:          "The task is due soon or just slipped. Give a gentle reminder.",
	model.CategoryConcern:                 "The task is several days late. Express mild concern and ask for a new estimate.",
	model.CategoryUrgent:                  "The task is badly overdue. Be direct about the urgency while staying polite.",
	model.CategoryGeneric:                 "Ask for a general status update.",
}

type commentReply struct {
	Message string `json:"message" jsonschema:"description=The comment text to post on the task"`
}

// LLMGenerator asks a language model for a single comment.
type LLMGenerator struct {
	client    llm.Client
	botName   string
	maxTokens int
	timeout   time.Duration
}

func NewLLMGenerator(client llm.Client, botName string, maxTokens int) *LLMGenerator {
	return &LLMGenerator{
		client:    client,
		botName:   botName,
		maxTokens: maxTokens,
		timeout:   30 * time.Second,
	}
}

func (g *LLMGenerator) Generate(ctx context.Context, category model.MessageCategory, recipientName string, vars map[string]any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var out commentReply
	resp, err := g.client.Chat(ctx, llm.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildPrompt(category, recipientName, vars),
		UserName:     g.botName,
		SchemaName:   "task_comment",
		Schema:       llm.GenerateSchema[commentReply](),
		MaxTokens:    g.maxTokens,
		Temperature:  llm.Temp(0.8),
	}, &out)
	if err != nil {
		return "", fmt.Errorf("generating %s comment: %w", category, err)
	}

	body := strings.TrimSpace(out.Message)
	if body == "" {
		return "", fmt.Errorf("generating %s comment: model returned an empty message", category)
	}

	slog.DebugContext(ctx, "llm comment generated",
		"category", category,
		"model", g.client.Model(),
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens)

	return body, nil
}

func buildPrompt(category model.MessageCategory, recipient string, vars map[string]any) string {
	intent, ok := categoryIntent[category]
	if !ok {
		intent = categoryIntent[model.CategoryGeneric]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Scenario: %s\n", category)
	fmt.Fprintf(&b, "Intent: %s\n", intent)
	fmt.Fprintf(&b, "Recipient: %s\n", recipient)

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, vars[k])
	}
	return b.String()
}
