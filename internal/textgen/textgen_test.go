package textgen_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/pulse/common/llm"
	"basegraph.app/pulse/core/config"
	"basegraph.app/pulse/internal/model"
	"basegraph.app/pulse/internal/monitor"
	"basegraph.app/pulse/internal/textgen"
)

type fixedRand struct{ n int }

func (f fixedRand) Float64() float64 { return 0 }
func (f fixedRand) IntN(n int) int   { return f.n % n }

type mockLLMClient struct {
	chatFn   func(ctx context.Context, req llm.Request, result any) (*llm.Response, error)
	requests []llm.Request
}

func (m *mockLLMClient) Chat(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
	m.requests = append(m.requests, req)
	return m.chatFn(ctx, req, result)
}

func (m *mockLLMClient) Model() string { return "mock-model" }

func replyWith(message string) func(context.Context, llm.Request, any) (*llm.Response, error) {
	return func(_ context.Context, _ llm.Request, result any) (*llm.Response, error) {
		data, _ := json.Marshal(map[string]string{"message": message})
		return &llm.Response{PromptTokens: 10, CompletionTokens: 5}, json.Unmarshal(data, result)
	}
}

var _ = Describe("TemplateGenerator", func() {
	ctx := context.Background()
	vars := map[string]any{
		monitor.VarDaysLate:  7,
		monitor.VarTaskTitle: "Ship login",
		monitor.VarDueAt:     "2026-03-04",
		monitor.VarRecipient: "ignored",
	}

	It("substitutes the recipient and days late", func() {
		gen := textgen.NewTemplateGenerator(fixedRand{n: 0})

		body, err := gen.Generate(ctx, model.CategoryConcern, "Alice", vars)
		Expect(err).NotTo(HaveOccurred())
		Expect(body).To(Equal(`Hi Alice, "Ship login" is 7 days past due. Is there anything getting in the way?`))
	})

	It("picks the variant with the random source", func() {
		gen := textgen.NewTemplateGenerator(fixedRand{n: 1})

		body, err := gen.Generate(ctx, model.CategoryUrgent, "Bob", vars)
		Expect(err).NotTo(HaveOccurred())
		Expect(body).To(Equal("Urgent: Bob, this task is 7 days late. Please post a status update."))
	})

	It("leaves no placeholders in any default phrasing", func() {
		categories := []model.MessageCategory{
			model.CategoryCelebration, model.CategoryFollowUpIssue, model.CategoryFollowUpProgress,
			model.CategoryFollowUpGeneric, model.CategoryStatusRequestCompletion, model.CategoryTestingCheck,
			model.CategoryAssistanceOffer, model.CategoryProgressCheck, model.CategoryGentleReminder,
			model.CategoryConcern, model.CategoryUrgent, model.CategoryGeneric,
		}
		for _, c := range categories {
			for i := range 3 {
				body, err := textgen.NewTemplateGenerator(fixedRand{n: i}).Generate(ctx, c, "Alice", vars)
				Expect(err).NotTo(HaveOccurred())
				Expect(body).To(ContainSubstring("Alice"), string(c))
				Expect(body).NotTo(MatchRegexp(`\{[a-z_]+\}`), string(c))
			}
		}
	})

	It("falls back to generic phrasings", func() {
		gen := textgen.NewTemplateGenerator(fixedRand{}).WithBank(map[model.MessageCategory][]string{
			model.CategoryGeneric: {"hello {recipient}"},
		})

		body, err := gen.Generate(ctx, model.CategoryUrgent, "Carol", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(body).To(Equal("hello Carol"))
	})

	It("errors on an empty bank", func() {
		gen := textgen.NewTemplateGenerator(fixedRand{}).WithBank(nil)

		_, err := gen.Generate(ctx, model.CategoryUrgent, "Carol", nil)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("LLMGenerator", func() {
	ctx := context.Background()

	It("returns the trimmed model message", func() {
		client := &mockLLMClient{chatFn: replyWith("  Great work, Bob!  ")}
		gen := textgen.NewLLMGenerator(client, "Pulse Bot", 300)

		body, err := gen.Generate(ctx, model.CategoryCelebration, "Bob", map[string]any{monitor.VarTaskTitle: "Fix CI"})
		Expect(err).NotTo(HaveOccurred())
		Expect(body).To(Equal("Great work, Bob!"))

		Expect(client.requests).To(HaveLen(1))
		req := client.requests[0]
		Expect(req.UserPrompt).To(ContainSubstring("Scenario: celebration"))
		Expect(req.UserPrompt).To(ContainSubstring("Recipient: Bob"))
		Expect(req.UserPrompt).To(ContainSubstring("task_title: Fix CI"))
		Expect(req.UserName).To(Equal("Pulse Bot"))
		Expect(req.MaxTokens).To(Equal(300))
		Expect(req.Schema).NotTo(BeNil())
	})

	It("rejects empty replies", func() {
		gen := textgen.NewLLMGenerator(&mockLLMClient{chatFn: replyWith("   ")}, "Pulse Bot", 300)

		_, err := gen.Generate(ctx, model.CategoryGeneric, "Bob", nil)
		Expect(err).To(MatchError(ContainSubstring("empty message")))
	})

	It("wraps client failures", func() {
		boom := errors.New("rate limited")
		gen := textgen.NewLLMGenerator(&mockLLMClient{chatFn: func(context.Context, llm.Request, any) (*llm.Response, error) {
			return nil, boom
		}}, "Pulse Bot", 300)

		_, err := gen.Generate(ctx, model.CategoryGeneric, "Bob", nil)
		Expect(err).To(MatchError(boom))
	})
})

var _ = Describe("New", func() {
	It("builds the template generator by default", func() {
		gen, err := textgen.New(config.TextGenConfig{Provider: config.TextGenTemplate}, "Pulse Bot", fixedRand{})
		Expect(err).NotTo(HaveOccurred())
		Expect(gen).To(BeAssignableToTypeOf(&textgen.TemplateGenerator{}))
	})

	It("builds the llm generator", func() {
		gen, err := textgen.New(config.TextGenConfig{
			Provider: config.TextGenLLM,
			LLM:      config.LLMConfig{Provider: "openai", APIKey: "k", MaxTokens: 100},
		}, "Pulse Bot", fixedRand{})
		Expect(err).NotTo(HaveOccurred())
		Expect(gen).To(BeAssignableToTypeOf(&textgen.LLMGenerator{}))
	})

	It("rejects unknown providers", func() {
		_, err := textgen.New(config.TextGenConfig{Provider: "markov"}, "Pulse Bot", fixedRand{})
		Expect(err).To(HaveOccurred())
	})
})
