package textgen

import (
	"fmt"

	"basegraph.app/pulse/common/llm"
	"basegraph.app/pulse/core/config"
	"basegraph.app/pulse/internal/monitor"
)

// New builds the generator selected by cfg.Provider.
func New(cfg config.TextGenConfig, botName string, r monitor.Rand) (monitor.TextGenerator, error) {
	switch cfg.Provider {
	case config.TextGenTemplate, "":
		return NewTemplateGenerator(r), nil
	case config.TextGenLLM:
		client, err := llm.New(llm.Config{
			Provider: cfg.LLM.Provider,
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
			Model:    cfg.LLM.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("creating llm client: %w", err)
		}
		return NewLLMGenerator(client, botName, cfg.LLM.MaxTokens), nil
	default:
		return nil, fmt.Errorf("unknown text generator provider %q", cfg.Provider)
	}
}
