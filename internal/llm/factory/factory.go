// internal/llm/factory/factory.go
package factory

import (
	"fmt"

	"github.com/newthinker/radar/internal/config"
	"github.com/newthinker/radar/internal/core"
	"github.com/newthinker/radar/internal/llm"
	"github.com/newthinker/radar/internal/llm/claude"
	"github.com/newthinker/radar/internal/llm/ollama"
	"github.com/newthinker/radar/internal/llm/openai"
)

// New creates an LLM provider based on configuration. An empty provider
// means the narrative brief is disabled and yields ErrConfigMissing.
func New(cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "claude":
		return claude.New(cfg.Claude.APIKey, cfg.Claude.Model, claude.WithBaseURL(cfg.Claude.BaseURL))
	case "openai":
		return openai.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model, openai.WithBaseURL(cfg.OpenAI.BaseURL))
	case "ollama":
		return ollama.New(cfg.Ollama.Endpoint, cfg.Ollama.Model)
	case "":
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("no LLM provider configured"))
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}
