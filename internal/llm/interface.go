// Package llm abstracts the chat-completion providers used to narrate the
// daily digest.
package llm

import (
	"context"
	"fmt"

	"github.com/newthinker/radar/internal/core"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultMaxTokens applies when a request leaves MaxTokens unset.
const DefaultMaxTokens = 1024

// Provider defines the interface for LLM providers
type Provider interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest holds the request parameters
type ChatRequest struct {
	SystemPrompt string
	Messages     []Message
	MaxTokens    int
	Temperature  float64
	JSONMode     bool
}

// Message represents a chat message
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// ChatResponse holds the response from the LLM
type ChatResponse struct {
	Content      string
	Usage        Usage
	FinishReason string
}

// Usage tracks token consumption
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// TokenBudget returns the request budget or the default.
func (r ChatRequest) TokenBudget() int {
	if r.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return r.MaxTokens
}

// Failed wraps a provider error as core.ErrLLMFailed.
func Failed(provider string, err error) error {
	return core.WrapError(core.ErrLLMFailed, fmt.Errorf("%s: %w", provider, err))
}
