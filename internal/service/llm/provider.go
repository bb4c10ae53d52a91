// Package llm provides the chat-completion provider used for document
// generation.
package llm

import "context"

// Provider defines the interface for LLM providers (OpenAI-compatible, etc.)
type Provider interface {
	Complete(ctx context.Context, system, prompt string, options CompletionOptions) (string, error)
	IsAvailable() bool
}

// CompletionOptions configures LLM completion requests
type CompletionOptions struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}
