package llm

import (
	"context"
	"fmt"
)

// MockProvider provides a simple scripted implementation for testing and
// development.
type MockProvider struct {
	available bool
	response  string
	err       error

	// LastPrompt records the most recent prompt for assertions.
	LastPrompt string
	// Calls counts completion attempts.
	Calls int
}

// NewMockProvider creates a mock provider that answers every completion
// with the given response.
func NewMockProvider(response string) *MockProvider {
	return &MockProvider{available: true, response: response}
}

// Fail makes every subsequent completion attempt return err.
func (m *MockProvider) Fail(err error) {
	m.err = err
}

// SetAvailable toggles the provider's availability.
func (m *MockProvider) SetAvailable(available bool) {
	m.available = available
}

// IsAvailable returns whether the mock provider is available
func (m *MockProvider) IsAvailable() bool {
	return m.available
}

// Complete returns the scripted response or error.
func (m *MockProvider) Complete(ctx context.Context, system, prompt string, options CompletionOptions) (string, error) {
	m.Calls++
	m.LastPrompt = prompt

	if !m.available {
		return "", fmt.Errorf("mock provider is not available")
	}
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}
