package mock

import (
	"context"
	"sync"
)

// MockChatModel is a test double for ai.ChatModel.
type MockChatModel struct {
	// GenerateFunc is called by Generate if set.
	// If nil, Generate returns Answer.
	GenerateFunc func(ctx context.Context, prompt string) (string, error)

	// Answer is the default reply.
	Answer string

	mu      sync.Mutex
	prompts []string
}

// NewMockChatModel creates a chat model that always answers with answer.
func NewMockChatModel(answer string) *MockChatModel {
	return &MockChatModel{Answer: answer}
}

// Generate records prompt and returns the configured reply.
func (m *MockChatModel) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt)
	}
	return m.Answer, nil
}

// Prompts returns every prompt received, in order.
func (m *MockChatModel) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// CallCount returns the number of Generate calls.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Reset clears recorded prompts and injected behavior.
func (m *MockChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = nil
	m.GenerateFunc = nil
}
