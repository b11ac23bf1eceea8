package mocks

import (
	"context"
	"fmt"
	"sync"

	"assistant/pkg/upstream/llm"
)

// MockLLMClient provides a controllable implementation of llm.Client for testing.
// Call n returns errors[n] when it is non-nil, otherwise the next unused response.
type MockLLMClient struct {
	responses     []llm.CompletionResponse
	errors        []error
	requests      []llm.CompletionRequest
	model         string
	responseIndex int
	mu            sync.Mutex
}

// NewMockLLMClient creates a new mock client with predefined responses.
func NewMockLLMClient(responses []llm.CompletionResponse, errors []error) *MockLLMClient {
	return &MockLLMClient{
		responses: responses,
		errors:    errors,
		model:     "mock-model",
	}
}

// NewMockLLMClientWithText is a shorthand for clients that always answer with the given texts.
func NewMockLLMClientWithText(texts ...string) *MockLLMClient {
	responses := make([]llm.CompletionResponse, len(texts))
	for i, text := range texts {
		responses[i] = llm.CompletionResponse{Content: text, StopReason: "end_turn"}
	}
	return NewMockLLMClient(responses, nil)
}

// Complete returns the next predefined response or error.
func (m *MockLLMClient) Complete(_ context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := len(m.requests)
	m.requests = append(m.requests, in)

	if call < len(m.errors) && m.errors[call] != nil {
		return llm.CompletionResponse{}, m.errors[call]
	}

	if m.responseIndex >= len(m.responses) {
		return llm.CompletionResponse{}, fmt.Errorf("mock client: no more responses")
	}

	resp := m.responses[m.responseIndex]
	m.responseIndex++
	return resp, nil
}

// GetModelName returns the mock model name.
func (m *MockLLMClient) GetModelName() string {
	return m.model
}

// Calls reports how many times Complete was invoked.
func (m *MockLLMClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, or a zero value.
func (m *MockLLMClient) LastRequest() llm.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return llm.CompletionRequest{}
	}
	return m.requests[len(m.requests)-1]
}
