package inference

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockInferenceService answers without a model. It backs the "mock" backend
// for local development and records requests for tests.
type MockInferenceService struct {
	mu        sync.RWMutex
	response  string
	err       error
	available bool
	requests  []GenerateRequest
}

// NewMockInferenceService creates a mock that always answers response.
// An empty response echoes the last prompt line instead.
func NewMockInferenceService(response string) *MockInferenceService {
	return &MockInferenceService{
		response:  response,
		available: true,
	}
}

// Generate returns the canned response
func (m *MockInferenceService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)

	if !m.available {
		return nil, fmt.Errorf("mock inference service not available")
	}
	if m.err != nil {
		return nil, m.err
	}

	text := m.response
	if text == "" {
		text = "Mock answer to: " + lastLine(req.Prompt)
	}

	return &GenerateResponse{
		Text:         text,
		FinishReason: "stop",
		Usage: Usage{
			PromptTokens:     len(strings.Fields(req.Prompt)),
			CompletionTokens: len(strings.Fields(text)),
			TotalTokens:      len(strings.Fields(req.Prompt)) + len(strings.Fields(text)),
		},
	}, nil
}

// Available returns whether the service is available
func (m *MockInferenceService) Available() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.available
}

// SetAvailable sets the availability status
func (m *MockInferenceService) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
}

// SetError makes subsequent Generate calls fail with err
func (m *MockInferenceService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Requests returns the requests received so far
func (m *MockInferenceService) Requests() []GenerateRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]GenerateRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
