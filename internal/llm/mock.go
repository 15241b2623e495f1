package llm

import (
	"context"
	"errors"
	"sync"
)

// ErrMockExhausted is returned when a MockClient runs out of scripted replies.
var ErrMockExhausted = errors.New("mock client has no scripted responses left")

// MockClient is a scripted Client for tests. Handler, when set, answers
// every call. Otherwise Responses are returned in order.
type MockClient struct {
	Handler   func(ctx context.Context, req Request) (Response, error)
	Responses []Response
	calls     []Request
	mu        sync.Mutex
}

// NewMockClient scripts the given text replies.
func NewMockClient(texts ...string) *MockClient {
	m := &MockClient{}
	for _, text := range texts {
		m.Responses = append(m.Responses, Response{Text: text})
	}
	return m
}

// Generate records req and returns the next scripted reply.
func (m *MockClient) Generate(ctx context.Context, req Request) (Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	handler := m.Handler
	if handler == nil {
		defer m.mu.Unlock()
		if len(m.Responses) == 0 {
			return Response{}, ErrMockExhausted
		}
		resp := m.Responses[0]
		m.Responses = m.Responses[1:]
		return resp, nil
	}
	m.mu.Unlock()

	return handler(ctx, req)
}

// Calls returns a copy of every request seen so far.
func (m *MockClient) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}
