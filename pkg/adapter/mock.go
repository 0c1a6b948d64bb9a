package adapter

import (
	"context"
	"sync"
)

// MockReply is one scripted outcome for MockAdapter.
type MockReply struct {
	Text string
	Err  error
}

// MockAdapter returns scripted replies for local runs and tests. Replies are
// consumed in order; once exhausted the default response is returned.
type MockAdapter struct {
	name            string
	defaultResponse string
	Usage           *Usage

	mu      sync.Mutex
	replies []MockReply
	calls   []*Request
}

// NewMockAdapter creates a mock adapter with a default response.
func NewMockAdapter(name string) *MockAdapter {
	if name == "" {
		name = "mock"
	}
	return &MockAdapter{
		name:            name,
		defaultResponse: `{}`,
	}
}

// NewMockAdapterWithReplies creates a mock adapter with scripted replies.
func NewMockAdapterWithReplies(name string, replies ...MockReply) *MockAdapter {
	m := NewMockAdapter(name)
	m.replies = append(m.replies, replies...)
	return m
}

// WithDefault sets the reply used after the script runs out.
func (a *MockAdapter) WithDefault(text string) *MockAdapter {
	a.defaultResponse = text
	return a
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return a.name
}

// Models returns the list of supported mock models.
func (a *MockAdapter) Models() []string {
	return []string{"mock-1"}
}

// Invoke records the request and returns the next scripted reply.
func (a *MockAdapter) Invoke(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.calls = append(a.calls, req)
	reply := MockReply{Text: a.defaultResponse}
	if len(a.replies) > 0 {
		reply = a.replies[0]
		a.replies = a.replies[1:]
	}
	a.mu.Unlock()

	if reply.Err != nil {
		return nil, reply.Err
	}
	model := req.Model
	if model == "" {
		model = "mock-1"
	}
	return newResponse(a.name, model, reply.Text, a.Usage), nil
}

// Calls returns the requests received so far.
func (a *MockAdapter) Calls() []*Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*Request(nil), a.calls...)
}
