package model

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/emotibot/core"
)

// ErrNoMessages is returned when a request carries no turns.
var ErrNoMessages = errors.New("model: request has no messages")

// Request captures the normalized model input.
type Request struct {
	Instructions string      `json:"instructions"` // System prompt
	Messages     []core.Turn `json:"messages"`     // Ordered chat history, last turn is the prompt
	MaxTokens    int64       `json:"max_tokens,omitempty"`
	Temperature  *float64    `json:"temperature,omitempty"`
}

// LastUserText returns the content of the most recent user turn.
func (r Request) LastUserText() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == core.RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Response is the single reply of a model call.
type Response struct {
	ID           string      `json:"id"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", ...
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock"
}

// Model is the minimal interface required to generate a reply.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// Float returns a pointer to v, for Request.Temperature.
func Float(v float64) *float64 { return &v }

// MockModel is a lightweight in-memory Model useful for tests and examples.
// It is safe for concurrent use.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	respond   func(req Request) (string, error)
	err       error
	requests  []Request
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
	}
}

// AddResponse registers a canned reply for a user prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// SetResponder installs a function computing replies. It takes precedence
// over canned responses.
func (m *MockModel) SetResponder(fn func(req Request) (string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.respond = fn
}

// SetError makes every subsequent call fail with err (nil clears it).
func (m *MockModel) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the number of Generate calls so far.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of all recorded requests.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// LastRequest returns the most recent request, if any.
func (m *MockModel) LastRequest() (Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return Request{}, false
	}
	return m.requests[len(m.requests)-1], true
}

// Generate implements Model. Without a canned reply it answers
// "Mock response to: <last user text>".
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	req.Messages = append([]core.Turn(nil), req.Messages...)
	m.requests = append(m.requests, req)
	respond, err := m.respond, m.err
	canned, ok := m.responses[req.LastUserText()]
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if len(req.Messages) == 0 {
		return nil, ErrNoMessages
	}

	var text string
	switch {
	case respond != nil:
		t, err := respond(req)
		if err != nil {
			return nil, err
		}
		text = t
	case ok:
		text = canned
	default:
		text = fmt.Sprintf("Mock response to: %s", req.LastUserText())
	}

	return &Response{ID: core.NewID(), Text: text, FinishReason: "stop"}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
