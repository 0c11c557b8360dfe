package core

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrConversationNotFound is returned when a conversation id is unknown to the store.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrModelUnavailable is reported when no language model is configured.
	ErrModelUnavailable = errors.New("language model unavailable")

	// ErrEmptyMessage is returned when a chat turn carries no text.
	ErrEmptyMessage = errors.New("message is empty")
)

// NewID generates a new unique conversation identifier (UUIDv4).
func NewID() string { return uuid.NewString() }

// Assessment is the outcome of an impact classification. On failure Impact is
// the zero vector and Err describes why; callers never need to special-case it.
type Assessment struct {
	Impact ImpactVector
	Err    error
}

// OK reports whether the classifier produced a genuine assessment.
func (a Assessment) OK() bool { return a.Err == nil }

// ImpactClassifier estimates the emotional impact of a user message.
type ImpactClassifier interface {
	Assess(ctx context.Context, message string, prior MoodVector) Assessment
}

// Reply is the outcome of a response composition. Text is always displayable;
// Fallback marks a canned text used because the model failed or is missing.
type Reply struct {
	Text     string
	Fallback bool
	Err      error
}

// ResponseComposer produces the assistant's reply for the current mood.
type ResponseComposer interface {
	Compose(ctx context.Context, history []Turn, mood MoodVector) Reply
}
