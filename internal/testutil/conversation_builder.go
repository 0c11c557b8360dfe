package testutil

import (
	"strconv"
	"time"

	"github.com/hupe1980/emotibot/core"
)

// ConversationBuilder helps construct conversations with fluent chaining for tests.
// Example:
//
//	conv := NewConversationBuilder("c-1").Mood(m).User("hi").Assistant("hello").Build()
type ConversationBuilder struct {
	id    string
	mood  core.MoodVector
	turns []core.Turn
	at    time.Time
}

// NewConversationBuilder creates a builder for a neutral conversation with the given id.
func NewConversationBuilder(id string) *ConversationBuilder {
	return &ConversationBuilder{id: id, mood: core.NeutralMood()}
}

// Mood sets the conversation mood (chainable).
func (b *ConversationBuilder) Mood(m core.MoodVector) *ConversationBuilder {
	b.mood = m
	return b
}

// User appends a user turn (chainable).
func (b *ConversationBuilder) User(text string) *ConversationBuilder {
	b.turns = append(b.turns, core.Turn{Role: core.RoleUser, Content: text})
	return b
}

// Assistant appends an assistant turn (chainable).
func (b *ConversationBuilder) Assistant(text string) *ConversationBuilder {
	b.turns = append(b.turns, core.Turn{Role: core.RoleAssistant, Content: text})
	return b
}

// Exchanges appends n user/assistant pairs numbered from 1 (chainable).
func (b *ConversationBuilder) Exchanges(n int) *ConversationBuilder {
	for i := 1; i <= n; i++ {
		b.User(Numbered("user", i)).Assistant(Numbered("assistant", i))
	}
	return b
}

// At fixes the created and updated timestamps (chainable).
func (b *ConversationBuilder) At(t time.Time) *ConversationBuilder {
	b.at = t
	return b
}

// Build returns a *core.Conversation with the configured mood and turns.
func (b *ConversationBuilder) Build() *core.Conversation {
	c := core.NewConversation(b.id)
	c.Mood = b.mood
	c.Turns = append(c.Turns, b.turns...)
	if !b.at.IsZero() {
		c.Created, c.Updated = b.at, b.at
	}
	return c
}

// Numbered returns "<prefix> <i>", e.g. "user 3".
func Numbered(prefix string, i int) string {
	return prefix + " " + strconv.Itoa(i)
}
