package core

import (
	"context"
	"time"
)

// Role tags the author of a chat turn.
type Role string

const (
	// RoleUser marks a turn written by the human.
	RoleUser Role = "user"
	// RoleAssistant marks a turn produced by the bot.
	RoleAssistant Role = "assistant"
)

// DefaultHistoryLimit is the number of most recent turns a conversation keeps.
const DefaultHistoryLimit = 10

// Turn is one chat message in a conversation history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is the per-conversation state: a trimmed turn history plus the
// current mood. It carries no lock of its own; the owning store serializes
// access per id and only ever hands out clones.
type Conversation struct {
	ID      string     `json:"id"`
	Turns   []Turn     `json:"turns"`
	Mood    MoodVector `json:"mood"`
	Created time.Time  `json:"created"`
	Updated time.Time  `json:"updated"`
}

// NewConversation creates a conversation with neutral mood and empty history.
func NewConversation(id string) *Conversation {
	now := time.Now()
	return &Conversation{ID: id, Turns: []Turn{}, Mood: NeutralMood(), Created: now, Updated: now}
}

// AppendTurn adds a turn to the end of the history.
func (c *Conversation) AppendTurn(role Role, content string) {
	c.Turns = append(c.Turns, Turn{Role: role, Content: content})
}

// TrimTo keeps only the last n turns, preserving their relative order.
// n <= 0 leaves the history untouched.
func (c *Conversation) TrimTo(n int) {
	if n <= 0 || len(c.Turns) <= n {
		return
	}
	kept := make([]Turn, n)
	copy(kept, c.Turns[len(c.Turns)-n:])
	c.Turns = kept
}

// History returns a copy of the turn history.
func (c *Conversation) History() []Turn {
	h := make([]Turn, len(c.Turns))
	copy(h, c.Turns)
	return h
}

// Clone returns a deep copy safe for independent mutation.
func (c *Conversation) Clone() *Conversation {
	clone := *c
	clone.Turns = c.History()
	return &clone
}

// ConversationStore owns all conversation records.
//
// Contract:
//   - An empty or unknown id always yields a freshly generated id
//   - Update serializes read-modify-write per id and commits only when fn succeeds
//   - Returned conversations are clones; mutating them never affects the store
type ConversationStore interface {
	GetOrCreate(ctx context.Context, id string) (*Conversation, error)
	Get(ctx context.Context, id string) (*Conversation, error)
	Update(ctx context.Context, id string, fn func(c *Conversation) error) (*Conversation, error)
	Len() int
}
