package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/emotibot/core"
)

// Options configures an InMemoryStore.
type Options struct {
	// HistoryLimit is the number of turns kept after every update.
	HistoryLimit int
	// NewID generates conversation ids.
	NewID func() string
	// Now is the clock used for timestamps.
	Now func() time.Time
}

// entry guards one conversation. lock is a one-slot semaphore so waiting for
// it can be abandoned when the caller's context ends.
type entry struct {
	lock chan struct{}
	conv *core.Conversation
}

// InMemoryStore is a volatile ConversationStore keyed by conversation id.
// Read-modify-write cycles are serialized per id; the store-wide mutex only
// guards the map. Conversations are cloned on the way in and out.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
	opts    Options
}

var _ core.ConversationStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory conversation store.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{
		HistoryLimit: core.DefaultHistoryLimit,
		NewID:        core.NewID,
		Now:          time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = core.DefaultHistoryLimit
	}
	if opts.NewID == nil {
		opts.NewID = core.NewID
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &InMemoryStore{entries: make(map[string]*entry), opts: opts}
}

// GetOrCreate returns a clone of the conversation for id. An empty or
// unknown id creates a new conversation under a fresh id.
func (s *InMemoryStore) GetOrCreate(ctx context.Context, id string) (*core.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e, _ := s.entryFor(id)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return e.conv.Clone(), nil
}

// Get returns a clone of an existing conversation.
func (s *InMemoryStore) Get(ctx context.Context, id string) (*core.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrConversationNotFound, id)
	}
	return e.conv.Clone(), nil
}

// Update runs fn on a working copy of the conversation for id, creating it
// under a fresh id when id is empty or unknown. Concurrent updates of the same
// id run one after another. When fn succeeds the copy is trimmed to the
// history limit, its mood clamped and it replaces the stored state; when fn
// fails nothing is committed.
func (s *InMemoryStore) Update(ctx context.Context, id string, fn func(c *core.Conversation) error) (*core.Conversation, error) {
	e, created := s.entryFor(id)

	select {
	case e.lock <- struct{}{}:
	case <-ctx.Done():
		s.discard(e, created)
		return nil, ctx.Err()
	}
	defer func() { <-e.lock }()

	s.mu.RLock()
	working := e.conv.Clone()
	s.mu.RUnlock()

	if err := fn(working); err != nil {
		s.discard(e, created)
		return nil, err
	}

	working.TrimTo(s.opts.HistoryLimit)
	working.Mood = working.Mood.Clamped()
	working.Updated = s.opts.Now()

	s.mu.Lock()
	e.conv = working
	s.mu.Unlock()

	return working.Clone(), nil
}

// Len returns the number of stored conversations.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// entryFor returns the entry for id, creating one under a fresh id when id
// is empty or unknown.
func (s *InMemoryStore) entryFor(id string) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok && id != "" {
		return e, false
	}

	newID := s.opts.NewID()
	for {
		if _, taken := s.entries[newID]; !taken && newID != "" {
			break
		}
		newID = s.opts.NewID()
	}

	conv := core.NewConversation(newID)
	conv.Created = s.opts.Now()
	conv.Updated = conv.Created

	e := &entry{lock: make(chan struct{}, 1), conv: conv}
	s.entries[newID] = e
	return e, true
}

// discard drops an entry created for an update that never committed. Nobody
// else can know its id yet.
func (s *InMemoryStore) discard(e *entry, created bool) {
	if !created {
		return
	}
	s.mu.Lock()
	delete(s.entries, e.conv.ID)
	s.mu.Unlock()
}
