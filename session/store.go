package session

import (
	"context"
	"errors"
	"sync"
)

// ErrConversationNotFound is returned by Get for unknown identifiers.
var ErrConversationNotFound = errors.New("conversation not found")

// Store is the external persistence collaborator. The core hands finished
// conversations to it and never reads them back for its own logic.
type Store interface {
	// Save persists a snapshot of the conversation.
	Save(ctx context.Context, conv *Conversation) error
	// Get retrieves a previously saved conversation snapshot.
	Get(ctx context.Context, id string) (*Conversation, error)
}

// InMemoryStore is a volatile Store implementation keeping conversations in a
// process-local map. Safe for concurrent access; best suited for tests and
// ephemeral demo setups. Every stored and returned conversation is cloned to
// prevent external mutation of internal state.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{conversations: make(map[string]*Conversation)}
}

// Save implements Store.
func (s *InMemoryStore) Save(_ context.Context, conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conv.ID()] = conv.Clone()
	return nil
}

// Get implements Store.
func (s *InMemoryStore) Get(_ context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return conv.Clone(), nil
}

// Len returns the number of stored conversations.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}
