// Package memory is the bounded, best-effort history tier used for
// unauthenticated traffic and as a fallback when durable storage fails.
package memory

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"
)

const (
	// DefaultCapacity is the number of turns kept per key.
	DefaultCapacity = 100
	// DefaultMaxKeys bounds how many keys are tracked at once.
	DefaultMaxKeys = 1000
)

// AnonymousKey is the pseudo-identity for requests without a user id.
const AnonymousKey = "anonymous"

type history struct {
	mu    sync.Mutex
	turns []*domain.ConversationTurn
}

// Store keeps up to a fixed number of turns per key, evicting the oldest
// first. The key set itself is an LRU so idle keys are dropped once
// maxKeys is exceeded.
type Store struct {
	capacity int
	keys     *lru.Cache[string, *history]
	mu       sync.Mutex
}

// New creates a store. Non-positive arguments take the defaults.
func New(capacity, maxKeys int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	keys, err := lru.New[string, *history](maxKeys)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &Store{capacity: capacity, keys: keys}
}

// Key maps a user id to its store key.
func Key(userID string) string {
	if userID == "" {
		return AnonymousKey
	}
	return userID
}

func (s *Store) history(key string) *history {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.keys.Get(key); ok {
		return h
	}
	return nil
}

// Append stores a copy of turn under key. The store lock is held until the
// turn is in place so a concurrent whole-key Delete cannot drop it.
func (s *Store) Append(key string, turn *domain.ConversationTurn) {
	t := *turn

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.keys.Get(key)
	if !ok {
		h = &history{}
		s.keys.Add(key, h)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = append(h.turns, &t)
	if over := len(h.turns) - s.capacity; over > 0 {
		clear(h.turns[:over])
		h.turns = append(h.turns[:0], h.turns[over:]...)
	}
}

// Recent returns up to limit of the newest turns under key, oldest first.
// A non-positive limit returns everything kept.
func (s *Store) Recent(key string, limit int) []*domain.ConversationTurn {
	h := s.history(key)
	if h == nil {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	start := 0
	if limit > 0 && len(h.turns) > limit {
		start = len(h.turns) - limit
	}
	out := make([]*domain.ConversationTurn, 0, len(h.turns)-start)
	for _, t := range h.turns[start:] {
		c := *t
		out = append(out, &c)
	}
	return out
}

// Delete drops the key's turns, or only those of conversationID when set.
func (s *Store) Delete(key, conversationID string) {
	if conversationID == "" {
		s.mu.Lock()
		s.keys.Remove(key)
		s.mu.Unlock()
		return
	}

	h := s.history(key)
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	kept := h.turns[:0]
	for _, t := range h.turns {
		if t.ConversationID != conversationID {
			kept = append(kept, t)
		}
	}
	clear(h.turns[len(kept):])
	h.turns = kept
}

// Len returns the number of turns under key.
func (s *Store) Len(key string) int {
	h := s.history(key)
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

// Keys returns the number of tracked keys.
func (s *Store) Keys() int {
	return s.keys.Len()
}
