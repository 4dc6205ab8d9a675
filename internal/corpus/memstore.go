package corpus

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
)

// MemStore is an in-memory [Store]. It backs local runs seeded from a YAML
// file and is the standard test double for the verification engine.
// All methods are safe for concurrent use.
type MemStore struct {
	mu    sync.RWMutex
	poems []Poem
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates a [MemStore] holding the given poems. The slice is
// copied, so later mutation of the argument does not affect the store.
func NewMemStore(poems []Poem) *MemStore {
	p := make([]Poem, len(poems))
	copy(p, poems)
	return &MemStore{poems: p}
}

// Add appends poems to the store.
func (s *MemStore) Add(poems ...Poem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.poems = append(s.poems, poems...)
}

// Len returns the number of poems held.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.poems)
}

// FindByContent implements [Store].
func (s *MemStore) FindByContent(_ context.Context, substring string) (*Poem, error) {
	if substring == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.poems {
		if strings.Contains(s.poems[i].Content, substring) {
			p := s.poems[i]
			return &p, nil
		}
	}
	return nil, nil
}

// FindByCharacter implements [Store].
func (s *MemStore) FindByCharacter(_ context.Context, char string, limit int) ([]Poem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Poem
	for i := range s.poems {
		if limit > 0 && len(out) >= limit {
			break
		}
		if strings.Contains(s.poems[i].Content, char) {
			out = append(out, s.poems[i])
		}
	}
	return out, nil
}

// FindByAuthor implements [Store].
func (s *MemStore) FindByAuthor(_ context.Context, author string, limit int) ([]Poem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Poem
	for i := range s.poems {
		if limit > 0 && len(out) >= limit {
			break
		}
		if strings.Contains(s.poems[i].Author, author) {
			out = append(out, s.poems[i])
		}
	}
	return out, nil
}

// RandomPoems implements [Store].
func (s *MemStore) RandomPoems(_ context.Context, limit int) ([]Poem, error) {
	s.mu.RLock()
	shuffled := make([]Poem, len(s.poems))
	copy(shuffled, s.poems)
	s.mu.RUnlock()

	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if limit > 0 && len(shuffled) > limit {
		shuffled = shuffled[:limit]
	}
	return shuffled, nil
}
