package participant

import (
	"sync"

	"github.com/tidwall/btree"
)

// Store is the participant's committed key/value state. Staged writes only
// land here after the coordinator's commit request.
type Store struct {
	mu   sync.RWMutex
	data btree.Map[string, string]
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Apply writes the ops into the committed state.
func (s *Store) Apply(ops []Op) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range ops {
		s.data.Set(op.Key, op.Value)
	}
}

// Get returns the committed value for the key, and whether it exists.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Get(key)
}

// Len returns the number of committed keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Len()
}

// Items returns the committed state in key order.
func (s *Store) Items() []Op {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Op, 0, s.data.Len())
	iter := s.data.Iter()
	for ok := iter.First(); ok; ok = iter.Next() {
		out = append(out, Op{Key: iter.Key(), Value: iter.Value()})
	}
	return out
}
