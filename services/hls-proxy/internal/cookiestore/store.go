// Package cookiestore keeps the upstream session cookie for each playback
// session so that segment requests replay the cookie the playlist set.
package cookiestore

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const DefaultCapacity = 500

// Store is a bounded key to cookie map. When full, inserting a new key evicts
// the oldest inserted key; updating an existing key keeps its position.
type Store struct {
	mu       sync.Mutex
	capacity int
	entries  *orderedmap.OrderedMap[string, string]
}

func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		entries:  orderedmap.New[string, string](),
	}
}

func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Get(key)
}

func (s *Store) Set(key, cookie string) {
	if key == "" || cookie == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, present := s.entries.Set(key, cookie); present {
		return
	}
	for s.entries.Len() > s.capacity {
		oldest := s.entries.Oldest()
		if oldest == nil {
			break
		}
		s.entries.Delete(oldest.Key)
	}
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Len()
}

func (s *Store) Capacity() int { return s.capacity }
