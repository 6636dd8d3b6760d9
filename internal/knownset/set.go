// Package knownset tracks which catalog items have already been announced.
//
// A Set is an identity-keyed, insertion-ordered map guarded for concurrent
// use. A Store persists one Set as a JSON array snapshot through a
// catalog.BlobStore, rewriting the whole snapshot after each mutation.
package knownset

import (
	"slices"
	"sync"
)

// Keyed is implemented by every entity a Set can hold.
type Keyed interface {
	Key() string
}

// DiffNew returns the candidates whose key is not reported by contains, in
// candidate order. A key repeated within candidates is returned once.
func DiffNew[T Keyed](candidates []T, contains func(key string) bool) []T {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]T, 0, len(candidates))
	for _, c := range candidates {
		key := c.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if contains(key) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Set is a concurrency-safe identity map.
type Set[T Keyed] struct {
	mu    sync.RWMutex
	items map[string]T
	order []string
}

// New returns an empty Set.
func New[T Keyed]() *Set[T] {
	return &Set[T]{items: make(map[string]T)}
}

// Contains reports whether key is known.
func (s *Set[T]) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[key]
	return ok
}

// Get returns the item stored under key.
func (s *Set[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[key]
	return item, ok
}

// Len returns the number of known items.
func (s *Set[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// DiffNew returns the candidates not yet in the set.
func (s *Set[T]) DiffNew(candidates []T) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return DiffNew(candidates, func(key string) bool {
		_, ok := s.items[key]
		return ok
	})
}

// UpsertAll inserts or replaces items by key and returns how many keys were new.
// Replaced items keep their original position.
func (s *Set[T]) UpsertAll(items []T) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(items)
}

func (s *Set[T]) upsertLocked(items []T) int {
	added := 0
	for _, item := range items {
		key := item.Key()
		if _, ok := s.items[key]; !ok {
			s.order = append(s.order, key)
			added++
		}
		s.items[key] = item
	}
	return added
}

// RemoveFunc drops every item for which drop returns true and returns the count.
func (s *Set[T]) RemoveFunc(drop func(T) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	s.order = slices.DeleteFunc(s.order, func(key string) bool {
		if drop(s.items[key]) {
			delete(s.items, key)
			removed++
			return true
		}
		return false
	})
	return removed
}

// Replace swaps the contents for items.
func (s *Set[T]) Replace(items []T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T, len(items))
	s.order = nil
	s.upsertLocked(items)
}

// All returns every item in insertion order.
func (s *Set[T]) All() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.items[key])
	}
	return out
}
