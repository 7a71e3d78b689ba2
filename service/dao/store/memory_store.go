package store

import (
	"context"
	"sync"

	"github.com/viant/agentmesh/service/dao"
)

// Matcher reports whether a record satisfies List parameters.
type Matcher[T any] func(v *T, parameters []*dao.Parameter) bool

// Option customises a MemoryStore.
type Option[K comparable, T any] func(s *MemoryStore[K, T])

// WithMatcher filters List results with fn whenever parameters are supplied.
func WithMatcher[K comparable, T any](fn Matcher[T]) Option[K, T] {
	return func(s *MemoryStore[K, T]) {
		s.matcher = fn
	}
}

// MemoryStore is a generic in-memory implementation of dao.Service.
// It keeps entities of type *T mapped by a key K obtained from keySelector.
type MemoryStore[K comparable, T any] struct {
	mu          sync.RWMutex
	records     map[K]*T
	keySelector func(*T) K
	matcher     Matcher[T]
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore[K comparable, T any](keySelector func(*T) K, options ...Option[K, T]) *MemoryStore[K, T] {
	ret := &MemoryStore[K, T]{
		records:     make(map[K]*T),
		keySelector: keySelector,
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// Save stores or overwrites a record. Records with a zero key are rejected.
func (s *MemoryStore[K, T]) Save(_ context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	key := s.keySelector(v)
	var zero K
	if key == zero {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = v
	return nil
}

// Load returns a record by key, or nil when absent.
func (s *MemoryStore[K, T]) Load(_ context.Context, key K) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[key], nil
}

// Delete removes a record.
func (s *MemoryStore[K, T]) Delete(_ context.Context, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// List returns stored records matching parameters, in no particular order.
func (s *MemoryStore[K, T]) List(_ context.Context, parameters ...*dao.Parameter) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*T, 0, len(s.records))
	for _, v := range s.records {
		if len(parameters) > 0 && s.matcher != nil && !s.matcher(v, parameters) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// Len returns the number of records.
func (s *MemoryStore[K, T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear removes every record.
func (s *MemoryStore[K, T]) Clear() {
	s.mu.Lock()
	s.records = make(map[K]*T)
	s.mu.Unlock()
}

var _ dao.Service[string, struct{}] = (*MemoryStore[string, struct{}])(nil)
