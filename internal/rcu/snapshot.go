package rcu

import (
	"sync/atomic"
)

// Snapshot holds an immutable value behind an atomic pointer.
// Readers never block; writers publish a fresh copy with Replace.
//
// Used for data that is read on every request and rewritten rarely:
// bot policies and route-class bindings.
type Snapshot[T any] struct {
	ptr atomic.Pointer[T]
}

func NewSnapshot[T any](init *T) *Snapshot[T] {
	s := &Snapshot[T]{}
	s.ptr.Store(init)
	return s
}

// Load returns the current value. Callers must not mutate it.
func (s *Snapshot[T]) Load() *T {
	return s.ptr.Load()
}

// Replace publishes next. next must not be modified after the call.
func (s *Snapshot[T]) Replace(next *T) {
	s.ptr.Store(next)
}

// Swap publishes next and returns the value it replaced.
func (s *Snapshot[T]) Swap(next *T) *T {
	return s.ptr.Swap(next)
}
