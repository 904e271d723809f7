// Package pool keeps entities created during a run so later operations can
// reference them.
package pool

import "sync"

// Pool is a bounded set of values. Once full, the oldest value is replaced.
//
// Thread Safety: Safe for concurrent use.
type Pool[T any] struct {
	mu    sync.RWMutex
	items []T
	next  int
	full  bool
}

// New creates a pool holding at most capacity values.
func New[T any](capacity int) *Pool[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Pool[T]{items: make([]T, capacity)}
}

// Add stores v, evicting the oldest value when the pool is full.
func (p *Pool[T]) Add(v T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items[p.next] = v
	p.next++
	if p.next == len(p.items) {
		p.next = 0
		p.full = true
	}
}

// Len returns the number of stored values.
func (p *Pool[T]) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.len()
}

func (p *Pool[T]) len() int {
	if p.full {
		return len(p.items)
	}
	return p.next
}

// Pick returns the value at index intn(Len()). It reports false when the
// pool is empty.
func (p *Pool[T]) Pick(intn func(int) int) (T, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var zero T
	n := p.len()
	if n == 0 {
		return zero, false
	}
	return p.items[intn(n)], true
}

// Remove drops every value matching fn and returns how many were removed.
func (p *Pool[T]) Remove(fn func(T) bool) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := p.len()
	kept := make([]T, 0, n)
	for i := 0; i < n; i++ {
		if !fn(p.items[i]) {
			kept = append(kept, p.items[i])
		}
	}
	removed := n - len(kept)
	if removed == 0 {
		return 0
	}
	var zero T
	for i := range p.items {
		p.items[i] = zero
	}
	copy(p.items, kept)
	p.next = len(kept)
	p.full = false
	if p.next == len(p.items) {
		p.next, p.full = 0, true
	}
	return removed
}
