// Package stats keeps short in-memory histories for the daemon's API: recent
// log lines and the results of recent coordinator commands.
package stats

import "sync"

// Ring is a fixed-size buffer that overwrites its oldest entry once full.
type Ring[T any] struct {
	mu    sync.RWMutex
	items []T
	pos   int
	size  int
	full  bool
}

func NewRing[T any](size int) *Ring[T] {
	if size < 1 {
		size = 1
	}
	return &Ring[T]{
		items: make([]T, size),
		size:  size,
	}
}

func (r *Ring[T]) Add(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[r.pos] = v
	r.pos = (r.pos + 1) % r.size
	if r.pos == 0 {
		r.full = true
	}
}

// All returns the entries oldest first.
func (r *Ring[T]) All() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []T
	if r.full {
		result = make([]T, r.size)
		copy(result, r.items[r.pos:])
		copy(result[r.size-r.pos:], r.items[:r.pos])
	} else {
		result = make([]T, r.pos)
		copy(result, r.items[:r.pos])
	}
	return result
}

func (r *Ring[T]) Recent(n int) []T {
	all := r.All()
	if n < 0 || len(all) <= n {
		return all
	}
	return all[len(all)-n:]
}

func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return r.size
	}
	return r.pos
}

func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make([]T, r.size)
	r.pos = 0
	r.full = false
}
