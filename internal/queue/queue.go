// Package queue is a small thread-safe FIFO of distinct items with an
// optional length limit. Autosave keeps each project's snapshot keys in one,
// oldest first.
package queue

import (
	"slices"
	"sync"
)

type Queue[T comparable] struct {
	mu    sync.Mutex
	limit int
	items []T
}

// New returns an empty queue holding at most limit items. A limit of zero or
// less leaves it unbounded.
func New[T comparable](limit int) *Queue[T] {
	return &Queue[T]{limit: limit}
}

// Push appends item unless it is already queued. Items pushed out by the
// limit are returned oldest first so the caller can release them.
func (q *Queue[T]) Push(item T) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if slices.Contains(q.items, item) {
		return nil
	}
	q.items = append(q.items, item)
	if q.limit <= 0 || len(q.items) <= q.limit {
		return nil
	}
	n := len(q.items) - q.limit
	dropped := slices.Clone(q.items[:n])
	q.items = slices.Delete(q.items, 0, n)
	return dropped
}

// Oldest returns the head of the queue.
func (q *Queue[T]) Oldest() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	return q.items[0], true
}

// Newest returns the tail of the queue.
func (q *Queue[T]) Newest() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	return q.items[len(q.items)-1], true
}

// Remove reports whether item was queued.
func (q *Queue[T]) Remove(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := slices.Index(q.items, item)
	if i < 0 {
		return false
	}
	q.items = slices.Delete(q.items, i, i+1)
	return true
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Items returns a copy, oldest first.
func (q *Queue[T]) Items() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.items)
}
