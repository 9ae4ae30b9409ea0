// Package notify provides a typed observer bus used to fan session snapshots
// and notices out to renderers.
package notify

import (
	"sort"
	"sync"
)

// Handler receives published values
type Handler[T any] func(T)

// Bus delivers each published value to every current subscriber in
// subscription order, on the publisher's goroutine.
type Bus[T any] struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[uint64]Handler[T]
}

// NewBus creates an empty bus
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{
		handlers: make(map[uint64]Handler[T]),
	}
}

// Subscribe registers handler and returns a function that removes it.
// Calling the returned function more than once is a no-op.
func (b *Bus[T]) Subscribe(handler Handler[T]) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// Publish calls every subscriber with value. Handlers may subscribe or
// unsubscribe while being called.
func (b *Bus[T]) Publish(value T) {
	for _, handler := range b.snapshot() {
		handler(value)
	}
}

// Len returns the number of subscribers
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

func (b *Bus[T]) snapshot() []Handler[T] {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]uint64, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	handlers := make([]Handler[T], len(ids))
	for i, id := range ids {
		handlers[i] = b.handlers[id]
	}
	return handlers
}
