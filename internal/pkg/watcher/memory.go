package watcher

import (
	"context"
	"sync"
)

type memoryWatcher[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan T
	buffer int
}

func NewMemory[T any](opts Options) Notifier[T] {
	return &memoryWatcher[T]{
		subs:   make(map[uint64]chan T),
		buffer: max(opts.Buffer, 1),
	}
}

func (w *memoryWatcher[T]) Watch() (<-chan T, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++

	ch := make(chan T, w.buffer)
	w.subs[id] = ch

	return ch, func() { w.unsubscribe(id) }
}

func (w *memoryWatcher[T]) unsubscribe(id uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if sub, ok := w.subs[id]; ok {
		delete(w.subs, id)
		close(sub)
	}
}

func (w *memoryWatcher[T]) Notify(_ context.Context, v T) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	fanOut(w.subs, v)

	return nil
}

// fanOut never blocks, a full subscriber misses the event.
func fanOut[T any](subs map[uint64]chan T, v T) {
	for _, ch := range subs {
		select {
		case ch <- v:
		default:
		}
	}
}
