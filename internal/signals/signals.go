// Package signals provides named publish/subscribe channels with
// synchronous, ordered delivery.
package signals

import "sync"

// Connection identifies a single subscription on a Signal.
type Connection struct {
	id     uint64
	signal interface{ disconnect(id uint64) }
}

// Disconnect removes the subscription. Safe to call more than once.
func (c Connection) Disconnect() {
	if c.signal != nil {
		c.signal.disconnect(c.id)
	}
}

type slot[T any] struct {
	id uint64
	fn func(T)
}

// Signal delivers values to subscribers in connect order, synchronously
// at emit time.
type Signal[T any] struct {
	mu    sync.Mutex
	next  uint64
	slots []slot[T]
}

// New creates a Signal.
func New[T any]() *Signal[T] {
	return &Signal[T]{}
}

// Connect registers fn to receive emitted values.
func (s *Signal[T]) Connect(fn func(T)) Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.slots = append(s.slots, slot[T]{id: s.next, fn: fn})
	return Connection{id: s.next, signal: s}
}

func (s *Signal[T]) disconnect(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sl := range s.slots {
		if sl.id == id {
			s.slots = append(s.slots[:i], s.slots[i+1:]...)
			return
		}
	}
}

// Emit calls every connected handler with v, in connect order. Handlers
// run on the caller's goroutine; the subscriber list is snapshotted so a
// handler may connect or disconnect without affecting this delivery.
func (s *Signal[T]) Emit(v T) {
	s.mu.Lock()
	snapshot := make([]slot[T], len(s.slots))
	copy(snapshot, s.slots)
	s.mu.Unlock()

	for _, sl := range snapshot {
		sl.fn(v)
	}
}

// Len returns the number of connected handlers.
func (s *Signal[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// Clear drops every subscription at once.
func (s *Signal[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = nil
}
