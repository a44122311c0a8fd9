package eventbus

import "sync"

const subscriberBuffer = 8

// TypedBus is a type-safe latest-wins publish/subscribe bus for events of
// type T.
type TypedBus[T any] struct {
	mu     sync.RWMutex
	subs   []chan T
	closed bool
}

// NewTyped creates a new TypedBus.
func NewTyped[T any]() *TypedBus[T] { return &TypedBus[T]{} }

// Publish hands the event to every subscriber without blocking. A subscriber
// whose buffer is full loses its oldest pending event so it always ends up
// holding the latest one. Publish reports how many events were evicted.
func (b *TypedBus[T]) Publish(e T) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0
	}
	evicted := 0
	for _, ch := range b.subs {
		for !offer(ch, e) {
			select {
			case <-ch:
				evicted++
			default:
			}
		}
	}
	return evicted
}

func offer[T any](ch chan T, e T) bool {
	select {
	case ch <- e:
		return true
	default:
		return false
	}
}

// Subscribers returns the number of registered subscribers.
func (b *TypedBus[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Subscribe registers a subscriber and returns its channel.
func (b *TypedBus[T]) Subscribe() <-chan T {
	ch := make(chan T, subscriberBuffer)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *TypedBus[T]) Unsubscribe(sub <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

// Close closes the bus and all subscriber channels.
func (b *TypedBus[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	b.mu.Unlock()
}
