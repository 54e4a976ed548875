// Package observable holds values that push every change to their
// subscribers.
package observable

import (
	"context"
	"sync"
)

// Value is a mutex guarded value. Subscribers receive the current value
// on subscription and then every later value. A subscriber that falls
// behind only ever sees the most recent value.
type Value[T any] struct {
	mu   sync.Mutex
	v    T
	subs map[chan T]struct{}
}

func New[T any](initial T) *Value[T] {
	return &Value[T]{
		v:    initial,
		subs: make(map[chan T]struct{}),
	}
}

func (o *Value[T]) Get() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.v
}

func (o *Value[T]) Set(v T) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.setLocked(v)
}

// Update replaces the value with fn applied to the current one and
// returns the result.
func (o *Value[T]) Update(fn func(T) T) T {
	o.mu.Lock()
	defer o.mu.Unlock()

	v := fn(o.v)
	o.setLocked(v)
	return v
}

func (o *Value[T]) setLocked(v T) {
	o.v = v
	for ch := range o.subs {
		Offer(ch, v)
	}
}

// Subscribe streams values until ctx is done, then closes the channel.
func (o *Value[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	o.mu.Lock()
	o.subs[ch] = struct{}{}
	ch <- o.v
	o.mu.Unlock()

	go func() {
		<-ctx.Done()
		o.mu.Lock()
		delete(o.subs, ch)
		close(ch)
		o.mu.Unlock()
	}()

	return ch
}

// Offer sends v on ch, first discarding any value ch still buffers. ch
// must be buffered.
func Offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
