// Package event provides typed subscription feeds. Each component exposes its
// own feed instead of sharing one untyped dispatcher.
package event

import "sync"

// Feed delivers values of one type to its subscribers synchronously, in
// subscription order. The zero value is ready to use.
type Feed[T any] struct {
	mu   sync.RWMutex
	next int
	subs []subscriber[T]
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// Subscribe registers fn and returns a function that removes it.
func (f *Feed[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	f.mu.Lock()
	id := f.next
	f.next++
	f.subs = append(f.subs, subscriber[T]{id: id, fn: fn})
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			for i, s := range f.subs {
				if s.id == id {
					f.subs = append(f.subs[:i:i], f.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Emit calls every subscriber with v. Subscribers may subscribe or
// unsubscribe from inside the callback.
func (f *Feed[T]) Emit(v T) {
	f.mu.RLock()
	subs := make([]subscriber[T], len(f.subs))
	copy(subs, f.subs)
	f.mu.RUnlock()
	for _, s := range subs {
		s.fn(v)
	}
}

// Recorder collects emitted values; handy in tests and for draining a feed
// into a slice.
type Recorder[T any] struct {
	mu     sync.Mutex
	values []T
}

func (r *Recorder[T]) Record(v T) {
	r.mu.Lock()
	r.values = append(r.values, v)
	r.mu.Unlock()
}

func (r *Recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.values...)
}
