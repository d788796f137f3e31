// Package lazy provides initialize-once handles for expensive shared clients.
package lazy

import (
	"context"
	"sync"
)

// Value builds its content on first use and hands the same instance to
// every later caller. A failed build is not cached; the next Get retries.
type Value[T any] struct {
	mu    sync.Mutex
	build func(ctx context.Context) (T, error)
	val   T
	done  bool
}

// New wraps a constructor.
func New[T any](build func(ctx context.Context) (T, error)) *Value[T] {
	return &Value[T]{build: build}
}

// Get returns the shared instance, building it if needed. Concurrent first
// callers wait for a single build.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.done {
		return v.val, nil
	}
	val, err := v.build(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	v.val, v.done = val, true
	return val, nil
}

// Ready reports whether the value has been built.
func (v *Value[T]) Ready() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.done
}
