// Package syncutil provides context-aware locking primitives.
package syncutil

import (
	"context"
	"sync"
)

// ContextMutex is a mutex implemented via a buffered channel so callers can
// bail out if their context is cancelled while waiting to acquire it.
//
// The prediction service holds one of these across submit and resolve so
// each runs to completion before the next starts. Operations outside that
// service (register, claim, flag) are not covered by it and rely on
// store-level atomicity instead.
type ContextMutex struct {
	ch   chan struct{}
	once sync.Once
}

// NewContextMutex creates an unlocked ContextMutex.
func NewContextMutex() *ContextMutex {
	m := &ContextMutex{}
	m.init()
	return m
}

func (m *ContextMutex) init() {
	m.once.Do(func() {
		m.ch = make(chan struct{}, 1)
		m.ch <- struct{}{} // Start unlocked.
	})
}

// Lock acquires the mutex, respecting context cancellation.
// On success, returns an unlock function and nil error. The caller MUST call
// the unlock function when done.
// On context cancellation, returns nil and the context error.
func (m *ContextMutex) Lock(ctx context.Context) (func(), error) {
	m.init()

	select {
	case <-m.ch:
		return func() { m.ch <- struct{}{} }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
