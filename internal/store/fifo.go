package store

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// FIFOMutex is a mutual-exclusion lock that serves waiters strictly in arrival
// order. sync.Mutex makes no ordering promise, which the allocator needs.
// The zero value is ready to use.
type FIFOMutex struct {
	init    sync.Once
	sem     *semaphore.Weighted
	waiting atomic.Int64
}

func (m *FIFOMutex) weighted() *semaphore.Weighted {
	m.init.Do(func() { m.sem = semaphore.NewWeighted(1) })
	return m.sem
}

// Acquire blocks until the caller owns the lock or ctx is done. The returned
// release func must be called exactly once; extra calls are no-ops.
func (m *FIFOMutex) Acquire(ctx context.Context) (release func(), err error) {
	sem := m.weighted()
	if sem.TryAcquire(1) {
		return m.releaseOnce(), nil
	}
	m.waiting.Add(1)
	err = sem.Acquire(ctx, 1)
	m.waiting.Add(-1)
	if err != nil {
		return nil, err
	}
	return m.releaseOnce(), nil
}

// Do runs fn while holding the lock. The lock is released on every exit path,
// panics included.
func (m *FIFOMutex) Do(ctx context.Context, fn func() error) error {
	release, err := m.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// Waiting returns the number of callers blocked in Acquire.
func (m *FIFOMutex) Waiting() int {
	return int(m.waiting.Load())
}

func (m *FIFOMutex) releaseOnce() func() {
	var once sync.Once
	return func() { once.Do(func() { m.weighted().Release(1) }) }
}
