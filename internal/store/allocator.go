package store

import (
	"context"

	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// CommitFunc durably records id as the newest allocated value. It runs inside the
// allocator's critical section; an error leaves the counter where it was.
type CommitFunc func(id int) error

// Allocator hands out unique, strictly increasing integers. Every allocation runs
// read-increment-persist under a FIFO lock, so concurrent callers are served one
// at a time in arrival order.
type Allocator struct {
	lock    FIFOMutex
	current int
}

// NewAllocator starts counting after current.
func NewAllocator(current int) *Allocator {
	return &Allocator{current: current}
}

// Next allocates the next id. commit must persist it before Next returns; when
// commit fails the in-memory counter does not advance and a STORAGE_FAILURE is
// returned. Errors already classified by commit are passed through unchanged.
func (a *Allocator) Next(ctx context.Context, commit CommitFunc) (int, error) {
	var id int
	err := a.lock.Do(ctx, func() error {
		next := a.current + 1
		if err := commit(next); err != nil {
			if apperrors.ToDomainError(err).Code == apperrors.CodeInternal {
				return apperrors.NewStorageFailure(err)
			}
			return err
		}
		a.current = next
		id = next
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Reset sets the counter to value after commit succeeds, serialized with Next.
func (a *Allocator) Reset(ctx context.Context, value int, commit func() error) error {
	return a.lock.Do(ctx, func() error {
		if err := commit(); err != nil {
			if apperrors.ToDomainError(err).Code == apperrors.CodeInternal {
				return apperrors.NewStorageFailure(err)
			}
			return err
		}
		a.current = value
		return nil
	})
}

// Current returns the highest allocated value, waiting for any allocation in
// flight.
func (a *Allocator) Current() int {
	release, err := a.lock.Acquire(context.Background())
	if err != nil {
		return a.current
	}
	defer release()
	return a.current
}
