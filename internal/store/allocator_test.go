package store

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

func TestAllocatorConcurrentCallsYieldContiguousIDs(t *testing.T) {
	a := NewAllocator(0)
	const n = 50

	var (
		mu  sync.Mutex
		ids []int
		wg  sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := a.Next(context.Background(), func(int) error { return nil })
			assert.NoError(t, err)
			mu.Lock()
			ids = append(ids, id)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Ints(ids)
	for i, id := range ids {
		assert.Equal(t, i+1, id)
	}
	assert.Equal(t, n, a.Current())
}

func TestAllocatorFailedCommitDoesNotAdvance(t *testing.T) {
	a := NewAllocator(7)

	_, err := a.Next(context.Background(), func(int) error { return errDiskFull })
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStorageFailure))
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, 7, a.Current())

	id, err := a.Next(context.Background(), func(int) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 8, id)
}

func TestAllocatorPassesClassifiedErrorsThrough(t *testing.T) {
	a := NewAllocator(0)
	_, err := a.Next(context.Background(), func(int) error { return apperrors.NewLimitReached(2, 2) })
	assert.True(t, apperrors.HasCode(err, apperrors.CodeLimitReached))
	assert.Equal(t, 0, a.Current())
}

func TestAllocatorReset(t *testing.T) {
	a := NewAllocator(12)
	require.NoError(t, a.Reset(context.Background(), 0, func() error { return nil }))
	assert.Equal(t, 0, a.Current())

	require.Error(t, a.Reset(context.Background(), 5, func() error { return errDiskFull }))
	assert.Equal(t, 0, a.Current())
}
