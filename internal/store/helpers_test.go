package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errDiskFull = errors.New("disk full")

// memBackend keeps encoded documents in memory and can be told to fail writes.
type memBackend struct {
	mu       sync.Mutex
	docs     map[string][]byte
	failSave bool
	saves    int
}

func newMemBackend() *memBackend {
	return &memBackend{docs: make(map[string][]byte)}
}

func (b *memBackend) Load(name string, v any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	raw, ok := b.docs[name]
	if !ok {
		return ErrDocumentMissing
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Join(ErrDocumentCorrupt, err)
	}
	return nil
}

func (b *memBackend) Save(name string, v any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSave {
		return errDiskFull
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b.docs[name] = raw
	b.saves++
	return nil
}

func (b *memBackend) setFailSave(v bool) {
	b.mu.Lock()
	b.failSave = v
	b.mu.Unlock()
}

func fixedClock() func() time.Time {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func openTestStore(t *testing.T, backend Backend) *Store {
	t.Helper()
	s, err := Open(backend, zap.NewNop(), WithClock(fixedClock()))
	require.NoError(t, err)
	return s
}

func requireIndexConsistent(t *testing.T, s *Store) {
	t.Helper()
	s.mu.RLock()
	defer s.mu.RUnlock()
	require.True(t, s.index.Equal(BuildIndex(s.tickets.Tickets)), "incremental index diverged from rebuild")
}
