package store_test

import (
	"context"
	"sync"
	"time"

	"github.com/lihe8811/AquaSense/internal/store"
)

// memBlobStore 内存 BlobStore，时钟可手动推进以测试快照过期
type memBlobStore struct {
	mu      sync.Mutex
	now     time.Time
	entries map[string]memBlob
}

type memBlob struct {
	blob     []byte
	deadline time.Time
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{
		now:     time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		entries: make(map[string]memBlob),
	}
}

func (m *memBlobStore) advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

func (m *memBlobStore) ReadBlob(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || (!e.deadline.IsZero() && !m.now.Before(e.deadline)) {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), e.blob...), nil
}

func (m *memBlobStore) WriteBlob(_ context.Context, key string, blob []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memBlob{blob: append([]byte(nil), blob...)}
	if ttl > 0 {
		e.deadline = m.now.Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *memBlobStore) DeleteBlobs(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}
