package mailstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store, standing in for a real IMAP account in
// tests so the pipeline's e2e suite runs without network access. Grounded
// on the teacher's chunk.StoreMemory (chunk/store_memory.go): a
// mutex-guarded map keyed by an opaque id, generalized here from
// ref-counted chunk storage (that concern lives in internal/metadata) to
// plain blob storage.
type MemStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

func (m *MemStore) Store(ctx context.Context, hash string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data[id] = cp
	return id, nil
}

func (m *MemStore) Fetch(ctx context.Context, mailMessageID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[mailMessageID]
	if !ok {
		return nil, ErrChunkMissing
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp, nil
}

func (m *MemStore) Delete(ctx context.Context, mailMessageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, mailMessageID)
	return nil
}

var _ Store = (*MemStore)(nil)
