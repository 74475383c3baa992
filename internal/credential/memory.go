package credential

import (
	"context"
	"sync"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// MemoryStorage is an in-process Storage used in tests and single-node
// deployments without persistence requirements.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[types.CredentialID]*Record
}

// NewMemoryStorage returns an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{records: make(map[types.CredentialID]*Record)}
}

// Store saves or overwrites a record.
func (m *MemoryStorage) Store(_ context.Context, rec *Record) error {
	if rec == nil || rec.ID.IsZero() {
		return types.NewError(types.INVALID_INPUT, "credential record requires an id")
	}
	clone := *rec
	m.mu.Lock()
	m.records[rec.ID] = &clone
	m.mu.Unlock()
	return nil
}

// Retrieve returns the stored record or CREDENTIAL_NOT_FOUND.
func (m *MemoryStorage) Retrieve(_ context.Context, id types.CredentialID) (*Record, error) {
	m.mu.RLock()
	rec, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return nil, notFound(id)
	}
	clone := *rec
	return &clone, nil
}

// Delete removes a record. Absent ids are not an error.
func (m *MemoryStorage) Delete(_ context.Context, id types.CredentialID) error {
	m.mu.Lock()
	delete(m.records, id)
	m.mu.Unlock()
	return nil
}

// List returns every stored credential id.
func (m *MemoryStorage) List(_ context.Context) ([]types.CredentialID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]types.CredentialID, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	return ids, nil
}

// Exists reports whether an id is stored.
func (m *MemoryStorage) Exists(_ context.Context, id types.CredentialID) (bool, error) {
	m.mu.RLock()
	_, ok := m.records[id]
	m.mu.RUnlock()
	return ok, nil
}
