// Package persist stores the small opaque subset of session state that
// survives a process restart: the token pair, the selected profile and club
// identifiers, and the impersonation flag. Full user and member objects are
// never persisted; they are re-fetched on restore.
package persist

import (
	"context"
	"sync"
)

// Store is the persistence backend. Implementations must be safe for
// concurrent use.
type Store interface {
	// Save persists an opaque blob under key, overwriting any previous value.
	Save(ctx context.Context, key string, data []byte) error

	// Load retrieves the blob for key. Returns (nil, nil) when the key does
	// not exist.
	Load(ctx context.Context, key string) ([]byte, error)

	// Delete removes the key. Not an error if the key does not exist.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// ErrStoreClosed is returned when operations are attempted on a closed store.
type ErrStoreClosed struct{}

func (e ErrStoreClosed) Error() string {
	return "persist store is closed"
}

// MemoryStore keeps blobs in process memory. It is the default backend; state
// then lives exactly as long as the process, which is fine for development
// and for deployments that accept a login after every restart.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Save stores a copy of the blob.
func (m *MemoryStore) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed{}
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	m.data[key] = buf
	return nil
}

// Load returns a copy of the stored blob, or (nil, nil) when absent.
func (m *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed{}
	}
	data, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// Delete removes the key.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed{}
	}
	delete(m.data, key)
	return nil
}

// Close marks the store as closed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Len reports the number of stored keys. For tests.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
