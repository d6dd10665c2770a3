package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps session records in-process. Single instance only.
type MemoryStore struct {
	mu   sync.RWMutex
	ttl  time.Duration
	now  func() time.Time
	sess map[string]memoryEntry
}

type memoryEntry struct {
	rec     SessionRecord
	expires time.Time
}

// NewMemoryStore initializes an empty in-memory session store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryStore{
		ttl:  ttl,
		now:  time.Now,
		sess: make(map[string]memoryEntry),
	}
}

func (m *MemoryStore) Save(_ context.Context, token string, rec SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess[token] = memoryEntry{rec: rec, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, token string) (SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sess[token]
	if !ok {
		return SessionRecord{}, ErrSessionNotFound
	}
	if m.now().After(entry.expires) {
		delete(m.sess, token)
		return SessionRecord{}, ErrSessionNotFound
	}
	return entry.rec, nil
}

func (m *MemoryStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sess, token)
	return nil
}

// Len returns the number of stored records, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sess)
}
