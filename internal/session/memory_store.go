package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore is a process-local Store for development and tests.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memItem
	now   func() time.Time
}

type memItem struct {
	raw     []byte
	expires time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memItem), now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if m.now().After(it.expires) {
		delete(m.items, id)
		return nil, ErrNotFound
	}
	var s Session
	if err := json.Unmarshal(it.raw, &s); err != nil {
		return nil, err
	}
	s.ID = id
	return &s, nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session, ttl time.Duration) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[s.ID] = memItem{raw: raw, expires: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}
