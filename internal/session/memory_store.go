package session

import (
	"context"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps sessions in process. Used when no redis is configured.
type MemoryStore struct {
	items *cache.Cache
}

// NewMemoryStore returns an empty store that sweeps expired sessions every cleanup.
func NewMemoryStore(cleanup time.Duration) *MemoryStore {
	return &MemoryStore{items: cache.New(cache.NoExpiration, cleanup)}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	v, ok := m.items.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return decode(id, v.(string))
}

// Save implements Store. Sessions are stored encoded so callers never share state.
func (m *MemoryStore) Save(_ context.Context, s *Session, ttl time.Duration) error {
	raw, err := encode(s)
	if err != nil {
		return err
	}
	m.items.Set(s.ID, raw, ttl)
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.items.Delete(id)
	return nil
}
