package sessionstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/facepace/internal/domain/model"
	"github.com/okian/facepace/pkg/metrics"
)

const defaultTTL = time.Hour

type item struct {
	session   *model.Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. Expired records are dropped
// lazily on access and by Sweep.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]item
	ttl   time.Duration
	now   func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithTTL sets the record lifetime.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *MemoryStore) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{items: make(map[string]item), ttl: defaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Put stores a copy of s.
func (m *MemoryStore) Put(_ context.Context, s *model.Session) error {
	if s == nil || s.ID == "" {
		return ErrInvalidSession
	}
	m.mu.Lock()
	m.items[s.ID] = item{session: clone(s), expiresAt: m.now().Add(m.ttl)}
	n := len(m.items)
	m.mu.Unlock()
	metrics.UpdateSessionsActive(n)
	return nil
}

// Get returns a copy of the record.
func (m *MemoryStore) Get(_ context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrSessionNotFound, id)
	}
	if !m.now().Before(it.expiresAt) {
		delete(m.items, id)
		return nil, fmt.Errorf("%w: %s", model.ErrSessionNotFound, id)
	}
	return clone(it.session), nil
}

// Delete removes the record.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.items, id)
	n := len(m.items)
	m.mu.Unlock()
	metrics.UpdateSessionsActive(n)
	return nil
}

// Sweep drops expired records and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	now := m.now()
	removed := 0
	for id, it := range m.items {
		if !now.Before(it.expiresAt) {
			delete(m.items, id)
			removed++
		}
	}
	n := len(m.items)
	m.mu.Unlock()
	metrics.UpdateSessionsActive(n)
	return removed
}

// Len returns the number of records, expired ones included until swept.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
