package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ReaperConfig configures the background sweep of idle entries.
type ReaperConfig struct {
	// SweepInterval is how often the reaper scans for expired entries.
	// Default: 60 seconds.
	SweepInterval time.Duration

	// OnEvict is called with the flattened key of every evicted entry.
	// Called outside the lock.
	OnEvict func(key string)
}

type entry struct {
	value    []byte
	lastSeen time.Time
}

// MemoryStore keeps session values in process memory. Entries idle for
// longer than the TTL are invisible to Get and removed by the reaper.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	now     func() time.Time

	reaperStop chan struct{}
	reaperDone chan struct{}
}

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store. A zero ttl keeps entries forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryStore) expired(e *entry, now time.Time) bool {
	return m.ttl > 0 && now.Sub(e.lastSeen) > m.ttl
}

func (m *MemoryStore) Get(_ context.Context, component, session, key string) ([]byte, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[Key(component, session, key)]
	if !ok || m.expired(e, now) {
		return nil, ErrNotFound
	}
	e.lastSeen = now
	return append([]byte(nil), e.value...), nil
}

func (m *MemoryStore) Set(_ context.Context, component, session, key string, value []byte) error {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[Key(component, session, key)] = &entry{
		value:    append([]byte(nil), value...),
		lastSeen: now,
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, component, session, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, Key(component, session, key))
	return nil
}

// Len returns the number of entries, expired ones included until swept.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// StartReaper launches a background goroutine that periodically evicts
// expired entries. Call Close to shut it down. Without a TTL it does nothing.
func (m *MemoryStore) StartReaper(cfg *ReaperConfig) {
	if m.ttl <= 0 {
		return
	}
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 60 * time.Second
	}

	m.reaperStop = make(chan struct{})
	m.reaperDone = make(chan struct{})

	go m.reapLoop(cfg)
	slog.Info("session: reaper started", "ttl", m.ttl, "sweep_interval", cfg.SweepInterval)
}

// Close shuts down the reaper goroutine.
func (m *MemoryStore) Close() error {
	if m.reaperStop != nil {
		close(m.reaperStop)
		<-m.reaperDone
		m.reaperStop = nil
		m.reaperDone = nil
	}
	return nil
}

func (m *MemoryStore) reapLoop(cfg *ReaperConfig) {
	defer close(m.reaperDone)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.reaperStop:
			return
		case <-ticker.C:
			m.sweep(cfg)
		}
	}
}

func (m *MemoryStore) sweep(cfg *ReaperConfig) {
	now := m.now()
	var evicted []string

	m.mu.Lock()
	for key, e := range m.entries {
		if m.expired(e, now) {
			delete(m.entries, key)
			evicted = append(evicted, key)
		}
	}
	m.mu.Unlock()

	if len(evicted) > 0 {
		slog.Debug("session: reaper evicted entries", "count", len(evicted))
	}
	if cfg.OnEvict != nil {
		for _, key := range evicted {
			cfg.OnEvict(key)
		}
	}
}
