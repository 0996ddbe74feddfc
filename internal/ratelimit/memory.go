package ratelimit

import (
	"context"
	"sync"
	"time"
)

// janitorInterval is how often the background sweep drops expired windows.
const janitorInterval = time.Minute

type memoryEntry struct {
	count   int
	resetAt time.Time
}

// Memory is a fixed-window limiter held in process memory. The window is an
// approximation: a client can burst up to twice the limit across a window
// boundary. Good enough for a single instance; use the redis limiter when
// instances share traffic.
type Memory struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*memoryEntry

	stop     chan struct{}
	stopOnce sync.Once
}

func NewMemory(cfg Config) *Memory {
	m := &Memory{
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		entries: make(map[string]*memoryEntry),
		stop:    make(chan struct{}),
	}
	go m.janitor()
	return m
}

// Check consumes one slot for the identifier if the window has room.
func (m *Memory) Check(_ context.Context, identifier string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	key := m.cfg.KeyPrefix + ":" + identifier

	entry, ok := m.entries[key]
	if !ok || !now.Before(entry.resetAt) {
		entry = &memoryEntry{resetAt: now.Add(m.cfg.Window)}
		m.entries[key] = entry
	}

	if entry.count >= m.cfg.MaxRequests {
		return Result{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    entry.resetAt,
			RetryAfter: entry.resetAt.Sub(now),
		}
	}

	entry.count++
	return Result{
		Allowed:   true,
		Remaining: m.cfg.MaxRequests - entry.count,
		ResetAt:   entry.resetAt,
	}
}

func (m *Memory) Allow(ctx context.Context, identifier string) bool {
	return m.Check(ctx, identifier).Allowed
}

// Reset clears the identifier's window.
func (m *Memory) Reset(_ context.Context, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, m.cfg.KeyPrefix+":"+identifier)
	return nil
}

// Close stops the background janitor.
func (m *Memory) Close() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
}

func (m *Memory) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweepExpired()
		}
	}
}

func (m *Memory) sweepExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for key, entry := range m.entries {
		if !now.Before(entry.resetAt) {
			delete(m.entries, key)
		}
	}
}
