package quote

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps computed quotes for later retrieval and export.
type Store interface {
	Put(ctx context.Context, q *Quote) error
	Get(ctx context.Context, id string) (*Quote, bool, error)
}

// Cache stores quotes as JSON in Redis under a key prefix with a TTL.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCache constructs a Redis backed Store.
func NewCache(client *redis.Client, prefix string, ttl time.Duration) *Cache {
	if prefix == "" {
		prefix = "quote:"
	}
	return &Cache{client: client, prefix: prefix, ttl: ttl}
}

// Put implements Store.
func (c *Cache) Put(ctx context.Context, q *Quote) error {
	if c == nil || c.client == nil || q == nil || q.ID == "" {
		return nil
	}
	data, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+q.ID, data, c.ttl).Err()
}

// Get implements Store. It reports whether the key existed.
func (c *Cache) Get(ctx context.Context, id string) (*Quote, bool, error) {
	if c == nil || c.client == nil || id == "" {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, c.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var q Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, false, err
	}
	return &q, true, nil
}

// MemoryStore is the in-process Store used when Redis is not configured.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	entries map[string]memoryEntry
	order   []string
	now     func() time.Time
}

type memoryEntry struct {
	quote     *Quote
	expiresAt time.Time
}

// NewMemoryStore keeps at most max quotes, each for ttl (zero means no expiry).
func NewMemoryStore(ttl time.Duration, max int) *MemoryStore {
	if max <= 0 {
		max = 256
	}
	return &MemoryStore{ttl: ttl, max: max, entries: map[string]memoryEntry{}, now: time.Now}
}

// Put implements Store, evicting the oldest quote once full.
func (m *MemoryStore) Put(_ context.Context, q *Quote) error {
	if q == nil || q.ID == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[q.ID]; !exists {
		m.order = append(m.order, q.ID)
	}
	var expires time.Time
	if m.ttl > 0 {
		expires = m.now().Add(m.ttl)
	}
	m.entries[q.ID] = memoryEntry{quote: q, expiresAt: expires}
	for len(m.order) > m.max {
		delete(m.entries, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id string) (*Quote, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		return nil, false, nil
	}
	return e.quote, true, nil
}
