// Package notify keeps the short-lived notices (toasts) shown by the
// dashboard. Notices expire after a TTL and the oldest are evicted once the
// center is full.
package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ha1tch/friendgraph/pkg/metrics"
)

// Level controls how a notice is rendered
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is one user-facing notification
type Notice struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	seq uint64
}

// Center stores active notices
type Center struct {
	cache *lru.LRU[string, Notice]
	mu    sync.Mutex
	seq   uint64
}

// NewCenter creates a center holding at most size notices for ttl each
func NewCenter(size int, ttl time.Duration) *Center {
	return &Center{
		cache: lru.NewLRU[string, Notice](size, nil, ttl),
	}
}

// Push records a notice and returns it
func (c *Center) Push(level Level, message, category string) Notice {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	n := Notice{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		Category:  category,
		CreatedAt: time.Now().UTC(),
		seq:       c.seq,
	}
	c.cache.Add(n.ID, n)
	metrics.NoticesTotal.WithLabelValues(string(level)).Inc()
	return n
}

// Success pushes a success notice
func (c *Center) Success(message string) Notice {
	return c.Push(LevelSuccess, message, "")
}

// Info pushes an informational notice
func (c *Center) Info(message string) Notice {
	return c.Push(LevelInfo, message, "")
}

// Get returns an active notice
func (c *Center) Get(id string) (Notice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Peek(id)
}

// Dismiss removes a notice. It reports whether the notice was active.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Remove(id)
}

// List returns active notices, oldest first
func (c *Center) List() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Notice, 0, c.cache.Len())
	for _, key := range c.cache.Keys() {
		if n, ok := c.cache.Peek(key); ok {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Close drops every notice
func (c *Center) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Purge()
	return nil
}
