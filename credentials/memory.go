// ABOUTME: In-process credential medium backed by the TTL cache
// ABOUTME: Tokens vanish when the process exits

package credentials

import (
	"context"
	"time"

	"github.com/woragis/woragis-posts-frontend/cache"
)

// MemoryMedium keeps tokens in a TTL cache.
type MemoryMedium struct {
	cache *cache.Cache[string]
}

// NewMemoryMedium creates an empty in-memory medium. Call Close to stop
// its cleanup goroutine.
func NewMemoryMedium() *MemoryMedium {
	return &MemoryMedium{cache: cache.New[string](DefaultAccessTTL)}
}

func (m *MemoryMedium) Get(_ context.Context, name string) (string, bool, error) {
	val, ok := m.cache.Get(name)
	return val, ok, nil
}

func (m *MemoryMedium) Set(_ context.Context, name, value string, ttl time.Duration) error {
	m.cache.PutFor(name, value, ttl)
	return nil
}

func (m *MemoryMedium) Delete(_ context.Context, name string) error {
	m.cache.Delete(name)
	return nil
}

// Close stops the underlying cache.
func (m *MemoryMedium) Close() error {
	m.cache.Stop()
	return nil
}
