package vault

import (
	"context"
	"sync"
	"time"
)

// CachingClient wraps a Client with a bounded in-process cache keyed by secret
// name, avoiding repeated remote lookups within a process lifetime.
//
// Cache entries never outlive their secret's expiry and the cache holds at most
// maxEntries values, evicting the earliest-expiring entry when full. The cache
// is safe for concurrent use across all in-flight requests.
//
// Coherence is per-instance only: other service instances do not see this
// cache, which is acceptable because secret values are immutable for the
// lifetime of an entry and deletions evict locally.
type CachingClient struct {
	inner      Client
	maxEntries int

	mu      sync.Mutex
	entries map[string]*Secret

	// now is swappable for tests.
	now func() time.Time
}

// NewCachingClient wraps inner with a cache bounded to maxEntries values.
func NewCachingClient(inner Client, maxEntries int) *CachingClient {
	return &CachingClient{
		inner:      inner,
		maxEntries: maxEntries,
		entries:    make(map[string]*Secret),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// StoreSecret delegates to the inner client and caches the value on success.
func (c *CachingClient) StoreSecret(
	ctx context.Context,
	name string,
	value []byte,
	expiresAt time.Time,
) error {
	if err := c.inner.StoreSecret(ctx, name, value, expiresAt); err != nil {
		return err
	}
	c.put(name, &Secret{Value: append([]byte(nil), value...), ExpiresAt: expiresAt})
	return nil
}

// GetSecret serves fresh cached values and falls back to the inner client,
// caching what it finds.
func (c *CachingClient) GetSecret(ctx context.Context, name string) (*Secret, error) {
	if secret, ok := c.get(name); ok {
		return secret, nil
	}

	secret, err := c.inner.GetSecret(ctx, name)
	if err != nil {
		return nil, err
	}

	c.put(name, secret)
	return secret, nil
}

// DeleteSecret evicts the cached value and delegates to the inner client.
func (c *CachingClient) DeleteSecret(ctx context.Context, name string) error {
	c.mu.Lock()
	delete(c.entries, name)
	c.mu.Unlock()

	return c.inner.DeleteSecret(ctx, name)
}

// Len returns the number of cached entries.
func (c *CachingClient) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *CachingClient) get(name string) (*Secret, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	secret, ok := c.entries[name]
	if !ok {
		return nil, false
	}
	if !secret.ExpiresAt.After(c.now()) {
		delete(c.entries, name)
		return nil, false
	}

	return &Secret{
		Value:     append([]byte(nil), secret.Value...),
		ExpiresAt: secret.ExpiresAt,
	}, true
}

func (c *CachingClient) put(name string, secret *Secret) {
	now := c.now()
	if !secret.ExpiresAt.After(now) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[name]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.entries[name] = secret
}

// evictLocked drops all expired entries and, if none were expired, the entry
// with the earliest expiry. Callers must hold c.mu.
func (c *CachingClient) evictLocked(now time.Time) {
	evicted := false
	for name, secret := range c.entries {
		if !secret.ExpiresAt.After(now) {
			delete(c.entries, name)
			evicted = true
		}
	}
	if evicted {
		return
	}

	var earliestName string
	var earliest time.Time
	for name, secret := range c.entries {
		if earliestName == "" || secret.ExpiresAt.Before(earliest) {
			earliestName = name
			earliest = secret.ExpiresAt
		}
	}
	if earliestName != "" {
		delete(c.entries, earliestName)
	}
}
