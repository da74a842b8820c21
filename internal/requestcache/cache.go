// Package requestcache de-duplicates identical requests issued close together. Concurrent
// callers with the same key share one in-flight call, and a finished result is replayed for a
// short TTL.
package requestcache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL         = 2 * time.Second
	DefaultMinInterval = 1 * time.Second
)

type entry struct {
	value    any
	err      error
	storedAt time.Time
}

// Cache is a keyed TTL cache with in-flight de-duplication. The zero value is not usable; use New.
type Cache struct {
	group       singleflight.Group
	mu          sync.Mutex
	entries     map[string]entry
	ttl         time.Duration
	minInterval time.Duration
	now         func() time.Time
}

type Option func(*Cache)

// WithTTL sets how long a successful result is replayed
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithMinInterval sets how long a failed result is replayed before the call may fire again
func WithMinInterval(d time.Duration) Option {
	return func(c *Cache) { c.minInterval = d }
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(opts ...Option) *Cache {
	c := &Cache{
		entries:     make(map[string]entry),
		ttl:         DefaultTTL,
		minInterval: DefaultMinInterval,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key derives a cache key from an action name and its payload. Object keys are sorted so
// that equal payloads map to the same key regardless of field order.
func Key(action string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "marshal payload")
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", errors.Wrap(err, "normalise payload")
	}
	// encoding/json writes map keys in sorted order
	sorted, err := json.Marshal(generic)
	if err != nil {
		return "", errors.Wrap(err, "marshal normalised payload")
	}
	return action + ":" + string(sorted), nil
}

// Do returns the cached result for key or runs fn once for all concurrent callers.
// fn runs detached from the caller's cancellation so one impatient caller does not fail the
// others; a caller whose ctx ends stops waiting and gets ctx.Err().
func (c *Cache) Do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	if value, err, ok := c.lookup(key); ok {
		return value, err
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// A caller that just missed the previous flight may find its result here
		if value, err, ok := c.lookup(key); ok {
			return value, err
		}
		value, err := fn(context.WithoutCancel(ctx))
		c.store(key, value, err)
		return value, err
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops any cached result for key
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of live entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpired()
	return len(c.entries)
}

func (c *Cache) lookup(key string) (any, error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, nil, false
	}
	if c.now().Sub(e.storedAt) >= c.lifetime(e) {
		delete(c.entries, key)
		return nil, nil, false
	}
	return e.value, e.err, true
}

func (c *Cache) store(key string, value any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpired()
	c.entries[key] = entry{value: value, err: err, storedAt: c.now()}
}

func (c *Cache) lifetime(e entry) time.Duration {
	if e.err != nil {
		return c.minInterval
	}
	return c.ttl
}

// evictExpired must be called with mu held
func (c *Cache) evictExpired() {
	now := c.now()
	for key, e := range c.entries {
		if now.Sub(e.storedAt) >= c.lifetime(e) {
			delete(c.entries, key)
		}
	}
}

// Fetch is a typed wrapper around Cache.Do
func Fetch[T any](ctx context.Context, c *Cache, key string, fn func(context.Context) (T, error)) (T, error) {
	value, err := c.Do(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		var zero T
		return zero, errors.Errorf("requestcache: cached value for %q has unexpected type %T", key, value)
	}
	return typed, nil
}
