// Package cache implements the per-register memory cache of spec.md §4.3:
// policy-driven caching keyed by (address, length), invalidator tracking,
// and a feature-level change counter.
package cache

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Policy is a register's cache policy.
type Policy int

const (
	PolicyDisable Policy = iota
	PolicyEnable
	PolicyDebug
)

// Cachable controls write-back behavior when Policy is Enable or Debug,
// per spec.md §4.3's table.
type Cachable int

const (
	CachableNoCache Cachable = iota
	CachableWriteThrough
	CachableWriteAround
)

// key identifies one cached entry.
type key struct {
	address uint64
	length  int
}

// entry is one cached byte range plus its validity bit.
type entry struct {
	mu    sync.Mutex
	data  []byte
	valid bool
}

// Fetcher performs the actual wire read/write a Cache falls back to on a
// miss or when policy is Disable/Debug.
type Fetcher interface {
	FetchRead(ctx context.Context, address uint64, length int) ([]byte, error)
	FetchWrite(ctx context.Context, address uint64, data []byte) error
}

// Cache maps (address, length) to cached memory, per spec.md §4.3.
type Cache struct {
	log *zap.Logger

	mu      sync.Mutex // guards the entries map lookup, per spec.md §5
	entries map[key]*entry

	changeMu    sync.Mutex
	changeCount uint64
	// invalidators maps a node's identity (its name) to the set of cache
	// keys it invalidates, per spec.md §4.3 "invalidators are declared
	// per register via pInvalidator".
	invalidators map[string][]key
}

// New creates an empty Cache.
func New(log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		log:          log,
		entries:      make(map[key]*entry),
		invalidators: make(map[string][]key),
	}
}

func (c *Cache) entryFor(address uint64, length int) *entry {
	k := key{address, length}
	c.mu.Lock()
	e, ok := c.entries[k]
	if !ok {
		e = &entry{}
		c.entries[k] = e
	}
	c.mu.Unlock()
	return e
}

// RegisterInvalidator records that writing through invalidatorName should
// invalidate the cache entry at (address, length).
func (c *Cache) RegisterInvalidator(invalidatorName string, address uint64, length int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidators[invalidatorName] = append(c.invalidators[invalidatorName], key{address, length})
}

// Invalidate marks every cache entry that depends on invalidatorName as no
// longer valid, per spec.md §4.3.
func (c *Cache) Invalidate(invalidatorName string) {
	c.mu.Lock()
	keys := c.invalidators[invalidatorName]
	entries := make([]*entry, 0, len(keys))
	for _, k := range keys {
		if e, ok := c.entries[k]; ok {
			entries = append(entries, e)
		}
	}
	c.mu.Unlock()
	for _, e := range entries {
		e.mu.Lock()
		e.valid = false
		e.mu.Unlock()
	}
}

// BumpChangeCount increments the global change counter, used by clients to
// trigger re-reads, per spec.md §4.3.
func (c *Cache) BumpChangeCount() uint64 {
	c.changeMu.Lock()
	defer c.changeMu.Unlock()
	c.changeCount++
	return c.changeCount
}

func (c *Cache) ChangeCount() uint64 {
	c.changeMu.Lock()
	defer c.changeMu.Unlock()
	return c.changeCount
}

// Read returns the cached bytes at (address, length) according to policy,
// fetching through f on a miss or under PolicyDebug/PolicyDisable.
func (c *Cache) Read(ctx context.Context, f Fetcher, address uint64, length int, policy Policy) ([]byte, error) {
	if policy == PolicyDisable {
		return f.FetchRead(ctx, address, length)
	}

	e := c.entryFor(address, length)
	e.mu.Lock()
	defer e.mu.Unlock()

	if policy == PolicyEnable {
		if e.valid {
			out := make([]byte, len(e.data))
			copy(out, e.data)
			return out, nil
		}
		data, err := f.FetchRead(ctx, address, length)
		if err != nil {
			return nil, err
		}
		e.data = append([]byte(nil), data...)
		e.valid = true
		return data, nil
	}

	// PolicyDebug: always fetch, diff against cache, then behave as a
	// refreshed cache entry.
	data, err := f.FetchRead(ctx, address, length)
	if err != nil {
		return nil, err
	}
	if e.valid && !bytesEqual(e.data, data) {
		c.log.Warn("register cache diverged from device",
			zap.Uint64("address", address), zap.Int("length", length))
	}
	e.data = append([]byte(nil), data...)
	e.valid = true
	return data, nil
}

// Write writes data to (address) through f, then updates the cache entry
// for (address, len(data)) per Cachable policy, per spec.md §4.3.
func (c *Cache) Write(ctx context.Context, f Fetcher, address uint64, data []byte, policy Policy, cachable Cachable) error {
	if err := f.FetchWrite(ctx, address, data); err != nil {
		return err
	}
	c.BumpChangeCount()
	if policy == PolicyDisable {
		return nil
	}

	e := c.entryFor(address, len(data))
	e.mu.Lock()
	defer e.mu.Unlock()

	switch cachable {
	case CachableWriteThrough:
		e.data = append([]byte(nil), data...)
		e.valid = true
	case CachableWriteAround:
		e.valid = false
	default:
		e.valid = false
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
