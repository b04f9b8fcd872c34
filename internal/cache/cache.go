// Package cache holds directory listings retrieved from the backend so that
// path to identifier lookups can be answered without a round-trip.
//
// Cache Strategy:
//   - LRU eviction once MaxEntries listings are held
//   - TTL based staleness; stale listings are still returned, flagged
//   - Per-path locks serialize concurrent listings of the same directory
//
// Thread Safety:
// A Cache may be shared by several control sockets. All methods are safe
// for concurrent use.
package cache

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"github.com/bamsammich/bucketctl/internal/remote"
)

// Config holds cache tuning.
type Config struct {
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time

	// TTL is how long a stored listing counts as fresh.
	TTL time.Duration

	// MaxEntries limits the number of listings kept (LRU eviction).
	MaxEntries int
}

// DefaultConfig returns the cache settings used by the CLI.
func DefaultConfig() Config {
	return Config{
		TTL:        5 * time.Minute,
		MaxEntries: 1000,
	}
}

// LockOwner is notified when a path lock it waited for is handed to it.
// OnLockObtained is called without the cache mutex held and must not block.
type LockOwner interface {
	OnLockObtained(path remote.Path)
}

// Cache is an in-memory directory listing cache.
type Cache struct {
	now        func() time.Time
	entries    map[string]*cacheEntry
	locks      map[string]*pathLock
	lruList    *list.List
	ttl        time.Duration
	maxEntries int
	hits       uint64
	misses     uint64
	mu         sync.Mutex
}

type cacheEntry struct {
	stored  time.Time
	lruNode *list.Element
	listing remote.Listing
}

type pathLock struct {
	holder  LockOwner
	waiters []LockOwner
}

// New creates an empty Cache.
func New(cfg Config) *Cache {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultConfig().MaxEntries
	}
	return &Cache{
		now:        cfg.Now,
		ttl:        cfg.TTL,
		maxEntries: cfg.MaxEntries,
		entries:    make(map[string]*cacheEntry),
		locks:      make(map[string]*pathLock),
		lruList:    list.New(),
	}
}

// Now returns the cache clock's current time.
func (c *Cache) Now() time.Time { return c.now() }

// Lookup returns a copy of the listing stored for path. stale reports that
// the listing outlived the TTL.
func (c *Cache) Lookup(path remote.Path) (listing remote.Listing, found, stale bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path.String()]
	if !ok {
		c.misses++
		return remote.Listing{}, false, false
	}
	c.hits++
	c.lruList.MoveToFront(entry.lruNode)
	return entry.listing.Clone(), true, c.isStale(entry)
}

// LookupFile returns the entry called name (see remote.Listing.FindFileCmpCase)
// inside the listing of path.
func (c *Cache) LookupFile(path remote.Path, name string) (e remote.Entry, found, stale bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path.String()]
	if !ok {
		return remote.Entry{}, false, false
	}
	idx := entry.listing.FindFileCmpCase(name)
	if idx < 0 {
		return remote.Entry{}, false, c.isStale(entry)
	}
	return entry.listing.Entries[idx], true, c.isStale(entry)
}

func (c *Cache) isStale(entry *cacheEntry) bool {
	return c.now().Sub(entry.stored) > c.ttl
}

// Store saves listing, replacing any previous listing of the same path.
func (c *Cache) Store(listing remote.Listing) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := listing.Path.String()
	if existing, ok := c.entries[key]; ok {
		existing.listing = listing.Clone()
		existing.stored = c.now()
		c.lruList.MoveToFront(existing.lruNode)
		return
	}

	if len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}

	entry := &cacheEntry{
		listing: listing.Clone(),
		stored:  c.now(),
	}
	entry.lruNode = c.lruList.PushFront(key)
	c.entries[key] = entry
}

func (c *Cache) evictOldest() {
	oldest := c.lruList.Back()
	if oldest == nil {
		return
	}
	key, _ := oldest.Value.(string) //nolint:errcheck // list only holds keys
	c.lruList.Remove(oldest)
	delete(c.entries, key)
	slog.Debug("evicted directory listing", "path", key)
}

// InvalidateEntry marks name inside path as unsure, forcing the next
// listing of path to go to the backend.
func (c *Cache) InvalidateEntry(path remote.Path, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path.String()]
	if !ok {
		return
	}
	if idx := entry.listing.FindFileCmpCase(name); idx >= 0 {
		entry.listing.Entries[idx].Unsure = true
		return
	}
	entry.listing.Unsure = true
}

// AddEntry records a newly created item in the listing of path. The entry
// is unsure until a listing confirms it.
func (c *Cache) AddEntry(path remote.Path, name string, isDir bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path.String()]
	if !ok {
		return
	}
	e := remote.Entry{
		Name:   name,
		Size:   -1,
		IsDir:  isDir,
		Time:   c.now(),
		Unsure: true,
	}
	if idx := entry.listing.FindFileCmpCase(name); idx >= 0 {
		e.ID = entry.listing.Entries[idx].ID
		entry.listing.Entries[idx] = e
		return
	}
	entry.listing.Append(e)
}

// RemoveDir drops name from the listing of path along with the cached
// listings of the removed directory and everything below it.
func (c *Cache) RemoveDir(path remote.Path, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[path.String()]; ok {
		if idx := entry.listing.FindFileCmpCase(name); idx >= 0 {
			entries := entry.listing.Entries
			entry.listing.Entries = append(entries[:idx:idx], entries[idx+1:]...)
		}
	}

	removed := path.Child(name)
	for key, entry := range c.entries {
		if entry.listing.Path.Equal(removed) || removed.IsParentOf(entry.listing.Path) {
			c.lruList.Remove(entry.lruNode)
			delete(c.entries, key)
		}
	}
}

// Stats returns the lookup hit and miss counts.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
