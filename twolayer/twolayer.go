// Package twolayer implements the two-tier cache engine: memory-then-disk
// lookup, TTL evaluation, the three eviction scopes, and the disk-size
// budget reclamation pass. This is the orchestration component spec.md
// §4.3 describes; it owns no I/O format of its own — that is
// persistence's job — and holds no payload decoding knowledge — that is
// the pipeline's and deepcopy's job.
package twolayer

import (
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/rxcache/rxcache/key"
	"github.com/rxcache/rxcache/logger"
	"github.com/rxcache/rxcache/memlayer"
	"github.com/rxcache/rxcache/persistence"
	"github.com/rxcache/rxcache/record"
)

// lowFreeSpaceThreshold is the fraction of free space on the cache
// directory's filesystem below which reclaim logs a diagnostic once it
// has already exhausted every expirable record and is still over
// budget.
const lowFreeSpaceThreshold = 0.05

// Cache is the two-tier cache engine.
type Cache struct {
	mem     *memlayer.Layer[record.Record]
	disk    persistence.Persistence
	maxMB   float64
	log     logger.Logger
	now     func() time.Time
	diskDir string
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the cache's notion of "now", for deterministic
// expiry tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithDiskDir records the filesystem directory the disk tier is rooted
// at, so reclaim can query its free space with gopsutil when every
// expirable record has already been reclaimed and usage is still over
// budget. Omitted, the free-space diagnostic is simply skipped.
func WithDiskDir(dir string) Option {
	return func(c *Cache) { c.diskDir = dir }
}

// New returns a Cache with no entries, backed by disk and bounded by
// maxMB megabytes of disk usage.
func New(diskTier persistence.Persistence, maxMB float64, log logger.Logger, opts ...Option) *Cache {
	if log == nil {
		log = logger.NewTestLogger()
	}
	c := &Cache{
		mem:   memlayer.New[record.Record](),
		disk:  diskTier,
		maxMB: maxMB,
		log:   log,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Retrieve implements spec.md §4.3's retrieve contract: memory-then-disk
// lookup, promotion of a disk hit into memory, and the three-way expiry
// decision (fresh, expired-but-allowed, expired-and-evicted).
func (c *Cache) Retrieve(providerKey, dynamicKey, groupKey string, allowExpired bool, lifetimeMillis int64) (record.Record, bool, error) {
	flat, err := key.New(providerKey, dynamicKey, groupKey).Flatten()
	if err != nil {
		return record.Record{}, false, err
	}

	rec, source, found := c.lookup(flat)
	if !found {
		return record.Record{}, false, nil
	}
	rec.Source = source

	if !isExpired(rec.CreatedAt, lifetimeMillis, c.now()) {
		return rec, true, nil
	}

	if allowExpired {
		return rec, true, nil
	}

	c.evictBoth(flat)
	return record.Record{}, false, nil
}

func (c *Cache) lookup(flat string) (record.Record, record.Source, bool) {
	if rec, ok := c.mem.Get(flat); ok {
		return rec, record.MEMORY, true
	}
	rec, ok := c.disk.RetrieveRecord(flat)
	if !ok {
		return record.Record{}, record.DISK, false
	}
	c.mem.Put(flat, rec) // promote disk hit into memory
	return rec, record.DISK, true
}

func isExpired(createdAt time.Time, lifetimeMillis int64, now time.Time) bool {
	if lifetimeMillis == 0 {
		return false
	}
	return now.Sub(createdAt) > time.Duration(lifetimeMillis)*time.Millisecond
}

// Save writes rec to both layers under (providerKey, dynamicKey,
// groupKey). Budget reclamation runs before the write (per spec.md
// §4.3) and, when rec is itself expirable, once more after — the
// second pass is what lets maxMB=0 evict an expirable record right
// after it lands, per spec.md §8's boundary behaviour, rather than
// waiting for the next unrelated Save to notice the overage.
func (c *Cache) Save(providerKey, dynamicKey, groupKey string, rec record.Record) error {
	flat, err := key.New(providerKey, dynamicKey, groupKey).Flatten()
	if err != nil {
		return err
	}

	c.reclaim()

	rec.CreatedAt = c.now()
	c.mem.Put(flat, rec)
	if err := c.disk.Save(flat, rec); err != nil {
		c.log.Debug("rxcache: disk save failed for key %q: %v", flat, err)
	}

	if rec.Expirable {
		c.reclaim()
	}
	return nil
}

// reclaim deletes expirable disk records, in ascending key order, until
// StoredMB is at or under maxMB or no expirable record remains.
func (c *Cache) reclaim() {
	if c.disk.StoredMB() <= c.maxMB {
		return
	}
	for _, k := range c.disk.AllKeys() {
		if c.disk.StoredMB() <= c.maxMB {
			return
		}
		h, ok := c.disk.RetrieveHeader(k)
		if !ok || !h.Expirable {
			continue
		}
		c.disk.Evict(k)
		c.mem.Remove(k)
	}
	if c.disk.StoredMB() > c.maxMB {
		c.log.Warn("rxcache: disk usage %.2fMB exceeds budget %.2fMB and every remaining record is non-expirable", c.disk.StoredMB(), c.maxMB)
		c.warnIfLowFreeSpace()
	}
}

// warnIfLowFreeSpace logs once when the cache directory's filesystem is
// running low on room, on top of the budget-exceeded warning above —
// the original never queries device free space at all, a gap worth
// closing in a from-scratch rewrite.
func (c *Cache) warnIfLowFreeSpace() {
	if c.diskDir == "" {
		return
	}
	usage, err := disk.Usage(c.diskDir)
	if err != nil {
		c.log.Debug("rxcache: could not read free space for %q: %v", c.diskDir, err)
		return
	}
	if usage.Total == 0 {
		return
	}
	freeFraction := float64(usage.Free) / float64(usage.Total)
	if freeFraction < lowFreeSpaceThreshold {
		c.log.Warn("rxcache: filesystem backing %q has only %.1f%% free space remaining", c.diskDir, freeFraction*100)
	}
}

func (c *Cache) evictBoth(flat string) {
	c.mem.Remove(flat)
	c.disk.Evict(flat)
}

// EvictProviderKey clears every entry addressed under providerKey,
// regardless of dynamic key or group key.
func (c *Cache) EvictProviderKey(providerKey string) {
	c.evictByPrefix(key.ProviderPrefix(providerKey))
}

// EvictDynamicKey clears every entry addressed under
// (providerKey, dynamicKey), regardless of group key.
func (c *Cache) EvictDynamicKey(providerKey, dynamicKey string) {
	c.evictByPrefix(key.DynamicKeyPrefix(providerKey, dynamicKey))
}

// EvictDynamicKeyGroup clears exactly the entry addressed under
// (providerKey, dynamicKey, groupKey). Unlike the other two scopes,
// groupKey is the innermost segment of the flattened key with nothing
// after it, so this is an equality match rather than a prefix match.
// Routing it through evictByPrefix would also delete any other stored
// group key for which groupKey is a string prefix (evicting group "a"
// would also delete group "ab").
func (c *Cache) EvictDynamicKeyGroup(providerKey, dynamicKey, groupKey string) {
	flat, err := key.New(providerKey, dynamicKey, groupKey).Flatten()
	if err != nil {
		return
	}
	c.evictBoth(flat)
}

func (c *Cache) evictByPrefix(prefix string) {
	c.mem.RemoveByPrefix(prefix)
	for _, k := range c.disk.AllKeys() {
		if strings.HasPrefix(k, prefix) {
			c.disk.Evict(k)
		}
	}
}

// EvictAll clears both layers entirely.
func (c *Cache) EvictAll() {
	c.mem.Clear()
	c.disk.EvictAll()
}

// StoredMB reports the disk tier's current usage, mostly useful for
// tests.
func (c *Cache) StoredMB() float64 {
	return c.disk.StoredMB()
}
