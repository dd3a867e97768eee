// Package rxcache is a reactive, two-tier (memory + disk) keyed cache
// for provider loaders: TTL expiry, scoped eviction, a disk-size
// budget, schema migration, and an optional "serve expired data when
// the loader is unavailable" policy.
//
// Construction mirrors io.rx_cache.internal.RxCache.Builder: a
// Builder accumulates configuration and Build() produces a *Cache.
package rxcache

import (
	"context"
	"sync"

	"github.com/rxcache/rxcache/logger"
	"github.com/rxcache/rxcache/migration"
	"github.com/rxcache/rxcache/persistence"
	"github.com/rxcache/rxcache/pipeline"
	"github.com/rxcache/rxcache/record"
	"github.com/rxcache/rxcache/rxerrors"
	"github.com/rxcache/rxcache/sweep"
	"github.com/rxcache/rxcache/twolayer"
)

// Descriptor re-exports pipeline.Descriptor at the package root so
// callers need not import the pipeline package directly.
type Descriptor = pipeline.Descriptor

// Loader re-exports pipeline.Loader.
type Loader = pipeline.Loader

// Reply re-exports record.Reply.
type Reply = record.Reply

// Source re-exports record.Source and its MEMORY/DISK/CLOUD values.
type Source = record.Source

const (
	MEMORY = record.MEMORY
	DISK   = record.DISK
	CLOUD  = record.CLOUD
)

// Eviction directive re-exports.
const (
	EvictNone            = pipeline.EvictNone
	EvictAll             = pipeline.EvictAll
	EvictProvider        = pipeline.EvictProvider
	EvictDynamicKey      = pipeline.EvictDynamicKey
	EvictDynamicKeyGroup = pipeline.EvictDynamicKeyGroup
)

// Cache is a built, ready-to-use instance of the library.
type Cache struct {
	pipeline *pipeline.Pipeline
	registry *record.TypeRegistry
	disk     persistence.Persistence
}

// Register associates a zero-value example of a type with the tag its
// payloads will be stored and decoded under. Every concrete type a
// provider's loader can return must be registered before that
// provider's first Do call.
func (c *Cache) Register(example any) string {
	return c.registry.Register(example)
}

// Do runs one request through the pipeline: retrieve-or-load, apply
// the eviction directive, deep-copy, and shape the response.
func (c *Cache) Do(ctx context.Context, d Descriptor) (any, error) {
	return c.pipeline.Do(ctx, d)
}

// Builder accumulates configuration for a Cache, mirroring
// io.rx_cache.internal.RxCache.Builder's accumulate-then-build shape.
type Builder struct {
	cacheDirectory     string
	useExpiredFallback bool
	maxMB              float64
	log                logger.Logger
	migrationSteps     []migration.Step
}

// NewBuilder returns an empty Builder. maxMBPersistenceCache defaults
// to 100, matching the original's documented default.
func NewBuilder() *Builder {
	return &Builder{maxMB: 100}
}

// WithCacheDirectory sets the required root of the persistence store.
func (b *Builder) WithCacheDirectory(dir string) *Builder {
	b.cacheDirectory = dir
	return b
}

// WithExpiredFallback sets useExpiredDataIfLoaderNotAvailable.
func (b *Builder) WithExpiredFallback(use bool) *Builder {
	b.useExpiredFallback = use
	return b
}

// WithMaxMB sets the disk budget, in megabytes, that triggers
// reclamation.
func (b *Builder) WithMaxMB(maxMB float64) *Builder {
	b.maxMB = maxMB
	return b
}

// WithLogger overrides the default console logger.
func (b *Builder) WithLogger(log logger.Logger) *Builder {
	b.log = log
	return b
}

// WithMigrationSteps supplies the ordered schema migration steps run
// once at startup, before the expired-record sweep.
func (b *Builder) WithMigrationSteps(steps ...migration.Step) *Builder {
	b.migrationSteps = steps
	return b
}

var (
	lastMu   sync.Mutex
	lastInst *Cache
)

// Build validates the accumulated configuration and constructs a
// Cache. cacheDirectory is required; everything else has a default.
func (b *Builder) Build() (*Cache, error) {
	if b.cacheDirectory == "" {
		return nil, rxerrors.InvalidConfig("cacheDirectory")
	}

	log := b.log
	if log == nil {
		log = logger.NewConsoleLogger()
	}

	disk, err := persistence.New(b.cacheDirectory, log)
	if err != nil {
		return nil, err
	}

	layer := twolayer.New(disk, b.maxMB, log, twolayer.WithDiskDir(b.cacheDirectory))
	registry := record.NewTypeRegistry()
	mr := migration.New(disk, log, b.migrationSteps...)
	sw := sweep.New(disk, log)

	p := pipeline.New(layer, registry, mr, sw, b.useExpiredFallback, log)

	c := &Cache{pipeline: p, registry: registry, disk: disk}

	lastMu.Lock()
	lastInst = c
	lastMu.Unlock()

	return c, nil
}

// Last returns the most recently built Cache, or nil if none has been
// built yet. Supplemented from original_source's RxCache.retainedProxy()
// for hosts that prefer a package-level handle over threading an
// explicit one through their own call sites.
func Last() *Cache {
	lastMu.Lock()
	defer lastMu.Unlock()
	return lastInst
}
