package pipeline

import "context"

// EvictDirective names the scope a request clears, independent of
// whether its loader succeeds. A closed set of variants, so a Go enum
// rather than the original's marker-class hierarchy.
type EvictDirective int

const (
	// EvictNone clears no scope.
	EvictNone EvictDirective = iota
	// EvictAll clears both layers entirely.
	EvictAll
	// EvictProvider clears every entry under a provider key.
	EvictProvider
	// EvictDynamicKey clears every entry under (providerKey, dynamicKey).
	EvictDynamicKey
	// EvictDynamicKeyGroup clears the entry under
	// (providerKey, dynamicKey, groupKey).
	EvictDynamicKeyGroup
)

// Loader lazily produces one payload for a cache miss. A nil payload
// with a nil error is treated the same as a loader error: no usable
// data was produced.
type Loader func(ctx context.Context) (any, error)

// Descriptor is everything a single request needs: the key to address,
// its TTL policy, whether eviction should run, and the loader to fall
// back to on a miss. Mirrors spec §4.6's request descriptor.
type Descriptor struct {
	ProviderKey string
	DynamicKey  string
	GroupKey    string

	LifetimeMillis int64
	Expirable      bool

	RequiresDetailedResponse bool
	EvictDirective           EvictDirective

	Loader Loader
}
