// Package record defines the unit of storage the cache moves between
// the memory layer, the disk layer, and the caller: Record and its
// public-facing sibling Reply.
package record

import "time"

// Source identifies where a Record or Reply's payload came from.
type Source int

const (
	// MEMORY means the value was served from the in-process memory layer.
	MEMORY Source = iota
	// DISK means the value was served from the persistence layer.
	DISK
	// CLOUD means the value was just produced by a provider's loader.
	CLOUD
)

func (s Source) String() string {
	switch s {
	case MEMORY:
		return "MEMORY"
	case DISK:
		return "DISK"
	case CLOUD:
		return "CLOUD"
	default:
		return "UNKNOWN"
	}
}

// Record is a cache entry's stored form: payload bytes plus the
// metadata needed to decide expiry, migration eligibility, and budget
// accounting. Payload is kept as msgpack-encoded bytes rather than `any`
// so a Record can be written to disk or held in memory uniformly and so
// the deep-copier's clone-by-round-trip has a single decode path.
type Record struct {
	Payload        []byte
	TypeTag        string
	CreatedAt      time.Time
	LifetimeMillis int64
	Expirable      bool
	Source         Source
}

// Expired reports whether the record has outlived its configured
// lifetime as of now. A LifetimeMillis of 0 means "never expires" and
// is never considered expired.
func (r Record) Expired(now time.Time) bool {
	if r.LifetimeMillis == 0 {
		return false
	}
	return now.Sub(r.CreatedAt) > time.Duration(r.LifetimeMillis)*time.Millisecond
}

// Reply is the payload-plus-origin pair returned to callers who opted
// into a detailed response instead of the bare payload.
type Reply struct {
	Payload any
	Source  Source
}
