// Package sweep implements the expired-record sweeper: a single
// startup-time pass that evicts every expirable, expired record,
// leaving non-expirable records untouched regardless of age.
package sweep

import (
	"context"
	"time"

	"github.com/rxcache/rxcache/logger"
	"github.com/rxcache/rxcache/persistence"
)

// Clock returns the current time; overridable in tests.
type Clock func() time.Time

// Sweeper runs the one-pass expired-record sweep described in spec §4.4.
type Sweeper struct {
	disk persistence.Persistence
	log  logger.Logger
	now  Clock
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithClock overrides the sweeper's notion of "now".
func WithClock(now Clock) Option {
	return func(s *Sweeper) { s.now = now }
}

// New returns a Sweeper over disk.
func New(disk persistence.Persistence, log logger.Logger, opts ...Option) *Sweeper {
	if log == nil {
		log = logger.NewTestLogger()
	}
	s := &Sweeper{disk: disk, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep loads only headers for every stored key, evicting any that are
// both expirable and expired. A single key's I/O error is logged at
// Debug and skipped rather than aborting the pass — spec §4.4's
// "fails soft." Sweep always completes a full pass and returns nil
// unless ctx is cancelled mid-pass.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := s.now()
	evicted := 0
	for _, key := range s.disk.AllKeys() {
		if err := ctx.Err(); err != nil {
			return err
		}
		h, ok := s.disk.RetrieveHeader(key)
		if !ok {
			s.log.Debug("rxcache: sweep could not read header for key %q, skipping", key)
			continue
		}
		if !h.Expirable || !h.Expired(now) {
			continue
		}
		s.disk.Evict(key)
		evicted++
	}
	if evicted > 0 {
		s.log.Debug("rxcache: startup sweep evicted %d expired record(s)", evicted)
	}
	return nil
}
