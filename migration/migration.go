// Package migration implements the schema migration runner: an ordered
// sequence of versioned actions applied once against the persistence
// layer, tracked by a marker the persistence layer itself stores.
//
// Grounded on original_source/rx_cache/internal/migration/DeleteRecordMatchingClassName.java,
// the only migration action the original ships.
package migration

import (
	"context"

	"github.com/rxcache/rxcache/logger"
	"github.com/rxcache/rxcache/persistence"
	"github.com/rxcache/rxcache/rxerrors"
)

// Action mutates the persistence layer as part of a single migration
// step.
type Action interface {
	Apply(ctx context.Context, disk persistence.Persistence) error
}

// Step is one versioned migration action. Steps are applied in
// ascending Version order, and only those with Version greater than
// the store's current schema version marker run.
type Step struct {
	Version int
	Action  Action
}

// Runner applies an ordered list of Steps against a Persistence.
type Runner struct {
	disk  persistence.Persistence
	log   logger.Logger
	steps []Step
}

// New returns a Runner over the given steps. Steps need not already be
// sorted by Version; New sorts them.
func New(disk persistence.Persistence, log logger.Logger, steps ...Step) *Runner {
	if log == nil {
		log = logger.NewTestLogger()
	}
	sorted := make([]Step, len(steps))
	copy(sorted, steps)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].Version > sorted[j].Version; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	return &Runner{disk: disk, log: log, steps: sorted}
}

// Run reads the persisted schema version marker, applies every step
// whose Version exceeds it in ascending order, and advances the marker
// to the highest version applied. The first action failure aborts the
// run and is returned wrapped in rxerrors.ErrMigrationFailed; the
// marker is not advanced past the last successfully applied step.
func (r *Runner) Run(ctx context.Context) error {
	current, err := r.disk.SchemaVersion()
	if err != nil {
		return rxerrors.MigrationFailed(current, err)
	}

	applied := current
	for _, step := range r.steps {
		if step.Version <= current {
			continue
		}
		r.log.Debug("rxcache: applying migration step %d", step.Version)
		if err := step.Action.Apply(ctx, r.disk); err != nil {
			if setErr := r.disk.SetSchemaVersion(applied); setErr != nil {
				r.log.Debug("rxcache: failed to persist partial schema version %d: %v", applied, setErr)
			}
			return rxerrors.MigrationFailed(step.Version, err)
		}
		applied = step.Version
	}

	if applied != current {
		if err := r.disk.SetSchemaVersion(applied); err != nil {
			return rxerrors.MigrationFailed(applied, err)
		}
	}
	return nil
}

// DeleteByTypeTag deletes every record whose stored TypeTag matches one
// of tags. Direct translation of DeleteRecordMatchingClassName.
type DeleteByTypeTag struct {
	Tags []string
}

// Apply implements Action.
func (a DeleteByTypeTag) Apply(ctx context.Context, disk persistence.Persistence) error {
	if len(a.Tags) == 0 {
		return nil
	}
	want := make(map[string]struct{}, len(a.Tags))
	for _, t := range a.Tags {
		want[t] = struct{}{}
	}
	for _, key := range disk.AllKeys() {
		if err := ctx.Err(); err != nil {
			return err
		}
		h, ok := disk.RetrieveHeader(key)
		if !ok {
			continue
		}
		if _, match := want[h.TypeTag]; match {
			disk.Evict(key)
		}
	}
	return nil
}

// RenameTypeTag rewrites the TypeTag field of every record currently
// tagged from to to, by re-saving it in place — there is no in-place
// field update per spec's record lifecycle invariant, so a rename is a
// full read-modify-write. Unlike DeleteByTypeTag this has no direct
// original_source equivalent; it is synthesized in the same idiom to
// cover spec §4.5's second named action variant.
type RenameTypeTag struct {
	From string
	To   string
}

// Apply implements Action.
func (a RenameTypeTag) Apply(ctx context.Context, disk persistence.Persistence) error {
	for _, key := range disk.AllKeys() {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, ok := disk.RetrieveRecord(key)
		if !ok || rec.TypeTag != a.From {
			continue
		}
		rec.TypeTag = a.To
		if err := disk.Save(key, rec); err != nil {
			return err
		}
	}
	return nil
}
