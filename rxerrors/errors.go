// Package rxerrors defines the error kinds RxCache surfaces to callers.
// All constructors wrap github.com/cockroachdb/errors so that
// errors.Is/errors.As work across package boundaries and a %+v format
// verb recovers a stack trace.
package rxerrors

import (
	"github.com/cockroachdb/errors"
)

// sentinel values usable with errors.Is.
var (
	ErrNoDataFromLoader     = errors.New("rxcache: no data returned from loader")
	ErrMigrationFailed      = errors.New("rxcache: migration failed")
	ErrInvalidConfig        = errors.New("rxcache: invalid configuration")
	ErrKeySeparatorCollision = errors.New("rxcache: key contains reserved separator")
)

// NoDataFromLoader builds the error raised when a provider's loader
// returned no usable payload (nil or error) and no expired fallback
// record could be served instead. cause is the loader's own error, if
// it returned one, and is attached so the caller can see why; it may
// be nil when the loader returned a nil payload with no error, or when
// the descriptor carried no loader at all.
func NoDataFromLoader(providerKey string, cause error) error {
	if cause != nil {
		return errors.Wrapf(ErrNoDataFromLoader, "provider %q: %v", providerKey, cause)
	}
	return errors.Wrapf(ErrNoDataFromLoader, "provider %q", providerKey)
}

// MigrationFailed builds the error raised when a schema migration step
// fails during startup. The cause is attached so errors.Cause/errors.As
// recovers the underlying action error.
func MigrationFailed(version int, cause error) error {
	return errors.Mark(errors.Wrapf(cause, "rxcache: migration failed: version %d", version), ErrMigrationFailed)
}

// InvalidConfig builds the error raised when a required configuration
// field is missing or malformed.
func InvalidConfig(field string) error {
	return errors.Wrapf(ErrInvalidConfig, "field %q", field)
}

// KeySeparatorCollision builds the error raised when a caller-supplied
// key segment contains the reserved "$d$"/"$g$" separator and the key
// was not built with escaping enabled.
func KeySeparatorCollision(key string) error {
	return errors.Wrapf(ErrKeySeparatorCollision, "key %q", key)
}
