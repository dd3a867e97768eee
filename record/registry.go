package record

import (
	"reflect"
	"sync"

	"github.com/rxcache/rxcache/rxerrors"
)

// TypeRegistry maps a Record's TypeTag back to a concrete Go type, so a
// payload that was msgpack-encoded into Record.Payload can be decoded
// back into a value of its original type. Go has no runtime equivalent
// of Java's Class.getName() for an arbitrary decoded value — callers
// register the concrete types their providers return, once, at startup.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewTypeRegistry returns an empty TypeRegistry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{types: make(map[string]reflect.Type)}
}

// Register associates a zero-value example of a type with its tag
// (the type's string form, e.g. "main.User" or "[]main.Order") and
// returns that tag. Safe to call repeatedly with the same type.
func (r *TypeRegistry) Register(example any) string {
	t := reflect.TypeOf(example)
	tag := t.String()
	r.mu.Lock()
	r.types[tag] = t
	r.mu.Unlock()
	return tag
}

// TagOf returns the tag a payload would be stored under, without
// requiring the type to already be registered — Save computes the tag
// this way so callers are not forced to pre-register every provider's
// return type before first use; only decoding back into that type
// (deep-copy, migrations matching by tag) needs a prior Register.
func TagOf(payload any) string {
	return reflect.TypeOf(payload).String()
}

// New allocates a zero value of the type registered under tag and
// returns a pointer to it, suitable as a msgpack.Unmarshal target.
func (r *TypeRegistry) New(tag string) (any, bool) {
	r.mu.RLock()
	t, ok := r.types[tag]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return reflect.New(t).Interface(), true
}

// Unregistered returns the error raised when a tag has no corresponding
// registered type.
func Unregistered(tag string) error {
	return rxerrors.InvalidConfig("typeTag:" + tag)
}
