// Package deepcopy produces structurally independent copies of cached
// payloads, so a caller mutating a value returned from the cache can
// never poison what is stored in memory or on disk.
//
// The clone is produced by a serialise/deserialise round-trip through
// msgpack, the same library the cache's persistence layer uses to
// encode records — grounded directly on design note §9's "the source
// relies on serialisation-round-trip to clone."
package deepcopy

import (
	"reflect"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/rxcache/rxcache/record"
)

// Copy returns a deep, structurally independent copy of payload.
// payload's concrete type must already be registered with reg (via
// reg.Register) so the clone can be decoded back into the same type.
func Copy(reg *record.TypeRegistry, payload any) (any, error) {
	data, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, err
	}

	tag := record.TagOf(payload)
	target, ok := reg.New(tag)
	if !ok {
		return nil, record.Unregistered(tag)
	}

	if err := msgpack.Unmarshal(data, target); err != nil {
		return nil, err
	}

	return derefPointer(target), nil
}

// Decode reconstructs a stored record's payload bytes into a fresh
// value of its registered TypeTag. Used on the retrieve path, where
// the cache only ever holds the msgpack-encoded form — unmarshal always
// allocates new memory, so the result is independent by construction,
// the same guarantee Copy provides starting from an already-decoded
// value.
func Decode(reg *record.TypeRegistry, typeTag string, payload []byte) (any, error) {
	target, ok := reg.New(typeTag)
	if !ok {
		return nil, record.Unregistered(typeTag)
	}
	if err := msgpack.Unmarshal(payload, target); err != nil {
		return nil, err
	}
	return derefPointer(target), nil
}

// derefPointer returns *p's pointee as an any, mirroring what the
// caller originally handed in (a value, not a pointer to it), since
// reg.New always allocates via reflect.New and returns a pointer.
func derefPointer(p any) any {
	return reflect.ValueOf(p).Elem().Interface()
}
