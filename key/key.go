// Package key implements the composite key addressing scheme every
// cache entry is stored under: a provider key plus two optional,
// caller-supplied dynamic segments.
package key

import (
	"net/url"
	"strings"

	"github.com/rxcache/rxcache/rxerrors"
)

// dynamicSep and groupSep are the reserved separators used to flatten a
// composite key into its canonical string form. They must not appear in
// a caller-supplied key segment unless escaping is enabled.
const (
	dynamicSep = "$d$"
	groupSep   = "$g$"
)

// Key addresses a single cache entry.
type Key struct {
	ProviderKey string
	DynamicKey  string
	GroupKey    string

	escape bool
}

// Option configures how a Key is built.
type Option func(*Key)

// AllowEscaping percent-escapes any segment containing a reserved
// separator instead of rejecting it with ErrKeySeparatorCollision.
func AllowEscaping() Option {
	return func(k *Key) { k.escape = true }
}

// New builds a Key from a required provider key and optional dynamic
// key / group key segments.
func New(providerKey, dynamicKey, groupKey string, opts ...Option) Key {
	k := Key{ProviderKey: providerKey, DynamicKey: dynamicKey, GroupKey: groupKey}
	for _, opt := range opts {
		opt(&k)
	}
	return k
}

// Flatten returns the canonical string form of the key:
// providerKey + "$d$" + dynamicKey + "$g$" + groupKey.
//
// If any segment contains a reserved separator, Flatten either
// percent-escapes the offending segments (when the key was built with
// AllowEscaping) or returns ErrKeySeparatorCollision.
func (k Key) Flatten() (string, error) {
	pk, dk, gk := k.ProviderKey, k.DynamicKey, k.GroupKey
	if containsSeparator(pk) || containsSeparator(dk) || containsSeparator(gk) {
		if !k.escape {
			return "", rxerrors.KeySeparatorCollision(pk + dynamicSep + dk + groupSep + gk)
		}
		esc := func(s string) string {
			if containsSeparator(s) {
				return url.QueryEscape(s)
			}
			return s
		}
		pk, dk, gk = esc(pk), esc(dk), esc(gk)
	}
	return pk + dynamicSep + dk + groupSep + gk, nil
}

// MustFlatten is like Flatten but panics on error. Intended for tests
// and call sites that have already validated the key.
func (k Key) MustFlatten() string {
	s, err := k.Flatten()
	if err != nil {
		panic(err)
	}
	return s
}

func containsSeparator(segment string) bool {
	return strings.Contains(segment, dynamicSep) || strings.Contains(segment, groupSep)
}

// ProviderPrefix returns the canonical prefix matching every key
// belonging to a given provider, for use with scope eviction.
func ProviderPrefix(providerKey string) string {
	return providerKey + dynamicSep
}

// DynamicKeyPrefix returns the canonical prefix matching every key
// belonging to a given (providerKey, dynamicKey) pair.
func DynamicKeyPrefix(providerKey, dynamicKey string) string {
	return providerKey + dynamicSep + dynamicKey + groupSep
}
