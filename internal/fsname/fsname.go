// Package fsname turns a cache's canonical composite key into a
// filesystem-safe relative path: a short hash-prefixed shard directory
// plus an escaped filename, so a store holding many keys never places
// every entry in a single flat directory.
package fsname

import (
	"crypto/sha1"
	"net/url"
	"path/filepath"
	"strings"
)

var crockfordAlphabet = []rune("0123456789abcdefghjkmnpqrstvwxyz")

// ShardHash computes a short Crockford base32 hash of value, used to
// bucket keys into shard subdirectories.
func ShardHash(value string, length int) string {
	if length <= 0 {
		panic("fsname: invalid length")
	}
	h := sha1.Sum([]byte(strings.ToLower(value)))

	var out []rune
	bits := 0
	acc := 0
	for _, b := range h[:] {
		acc = (acc << 8) | int(b)
		bits += 8
		for bits >= 5 {
			bits -= 5
			out = append(out, crockfordAlphabet[(acc>>bits)&31])
			if len(out) >= length {
				return string(out)
			}
		}
	}
	if bits > 0 && len(out) < length {
		out = append(out, crockfordAlphabet[(acc<<uint(5-bits))&31])
	}
	return string(out)
}

// ShardPrefixLength is the number of characters of ShardHash used as the
// shard subdirectory name.
const ShardPrefixLength = 2

// Path returns the store-relative path for the given canonical key: a
// two-character shard directory followed by the percent-escaped key.
func Path(canonicalKey string) string {
	shard := ShardHash(canonicalKey, ShardPrefixLength)
	return filepath.Join(shard, url.PathEscape(canonicalKey))
}

// Unescape reverses the filename component produced by Path, recovering
// the canonical key from a file name.
func Unescape(fileName string) (string, error) {
	return url.PathUnescape(fileName)
}
