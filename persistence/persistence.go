// Package persistence implements the disk tier of the cache: a
// directory of files, one per key, enumerable and size-accountable.
//
// Grounded on the teacher's cache/sqlite.go for the small targeted
// metadata read (RetrieveHeader), generalized from a
// single SQLite database file to spec.md §3/§6's required layout — a
// directory of files, one per key — since the systems-language target
// must support enumerating raw keys and reporting disk usage without a
// query engine in front of it.
package persistence

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/rxcache/rxcache/internal/fsname"
	"github.com/rxcache/rxcache/logger"
	"github.com/rxcache/rxcache/record"
)

// schemaVersionFile is the sidecar file holding the migration runner's
// marker, stored at the root of the cache directory.
const schemaVersionFile = "_schema_version"

// Header is a Record's metadata without its payload bytes, returned by
// RetrieveHeader so the sweeper and migration runner never deserialize
// a payload they only need to inspect TTL/type-tag fields on.
type Header struct {
	TypeTag        string
	CreatedAt      time.Time
	LifetimeMillis int64
	Expirable      bool
}

// Expired reports whether the header's record has outlived its
// configured lifetime as of now. Mirrors record.Record.Expired.
func (h Header) Expired(now time.Time) bool {
	if h.LifetimeMillis == 0 {
		return false
	}
	return now.Sub(h.CreatedAt) > time.Duration(h.LifetimeMillis)*time.Millisecond
}

// Persistence is the disk tier's contract. Every I/O error is swallowed
// at this layer per spec §4.1 — a cache miss is always a safe fallback
// — and logged at Debug instead of returned, except where the method
// signature below says otherwise (SchemaVersion/SetSchemaVersion, which
// the migration runner needs to fail loudly on, and Save, which logs at
// Debug and also returns the error to its caller).
type Persistence interface {
	// Save writes rec under key, replacing any prior value.
	Save(key string, rec record.Record) error
	// RetrieveRecord returns the full stored record, or ok=false if
	// absent or unreadable (torn write, I/O error).
	RetrieveRecord(key string) (rec record.Record, ok bool)
	// RetrieveHeader returns just a record's metadata, skipping payload
	// decode.
	RetrieveHeader(key string) (h Header, ok bool)
	// Evict deletes key. Idempotent.
	Evict(key string)
	// EvictAll deletes every stored key.
	EvictAll()
	// AllKeys returns a snapshot of currently stored keys. May be stale
	// with respect to concurrent writes.
	AllKeys() []string
	// StoredMB returns a best-effort estimate of bytes used, in
	// megabytes.
	StoredMB() float64
	// SchemaVersion returns the migration runner's persisted marker, or
	// 0 if none has been written yet.
	SchemaVersion() (int, error)
	// SetSchemaVersion persists the migration runner's marker.
	SetSchemaVersion(v int) error
}

type diskPersistence struct {
	dir string
	log logger.Logger
}

var _ Persistence = (*diskPersistence)(nil)

// New returns a Persistence backed by a directory of files under dir.
// dir is created if it does not already exist. log defaults to
// logger.NewTestLogger(), which records calls in memory and prints
// nothing, when nil.
func New(dir string, log logger.Logger) (Persistence, error) {
	if dir == "" {
		return nil, os.ErrInvalid
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewTestLogger()
	}
	return &diskPersistence{dir: dir, log: log}, nil
}

// envelope is the on-disk record representation: the raw msgpack bytes
// of fields plus a checksum guarding against torn writes.
type envelope struct {
	TypeTag        string
	Payload        []byte
	CreatedAtUnix  int64
	LifetimeMillis int64
	Expirable      bool
}

func (d *diskPersistence) fullPath(key string) string {
	return filepath.Join(d.dir, fsname.Path(key))
}

func (d *diskPersistence) Save(key string, rec record.Record) error {
	body, err := msgpack.Marshal(envelope{
		TypeTag:        rec.TypeTag,
		Payload:        rec.Payload,
		CreatedAtUnix:  rec.CreatedAt.UnixNano(),
		LifetimeMillis: rec.LifetimeMillis,
		Expirable:      rec.Expirable,
	})
	if err != nil {
		d.log.Debug("rxcache: encode failed for key %q: %v", key, err)
		return err
	}

	checksum := xxhash.Sum64(body)
	out := make([]byte, 8+len(body))
	putUint64(out, checksum)
	copy(out[8:], body)

	path := d.fullPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		d.log.Debug("rxcache: mkdir failed for key %q: %v", key, err)
		return err
	}

	tmp := path + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		d.log.Debug("rxcache: write failed for key %q: %v", key, err)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		d.log.Debug("rxcache: rename failed for key %q: %v", key, err)
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// readEnvelope loads and checksum-validates the file for key, treating
// any I/O error or checksum mismatch (a torn write) as absence.
func (d *diskPersistence) readEnvelope(key string) (envelope, bool) {
	raw, err := os.ReadFile(d.fullPath(key))
	if err != nil {
		return envelope{}, false
	}
	if len(raw) < 8 {
		return envelope{}, false
	}
	want := getUint64(raw)
	body := raw[8:]
	if xxhash.Sum64(body) != want {
		d.log.Debug("rxcache: checksum mismatch for key %q, treating as absent", key)
		return envelope{}, false
	}
	var env envelope
	if err := msgpack.Unmarshal(body, &env); err != nil {
		d.log.Debug("rxcache: decode failed for key %q: %v", key, err)
		return envelope{}, false
	}
	return env, true
}

func (d *diskPersistence) RetrieveRecord(key string) (record.Record, bool) {
	env, ok := d.readEnvelope(key)
	if !ok {
		return record.Record{}, false
	}
	return record.Record{
		Payload:        env.Payload,
		TypeTag:        env.TypeTag,
		CreatedAt:      time.Unix(0, env.CreatedAtUnix),
		LifetimeMillis: env.LifetimeMillis,
		Expirable:      env.Expirable,
		Source:         record.DISK,
	}, true
}

func (d *diskPersistence) RetrieveHeader(key string) (Header, bool) {
	env, ok := d.readEnvelope(key)
	if !ok {
		return Header{}, false
	}
	return Header{
		TypeTag:        env.TypeTag,
		CreatedAt:      time.Unix(0, env.CreatedAtUnix),
		LifetimeMillis: env.LifetimeMillis,
		Expirable:      env.Expirable,
	}, true
}

func (d *diskPersistence) Evict(key string) {
	if err := os.Remove(d.fullPath(key)); err != nil && !os.IsNotExist(err) {
		d.log.Debug("rxcache: evict failed for key %q: %v", key, err)
	}
}

func (d *diskPersistence) EvictAll() {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		d.log.Debug("rxcache: evictAll readdir failed: %v", err)
		return
	}
	for _, e := range entries {
		if e.Name() == schemaVersionFile {
			continue
		}
		_ = os.RemoveAll(filepath.Join(d.dir, e.Name()))
	}
}

// AllKeys walks the shard directories and recovers each file's
// canonical key from its escaped filename.
func (d *diskPersistence) AllKeys() []string {
	var keys []string
	_ = filepath.WalkDir(d.dir, func(path string, info fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // best-effort enumeration
		}
		if info.IsDir() {
			return nil
		}
		name := info.Name()
		if name == schemaVersionFile || strings.Contains(name, ".tmp-") {
			return nil
		}
		key, uerr := fsname.Unescape(name)
		if uerr != nil {
			return nil
		}
		keys = append(keys, key)
		return nil
	})
	sort.Strings(keys)
	return keys
}

func (d *diskPersistence) StoredMB() float64 {
	var total int64
	_ = filepath.WalkDir(d.dir, func(path string, info fs.DirEntry, err error) error {
		if err != nil || info.IsDir() {
			return nil //nolint:nilerr
		}
		fi, ferr := info.Info()
		if ferr != nil {
			return nil //nolint:nilerr
		}
		total += fi.Size()
		return nil
	})
	return float64(total) / (1024 * 1024)
}

func (d *diskPersistence) SchemaVersion() (int, error) {
	raw, err := os.ReadFile(filepath.Join(d.dir, schemaVersionFile))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, err
	}
	return v, nil
}

func (d *diskPersistence) SetSchemaVersion(v int) error {
	path := filepath.Join(d.dir, schemaVersionFile)
	tmp := path + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(v)), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func putUint64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

func getUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// DirSize is a small helper exposed for diagnostics (the CLI companion
// tool uses it) that returns the total
// number of bytes a directory occupies without constructing a full
// Persistence.
func DirSize(ctx context.Context, dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, info fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil || info.IsDir() {
			return err
		}
		fi, ferr := info.Info()
		if ferr != nil {
			return ferr
		}
		total += fi.Size()
		return nil
	})
	return total, err
}
