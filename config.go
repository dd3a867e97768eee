package rxcache

import (
	"os"

	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// defaultMaxMBPersistence is applied only when maxMBPersistenceCache is
// absent from the YAML file entirely. A pointer field is what lets
// LoadConfig and Builder tell "absent" apart from an explicit
// maxMBPersistenceCache: 0, which spec.md §8 gives its own meaning
// (evict every expirable record immediately on save) rather than
// treating it as a missing value.
const defaultMaxMBPersistence = 100

// Config is the declarative, file-based form of a Builder's settings,
// for hosts that prefer a YAML file over assembling options in code.
type Config struct {
	CacheDirectory     string   `yaml:"cacheDirectory"`
	UseExpiredFallback bool     `yaml:"useExpiredDataIfLoaderNotAvailable"`
	MaxMBPersistence   *float64 `yaml:"maxMBPersistenceCache"`

	// DefaultLifetime accepts a human-readable duration string
	// ("24h", "7d") rather than a raw millisecond integer, resolved to
	// DefaultLifetimeMillis by LoadConfig.
	DefaultLifetime       string `yaml:"defaultLifetime"`
	DefaultLifetimeMillis int64  `yaml:"-"`
}

// LoadConfig reads and parses a YAML configuration file at path.
// DefaultLifetime, if present, is parsed with go-str2duration so hosts
// can write "24h" or "7d" instead of a raw millisecond count.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	if cfg.DefaultLifetime != "" {
		d, err := str2duration.ParseDuration(cfg.DefaultLifetime)
		if err != nil {
			return nil, err
		}
		cfg.DefaultLifetimeMillis = d.Milliseconds()
	}

	return &cfg, nil
}

// Builder returns a Builder pre-populated from this Config.
// maxMBPersistenceCache defaults to 100 only when it was left out of the
// file entirely; an explicit 0 is passed through unchanged.
func (c *Config) Builder() *Builder {
	maxMB := float64(defaultMaxMBPersistence)
	if c.MaxMBPersistence != nil {
		maxMB = *c.MaxMBPersistence
	}
	return NewBuilder().
		WithCacheDirectory(c.CacheDirectory).
		WithExpiredFallback(c.UseExpiredFallback).
		WithMaxMB(maxMB)
}
