/*
Copyright 2026 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cache

import (
	"context"
	"net/url"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	jsoniter "github.com/json-iterator/go"
	"github.com/peterbourgon/diskv/v3"

	"github.com/gravitational/coindash/lib/logger"
)

const (
	// DefaultTTL is how long an entry is considered fresh.
	DefaultTTL = 5 * time.Minute

	// cacheSizeMaxBytes max memory cache
	cacheSizeMaxBytes = 1024 * 1024
)

var codec = jsoniter.ConfigFastest

// Config is the cache section of the configuration file.
type Config struct {
	// Dir is the cache directory.
	Dir string `toml:"dir"`
	// TTL is how long an entry is considered fresh.
	TTL time.Duration `toml:"ttl"`
	// Clock is used to timestamp entries.
	Clock clockwork.Clock `toml:"-"`
}

// CheckAndSetDefaults validates the config and sets defaults.
func (c *Config) CheckAndSetDefaults() error {
	if c.Dir == "" {
		return trace.BadParameter("missing cache dir")
	}
	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}
	if c.TTL < 0 {
		return trace.BadParameter("cache TTL must be positive, got %v", c.TTL)
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

type entry struct {
	StoredAt time.Time           `json:"storedAt"`
	Value    jsoniter.RawMessage `json:"value"`
}

// Cache keeps JSON encoded values on disk, one file per key.
type Cache struct {
	dv    *diskv.Diskv
	ttl   time.Duration
	clock clockwork.Clock
}

// New creates a cache rooted at conf.Dir.
func New(conf Config) (*Cache, error) {
	if err := conf.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}

	// Simplest transform function: put all the data files into the base dir.
	flatTransform := func(s string) []string { return []string{} }

	dv := diskv.New(diskv.Options{
		BasePath:     conf.Dir,
		Transform:    flatTransform,
		CacheSizeMax: cacheSizeMaxBytes,
		FilePerm:     0600,
		PathPerm:     0700,
	})

	return &Cache{dv: dv, ttl: conf.TTL, clock: conf.Clock}, nil
}

// Get decodes the entry into out if it is fresh.
func (c *Cache) Get(key string, out interface{}) (bool, error) {
	e, ok, err := c.read(key)
	if err != nil || !ok {
		return false, trace.Wrap(err)
	}
	if c.expired(e) {
		return false, nil
	}
	if err := codec.Unmarshal(e.Value, out); err != nil {
		return false, trace.Wrap(err, "decoding cache entry %q", key)
	}
	return true, nil
}

// GetStale decodes the entry into out regardless of its age and returns the
// time it was stored.
func (c *Cache) GetStale(key string, out interface{}) (time.Time, bool, error) {
	e, ok, err := c.read(key)
	if err != nil || !ok {
		return time.Time{}, false, trace.Wrap(err)
	}
	if err := codec.Unmarshal(e.Value, out); err != nil {
		return time.Time{}, false, trace.Wrap(err)
	}
	return e.StoredAt, true, nil
}

// Put stores the value under the key.
func (c *Cache) Put(key string, value interface{}) error {
	raw, err := codec.Marshal(value)
	if err != nil {
		return trace.Wrap(err)
	}
	data, err := codec.Marshal(entry{StoredAt: c.clock.Now().UTC(), Value: raw})
	if err != nil {
		return trace.Wrap(err)
	}
	return trace.ConvertSystemError(c.dv.Write(fileName(key), data))
}

// Erase removes the entry, a missing one is not an error.
func (c *Cache) Erase(key string) error {
	name := fileName(key)
	if !c.dv.Has(name) {
		return nil
	}
	return trace.ConvertSystemError(c.dv.Erase(name))
}

// Prune removes expired entries.
func (c *Cache) Prune(ctx context.Context) error {
	cancel := make(chan struct{})
	defer close(cancel)

	var errs []error
	for name := range c.dv.Keys(cancel) {
		if err := ctx.Err(); err != nil {
			return trace.Wrap(err)
		}
		e, ok, err := c.readFile(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok && c.expired(e) {
			errs = append(errs, trace.ConvertSystemError(c.dv.Erase(name)))
		}
	}
	return trace.NewAggregate(errs...)
}

// Purge removes every entry.
func (c *Cache) Purge() error {
	return trace.ConvertSystemError(c.dv.EraseAll())
}

func (c *Cache) expired(e entry) bool {
	return c.clock.Since(e.StoredAt) > c.ttl
}

func (c *Cache) read(key string) (entry, bool, error) {
	return c.readFile(fileName(key))
}

func (c *Cache) readFile(name string) (entry, bool, error) {
	if !c.dv.Has(name) {
		return entry{}, false, nil
	}
	data, err := c.dv.Read(name)
	if err != nil {
		return entry{}, false, trace.ConvertSystemError(err)
	}
	var e entry
	if err := codec.Unmarshal(data, &e); err != nil {
		return entry{}, false, trace.Wrap(err, "corrupted cache entry %q", name)
	}
	return e, true, nil
}

// fileName maps a cache key to a file name safe for any key.
func fileName(key string) string {
	return url.QueryEscape(key)
}

// Load returns the cached value for the key while it is fresh, otherwise it
// calls fetch and caches the result. When fetch fails a stale entry is used if
// there is one.
func Load[T any](ctx context.Context, c *Cache, key string, fetch func(context.Context) (T, error)) (T, error) {
	log := logger.Get(ctx).WithField("key", key)

	var value T
	fresh, err := c.Get(key, &value)
	if err != nil {
		log.WithError(err).Warn("Failed to read cache entry")
		if err := c.Erase(key); err != nil {
			log.WithError(err).Warn("Failed to erase cache entry")
		}
	}
	if fresh {
		log.Debug("Using cached value")
		return value, nil
	}

	value, err = fetch(ctx)
	if err == nil {
		if err := c.Put(key, value); err != nil {
			log.WithError(err).Warn("Failed to cache value")
		}
		return value, nil
	}

	var stale T
	storedAt, ok, staleErr := c.GetStale(key, &stale)
	if staleErr != nil || !ok {
		return value, trace.Wrap(err)
	}
	log.WithError(err).WithField("stored_at", storedAt).Warn("Fetch failed, using stale cached value")
	return stale, nil
}
