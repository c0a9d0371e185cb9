package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// ErrMiss is returned by a Store when a key is absent.
var ErrMiss = errors.New("cache: miss")

// Store is the backing key-value store. Implementations must honor per-key
// TTLs; expired keys behave as absent.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// legacyTypeField tags legacy payloads with a stable short name that maps to
// a registered decoder. It is not a language type identifier.
const legacyTypeField = "@type"

// Cache namespaces entries under a version prefix and applies fixed
// per-cache-name TTLs. All store errors are absorbed: a failed read is a
// miss, a failed write or evict is a no-op. Bumping the version prefix
// invalidates every historical entry without a scan pass; old-prefix keys
// simply age out by TTL and are never read again.
type Cache struct {
	store      Store
	version    string
	defaultTTL time.Duration
	ttls       map[string]time.Duration
	decoders   map[string]func() any
}

func New(store Store, version string, defaultTTL time.Duration, ttls map[string]time.Duration) *Cache {
	return &Cache{
		store:      store,
		version:    version,
		defaultTTL: defaultTTL,
		ttls:       ttls,
		decoders:   make(map[string]func() any),
	}
}

// RegisterLegacyType maps a payload tag to a constructor for the shape that
// tag should decode into during legacy recovery.
func (c *Cache) RegisterLegacyType(tag string, factory func() any) {
	c.decoders[tag] = factory
}

func (c *Cache) entryKey(name, key string) string {
	return c.version + "::" + name + "::" + key
}

func (c *Cache) ttl(name string) time.Duration {
	if ttl, ok := c.ttls[name]; ok {
		return ttl
	}
	return c.defaultTTL
}

// Get loads an entry into dest. It returns false on a miss, on any store
// error, and on payloads that cannot be decoded even after legacy recovery.
func (c *Cache) Get(ctx context.Context, name, key string, dest any) bool {
	raw, err := c.store.Get(ctx, c.entryKey(name, key))
	if errors.Is(err, ErrMiss) {
		return false
	}
	if err != nil {
		slog.Warn("cache get failed, treating as miss", "cache", name, "key", key, "error", err)
		return false
	}

	if json.Unmarshal(raw, dest) == nil {
		return true
	}

	recovered, ok := c.recoverLegacy(raw)
	if !ok {
		slog.Warn("unreadable cache payload, treating as miss", "cache", name, "key", key)
		return false
	}
	rebuilt, err := json.Marshal(recovered)
	if err != nil || json.Unmarshal(rebuilt, dest) != nil {
		slog.Warn("legacy cache payload recovery failed, treating as miss", "cache", name, "key", key)
		return false
	}
	return true
}

// Put stores an entry under the cache's version prefix. Failures are logged
// and swallowed; callers never observe a cache write error.
func (c *Cache) Put(ctx context.Context, name, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		slog.Warn("cache serialization failed, skipping put", "cache", name, "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, c.entryKey(name, key), raw, c.ttl(name)); err != nil {
		slog.Warn("cache put failed", "cache", name, "key", key, "error", err)
	}
}

// Evict removes a single entry. Failures are logged and swallowed.
func (c *Cache) Evict(ctx context.Context, name, key string) {
	if err := c.store.Del(ctx, c.entryKey(name, key)); err != nil {
		slog.Warn("cache evict failed", "cache", name, "key", key, "error", err)
	}
}

// EvictAll removes every entry of a named cache under the current version
// prefix. Failures are logged and swallowed.
func (c *Cache) EvictAll(ctx context.Context, name string) {
	keys, err := c.store.Keys(ctx, c.version+"::"+name+"::*")
	if err != nil {
		slog.Warn("cache clear failed", "cache", name, "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.store.Del(ctx, keys...); err != nil {
		slog.Warn("cache clear failed", "cache", name, "error", err)
	}
}

// recoverLegacy reinterprets bytes written under an older serialization
// convention: sequences are recovered element-wise, tagged maps are decoded
// through the registry with the tag field stripped, and anything else is
// kept as generic structured data.
func (c *Cache) recoverLegacy(raw []byte) (any, bool) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, false
	}
	return c.recoverValue(generic), true
}

func (c *Cache) recoverValue(v any) any {
	switch t := v.(type) {
	case []any:
		for i := range t {
			t[i] = c.recoverValue(t[i])
		}
		return t
	case map[string]any:
		tag, ok := t[legacyTypeField].(string)
		if !ok {
			return t
		}
		delete(t, legacyTypeField)
		factory, ok := c.decoders[tag]
		if !ok {
			return t
		}
		rebuilt, err := json.Marshal(t)
		if err != nil {
			return t
		}
		target := factory()
		if err := json.Unmarshal(rebuilt, target); err != nil {
			return t
		}
		return target
	default:
		return v
	}
}
