// Package store holds the two persisted, process-scoped data sets the
// checker reads and writes between runs: the verdict cache (spec
// §4.I) and the self-healing notworkers list.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// CacheEntry mirrors spec §3's CacheEntry: a boolean verdict stamped
// with the unix time it was written.
type CacheEntry struct {
	Result    bool  `json:"result"`
	Timestamp int64 `json:"timestamp"`
}

// KeyHash returns the 16-hex-character cache key for a raw proxy URI.
func KeyHash(rawURI string) string {
	sum := sha256.Sum256([]byte(rawURI))
	return hex.EncodeToString(sum[:])[:16]
}

// Backend abstracts where cache entries live — a JSON file by default,
// or Redis when CACHE_FILE names a redis:// URL (spec §6 domain
// stack). Mirrors the thin interface-over-client idiom used elsewhere
// in the retrieval pack for optional external backends.
type Backend interface {
	Load(ctx context.Context, ttl time.Duration) (map[string]CacheEntry, error)
	Save(ctx context.Context, entries map[string]CacheEntry) error
}

// Cache is the in-memory verdict cache, safe for concurrent lookups
// and inserts by many workers (spec §5 "Verdict cache").
type Cache struct {
	enabled bool
	backend Backend
	ttl     time.Duration

	mu      sync.RWMutex
	entries map[string]CacheEntry
}

// NewCache loads the backend's entries (if enabled) and returns a
// ready-to-use Cache. Corrupt or unreadable backends log a warning via
// the returned non-fatal error and start empty.
func NewCache(ctx context.Context, enabled bool, backend Backend, ttl time.Duration) (*Cache, error) {
	c := &Cache{enabled: enabled, backend: backend, ttl: ttl, entries: map[string]CacheEntry{}}
	if !enabled || backend == nil {
		return c, nil
	}
	entries, err := backend.Load(ctx, ttl)
	if err != nil {
		return c, fmt.Errorf("store: load cache: %w", err)
	}
	c.entries = entries
	return c, nil
}

// Lookup returns the cached verdict for hash, if present and not
// stale. The staleness check is redundant with Load's own filtering
// but kept here so a long-running process never serves an entry that
// aged out mid-run.
func (c *Cache) Lookup(hash string) (CacheEntry, bool) {
	if !c.enabled {
		return CacheEntry{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[hash]
	if !ok {
		return CacheEntry{}, false
	}
	if c.ttl > 0 && time.Now().Unix()-e.Timestamp >= int64(c.ttl.Seconds()) {
		return CacheEntry{}, false
	}
	return e, true
}

// Store records a verdict for hash at the current time.
func (c *Cache) Store(hash string, result bool) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	c.entries[hash] = CacheEntry{Result: result, Timestamp: time.Now().Unix()}
	c.mu.Unlock()
}

// Flush persists the current entry set through the backend. Called
// once at shutdown, after the worker pool has drained (spec §5).
func (c *Cache) Flush(ctx context.Context) error {
	if !c.enabled || c.backend == nil {
		return nil
	}
	c.mu.RLock()
	snapshot := make(map[string]CacheEntry, len(c.entries))
	for k, v := range c.entries {
		snapshot[k] = v
	}
	c.mu.RUnlock()
	return c.backend.Save(ctx, snapshot)
}

// FileBackend is the default cache backend: a single JSON document.
type FileBackend struct {
	Path string
}

func (b *FileBackend) Load(_ context.Context, ttl time.Duration) (map[string]CacheEntry, error) {
	raw, err := os.ReadFile(b.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]CacheEntry{}, nil
		}
		return map[string]CacheEntry{}, fmt.Errorf("read %s: %w", b.Path, err)
	}

	var all map[string]CacheEntry
	if err := json.Unmarshal(raw, &all); err != nil {
		return map[string]CacheEntry{}, fmt.Errorf("corrupt %s: %w", b.Path, err)
	}

	now := time.Now().Unix()
	fresh := make(map[string]CacheEntry, len(all))
	for k, v := range all {
		if ttl <= 0 || now-v.Timestamp < int64(ttl.Seconds()) {
			fresh[k] = v
		}
	}
	return fresh, nil
}

func (b *FileBackend) Save(_ context.Context, entries map[string]CacheEntry) error {
	if dir := dirOf(b.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(b.Path, raw, 0o644)
}

func dirOf(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return ""
	}
	return path[:i]
}

// IsRedisURL reports whether a CACHE_FILE value names a Redis
// connection string rather than a filesystem path.
func IsRedisURL(cacheFile string) bool {
	return strings.HasPrefix(cacheFile, "redis://") || strings.HasPrefix(cacheFile, "rediss://")
}
