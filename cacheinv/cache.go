package cacheinv

import (
	"fmt"
	"sync"
	"time"

	"github.com/anchorware/ward-codec"
	wardlog "github.com/anchorware/ward-log"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultTTL is the per-entry time-to-live applied when
	// LocalCacheConfig.TTL is zero.
	DefaultTTL = 5 * time.Minute
	// DefaultMaxSize is the capacity applied when LocalCacheConfig.MaxSize
	// is zero.
	DefaultMaxSize = 5000
	// MinMaxSize and MaxMaxSize bound LocalCacheConfig.MaxSize.
	MinMaxSize = 1
	MaxMaxSize = 100000
)

// Cache is the application-facing contract for a single named, bounded,
// TTL-expiring local cache. Evict both removes the entry locally and
// records an eviction intent for propagation to every other process
// sharing this cache's name on a CacheManager's Bus; callers that only
// want the local removal (the path a remote eviction event takes)
// never see that distinction - it's internal to this package, since
// exposing it would let a caller accidentally re-publish a remote
// eviction and loop forever.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Put(key K, value V)
	Evict(key K)
	Name() string
}

// LocalCacheConfig configures a LocalCache's bound and expiry.
type LocalCacheConfig struct {
	TTL     time.Duration
	MaxSize int
}

func (cfg LocalCacheConfig) withDefaults() LocalCacheConfig {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.MaxSize < MinMaxSize {
		cfg.MaxSize = MinMaxSize
	}
	if cfg.MaxSize > MaxMaxSize {
		cfg.MaxSize = MaxMaxSize
	}
	return cfg
}

// LocalCache is the reference Cache implementation, backed by
// hashicorp/golang-lru/v2's expirable LRU.
type LocalCache[K comparable, V any] struct {
	name    string
	codec   codec.Codec
	lru     *lru.LRU[K, V]
	manager *Manager

	mu sync.Mutex
}

var _ Cache[string, any] = (*LocalCache[string, any])(nil)

// NewLocalCache constructs a standalone LocalCache with no propagation.
// Pass it to Register on a Manager to wire eviction propagation.
func NewLocalCache[K comparable, V any](name string, cfg LocalCacheConfig, keyCodec codec.Codec) *LocalCache[K, V] {
	cfg = cfg.withDefaults()
	return &LocalCache[K, V]{
		name:  name,
		codec: keyCodec,
		lru:   lru.NewLRU[K, V](cfg.MaxSize, nil, cfg.TTL),
	}
}

func (c *LocalCache[K, V]) Name() string { return c.name }

func (c *LocalCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(key)
}

func (c *LocalCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, value)
}

// Evict removes key locally and, if this cache is registered with a
// Manager, enqueues the eviction for propagation to peers.
func (c *LocalCache[K, V]) Evict(key K) {
	c.mu.Lock()
	c.lru.Remove(key)
	mgr := c.manager
	c.mu.Unlock()

	if mgr == nil {
		return
	}

	encoded, err := c.codec.Encode(key)
	if err != nil {
		wardlog.WithCache(mgr.log, c.name).WithError(err).Warn(`cacheinv: failed to encode evicted key, eviction will not propagate`)
		return
	}
	mgr.enqueue(c.name, encoded)
}

// remove applies a remote eviction: local-only, never re-published.
// This is the half of the evict/remove split that keeps propagated
// evictions from echoing back out to the bus.
func (c *LocalCache[K, V]) remove(encodedKey []byte) error {
	key, err := codec.DecodeAs[K](c.codec, encodedKey)
	if err != nil {
		return fmt.Errorf(`cacheinv: decode key for cache %q: %w`, c.name, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
	return nil
}

// registeredCache is the type-erased view of a LocalCache a Manager
// needs: every cache in a registry may have a different (K, V) pair,
// so the registry can't hold Cache[K, V] values directly.
type registeredCache interface {
	Name() string
	remove(encodedKey []byte) error
}

var _ registeredCache = (*LocalCache[string, any])(nil)

// Register wires cache into manager: future Evict calls on cache
// enqueue an outbound eviction, and events the manager polls back for
// cache.Name() are applied via cache's internal, non-propagating
// removal path. Returns an error if manager already has a cache
// registered under this name.
func Register[K comparable, V any](manager *Manager, cache *LocalCache[K, V]) error {
	if err := manager.register(cache); err != nil {
		return err
	}
	cache.mu.Lock()
	cache.manager = manager
	cache.mu.Unlock()
	return nil
}
