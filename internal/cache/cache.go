package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a byte-oriented key/value store. A ttl <= 0 means no expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetIfAbsent stores value only when key is unset and reports whether it did.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

var (
	ErrNotFound = errors.New("cache: key not found")
)

type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to Redis. All keys are namespaced under prefix.
func NewRedisCache(addr, password string, db int, prefix string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Fail fast on a bad address instead of on the first request
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client, prefix: prefix}, nil
}

func (r *RedisCache) key(k string) string {
	return r.prefix + k
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(key), value, normalizeTTL(ttl)).Err()
}

// SetIfAbsent maps to SETNX, so concurrent writers agree on one winner.
func (r *RedisCache) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, r.key(key), value, normalizeTTL(ttl)).Result()
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

// normalizeTTL maps a negative ttl to Redis' "no expiry".
func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl < 0 {
		return 0
	}
	return ttl
}

// DefaultSweepInterval is how often NewInMemoryCache drops expired entries.
const DefaultSweepInterval = time.Minute

// InMemoryCache is a process-local Cache. Expired entries are removed on
// read and by a background sweep, so keys that are never read again still
// get reclaimed.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
	now  func() time.Time

	stopSweep chan struct{}
	stopOnce  sync.Once
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time // zero means never
}

func (e cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewInMemoryCache creates a cache that sweeps every DefaultSweepInterval.
// Call Close to stop the sweeper.
func NewInMemoryCache() *InMemoryCache {
	return NewInMemoryCacheWithSweep(DefaultSweepInterval)
}

// NewInMemoryCacheWithSweep creates a cache swept every interval. An interval
// <= 0 disables the background sweep.
func NewInMemoryCacheWithSweep(interval time.Duration) *InMemoryCache {
	m := &InMemoryCache{
		data:      make(map[string]cacheEntry),
		now:       time.Now,
		stopSweep: make(chan struct{}),
	}

	if interval > 0 {
		go m.sweepLoop(interval)
	}

	return m
}

func (m *InMemoryCache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopSweep:
			return
		}
	}
}

// sweep drops every expired entry and returns how many it removed.
func (m *InMemoryCache) sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for key, e := range m.data {
		if e.expired(now) {
			delete(m.data, key)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, including expired ones not yet
// swept.
func (m *InMemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// Close stops the background sweep. It is safe to call more than once.
func (m *InMemoryCache) Close() error {
	m.stopOnce.Do(func() { close(m.stopSweep) })
	return nil
}

// entry copies value so callers can reuse their buffer.
func (m *InMemoryCache) entry(value []byte, ttl time.Duration) cacheEntry {
	e := cacheEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	return e
}

func (m *InMemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.data[key]
	if !exists {
		return nil, ErrNotFound
	}

	// Lazily evict on read
	if entry.expired(m.now()) {
		delete(m.data, key)
		return nil, ErrNotFound
	}

	return entry.value, nil
}

func (m *InMemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = m.entry(value, ttl)
	return nil
}

func (m *InMemoryCache) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// An expired entry counts as absent
	if existing, ok := m.data[key]; ok && !existing.expired(m.now()) {
		return false, nil
	}
	m.data[key] = m.entry(value, ttl)
	return true, nil
}

func (m *InMemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

// GetJSON decodes the JSON value stored at key into dest.
func GetJSON(ctx context.Context, cache Cache, key string, dest interface{}) error {
	data, err := cache.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// SetJSON stores value JSON-encoded under key.
func SetJSON(ctx context.Context, cache Cache, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return cache.Set(ctx, key, data, ttl)
}

// SetJSONIfAbsent is SetIfAbsent for a JSON-encoded value.
func SetJSONIfAbsent(ctx context.Context, cache Cache, key string, value interface{}, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	return cache.SetIfAbsent(ctx, key, data, ttl)
}
