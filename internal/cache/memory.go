package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/viccon/sturdyc"
)

// MemoryConfig sizes the in-process store.
type MemoryConfig struct {
	Capacity           int
	NumShards          int
	EvictionPercentage int
	// MaxTTL bounds how long any entry may live, including entries set without a ttl.
	MaxTTL time.Duration
}

// DefaultMemoryConfig returns sizes suitable for a single API instance.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Capacity:           10000,
		NumShards:          64,
		EvictionPercentage: 10,
		MaxTTL:             24 * time.Hour,
	}
}

// Validate checks the memory store sizing.
func (c MemoryConfig) Validate() error {
	switch {
	case c.Capacity <= 0:
		return errors.New("cache: memory capacity must be greater than 0")
	case c.NumShards <= 0:
		return errors.New("cache: memory shards must be greater than 0")
	case c.EvictionPercentage < 1 || c.EvictionPercentage > 100:
		return errors.New("cache: memory eviction percentage must be between 1 and 100")
	case c.MaxTTL <= 0:
		return errors.New("cache: memory max ttl must be greater than 0")
	}
	return nil
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore implements Store on a sharded sturdyc cache. sturdyc applies one TTL to
// the whole cache, so per-entry expiry is tracked alongside each value.
type MemoryStore struct {
	client *sturdyc.Client[memoryEntry]
	// serialises read-modify-write counters
	incMu sync.Mutex
	now   func() time.Time
}

// NewMemoryStore builds an in-process store.
func NewMemoryStore(cfg MemoryConfig) (*MemoryStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := sturdyc.New[memoryEntry](cfg.Capacity, cfg.NumShards, cfg.MaxTTL, cfg.EvictionPercentage)
	return &MemoryStore{client: client, now: time.Now}, nil
}

// Get retrieves a value, treating expired entries as absent.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, ok := s.client.Get(key)
	if !ok {
		return nil, false, nil
	}
	if entry.expired(s.now()) {
		s.client.Delete(key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores a copy of value. A non-positive ttl lives until the store's MaxTTL.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.client.Set(key, entry)
	return nil
}

// Delete removes keys from the store.
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s.client.Delete(key)
	}
	return nil
}

// Keys scans every shard for live keys matching a prefix wildcard.
func (s *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	now := s.now()
	var keys []string
	for _, key := range s.client.ScanKeys() {
		if !matchesPattern(pattern, key) {
			continue
		}
		if entry, ok := s.client.Get(key); !ok || entry.expired(now) {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// IncrementWithTTL increments a fixed-window counter.
func (s *MemoryStore) IncrementWithTTL(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}

	s.incMu.Lock()
	defer s.incMu.Unlock()

	now := s.now()
	entry, ok := s.client.Get(key)
	if !ok || entry.expired(now) {
		s.client.Set(key, memoryEntry{value: []byte("1"), expiresAt: now.Add(window)})
		return 1, window, nil
	}

	current, _ := strconv.ParseInt(string(entry.value), 10, 64)
	current++
	entry.value = []byte(strconv.FormatInt(current, 10))
	s.client.Set(key, entry)
	return current, entry.expiresAt.Sub(now), nil
}

// Ping always succeeds for the in-process store.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Size reports the number of entries currently held, including expired ones not yet evicted.
func (s *MemoryStore) Size() int {
	return s.client.Size()
}

func (s *MemoryStore) String() string {
	return "memory"
}
