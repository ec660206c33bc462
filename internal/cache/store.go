package cache

import (
	"context"
	"strings"
	"time"
)

// Store is the raw key-value backend behind the resilient Client. Every method may
// fail with a backend error; callers outside this package go through Client, which
// absorbs those failures.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Keys returns every live key matching a prefix wildcard such as "books:*".
	Keys(ctx context.Context, pattern string) ([]string, error)
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Ping(ctx context.Context) error
}

// patternPrefix reduces a prefix wildcard to its literal prefix. A pattern without a
// trailing '*' matches only itself, reported with exact=true.
func patternPrefix(pattern string) (prefix string, exact bool) {
	if strings.HasSuffix(pattern, "*") {
		return strings.TrimSuffix(pattern, "*"), false
	}
	return pattern, true
}

func matchesPattern(pattern, key string) bool {
	prefix, exact := patternPrefix(pattern)
	if exact {
		return key == prefix
	}
	return strings.HasPrefix(key, prefix)
}

func ensuredContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
