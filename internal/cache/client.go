package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/bookshelf/pkg/logger"
	"github.com/charlesng35/bookshelf/pkg/metrics"
)

const (
	DefaultTTL              = 300 * time.Second
	DefaultCooldown         = 30 * time.Second
	DefaultOperationTimeout = 5 * time.Second

	maxPendingInvalidations = 64
)

// Client is a cache-aside front for a Store that never surfaces backend errors. The
// first failure degrades the client; while degraded every operation is skipped until
// the cooldown elapses. A nil Store yields a client that always misses.
type Client struct {
	store    Store
	health   *Health
	log      *zap.Logger
	now      func() time.Time
	ttl      time.Duration
	cooldown time.Duration
	timeout  time.Duration

	pendingMu sync.Mutex
	pending   map[string]struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithDefaultTTL sets the ttl applied when Set is called without one.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCooldown sets how long the client stays degraded before trusting the backend again.
func WithCooldown(cooldown time.Duration) Option {
	return func(c *Client) {
		if cooldown > 0 {
			c.cooldown = cooldown
		}
	}
}

// WithOperationTimeout bounds every backend call.
func WithOperationTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithHealth injects the health tracker, letting callers observe or pre-set state.
func WithHealth(h *Health) Option {
	return func(c *Client) {
		if h != nil {
			c.health = h
		}
	}
}

// WithLogger overrides the module logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient wraps store in a resilient client.
func NewClient(store Store, opts ...Option) *Client {
	c := &Client{
		store:    store,
		health:   NewHealth(),
		log:      logger.WithModule("cache"),
		now:      time.Now,
		ttl:      DefaultTTL,
		cooldown: DefaultCooldown,
		timeout:  DefaultOperationTimeout,
		pending:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health exposes the client's health tracker.
func (c *Client) Health() *Health {
	return c.health
}

// Enabled reports whether a backend is configured at all.
func (c *Client) Enabled() bool {
	return c != nil && c.store != nil
}

// DefaultTTL returns the ttl used when callers do not pass one.
func (c *Client) DefaultTTL() time.Duration {
	return c.ttl
}

// Backend names the configured store, or "none".
func (c *Client) Backend() string {
	if !c.Enabled() {
		return "none"
	}
	if named, ok := c.store.(fmt.Stringer); ok {
		return named.String()
	}
	return fmt.Sprintf("%T", c.store)
}

// Get returns the cached bytes for key, or Miss when absent, expired, degraded or failing.
func (c *Client) Get(ctx context.Context, key string) Result[[]byte] {
	if !c.usable(ctx) {
		metrics.CacheOperations.WithLabelValues("get", "skipped").Inc()
		return Miss[[]byte]()
	}

	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	value, ok, err := c.store.Get(opCtx, key)
	if err != nil {
		c.fail(ctx, "get", key, err)
		return Miss[[]byte]()
	}
	if !ok {
		metrics.CacheOperations.WithLabelValues("get", "miss").Inc()
		return Miss[[]byte]()
	}
	metrics.CacheOperations.WithLabelValues("get", "hit").Inc()
	return Hit(value)
}

// Set stores value under key. A non-positive ttl uses the default ttl.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if !c.usable(ctx) {
		metrics.CacheOperations.WithLabelValues("set", "skipped").Inc()
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	if err := c.store.Set(opCtx, key, value, ttl); err != nil {
		c.fail(ctx, "set", key, err)
		return
	}
	metrics.CacheOperations.WithLabelValues("set", "ok").Inc()
}

// SetJSON serialises value and stores it. Values that cannot be encoded are not cached.
func (c *Client) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	payload, err := json.Marshal(value)
	if err != nil {
		c.log.Debug("skipping cache write for unencodable value", zap.String("key", key), zap.Error(err))
		return
	}
	c.Set(ctx, key, payload, ttl)
}

// Delete removes a single entry.
func (c *Client) Delete(ctx context.Context, key string) {
	if !c.usable(ctx) {
		metrics.CacheOperations.WithLabelValues("delete", "skipped").Inc()
		return
	}

	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	if err := c.store.Delete(opCtx, key); err != nil {
		c.fail(ctx, "delete", key, err)
		return
	}
	metrics.CacheOperations.WithLabelValues("delete", "ok").Inc()
}

// InvalidatePattern removes every entry matching a prefix wildcard such as "books:*".
// Patterns skipped while degraded are replayed when the client recovers.
func (c *Client) InvalidatePattern(ctx context.Context, pattern string) {
	if !c.Enabled() {
		return
	}
	if !c.usable(ctx) {
		c.remember(pattern)
		metrics.CacheOperations.WithLabelValues("invalidate", "skipped").Inc()
		return
	}
	// the write already happened; a caller hanging up must not leave stale pages behind
	detached := context.WithoutCancel(ensuredContext(ctx))
	if err := c.invalidate(detached, pattern); err != nil {
		c.remember(pattern)
		c.fail(detached, "invalidate", pattern, err)
		return
	}
	metrics.CacheOperations.WithLabelValues("invalidate", "ok").Inc()
}

// GetJSON reads key and decodes it into T. Undecodable payloads are dropped and
// reported as a miss.
func GetJSON[T any](ctx context.Context, c *Client, key string) Result[T] {
	raw, ok := c.Get(ctx, key).Value()
	if !ok {
		return Miss[T]()
	}

	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		c.log.Debug("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		c.Delete(ctx, key)
		return Miss[T]()
	}
	return Hit(value)
}

func (c *Client) invalidate(ctx context.Context, pattern string) error {
	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	keys, err := c.store.Keys(opCtx, pattern)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.store.Delete(opCtx, keys...)
}

// usable reports whether the backend should be contacted, flipping a degraded client
// back to available once its cooldown has passed.
func (c *Client) usable(ctx context.Context) bool {
	if !c.Enabled() {
		return false
	}
	if c.health.State() == StateAvailable {
		return true
	}

	now := c.now()
	if !c.health.Recover(now, c.cooldown) {
		// another caller may have recovered first
		return c.health.State() == StateAvailable
	}

	metrics.CacheStateTransitions.WithLabelValues(StateAvailable.String()).Inc()
	metrics.CacheDegraded.Set(0)
	c.log.Info("cache backend re-enabled after cooldown",
		zap.String("backend", c.Backend()),
		zap.Duration("degraded_for", now.Sub(c.health.DegradedSince())),
	)
	c.replayPending(ctx)
	return c.health.State() == StateAvailable
}

func (c *Client) fail(ctx context.Context, op, key string, err error) {
	metrics.CacheOperations.WithLabelValues(op, "error").Inc()

	// the caller went away or ran out of time; the backend is not at fault
	if ctx != nil && ctx.Err() != nil {
		return
	}

	now := c.now()
	if c.health.Degrade(now) {
		metrics.CacheStateTransitions.WithLabelValues(StateDegraded.String()).Inc()
		metrics.CacheDegraded.Set(1)
	}
	if c.health.ShouldLog(now, c.cooldown) {
		c.log.Warn("cache backend unavailable; serving from database",
			zap.String("backend", c.Backend()),
			zap.String("operation", op),
			zap.String("key", key),
			zap.Duration("cooldown", c.cooldown),
			zap.Error(err),
		)
	}
}

func (c *Client) remember(pattern string) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	if _, exists := c.pending[pattern]; exists {
		return
	}
	if len(c.pending) >= maxPendingInvalidations {
		return
	}
	c.pending[pattern] = struct{}{}
}

func (c *Client) takePending() []string {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	if len(c.pending) == 0 {
		return nil
	}
	patterns := make([]string, 0, len(c.pending))
	for pattern := range c.pending {
		patterns = append(patterns, pattern)
	}
	c.pending = make(map[string]struct{})
	return patterns
}

func (c *Client) replayPending(ctx context.Context) {
	ctx = context.WithoutCancel(ensuredContext(ctx))
	patterns := c.takePending()
	for i, pattern := range patterns {
		if err := c.invalidate(ctx, pattern); err != nil {
			for _, rest := range patterns[i:] {
				c.remember(rest)
			}
			c.fail(ctx, "invalidate", pattern, err)
			return
		}
		c.log.Debug("replayed cache invalidation", zap.String("pattern", pattern))
	}
}

func (c *Client) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ensuredContext(ctx), c.timeout)
}

// PendingInvalidations returns the patterns waiting for the backend to recover.
func (c *Client) PendingInvalidations() []string {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	patterns := make([]string, 0, len(c.pending))
	for pattern := range c.pending {
		patterns = append(patterns, pattern)
	}
	return patterns
}
