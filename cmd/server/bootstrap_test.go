package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/charlesng35/bookshelf/internal/app"
	"github.com/charlesng35/bookshelf/internal/cache"
	"github.com/charlesng35/bookshelf/internal/models"
)

var bootstrapDBCounter atomic.Int64

func testConfig(driver string) *app.Config {
	return &app.Config{
		Server: app.ServerConfig{Port: 8000},
		Database: app.DatabaseConfig{
			Driver: "sqlite",
			DSN:    fmt.Sprintf("file:bootstrap_%d?mode=memory&cache=shared&_foreign_keys=1", bootstrapDBCounter.Add(1)),
		},
		Cache: app.CacheConfig{
			Driver:           driver,
			TTL:              time.Minute,
			Cooldown:         time.Minute,
			OperationTimeout: time.Second,
			KeyPrefix:        "test:",
			Redis:            app.RedisCacheConfig{Timeout: 200 * time.Millisecond},
		},
		Monitoring: app.MonitoringConfig{
			Health: app.HealthConfig{Enabled: true, Timeout: time.Second},
		},
		RateLimit:   app.RateLimitConfig{Enabled: true, Requests: 100, Window: time.Minute},
		Maintenance: app.MaintenanceConfig{CachePurgeSchedule: "@every 1h"},
	}
}

func bootstrap(t *testing.T, cfg *app.Config) *runtimeStack {
	t.Helper()
	stack, err := bootstrapRuntime(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, stack.Shutdown(context.Background()))
	})
	return stack
}

func serve(stack *runtimeStack, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	stack.Router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestBootstrapRuntimeMemoryCache(t *testing.T) {
	stack := bootstrap(t, testConfig(app.CacheDriverMemory))

	require.Equal(t, "memory", stack.Cache.Backend())
	require.Nil(t, stack.Redis)
	require.False(t, stack.Cleaner.Enabled())

	w := serve(stack, http.MethodGet, "/books")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "100", w.Header().Get("X-RateLimit-Limit"))

	w = serve(stack, http.MethodGet, "/health/ready")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestBootstrapRuntimeDatabaseCacheSchedulesPurge(t *testing.T) {
	stack := bootstrap(t, testConfig(app.CacheDriverDatabase))

	require.Equal(t, "database", stack.Cache.Backend())
	require.True(t, stack.Cleaner.Enabled())

	w := serve(stack, http.MethodGet, "/books")
	require.Equal(t, http.StatusOK, w.Code)

	var rows int64
	require.NoError(t, stack.DB.Model(&models.CacheEntry{}).Count(&rows).Error)
	require.Positive(t, rows)
}

func TestBootstrapRuntimeWithoutCache(t *testing.T) {
	stack := bootstrap(t, testConfig(app.CacheDriverNone))

	require.Nil(t, stack.Store)
	require.False(t, stack.Cache.Enabled())

	w := serve(stack, http.MethodGet, "/books")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "100", w.Header().Get("X-RateLimit-Limit"))

	w = serve(stack, http.MethodGet, "/health/ready")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "cache disabled")
}

func TestBootstrapRuntimeRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(app.CacheDriverRedis)
	cfg.Cache.Redis.Address = mr.Addr()

	stack := bootstrap(t, cfg)
	require.NotNil(t, stack.Redis)
	require.Equal(t, cache.StateAvailable, stack.Cache.Health().State())

	w := serve(stack, http.MethodGet, "/books")
	require.Equal(t, http.StatusOK, w.Code)

	var listed bool
	for _, key := range mr.Keys() {
		if strings.HasPrefix(key, "test:books:") {
			listed = true
		}
	}
	require.True(t, listed, "listing should be cached in redis")
}

func TestBootstrapRuntimeUnreachableRedisStartsDegraded(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(app.CacheDriverRedis)
	cfg.Cache.Redis.Address = mr.Addr()
	mr.Close()

	stack := bootstrap(t, cfg)
	require.Equal(t, cache.StateDegraded, stack.Cache.Health().State())

	w := serve(stack, http.MethodGet, "/books")
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(stack, http.MethodGet, "/health/ready")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "degraded")
}

func TestBootstrapRuntimeSeedsWhenRequested(t *testing.T) {
	cfg := testConfig(app.CacheDriverMemory)
	cfg.Database.Seed = true

	stack := bootstrap(t, cfg)
	var count int64
	require.NoError(t, stack.DB.Model(&models.Book{}).Count(&count).Error)
	require.Positive(t, count)
}

func TestBootstrapRuntimeRejectsUnknownCacheDriver(t *testing.T) {
	_, err := bootstrapRuntime(context.Background(), testConfig("memcached"), zaptest.NewLogger(t))
	require.ErrorContains(t, err, "unsupported cache driver")
}

func TestLoadApplicationConfigMissingPath(t *testing.T) {
	_, err := loadApplicationConfig("/definitely/not/here")
	require.ErrorContains(t, err, "does not exist")
}
