package testutil

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/bookshelf/internal/api"
	"github.com/charlesng35/bookshelf/internal/app"
	"github.com/charlesng35/bookshelf/internal/cache"
	sharedtestutil "github.com/charlesng35/bookshelf/internal/database/testutil"
	"github.com/charlesng35/bookshelf/internal/middleware"
	"github.com/charlesng35/bookshelf/internal/monitoring"
	"github.com/charlesng35/bookshelf/internal/monitoring/checks"
	"github.com/charlesng35/bookshelf/internal/repository"
	"github.com/charlesng35/bookshelf/internal/services"
	"github.com/charlesng35/bookshelf/pkg/response"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database and an
// in-process cache for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Store  *cache.MemoryStore
	Cache  *cache.Client
	Books  *services.BookService
	Router *gin.Engine
}

// EnvOption customises the test environment configuration.
type EnvOption func(cfg *app.Config)

// WithRateLimit enables the limiter with the provided budget.
func WithRateLimit(requests int, window time.Duration) EnvOption {
	return func(cfg *app.Config) {
		cfg.RateLimit = app.RateLimitConfig{Enabled: true, Requests: requests, Window: window}
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	store, err := cache.NewMemoryStore(cache.DefaultMemoryConfig())
	require.NoError(t, err)
	client := cache.NewClient(store)

	bookRepo, err := repository.NewBookRepository(db)
	require.NoError(t, err)
	reviewRepo, err := repository.NewReviewRepository(db)
	require.NoError(t, err)

	books, err := services.NewBookService(bookRepo, client)
	require.NoError(t, err)
	reviews, err := services.NewReviewService(reviewRepo, books)
	require.NoError(t, err)

	cfg := &app.Config{
		Server: app.ServerConfig{Port: 8000, Swagger: true},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	registry := prometheus.NewRegistry()
	mon, err := monitoring.NewModule(monitoring.Options{
		Registerer: registry,
		Gatherer:   prometheus.Gatherers{registry, prometheus.DefaultGatherer},
	})
	require.NoError(t, err)
	mon.Health().RegisterReadiness(checks.Database(db, time.Second))
	mon.Health().RegisterReadiness(checks.Cache(store, client.Health(), time.Second))

	router, err := api.NewRouter(api.Dependencies{
		Config:     cfg,
		Books:      books,
		Reviews:    reviews,
		Monitoring: mon,
		RateStore:  middleware.NewStoreRateStore(store),
	})
	require.NoError(t, err)

	return &Env{
		T:      t,
		DB:     db,
		Store:  store,
		Cache:  client,
		Books:  books,
		Router: router,
	}
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, JSON-encoding the body.
// A string body is sent verbatim.
func (e *Env) Request(method, path string, body any) *httptest.ResponseRecorder {
	e.T.Helper()

	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		payload, err := json.Marshal(v)
		require.NoError(e.T, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
