package api_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/bookshelf/internal/api"
	"github.com/charlesng35/bookshelf/internal/app"
	"github.com/charlesng35/bookshelf/internal/handlers/testutil"
)

func TestRouter_PublicRoutes(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.Request(http.MethodGet, "/books", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/books", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.Request(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "bookshelf_api_latency_seconds")
	require.Contains(t, w.Body.String(), "go_build_info")
}

func TestRouter_SwaggerUI(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api-docs/index.html", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.Request(http.MethodGet, "/api-docs/doc.json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "/books/{id}/reviews")
}

func TestRouter_UnknownRoute(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/nope", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	payload := testutil.DecodeResponse(t, w)
	require.False(t, payload.Success)
	require.Equal(t, "NOT_FOUND", payload.Error.Code)
}

func TestRouter_RateLimitsBookRoutes(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithRateLimit(2, time.Minute))

	for i := 0; i < 2; i++ {
		w := env.Request(http.MethodGet, "/books", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := env.Request(http.MethodGet, "/books", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.NotEmpty(t, w.Header().Get("Retry-After"))
	payload := testutil.DecodeResponse(t, w)
	require.Equal(t, "RATE_LIMIT_EXCEEDED", payload.Error.Code)

	// health stays outside the limiter
	w = env.Request(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestNewRouter_RequiresDependencies(t *testing.T) {
	_, err := api.NewRouter(api.Dependencies{})
	require.Error(t, err)

	_, err = api.NewRouter(api.Dependencies{Config: &app.Config{}})
	require.Error(t, err)
}
