package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/bookshelf/internal/handlers/testutil"
	"github.com/charlesng35/bookshelf/internal/monitoring"
)

type probeReport struct {
	Success bool                     `json:"success"`
	Status  monitoring.ProbeStatus   `json:"status"`
	Checks  []monitoring.ProbeResult `json:"checks"`
}

func decodeReport(t *testing.T, body []byte) probeReport {
	t.Helper()
	var report probeReport
	require.NoError(t, json.Unmarshal(body, &report))
	return report
}

func TestHealthHandler_Heartbeat(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "bookshelf", body["service"])
	_, err := time.Parse(time.RFC3339, body["timestamp"])
	require.NoError(t, err)
}

func TestHealthHandler_LiveAndReady(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/health/live", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, decodeReport(t, w.Body.Bytes()).Success)

	w = env.Request(http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, w.Code)
	report := decodeReport(t, w.Body.Bytes())
	require.True(t, report.Success)
	require.Equal(t, monitoring.StatusUp, report.Status)
	require.Len(t, report.Checks, 2)
}

func TestHealthHandler_ReadyWhileCacheDegraded(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Cache.Health().Degrade(time.Now())

	w := env.Request(http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, w.Code)

	report := decodeReport(t, w.Body.Bytes())
	require.True(t, report.Success)
	require.Equal(t, monitoring.StatusDegraded, report.Status)

	var cacheCheck *monitoring.ProbeResult
	for i := range report.Checks {
		if report.Checks[i].Component == "cache" {
			cacheCheck = &report.Checks[i]
		}
	}
	require.NotNil(t, cacheCheck)
	require.Equal(t, monitoring.StatusDegraded, cacheCheck.Status)
	require.Contains(t, cacheCheck.Details, "cache bypassed since")
}

func TestHealthHandler_ReadyFailsWithoutDatabase(t *testing.T) {
	env := testutil.NewEnv(t)
	sqlDB, err := env.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w := env.Request(http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	report := decodeReport(t, w.Body.Bytes())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDown, report.Status)
}
