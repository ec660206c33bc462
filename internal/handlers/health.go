package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/bookshelf/internal/monitoring"
)

// HealthHandler serves liveness and readiness endpoints.
type HealthHandler struct {
	manager *monitoring.HealthManager
	now     func() time.Time
}

// NewHealthHandler constructs a health handler. A nil manager reports every probe as up.
func NewHealthHandler(manager *monitoring.HealthManager) *HealthHandler {
	if manager == nil {
		manager = monitoring.NewHealthManager(0)
	}
	return &HealthHandler{manager: manager, now: time.Now}
}

// Health godoc
//
//	@Summary	Service heartbeat
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Router		/health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "bookshelf",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// Live godoc
//
//	@Summary	Liveness probe
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	monitoring.HealthReport
//	@Failure	503	{object}	monitoring.HealthReport
//	@Router		/health/live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	h.writeReport(c, h.manager.EvaluateLiveness(requestContext(c)))
}

// Ready godoc
//
//	@Summary	Readiness probe
//	@Description	Reports the database and cache. A degraded cache keeps the service ready.
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	monitoring.HealthReport
//	@Failure	503	{object}	monitoring.HealthReport
//	@Router		/health/ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	h.writeReport(c, h.manager.EvaluateReadiness(requestContext(c)))
}

func (h *HealthHandler) writeReport(c *gin.Context, report monitoring.HealthReport) {
	status := http.StatusOK
	if !report.Success {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"success":    report.Success,
		"status":     report.Status,
		"checks":     report.Checks,
		"checked_at": h.now().UTC(),
	})
}
