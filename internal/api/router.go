package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/charlesng35/bookshelf/docs"
	"github.com/charlesng35/bookshelf/internal/app"
	"github.com/charlesng35/bookshelf/internal/handlers"
	"github.com/charlesng35/bookshelf/internal/middleware"
	"github.com/charlesng35/bookshelf/internal/monitoring"
	"github.com/charlesng35/bookshelf/internal/services"
)

const docsPrefix = "/api-docs"

// Dependencies collects everything the HTTP layer needs.
type Dependencies struct {
	Config     *app.Config
	Books      *services.BookService
	Reviews    *services.ReviewService
	Monitoring *monitoring.Module
	// RateStore backs the rate limiter; nil disables limiting.
	RateStore middleware.RateStore
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	cfg := deps.Config
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	bookHandler, err := handlers.NewBookHandler(deps.Books)
	if err != nil {
		return nil, err
	}
	reviewHandler, err := handlers.NewReviewHandler(deps.Reviews)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders(docsPrefix))
	r.Use(middleware.CORS(cfg.Server.CORSOrigins...))

	registerHealthRoutes(r, cfg, deps.Monitoring)

	if cfg.Monitoring.Prometheus.Enabled && deps.Monitoring != nil {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(deps.Monitoring.Handler()))
	}

	if cfg.Server.Swagger {
		r.GET(docsPrefix+"/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	limited := r.Group("/")
	if cfg.RateLimit.Enabled {
		limited.Use(middleware.RateLimit(deps.RateStore, cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}
	registerBookRoutes(limited, bookHandler, reviewHandler)

	r.NoRoute(middleware.NotFoundHandler)
	return r, nil
}
