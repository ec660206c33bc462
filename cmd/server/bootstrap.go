package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/bookshelf/internal/api"
	"github.com/charlesng35/bookshelf/internal/app"
	"github.com/charlesng35/bookshelf/internal/app/maintenance"
	"github.com/charlesng35/bookshelf/internal/cache"
	"github.com/charlesng35/bookshelf/internal/database"
	"github.com/charlesng35/bookshelf/internal/middleware"
	"github.com/charlesng35/bookshelf/internal/monitoring"
	"github.com/charlesng35/bookshelf/internal/monitoring/checks"
	"github.com/charlesng35/bookshelf/internal/repository"
	"github.com/charlesng35/bookshelf/internal/services"
	"github.com/charlesng35/bookshelf/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Store      cache.Store
	Redis      *cache.RedisStore
	Cache      *cache.Client
	Cleaner    *maintenance.Cleaner
	Monitoring *monitoring.Module
	Router     *gin.Engine
}

// bootstrapRuntime initialises the database, cache, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			if shutdownErr := stack.Shutdown(context.Background()); shutdownErr != nil {
				log.Warn("partial bootstrap cleanup", zap.Error(shutdownErr))
			}
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	health := cache.NewHealth()
	if err := stack.initialiseCache(ctx, cfg, health, log); err != nil {
		return nil, err
	}

	opts := append(cfg.Cache.ClientOptions(), cache.WithHealth(health))
	stack.Cache = cache.NewClient(stack.Store, opts...)

	bookRepo, err := repository.NewBookRepository(stack.DB)
	if err != nil {
		return nil, err
	}
	reviewRepo, err := repository.NewReviewRepository(stack.DB)
	if err != nil {
		return nil, err
	}

	books, err := services.NewBookService(bookRepo, stack.Cache)
	if err != nil {
		return nil, fmt.Errorf("initialise book service: %w", err)
	}
	reviews, err := services.NewReviewService(reviewRepo, books)
	if err != nil {
		return nil, fmt.Errorf("initialise review service: %w", err)
	}

	stack.Monitoring, err = monitoring.NewModule(monitoring.Options{CheckTimeout: cfg.Monitoring.Health.Timeout})
	if err != nil {
		return nil, fmt.Errorf("initialise monitoring: %w", err)
	}
	stack.Monitoring.Health().RegisterReadiness(checks.Database(stack.DB, cfg.Monitoring.Health.Timeout))
	var pinger checks.Pinger
	if stack.Store != nil {
		pinger = stack.Store
	}
	stack.Monitoring.Health().RegisterReadiness(checks.Cache(pinger, health, cfg.Monitoring.Health.Timeout))

	rateStore, err := stack.rateStore(cfg)
	if err != nil {
		return nil, err
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:     cfg,
		Books:      books,
		Reviews:    reviews,
		Monitoring: stack.Monitoring,
		RateStore:  rateStore,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	success = true
	return stack, nil
}

// initialiseCache selects the cache backend. An unreachable Redis leaves the client
// degraded rather than failing start-up; listings are then served from the database.
func (s *runtimeStack) initialiseCache(ctx context.Context, cfg *app.Config, health *cache.Health, log *zap.Logger) error {
	cleanerOpts := []maintenance.Option{maintenance.WithSchedule(cfg.Maintenance.CachePurgeSchedule)}

	switch driver := cfg.Cache.DriverName(); driver {
	case app.CacheDriverMemory:
		store, err := cache.NewMemoryStore(cfg.Cache.MemoryStoreConfig())
		if err != nil {
			return fmt.Errorf("initialise memory cache: %w", err)
		}
		s.Store = store
	case app.CacheDriverRedis:
		store, err := cache.NewRedisStore(cfg.Cache.RedisClientConfig())
		if err != nil {
			return fmt.Errorf("initialise redis cache: %w", err)
		}
		s.Redis = store
		s.Store = store

		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout(cfg))
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			health.Degrade(time.Now())
			log.Warn("redis unavailable; serving from the database until it recovers",
				zap.String("addr", cfg.Cache.Redis.Address),
				zap.Error(err),
			)
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	case app.CacheDriverDatabase:
		store := cache.NewDatabaseStore(s.DB)
		s.Store = store
		cleanerOpts = append(cleanerOpts, maintenance.WithPurger("cache_entries", store))
	case app.CacheDriverNone:
		log.Info("cache disabled")
	default:
		return fmt.Errorf("unsupported cache driver %q", driver)
	}

	if s.Store != nil {
		log.Info("cache ready", zap.String("backend", fmt.Sprint(s.Store)))
	}
	s.Cleaner = maintenance.NewCleaner(cleanerOpts...)
	return nil
}

// rateStore shares the cache backend with the limiter, falling back to a private
// in-process store when caching is disabled.
func (s *runtimeStack) rateStore(cfg *app.Config) (middleware.RateStore, error) {
	if !cfg.RateLimit.Enabled {
		return nil, nil
	}
	if s.Store != nil {
		return middleware.NewStoreRateStore(s.Store), nil
	}
	store, err := cache.NewMemoryStore(cfg.Cache.MemoryStoreConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise rate limit store: %w", err)
	}
	return middleware.NewStoreRateStore(store), nil
}

func pingTimeout(cfg *app.Config) time.Duration {
	if cfg.Cache.Redis.Timeout > 0 {
		return cfg.Cache.Redis.Timeout
	}
	return 5 * time.Second
}

// Shutdown stops background jobs and releases resources, returning every failure.
func (s *runtimeStack) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}

	var errs error
	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
			errs = multierr.Append(errs, fmt.Errorf("stop maintenance: %w", ctx.Err()))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	if s.DB != nil {
		errs = multierr.Append(errs, closeDatabase(s.DB))
	}
	return errs
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	migrate := database.AutoMigrate
	if cfg.Database.Seed {
		migrate = database.AutoMigrateAndSeed
	}
	if err := migrate(db); err != nil {
		_ = closeDatabase(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected",
		zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))),
		zap.Bool("seeded", cfg.Database.Seed),
	)

	return db, nil
}

func closeDatabase(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("obtain sql handle: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
