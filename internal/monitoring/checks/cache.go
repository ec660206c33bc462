package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/charlesng35/bookshelf/internal/cache"
	"github.com/charlesng35/bookshelf/internal/monitoring"
)

const defaultCacheTimeout = 2 * time.Second

// Pinger represents the minimal interface required to probe a cache backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Cache returns a readiness probe for the cache backend. The service keeps answering
// from the database without it, so failures are reported as degraded, never down.
func Cache(store Pinger, health *cache.Health, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("cache", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if store == nil {
			return monitoring.ProbeResult{
				Status:  monitoring.StatusUp,
				Details: "cache disabled",
			}
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout, defaultCacheTimeout))
		defer cancel()

		if err := store.Ping(probeCtx); err != nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  err.Error(),
				Duration: time.Since(start),
			}
		}

		if health != nil && health.State() == cache.StateDegraded {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  fmt.Sprintf("cache bypassed since %s", health.DegradedSince().UTC().Format(time.RFC3339)),
				Duration: time.Since(start),
			}
		}

		return monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Duration: time.Since(start),
		}
	})
}
