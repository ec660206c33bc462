package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/bookshelf/pkg/logger"
)

const defaultPurgeSpec = "@every 10m"

// Purger removes expired rows from a backing table.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type purgeJob struct {
	name   string
	purger Purger
}

// Cleaner runs periodic housekeeping such as purging expired cache entries kept in
// the primary database.
type Cleaner struct {
	jobs     []purgeJob
	cron     *cron.Cron
	log      *zap.Logger
	schedule string
	timeout  time.Duration
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithSchedule overrides the cron specification for purge jobs.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// WithPurger registers a named purge job. Nil purgers are ignored.
func WithPurger(name string, p Purger) Option {
	return func(cleaner *Cleaner) {
		if p != nil {
			cleaner.jobs = append(cleaner.jobs, purgeJob{name: name, purger: p})
		}
	}
}

// WithJobTimeout bounds a single scheduled run.
func WithJobTimeout(timeout time.Duration) Option {
	return func(cleaner *Cleaner) {
		if timeout > 0 {
			cleaner.timeout = timeout
		}
	}
}

// NewCleaner constructs a Cleaner. Without any purger registered Start is a no-op.
func NewCleaner(opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		schedule: defaultPurgeSpec,
		timeout:  time.Minute,
		log:      logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner
}

// Enabled reports whether any job is registered.
func (c *Cleaner) Enabled() bool {
	return len(c.jobs) > 0
}

// Start registers the purge job with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if !c.Enabled() {
		return nil
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if err := c.RunOnce(ctx); err != nil {
			c.log.Warn("scheduled purge failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("maintenance: schedule %q: %w", c.schedule, err)
	}

	c.cron.Start()
	c.log.Info("maintenance scheduled", zap.String("schedule", c.schedule), zap.Int("jobs", len(c.jobs)))
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every registered purge sequentially, aggregating failures.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	for _, job := range c.jobs {
		removed, err := job.purger.PurgeExpired(ctx)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("purge %s: %w", job.name, err))
			continue
		}
		if removed > 0 {
			c.log.Debug("purged expired rows", zap.String("job", job.name), zap.Int64("removed", removed))
		}
	}
	return errs
}
