package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/domaingate/pkg/logger"
)

const (
	defaultLogRetentionDays = 90
	defaultLogSpec          = "@daily"
	defaultCacheSpec        = "@hourly"
)

// LogPruner removes verification logs past the retention window.
type LogPruner interface {
	CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// CachePurger removes expired cache entries.
type CachePurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Cleaner coordinates background maintenance: pruning old verification logs and
// purging expired rows from the database cache fallback.
type Cleaner struct {
	logs      LogPruner
	cache     CachePurger
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention int

	logSchedule   string
	cacheSchedule string
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

// WithNow overrides the clock used for cache expiry comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithLogRetentionDays adjusts how long verification logs are kept. Zero disables pruning.
func WithLogRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days >= 0 {
			cleaner.retention = days
		}
	}
}

// WithLogSchedule overrides the cron specification for log pruning.
func WithLogSchedule(schedule string) Option {
	return func(cleaner *Cleaner) {
		if schedule != "" {
			cleaner.logSchedule = schedule
		}
	}
}

// WithCacheSchedule overrides the cron specification for cache purging.
func WithCacheSchedule(schedule string) Option {
	return func(cleaner *Cleaner) {
		if schedule != "" {
			cleaner.cacheSchedule = schedule
		}
	}
}

// NewCleaner constructs a Cleaner. A nil dependency skips the corresponding job.
func NewCleaner(logs LogPruner, cachePurger CachePurger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		logs:          logs,
		cache:         cachePurger,
		now:           time.Now,
		retention:     defaultLogRetentionDays,
		logSchedule:   defaultLogSpec,
		cacheSchedule: defaultCacheSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner
}

func (c *Cleaner) pruneLogs() bool { return c.logs != nil && c.retention > 0 }

// Start registers the enabled jobs and launches the scheduler.
func (c *Cleaner) Start() error {
	if !c.pruneLogs() && c.cache == nil {
		return nil
	}

	if c.pruneLogs() {
		if _, err := c.cron.AddFunc(c.logSchedule, func() {
			if _, err := c.runLogPrune(context.Background()); err != nil {
				c.log.Warn("verification log cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.cache != nil {
		if _, err := c.cron.AddFunc(c.cacheSchedule, func() {
			if _, err := c.runCachePurge(context.Background()); err != nil {
				c.log.Warn("cache purge failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every enabled job sequentially and combines their errors.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if c.pruneLogs() {
		if _, err := c.runLogPrune(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if c.cache != nil {
		if _, err := c.runCachePurge(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (c *Cleaner) runLogPrune(ctx context.Context) (int64, error) {
	removed, err := c.logs.CleanupOlderThan(ctx, c.retention)
	if err == nil && removed > 0 {
		c.log.Info("verification logs pruned", zap.Int64("removed", removed), zap.Int("retention_days", c.retention))
	}
	return removed, err
}

func (c *Cleaner) runCachePurge(ctx context.Context) (int64, error) {
	removed, err := c.cache.PurgeExpired(ctx, c.now())
	if err == nil && removed > 0 {
		c.log.Debug("expired cache entries purged", zap.Int64("removed", removed))
	}
	return removed, err
}
