package revocation

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/vipclub/internal/logging"
	"github.com/robfig/cron/v3"
)

// Purger deletes expired revocation records.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Resyncer rebuilds a revocation mirror.
type Resyncer interface {
	Resync(ctx context.Context) (int, error)
}

// Janitor periodically purges expired revocations and, when a mirror is
// configured, resyncs it.
type Janitor struct {
	purger   Purger
	mirror   Resyncer
	schedule string
	log      logging.Logger
}

// NewJanitor builds a Janitor running on a cron schedule such as
// "@every 15m". mirror may be nil.
func NewJanitor(purger Purger, mirror Resyncer, schedule string, log logging.Logger) *Janitor {
	return &Janitor{
		purger:   purger,
		mirror:   mirror,
		schedule: schedule,
		log:      log.With("module", "janitor"),
	}
}

// RunOnce performs a single purge and resync. A failed purge does not
// prevent the resync.
func (j *Janitor) RunOnce(ctx context.Context) error {
	var firstErr error

	n, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		j.log.Error(ctx, "purge expired revocations", "error", err)
		firstErr = err
	} else if n > 0 {
		j.log.Info(ctx, "purged expired revocations", "count", n)
	}

	if j.mirror != nil {
		if _, err := j.mirror.Resync(ctx); err != nil {
			j.log.Error(ctx, "resync revocation mirror", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// Run does one pass immediately, then follows the schedule until ctx is
// done. It waits for a running pass to finish before returning.
func (j *Janitor) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	if _, err := c.AddFunc(j.schedule, func() { _ = j.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("janitor schedule %q: %w", j.schedule, err)
	}

	_ = j.RunOnce(ctx)

	c.Start()
	j.log.Info(ctx, "janitor started", "schedule", j.schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	j.log.Info(ctx, "janitor stopped")
	return nil
}
