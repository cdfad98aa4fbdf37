package marketplace

import (
	"context"
	"fmt"
	"time"

	"github.com/farmlink/farmlink/internal/logging"
	"github.com/farmlink/farmlink/internal/models"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// PurgeIdempotencyKeys deletes keys recorded before cutoff and returns how
// many were removed.
func PurgeIdempotencyKeys(db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.Where("created_at < ?", cutoff).Delete(&models.IdempotencyKey{})
	if result.Error != nil {
		return 0, fmt.Errorf("marketplace: purge idempotency keys: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// JanitorOpts configures RunJanitor.
type JanitorOpts struct {
	DB        *gorm.DB
	Schedule  string        // 5-field cron expression
	Retention time.Duration // keys older than this are purged
	Logger    *zap.Logger
}

// RunJanitor purges expired idempotency keys on Schedule until ctx is
// cancelled. A failed purge is logged and retried at the next tick.
func RunJanitor(ctx context.Context, opts JanitorOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("marketplace: janitor: db is required")
	}
	if opts.Retention <= 0 {
		return fmt.Errorf("marketplace: janitor: retention must be positive")
	}
	sched, err := cronParser.Parse(opts.Schedule)
	if err != nil {
		return fmt.Errorf("marketplace: janitor: parse schedule %q: %w", opts.Schedule, err)
	}
	log := logging.OrNop(opts.Logger).Named("janitor")

	for {
		next := sched.Next(time.Now())
		log.Debug("next purge scheduled", zap.Time("at", next))
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		n, err := PurgeIdempotencyKeys(opts.DB, time.Now().UTC().Add(-opts.Retention))
		if err != nil {
			log.Error("purge failed", zap.Error(err))
			continue
		}
		log.Info("purged idempotency keys", zap.Int64("count", n))
	}
}
