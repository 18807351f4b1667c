// Package maintenance runs the cron-gated background loop: history
// keyspace compaction and store metrics sampling. Facts are never
// deleted; compaction only reclaims space from pebble's own garbage.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"loomdb/pkg/config"
	"loomdb/pkg/facts"
	"loomdb/pkg/ingest/queue"
	"loomdb/pkg/logger"
)

var sampledRelations = []string{
	facts.RelOpenThread,
	facts.RelSubscribedThread,
	facts.RelThreadTag,
	facts.RelThreadGroup,
	facts.RelThreadMentioned,
	facts.RelMessageThread,
	facts.RelGroupUser,
	facts.RelTagGroup,
}

// Start starts the maintenance scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, cfg config.MaintenanceConfig, q *queue.Queue) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("maintenance_disabled")
		return func() {}, nil
	}

	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "0 3 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("maintenance_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid maintenance cron expression: %s", cfg.Cron)
	}

	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr, q)
	logger.Info("maintenance_scheduler_started", "cron", cronExpr)
	return cancel, nil
}

// runScheduler computes the next tick with gronx and sleeps until then.
func runScheduler(ctx context.Context, cronExpr string, q *queue.Queue) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("maintenance_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("maintenance_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
		case <-ctx.Done():
			logger.Info("maintenance_scheduler_stopping")
			return
		}

		if err := RunOnce(ctx, q); err != nil {
			logger.Error("maintenance_run_error", "error", err)
		}
	}
}

// RunOnce performs one maintenance pass. Exposed so admin tooling and
// tests can trigger it on demand.
func RunOnce(ctx context.Context, q *queue.Queue) error {
	start := time.Now()
	for _, rel := range sampledRelations {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := facts.CountCurrent(rel)
		if err != nil {
			return fmt.Errorf("sample %s: %w", rel, err)
		}
		facts.RelationGauge.WithLabelValues(rel).Set(float64(n))
	}
	facts.DiskUsageGauge.Set(float64(facts.DiskUsage()))
	if err := facts.CompactLog(); err != nil {
		return fmt.Errorf("compact history: %w", err)
	}
	logger.Info("maintenance_run_complete",
		"elapsed", time.Since(start).String(),
		"queue_depth", q.Len(),
		"queue_dropped", q.Dropped(),
	)
	return nil
}
