// Package scheduler runs the periodic maintenance sweep: expiring stale
// matching offers and pruning old usage counter rows. A single sweep runs
// at a time per deployment; when redis is configured, a best-effort lock
// keeps replicas from sweeping concurrently.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/counselhub/counselhub/internal/audit/domain"
	"github.com/counselhub/counselhub/internal/clock"
	matchingdomain "github.com/counselhub/counselhub/internal/matching/domain"
	obsmetrics "github.com/counselhub/counselhub/internal/observability/metrics"
	quotadomain "github.com/counselhub/counselhub/internal/quota/domain"
	"github.com/counselhub/counselhub/internal/ratelimit"
)

const sweepLockKey = "scheduler:sweep"

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Audit   auditdomain.Service
	Metrics *obsmetrics.Metrics `optional:"true"`
	Locker  *ratelimit.Locker   `optional:"true"`
	Config  Config              `optional:"true"`
}

type Scheduler struct {
	db      *gorm.DB
	log     *zap.Logger
	cfg     Config
	genID   *snowflake.Node
	clock   clock.Clock
	audit   auditdomain.Service
	metrics *obsmetrics.Metrics
	locker  *ratelimit.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.Audit == nil {
		return nil, fmt.Errorf("scheduler: missing dependency")
	}
	return &Scheduler{
		db:      p.DB,
		log:     p.Log.Named("scheduler"),
		cfg:     p.Config.withDefaults(),
		genID:   p.GenID,
		clock:   p.Clock,
		audit:   p.Audit,
		metrics: p.Metrics,
		locker:  p.Locker,
	}, nil
}

// RunForever sweeps on the configured interval until ctx is cancelled.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("maintenance sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single maintenance sweep.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.locker != nil {
		token, ok, err := s.locker.TryLock(ctx, sweepLockKey, s.cfg.RunInterval)
		if err != nil {
			s.log.Warn("sweep lock unavailable, proceeding", zap.Error(err))
		} else if !ok {
			return nil
		} else {
			defer func() {
				if err := s.locker.Release(ctx, sweepLockKey, token); err != nil {
					s.log.Warn("sweep lock release failed", zap.Error(err))
				}
			}()
		}
	}

	var firstErr error
	for _, job := range []struct {
		name string
		run  func(context.Context) (int64, error)
	}{
		{"expire_assignments", s.expireAssignments},
		{"prune_counters", s.pruneCounters},
	} {
		processed, err := s.runJob(ctx, job.name, job.run)
		if s.metrics != nil {
			s.metrics.RecordSchedulerJob(ctx, job.name, err == nil)
		}
		if err != nil {
			s.log.Warn("job failed", zap.String("job", job.name), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if processed > 0 {
			s.log.Info("job done", zap.String("job", job.name), zap.Int64("processed", processed))
		}
	}
	return firstErr
}

func (s *Scheduler) runJob(ctx context.Context, name string, run func(context.Context) (int64, error)) (processed int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", name, r)
		}
	}()
	return run(ctx)
}

// expireAssignments closes matching offers that outlived the offer window
// so a re-match can produce a fresh candidate list.
func (s *Scheduler) expireAssignments(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().Add(-s.cfg.AssignmentTTL)

	var expired int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(
			"UPDATE request_assignments SET status = ?, updated_at = ? WHERE status = ? AND created_at < ?",
			matchingdomain.AssignmentExpired, s.clock.Now(), matchingdomain.AssignmentOffered, cutoff,
		)
		if res.Error != nil {
			return res.Error
		}
		expired = res.RowsAffected
		if expired == 0 {
			return nil
		}
		return s.audit.Record(ctx, tx, "matching.offers_expired", "request_assignment", nil, map[string]any{
			"expired": expired,
			"cutoff":  cutoff,
		})
	})
	return expired, err
}

// pruneCounters drops usage counter rows past the retention window. The
// day column is a lexically ordered date key, so string comparison works.
func (s *Scheduler) pruneCounters(ctx context.Context) (int64, error) {
	cutoffDay := quotadomain.DayKey(s.clock.Now().Add(-s.cfg.CounterRetention))

	res := s.db.WithContext(ctx).Exec("DELETE FROM usage_counters WHERE day < ?", cutoffDay)
	return res.RowsAffected, res.Error
}
