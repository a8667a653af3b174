package promotion

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/cache"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/lock"
)

// TaskSweepCounters is the asynq task type for the scheduled counter sweep.
const TaskSweepCounters = "promotion:sweep_counters"

// NewSweepTask builds the scheduled sweep task. It carries no payload.
func NewSweepTask() *asynq.Task {
	return asynq.NewTask(TaskSweepCounters, nil)
}

const sweepLockKey = "lock:promotion:sweep"

// UsageTotals reads the authoritative usage counters from postgres.
type UsageTotals interface {
	TotalUsageCounts(ctx context.Context) (map[int64]int64, error)
}

// Sweeper deletes per-day usage counter keys from past days and cross-checks
// the live ones against the postgres totals. A redis lock keeps concurrent
// workers from double-sweeping.
type Sweeper struct {
	R       *redis.Client
	DB      UsageTotals
	Locker  lock.Locker
	LockTTL time.Duration
	Log     zerolog.Logger
	Now     func() time.Time
}

// HandleSweepTask adapts Sweep to the asynq handler signature.
func (s *Sweeper) HandleSweepTask(ctx context.Context, _ *asynq.Task) error {
	return s.Sweep(ctx)
}

// Sweep acquires the sweep lock and runs one pass.
func (s *Sweeper) Sweep(ctx context.Context) error {
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return s.Locker.WithLock(ctx, sweepLockKey, ttl, s.sweep)
}

func (s *Sweeper) sweep(ctx context.Context) error {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	today := now.UTC().Truncate(24 * time.Hour)

	totals, err := s.DB.TotalUsageCounts(ctx)
	if err != nil {
		s.Log.Warn().Err(err).Msg("usage totals unavailable, skipping drift check")
		totals = nil
	}

	var removed, kept int
	iter := s.R.Scan(ctx, 0, cache.PromoDayPattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		promoID, day, ok := cache.ParsePromoDayKey(key)
		if !ok {
			continue
		}
		if day.Before(today) {
			if err := s.R.Del(ctx, key).Err(); err != nil {
				return err
			}
			removed++
			continue
		}
		kept++
		s.checkDrift(ctx, key, promoID, totals)
	}
	if err := iter.Err(); err != nil {
		return err
	}
	s.Log.Info().Int("removed", removed).Int("kept", kept).Msg("promotion counter sweep complete")
	return nil
}

// checkDrift flags per-day counts that exceed the postgres total. Every redis
// increment pairs with a guarded postgres increment, so a higher day count
// means one of the two sides lost writes.
func (s *Sweeper) checkDrift(ctx context.Context, key string, promoID int64, totals map[int64]int64) {
	if totals == nil {
		return
	}
	count, err := s.R.Get(ctx, key).Int64()
	if err != nil {
		return
	}
	total := totals[promoID]
	if count > total {
		s.Log.Warn().
			Int64("promotion_id", promoID).
			Int64("day_count", count).
			Int64("pg_total", total).
			Msg("promotion counter drift")
	}
}
