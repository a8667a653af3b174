// Package volume aggregates committed shipment counts per customer and
// tracking period. Volume-tier contract discounts consume the aggregate;
// when it cannot be computed the discount stage sees zero, never an error.
package volume

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/resilience"
)

// Querier defines the database access volume aggregation requires.
type Querier interface {
	CountVolumeSince(ctx context.Context, customerID uuid.UUID, since time.Time) (int64, error)
}

// Service serves period-to-date committed shipment counts, cached in redis.
// A breaker shields quoting from a struggling database: counting is an
// enrichment, not a dependency.
type Service struct {
	Q       Querier
	R       *redis.Client
	Breaker *resilience.Breaker
	TTL     time.Duration
	Log     zerolog.Logger
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// PeriodStart returns the first instant of the tracking period containing
// the reference time. Unknown periods fall back to monthly.
func PeriodStart(period pricing.VolumePeriod, at time.Time) time.Time {
	switch period {
	case pricing.PeriodQuarterly:
		quarterMonth := time.Month((int(at.Month())-1)/3*3 + 1)
		return time.Date(at.Year(), quarterMonth, 1, 0, 0, 0, 0, at.Location())
	case pricing.PeriodYearly:
		return time.Date(at.Year(), time.January, 1, 0, 0, 0, 0, at.Location())
	default:
		return time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, at.Location())
	}
}

// PeriodCount returns the customer's committed shipment count for the
// period containing now. Failures degrade to zero.
func (s *Service) PeriodCount(ctx context.Context, customerID uuid.UUID, period pricing.VolumePeriod) int64 {
	if s == nil || s.Q == nil || customerID == uuid.Nil {
		return 0
	}
	start := PeriodStart(period, s.now())
	key := cacheKey(customerID, start)
	if s.R != nil {
		if count, err := s.R.Get(ctx, key).Int64(); err == nil {
			return count
		}
	}
	if s.Breaker != nil && !s.Breaker.Allow(ctx) {
		return 0
	}
	count, err := s.Q.CountVolumeSince(ctx, customerID, start)
	if s.Breaker != nil {
		s.Breaker.Report(ctx, err == nil)
	}
	if err != nil {
		s.Log.Warn().Err(err).Str("customer_id", customerID.String()).Msg("volume count degraded to zero")
		return 0
	}
	if s.R != nil && s.TTL > 0 {
		s.R.Set(ctx, key, count, s.TTL)
	}
	return count
}

// Invalidate drops the cached counts for a customer after a commit so the
// next quote sees the new sample. All three period granularities are
// cleared; the keys are cheap to rebuild.
func (s *Service) Invalidate(ctx context.Context, customerID uuid.UUID) {
	if s == nil || s.R == nil || customerID == uuid.Nil {
		return
	}
	at := s.now()
	keys := []string{
		cacheKey(customerID, PeriodStart(pricing.PeriodMonthly, at)),
		cacheKey(customerID, PeriodStart(pricing.PeriodQuarterly, at)),
		cacheKey(customerID, PeriodStart(pricing.PeriodYearly, at)),
	}
	if err := s.R.Del(ctx, keys...).Err(); err != nil {
		s.Log.Warn().Err(err).Str("customer_id", customerID.String()).Msg("invalidate volume cache")
	}
}

func cacheKey(customerID uuid.UUID, start time.Time) string {
	return fmt.Sprintf("vol:%s:%s", customerID, start.Format("2006-01-02"))
}
