// Package quote orchestrates rate computation over cached pricing
// snapshots and owns the durable side effects of committing a quote:
// promotion usage counters and shipment volume samples.
package quote

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/cache"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/obs"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/rating"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/store"
)

// Store is the persistence surface the quote service depends on.
type Store interface {
	LoadSnapshot(ctx context.Context, customerID uuid.UUID) (*pricing.Snapshot, error)
	CommitQuote(ctx context.Context, rec store.CommitRecord) error
}

// VolumeCounter supplies period-to-date committed shipment counts for
// volume-tier contracts.
type VolumeCounter interface {
	PeriodCount(ctx context.Context, customerID uuid.UUID, period pricing.VolumePeriod) int64
	Invalidate(ctx context.Context, customerID uuid.UUID)
}

// Service composes snapshot loading, counter materialisation and the rating
// engine into the compute, commit and compare operations. The zero Engine
// value is usable; Now defaults to time.Now.
type Service struct {
	DB          Store
	R           *redis.Client
	Volume      VolumeCounter
	Engine      *rating.Engine
	SnapshotTTL time.Duration
	Log         zerolog.Logger
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) engine() *rating.Engine {
	if s.Engine != nil {
		return s.Engine
	}
	return &rating.Engine{Now: s.Now}
}

// Quote computes a speculative quote. No counter moves.
func (s *Service) Quote(ctx context.Context, customerID uuid.UUID, req rating.Request) (*rating.Quote, error) {
	start := time.Now()
	q, err := s.compute(ctx, customerID, &req)
	observeLatency("compute", start)
	countOutcome(obs.QuoteComputeTotal, req.CarrierCode, err)
	if err != nil {
		return nil, err
	}
	countPromotions(q)
	return q, nil
}

// Compare runs the full pipeline once per eligible carrier and returns the
// results ordered by grand total, failed carriers last.
func (s *Service) Compare(ctx context.Context, customerID uuid.UUID, req rating.Request) ([]rating.CarrierQuote, error) {
	start := time.Now()
	defer observeLatency("compare", start)
	if req.AsOf.IsZero() {
		req.AsOf = s.now()
	}
	req.CustomerID = customerID
	snap, err := s.snapshot(ctx, customerID)
	if err != nil {
		return nil, err
	}
	s.materialize(ctx, snap, customerID, req.AsOf)
	results := s.engine().Compare(snap, req)
	for _, cq := range results {
		countOutcome(obs.QuoteComputeTotal, cq.CarrierCode, cq.Err)
	}
	return results, nil
}

// Commit recomputes the quote and makes its side effects durable. The
// postgres transaction owns the authoritative total usage counters; the
// redis per-customer and per-day counters and the volume cache follow after
// it succeeds.
func (s *Service) Commit(ctx context.Context, customerID uuid.UUID, req rating.Request) (*rating.Quote, error) {
	start := time.Now()
	q, err := s.commit(ctx, customerID, req)
	observeLatency("commit", start)
	countOutcome(obs.QuoteCommitTotal, req.CarrierCode, err)
	return q, err
}

func (s *Service) commit(ctx context.Context, customerID uuid.UUID, req rating.Request) (*rating.Quote, error) {
	q, err := s.compute(ctx, customerID, &req)
	if err != nil {
		return nil, err
	}
	promoIDs := make([]int64, 0, len(q.Promotions))
	for _, app := range q.Promotions {
		promoIDs = append(promoIDs, app.PromotionID)
	}
	rec := store.CommitRecord{
		Sample: store.VolumeSample{
			CustomerID:  customerID,
			CarrierCode: q.CarrierCode,
			GrandTotal:  q.GrandTotal,
			Currency:    q.Currency,
			CommittedAt: req.AsOf,
		},
		PromotionIDs: promoIDs,
	}
	if err := s.DB.CommitQuote(ctx, rec); err != nil {
		if errors.Is(err, store.ErrUsageExhausted) {
			incUsageRejected()
		}
		return nil, err
	}
	s.bumpCounters(ctx, customerID, promoIDs, req.AsOf)
	if s.Volume != nil {
		s.Volume.Invalidate(ctx, customerID)
	}
	countPromotions(q)
	return q, nil
}

func (s *Service) compute(ctx context.Context, customerID uuid.UUID, req *rating.Request) (*rating.Quote, error) {
	if req.AsOf.IsZero() {
		req.AsOf = s.now()
	}
	req.CustomerID = customerID
	snap, err := s.snapshot(ctx, customerID)
	if err != nil {
		return nil, err
	}
	s.materialize(ctx, snap, customerID, req.AsOf)
	return s.engine().Quote(snap, *req)
}

// snapshot returns the pricing configuration for the customer scope,
// serving from the redis cache when possible. The cached form never
// includes usage counters or period counts; those are materialised per
// request.
func (s *Service) snapshot(ctx context.Context, customerID uuid.UUID) (*pricing.Snapshot, error) {
	key := cache.SnapshotKey(customerID)
	if s.R != nil {
		raw, err := s.R.Get(ctx, key).Bytes()
		if err == nil {
			var snap pricing.Snapshot
			if err := json.Unmarshal(raw, &snap); err == nil {
				incSnapshotCache("hit")
				return &snap, nil
			}
		}
	}
	incSnapshotCache("miss")
	snap, err := s.DB.LoadSnapshot(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if s.R != nil {
		if raw, err := json.Marshal(snap); err == nil {
			ttl := s.SnapshotTTL
			if ttl <= 0 {
				ttl = time.Minute
			}
			if err := s.R.Set(ctx, key, raw, ttl).Err(); err != nil {
				s.Log.Debug().Err(err).Msg("snapshot cache write failed")
			}
		}
	}
	return snap, nil
}

// InvalidateSnapshots drops every cached snapshot so the next quote reloads
// pricing configuration from postgres. Returns the number of keys dropped.
func (s *Service) InvalidateSnapshots(ctx context.Context) (int64, error) {
	if s.R == nil {
		return 0, nil
	}
	var dropped int64
	iter := s.R.Scan(ctx, 0, cache.SnapshotPattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := s.R.Del(ctx, iter.Val()).Err(); err != nil {
			return dropped, err
		}
		dropped++
	}
	return dropped, iter.Err()
}

func (s *Service) materialize(ctx context.Context, snap *pricing.Snapshot, customerID uuid.UUID, at time.Time) {
	s.fillUsage(ctx, snap, customerID, at)
	s.fillVolume(ctx, snap, customerID, at)
}

// fillUsage reads the redis-side counters for promotions whose limit type
// the engine cannot check from the promotion row alone.
func (s *Service) fillUsage(ctx context.Context, snap *pricing.Snapshot, customerID uuid.UUID, at time.Time) {
	if s.R == nil {
		return
	}
	type slot struct {
		promoID int64
		perDay  bool
	}
	keys := make([]string, 0, len(snap.Promotions))
	slots := make([]slot, 0, len(snap.Promotions))
	for _, p := range snap.Promotions {
		if p.UsageLimit == nil {
			continue
		}
		switch p.LimitType {
		case pricing.LimitPerCustomer:
			if customerID == uuid.Nil {
				continue
			}
			keys = append(keys, cache.PromoCustomerKey(p.ID, customerID))
			slots = append(slots, slot{promoID: p.ID})
		case pricing.LimitPerDay:
			keys = append(keys, cache.PromoDayKey(p.ID, at))
			slots = append(slots, slot{promoID: p.ID, perDay: true})
		}
	}
	if len(keys) == 0 {
		return
	}
	vals, err := s.R.MGet(ctx, keys...).Result()
	if err != nil {
		s.Log.Warn().Err(err).Msg("promotion usage read failed")
		return
	}
	usage := make(map[int64]pricing.UsageCounts, len(slots))
	for i, v := range vals {
		n := counterValue(v)
		if n == 0 {
			continue
		}
		c := usage[slots[i].promoID]
		if slots[i].perDay {
			c.PerDay = n
		} else {
			c.PerCustomer = n
		}
		usage[slots[i].promoID] = c
	}
	snap.Usage = usage
}

// fillVolume resolves the period shipment count for the first active
// volume-discount contract. Customers without one skip the lookup.
func (s *Service) fillVolume(ctx context.Context, snap *pricing.Snapshot, customerID uuid.UUID, at time.Time) {
	if s.Volume == nil || customerID == uuid.Nil {
		return
	}
	for i := range snap.Contracts {
		c := &snap.Contracts[i]
		if c.DiscountType != pricing.DiscountVolume || !c.IsCurrentlyActive(at) {
			continue
		}
		snap.PeriodShipments = s.Volume.PeriodCount(ctx, customerID, c.VolumePeriod)
		return
	}
}

// bumpCounters advances the redis per-customer and per-day counters after a
// successful commit. Postgres already holds the authoritative totals, so a
// failure here only logs.
func (s *Service) bumpCounters(ctx context.Context, customerID uuid.UUID, promoIDs []int64, at time.Time) {
	if s.R == nil || len(promoIDs) == 0 {
		return
	}
	pipe := s.R.Pipeline()
	for _, id := range promoIDs {
		if customerID != uuid.Nil {
			pipe.Incr(ctx, cache.PromoCustomerKey(id, customerID))
		}
		day := cache.PromoDayKey(id, at)
		pipe.Incr(ctx, day)
		pipe.Expire(ctx, day, 48*time.Hour)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.Log.Warn().Err(err).Msg("promotion counter update failed")
	}
}

func counterValue(v any) int64 {
	str, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func observeLatency(op string, start time.Time) {
	if obs.QuoteLatency == nil {
		return
	}
	obs.QuoteLatency.WithLabelValues(op).Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}

func countOutcome(vec *prometheus.CounterVec, carrier string, err error) {
	if vec == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	vec.WithLabelValues(carrier, result).Inc()
}

func countPromotions(q *rating.Quote) {
	if obs.PromotionApplyTotal == nil || q == nil {
		return
	}
	for _, app := range q.Promotions {
		obs.PromotionApplyTotal.WithLabelValues(string(app.DiscountType)).Inc()
	}
}

func incSnapshotCache(outcome string) {
	if obs.SnapshotCacheTotal != nil {
		obs.SnapshotCacheTotal.WithLabelValues(outcome).Inc()
	}
}

func incUsageRejected() {
	if obs.PromotionUsageRejected != nil {
		obs.PromotionUsageRejected.Inc()
	}
}
