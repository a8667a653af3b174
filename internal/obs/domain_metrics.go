package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteComputeTotal counts speculative quote computations by carrier and result.
	QuoteComputeTotal *prometheus.CounterVec
	// QuoteCommitTotal counts committed quotes by carrier and result.
	QuoteCommitTotal *prometheus.CounterVec
	// QuoteLatency records engine latency in milliseconds per operation.
	QuoteLatency *prometheus.HistogramVec
	// PromotionApplyTotal counts applied promotions by discount type.
	PromotionApplyTotal *prometheus.CounterVec
	// PromotionUsageRejected counts commit-time usage increments lost to the limit race.
	PromotionUsageRejected prometheus.Counter
	// SnapshotCacheTotal counts rating snapshot cache lookups by outcome.
	SnapshotCacheTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteComputeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_compute_total",
			Help:      "Count of speculative quote computations by outcome.",
		}, []string{"carrier", "result"})
		QuoteCommitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_commit_total",
			Help:      "Count of committed quotes by outcome.",
		}, []string{"carrier", "result"})
		QuoteLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_duration_ms",
			Help:      "Latency of quote operations in milliseconds.",
			Buckets:   []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"operation"})
		PromotionApplyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotion_apply_total",
			Help:      "Count of promotions applied to quotes by discount type.",
		}, []string{"discount_type"})
		PromotionUsageRejected = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotion_usage_rejected_total",
			Help:      "Commit-time usage increments rejected because the usage limit was reached.",
		})
		SnapshotCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_cache_total",
			Help:      "Rating snapshot cache lookups by outcome.",
		}, []string{"outcome"})

		mustRegisterCollector(reg, QuoteComputeTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuoteComputeTotal = v
			}
		})
		mustRegisterCollector(reg, QuoteCommitTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuoteCommitTotal = v
			}
		})
		mustRegisterCollector(reg, QuoteLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				QuoteLatency = v
			}
		})
		mustRegisterCollector(reg, PromotionApplyTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PromotionApplyTotal = v
			}
		})
		mustRegisterCollector(reg, PromotionUsageRejected, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				PromotionUsageRejected = v
			}
		})
		mustRegisterCollector(reg, SnapshotCacheTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SnapshotCacheTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
