// Package ratelimit guards the public quote surface with a redis-backed
// limiter shared across api replicas.
package ratelimit

import (
	"net/http"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	mhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/common"
)

// New builds the quote-surface middleware from a formatted rate such as
// "120-M" (120 requests per minute).
func New(rdb *redis.Client, formatted string) (func(http.Handler) http.Handler, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}
	store, err := sredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "rl:quotes"})
	if err != nil {
		return nil, err
	}
	mw := mhttp.NewMiddleware(limiter.New(store, rate),
		mhttp.WithKeyGetter(Key),
		mhttp.WithLimitReachedHandler(limitReached),
	)
	return mw.Handler, nil
}

// Key prefers the authenticated customer identity so callers behind a shared
// NAT are not throttled collectively. Anonymous traffic keys on client IP.
func Key(r *http.Request) string {
	if id, ok := common.CustomerID(r.Context()); ok && id != "" {
		return "cust:" + id
	}
	return "ip:" + common.ClientIP(r)
}

func limitReached(w http.ResponseWriter, _ *http.Request) {
	common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
}
