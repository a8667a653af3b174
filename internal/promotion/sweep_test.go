package promotion_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/cache"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/lock"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/promotion"
)

type stubTotals struct {
	totals map[int64]int64
	err    error
}

func (s *stubTotals) TotalUsageCounts(ctx context.Context) (map[int64]int64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.totals, nil
}

func newSweeper(t *testing.T, totals *stubTotals) (*promotion.Sweeper, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	sw := &promotion.Sweeper{
		R:      rdb,
		DB:     totals,
		Locker: lock.Locker{R: rdb},
		Now:    func() time.Time { return testNow },
	}
	return sw, rdb
}

func TestSweepRemovesStaleDayKeys(t *testing.T) {
	sw, rdb := newSweeper(t, &stubTotals{totals: map[int64]int64{}})
	ctx := context.Background()

	stale := cache.PromoDayKey(1, testNow.AddDate(0, 0, -3))
	today := cache.PromoDayKey(1, testNow)
	require.NoError(t, rdb.Set(ctx, stale, "4", 0).Err())
	require.NoError(t, rdb.Set(ctx, today, "2", 0).Err())

	require.NoError(t, sw.Sweep(ctx))

	_, err := rdb.Get(ctx, stale).Result()
	require.ErrorIs(t, err, redis.Nil)
	val, err := rdb.Get(ctx, today).Result()
	require.NoError(t, err)
	require.Equal(t, "2", val)
}

func TestSweepIgnoresForeignKeys(t *testing.T) {
	sw, rdb := newSweeper(t, &stubTotals{totals: map[int64]int64{}})
	ctx := context.Background()

	require.NoError(t, rdb.Set(ctx, "promo:usage:day:not-a-number", "1", 0).Err())
	require.NoError(t, sw.Sweep(ctx))

	val, err := rdb.Get(ctx, "promo:usage:day:not-a-number").Result()
	require.NoError(t, err)
	require.Equal(t, "1", val)
}

func TestSweepSurvivesTotalsFailure(t *testing.T) {
	sw, rdb := newSweeper(t, &stubTotals{err: context.DeadlineExceeded})
	ctx := context.Background()

	stale := cache.PromoDayKey(2, testNow.AddDate(0, 0, -1))
	require.NoError(t, rdb.Set(ctx, stale, "1", 0).Err())

	require.NoError(t, sw.Sweep(ctx))
	_, err := rdb.Get(ctx, stale).Result()
	require.ErrorIs(t, err, redis.Nil)
}

func TestParsePromoDayKeyRoundTrip(t *testing.T) {
	day := time.Date(2026, time.March, 12, 0, 0, 0, 0, time.UTC)
	key := cache.PromoDayKey(9, day)
	promoID, parsed, ok := cache.ParsePromoDayKey(key)
	require.True(t, ok)
	require.EqualValues(t, 9, promoID)
	require.True(t, parsed.Equal(day))

	_, _, ok = cache.ParsePromoDayKey("vol:something:else")
	require.False(t, ok)
}
