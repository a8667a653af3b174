package volume_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/volume"
)

type stubCounter struct {
	count int64
	err   error
	calls int
	since time.Time
}

func (s *stubCounter) CountVolumeSince(ctx context.Context, customerID uuid.UUID, since time.Time) (int64, error) {
	s.calls++
	s.since = since
	return s.count, s.err
}

func TestPeriodCountCached(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	counter := &stubCounter{count: 42}
	svc := &volume.Service{Q: counter, R: rdb, TTL: time.Minute}
	customerID := uuid.New()

	if got := svc.PeriodCount(context.Background(), customerID, pricing.PeriodMonthly); got != 42 {
		t.Fatalf("first call: expected 42, got %d", got)
	}
	if got := svc.PeriodCount(context.Background(), customerID, pricing.PeriodMonthly); got != 42 {
		t.Fatalf("second call: expected 42, got %d", got)
	}
	if counter.calls != 1 {
		t.Fatalf("expected 1 DB call, got %d", counter.calls)
	}
}

func TestPeriodCountDegradesToZero(t *testing.T) {
	counter := &stubCounter{err: errors.New("db down")}
	svc := &volume.Service{Q: counter}

	if got := svc.PeriodCount(context.Background(), uuid.New(), pricing.PeriodMonthly); got != 0 {
		t.Fatalf("expected degraded zero, got %d", got)
	}
}

func TestPeriodCountUsesPeriodStart(t *testing.T) {
	counter := &stubCounter{count: 7}
	now := time.Date(2026, time.August, 20, 10, 0, 0, 0, time.UTC)
	svc := &volume.Service{Q: counter, Now: func() time.Time { return now }}

	svc.PeriodCount(context.Background(), uuid.New(), pricing.PeriodQuarterly)
	want := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	if !counter.since.Equal(want) {
		t.Fatalf("expected quarter start %s, got %s", want, counter.since)
	}
}

func TestPeriodStartBoundaries(t *testing.T) {
	at := time.Date(2026, time.February, 14, 9, 30, 0, 0, time.UTC)
	cases := []struct {
		period pricing.VolumePeriod
		want   time.Time
	}{
		{pricing.PeriodMonthly, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)},
		{pricing.PeriodQuarterly, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{pricing.PeriodYearly, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		if got := volume.PeriodStart(tc.period, at); !got.Equal(tc.want) {
			t.Fatalf("%s: expected %s, got %s", tc.period, tc.want, got)
		}
	}
}

func TestInvalidateDropsCachedCount(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	counter := &stubCounter{count: 5}
	svc := &volume.Service{Q: counter, R: rdb, TTL: time.Minute}
	customerID := uuid.New()

	svc.PeriodCount(context.Background(), customerID, pricing.PeriodMonthly)
	svc.Invalidate(context.Background(), customerID)

	counter.count = 6
	if got := svc.PeriodCount(context.Background(), customerID, pricing.PeriodMonthly); got != 6 {
		t.Fatalf("expected fresh count 6 after invalidation, got %d", got)
	}
	if counter.calls != 2 {
		t.Fatalf("expected 2 DB calls, got %d", counter.calls)
	}
}
