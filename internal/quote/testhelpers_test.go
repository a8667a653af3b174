package quote_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/quote"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/rating"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/store"
)

var testNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func decPtr(value string) *decimal.Decimal {
	d := decimal.RequireFromString(value)
	return &d
}

// stubStore satisfies quote.Store with canned data and call accounting.
type stubStore struct {
	build     func() *pricing.Snapshot
	loads     int
	committed []store.CommitRecord
	commitErr error
}

func (s *stubStore) LoadSnapshot(ctx context.Context, customerID uuid.UUID) (*pricing.Snapshot, error) {
	s.loads++
	return s.build(), nil
}

func (s *stubStore) CommitQuote(ctx context.Context, rec store.CommitRecord) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	s.committed = append(s.committed, rec)
	return nil
}

type stubVolume struct {
	count       int64
	invalidated int
}

func (v *stubVolume) PeriodCount(ctx context.Context, customerID uuid.UUID, period pricing.VolumePeriod) int64 {
	return v.count
}

func (v *stubVolume) Invalidate(ctx context.Context, customerID uuid.UUID) {
	v.invalidated++
}

// testSnapshot builds the single-carrier configuration the service tests
// quote against: one INPOST domestic table with a fixed 12.50 rule.
func testSnapshot(promos ...pricing.Promotion) *pricing.Snapshot {
	table := pricing.Table{
		ID:            1,
		CarrierID:     1,
		CarrierCode:   "INPOST",
		ZoneID:        1,
		ZoneCode:      "DOMESTIC",
		ServiceType:   "standard",
		Model:         pricing.ModelWeight,
		BasePrice:     dec("10.00"),
		Currency:      "PLN",
		TaxRate:       decPtr("23"),
		EffectiveFrom: testNow.AddDate(0, -1, 0),
		Version:       1,
		IsActive:      true,
		Rules: []pricing.Rule{{
			ID:         1,
			TableID:    1,
			WeightFrom: dec("0"),
			WeightTo:   decPtr("5"),
			Method:     pricing.CalcFixed,
			Price:      dec("12.50"),
		}},
	}
	return &pricing.Snapshot{
		Carriers: []pricing.Carrier{
			{ID: 1, Code: "INPOST", Name: "InPost", ZoneCodes: []string{"DOMESTIC"}, IsActive: true},
		},
		Tables:     []pricing.Table{table},
		Promotions: promos,
		TakenAt:    testNow,
	}
}

func limitedPromo(limitType pricing.LimitType, limit int64) pricing.Promotion {
	return pricing.Promotion{
		ID:            1,
		Name:          "MARCH",
		DiscountType:  pricing.PromoPercentage,
		DiscountValue: dec("10"),
		TargetType:    pricing.TargetAll,
		ValidFrom:     testNow.AddDate(0, -1, 0),
		UsageLimit:    &limit,
		LimitType:     limitType,
		IsStackable:   true,
		IsActive:      true,
	}
}

func testRequest() rating.Request {
	return rating.Request{
		CarrierCode:  "INPOST",
		ZoneCode:     "DOMESTIC",
		ServiceType:  "standard",
		ActualWeight: dec("3"),
	}
}

// newService wires a quote.Service against miniredis and the stub store.
func newService(t *testing.T, db *stubStore, vol *stubVolume) (*quote.Service, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	svc := &quote.Service{
		DB:          db,
		R:           rdb,
		SnapshotTTL: time.Minute,
		Now:         func() time.Time { return testNow },
	}
	if vol != nil {
		// Assign only non-nil stubs: a typed-nil *stubVolume would make the
		// interface non-nil and defeat the service's Volume guard.
		svc.Volume = vol
	}
	return svc, rdb
}
