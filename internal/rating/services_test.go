package rating

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
)

func codService() pricing.Service {
	return pricing.Service{
		ID:           1,
		CarrierID:    1,
		Code:         "COD",
		Name:         "Cash on delivery",
		PricingType:  pricing.ServiceFixed,
		DefaultPrice: dec("5.00"),
		IsActive:     true,
	}
}

func insuranceService() pricing.Service {
	return pricing.Service{
		ID:             2,
		CarrierID:      1,
		Code:           "INSURANCE",
		Name:           "Insurance",
		PricingType:    pricing.ServicePercentage,
		PercentageRate: decPtr("1.5"),
		IsActive:       true,
	}
}

func TestPriceServicesFixedAndPercentage(t *testing.T) {
	snap := snapshotWith(domesticTable(fixedRule()))
	snap.Services = []pricing.Service{codService(), insuranceService()}

	lines, total, err := PriceServices(snap, snap.Tables[0], ServiceInput{
		Codes:      []string{"COD", "INSURANCE"},
		BaseAmount: dec("100.00"),
		ZoneCode:   "DOMESTIC",
		At:         testNow,
	})
	if err != nil {
		t.Fatalf("price services: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !lines[0].Price.Equal(dec("5.00")) {
		t.Fatalf("COD: expected 5.00, got %s", lines[0].Price)
	}
	// 100.00 x 1.5%
	if !lines[1].Price.Equal(dec("1.50")) {
		t.Fatalf("INSURANCE: expected 1.50, got %s", lines[1].Price)
	}
	if !total.Equal(dec("6.50")) {
		t.Fatalf("total: expected 6.50, got %s", total)
	}
}

func TestPriceServicesPerPackage(t *testing.T) {
	svc := codService()
	svc.Code = "LABEL"
	svc.PricingType = pricing.ServicePerPackage
	svc.DefaultPrice = dec("1.25")

	snap := snapshotWith(domesticTable(fixedRule()))
	snap.Services = []pricing.Service{svc}

	_, total, err := PriceServices(snap, snap.Tables[0], ServiceInput{
		Codes:        []string{"LABEL"},
		PackageCount: 4,
		ZoneCode:     "DOMESTIC",
		At:           testNow,
	})
	if err != nil {
		t.Fatalf("price services: %v", err)
	}
	if !total.Equal(dec("5.00")) {
		t.Fatalf("expected 1.25 x 4 = 5.00, got %s", total)
	}
}

func TestPriceServicesTableOverrideWins(t *testing.T) {
	tbl := domesticTable(fixedRule())
	tbl.ServicePrices = []pricing.ServicePrice{
		{ID: 1, TableID: tbl.ID, ServiceID: 1, Price: decPtr("3.75")},
	}
	snap := snapshotWith(tbl)
	snap.Services = []pricing.Service{codService()}

	_, total, err := PriceServices(snap, tbl, ServiceInput{
		Codes:    []string{"COD"},
		ZoneCode: "DOMESTIC",
		At:       testNow,
	})
	if err != nil {
		t.Fatalf("price services: %v", err)
	}
	if !total.Equal(dec("3.75")) {
		t.Fatalf("expected override 3.75, got %s", total)
	}
}

func TestPriceServicesZoneGate(t *testing.T) {
	svc := codService()
	svc.SupportedZones = []string{"INTL_EU"}

	snap := snapshotWith(domesticTable(fixedRule()))
	snap.Services = []pricing.Service{svc}

	_, _, err := PriceServices(snap, snap.Tables[0], ServiceInput{
		Codes:    []string{"COD"},
		ZoneCode: "DOMESTIC",
		At:       testNow,
	})
	if !errors.Is(err, ErrServiceNotAvailable) {
		t.Fatalf("expected ErrServiceNotAvailable, got %v", err)
	}
}

func TestPriceServicesUnknownCode(t *testing.T) {
	snap := snapshotWith(domesticTable(fixedRule()))
	_, _, err := PriceServices(snap, snap.Tables[0], ServiceInput{
		Codes:    []string{"NOPE"},
		ZoneCode: "DOMESTIC",
		At:       testNow,
	})
	if !errors.Is(err, ErrUnknownService) {
		t.Fatalf("expected ErrUnknownService, got %v", err)
	}
}

func TestPriceServicesTierBased(t *testing.T) {
	svc := pricing.Service{
		ID:          3,
		CarrierID:   1,
		Code:        "HANDLING",
		Name:        "Special handling",
		PricingType: pricing.ServiceTierBased,
		IsActive:    true,
	}
	tbl := domesticTable(fixedRule())
	tbl.ServicePrices = []pricing.ServicePrice{{
		ID:        2,
		TableID:   tbl.ID,
		ServiceID: 3,
		WeightTiers: []pricing.WeightTier{
			{From: dec("0"), To: decPtr("5"), Price: dec("2.00")},
			{From: dec("5.01"), To: decPtr("20"), Price: dec("4.00")},
		},
	}}
	snap := snapshotWith(tbl)
	snap.Services = []pricing.Service{svc}

	_, total, err := PriceServices(snap, tbl, ServiceInput{
		Codes:          []string{"HANDLING"},
		BillableWeight: dec("7"),
		ZoneCode:       "DOMESTIC",
		At:             testNow,
	})
	if err != nil {
		t.Fatalf("price services: %v", err)
	}
	if !total.Equal(dec("4.00")) {
		t.Fatalf("expected 4.00 bracket, got %s", total)
	}
}

func TestPriceServicesValueTierRate(t *testing.T) {
	svc := pricing.Service{
		ID:          4,
		CarrierID:   1,
		Code:        "INS_TIER",
		Name:        "Tiered insurance",
		PricingType: pricing.ServiceTierBased,
		IsActive:    true,
	}
	tbl := domesticTable(fixedRule())
	tbl.ServicePrices = []pricing.ServicePrice{{
		ID:        3,
		TableID:   tbl.ID,
		ServiceID: 4,
		ValueTiers: []pricing.ValueTier{
			{From: dec("0"), To: decPtr("1000"), Rate: decPtr("0.5")},
			{From: dec("1000.01"), Price: decPtr("10.00")},
		},
	}}
	snap := snapshotWith(tbl)
	snap.Services = []pricing.Service{svc}

	_, total, err := PriceServices(snap, tbl, ServiceInput{
		Codes:         []string{"INS_TIER"},
		DeclaredValue: dec("800"),
		ZoneCode:      "DOMESTIC",
		At:            testNow,
	})
	if err != nil {
		t.Fatalf("price services: %v", err)
	}
	// 800 x 0.5%
	if !total.Equal(dec("4.00")) {
		t.Fatalf("expected 4.00, got %s", total)
	}
}

func TestPriceServicesTierNotFound(t *testing.T) {
	svc := pricing.Service{
		ID:          5,
		CarrierID:   1,
		Code:        "BULKY",
		Name:        "Bulky goods",
		PricingType: pricing.ServiceTierBased,
		IsActive:    true,
	}
	tbl := domesticTable(fixedRule())
	tbl.ServicePrices = []pricing.ServicePrice{{
		ID:          4,
		TableID:     tbl.ID,
		ServiceID:   5,
		WeightTiers: []pricing.WeightTier{{From: dec("0"), To: decPtr("5"), Price: dec("2.00")}},
	}}
	snap := snapshotWith(tbl)
	snap.Services = []pricing.Service{svc}

	_, _, err := PriceServices(snap, tbl, ServiceInput{
		Codes:          []string{"BULKY"},
		BillableWeight: dec("50"),
		ZoneCode:       "DOMESTIC",
		At:             testNow,
	})
	if !errors.Is(err, ErrServiceTierNotFound) {
		t.Fatalf("expected ErrServiceTierNotFound, got %v", err)
	}
}

func TestPriceServicesMinClamp(t *testing.T) {
	svc := insuranceService()
	svc.MinPrice = decPtr("2.00")

	snap := snapshotWith(domesticTable(fixedRule()))
	snap.Services = []pricing.Service{svc}

	_, total, err := PriceServices(snap, snap.Tables[0], ServiceInput{
		Codes:      []string{"INSURANCE"},
		BaseAmount: dec("10.00"),
		ZoneCode:   "DOMESTIC",
		At:         testNow,
	})
	if err != nil {
		t.Fatalf("price services: %v", err)
	}
	// 10.00 x 1.5% = 0.15, clamped up to the 2.00 floor.
	if !total.Equal(dec("2.00")) {
		t.Fatalf("expected clamp to 2.00, got %s", total)
	}
}

func TestPriceServicesContractDiscount(t *testing.T) {
	snap := snapshotWith(domesticTable(fixedRule()))
	snap.Services = []pricing.Service{codService()}

	contract := &pricing.Contract{
		ID:               1,
		TableID:          1,
		DiscountType:     pricing.DiscountPercentage,
		ServiceDiscounts: map[string]decimal.Decimal{"COD": dec("20")},
		EffectiveFrom:    testNow.AddDate(0, -1, 0),
		IsActive:         true,
	}

	_, total, err := PriceServices(snap, snap.Tables[0], ServiceInput{
		Codes:    []string{"COD"},
		ZoneCode: "DOMESTIC",
		At:       testNow,
		Contract: contract,
	})
	if err != nil {
		t.Fatalf("price services: %v", err)
	}
	// 5.00 less the contracted 20%.
	if !total.Equal(dec("4.00")) {
		t.Fatalf("expected 4.00, got %s", total)
	}
}
