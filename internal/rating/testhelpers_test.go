package rating

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
)

var testNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func decPtr(value string) *decimal.Decimal {
	d := decimal.RequireFromString(value)
	return &d
}

func testEngine() *Engine {
	return &Engine{Now: func() time.Time { return testNow }}
}

// domesticTable is the INPOST/DOMESTIC/standard sheet most tests price
// against: weight model, 23% tax, PLN, effective for a month either side of
// testNow.
func domesticTable(rules ...pricing.Rule) pricing.Table {
	return pricing.Table{
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
		Rules:         rules,
	}
}

func fixedRule() pricing.Rule {
	return pricing.Rule{
		ID:         1,
		TableID:    1,
		WeightFrom: dec("0"),
		WeightTo:   decPtr("5"),
		Method:     pricing.CalcFixed,
		Price:      dec("12.50"),
	}
}

func perKgRule() pricing.Rule {
	return pricing.Rule{
		ID:         2,
		TableID:    1,
		WeightFrom: dec("0"),
		Method:     pricing.CalcPerKg,
		Price:      dec("10.00"),
		PricePerKg: dec("2.00"),
	}
}

func snapshotWith(tables ...pricing.Table) *pricing.Snapshot {
	return &pricing.Snapshot{
		Carriers: []pricing.Carrier{
			{ID: 1, Code: "INPOST", Name: "InPost", ZoneCodes: []string{"DOMESTIC"}, IsActive: true},
		},
		Tables:  tables,
		TakenAt: testNow,
	}
}

func quoteRequest(weight string) Request {
	return Request{
		CarrierCode:  "INPOST",
		ZoneCode:     "DOMESTIC",
		ServiceType:  "standard",
		ActualWeight: dec(weight),
	}
}
