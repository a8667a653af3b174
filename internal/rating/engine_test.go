package rating

import (
	"errors"
	"testing"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
)

func TestQuoteFixedRuleScenario(t *testing.T) {
	snap := snapshotWith(domesticTable(fixedRule()))

	q, err := testEngine().Quote(snap, quoteRequest("3"))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !q.BasePrice.Equal(dec("12.50")) {
		t.Fatalf("base: expected 12.50, got %s", q.BasePrice)
	}
	if !q.Subtotal.Equal(dec("12.50")) {
		t.Fatalf("subtotal: expected 12.50, got %s", q.Subtotal)
	}
	if !q.TaxAmount.Equal(dec("2.875")) {
		t.Fatalf("tax: expected 2.875, got %s", q.TaxAmount)
	}
	if !q.GrandTotal.Equal(dec("15.375")) {
		t.Fatalf("grand: expected 15.375, got %s", q.GrandTotal)
	}
	if q.Currency != "PLN" {
		t.Fatalf("currency: expected PLN, got %s", q.Currency)
	}
	if q.TableID != 1 || q.TableVersion != 1 {
		t.Fatalf("table identity: got %d v%d", q.TableID, q.TableVersion)
	}
	if q.RuleID == nil || *q.RuleID != 1 {
		t.Fatalf("rule identity: got %v", q.RuleID)
	}
}

func TestQuotePerKgScenario(t *testing.T) {
	snap := snapshotWith(domesticTable(perKgRule()))

	q, err := testEngine().Quote(snap, quoteRequest("7"))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !q.BasePrice.Equal(dec("24.00")) {
		t.Fatalf("base: expected 24.00, got %s", q.BasePrice)
	}
}

func TestQuoteCustomerDiscountScenario(t *testing.T) {
	snap := snapshotWith(domesticTable(perKgRule()))
	c := activeContract(pricing.DiscountPercentage)
	c.BaseDiscountPercent = dec("10")
	c.MinOrderValue = decPtr("20.00")
	snap.Contracts = []pricing.Contract{*c}

	q, err := testEngine().Quote(snap, quoteRequest("7"))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !q.CustomerDiscount.Equal(dec("2.40")) {
		t.Fatalf("discount: expected 2.40, got %s", q.CustomerDiscount)
	}
	if !q.NetTotal.Equal(dec("21.60")) {
		t.Fatalf("net: expected 21.60, got %s", q.NetTotal)
	}
	if !q.TaxAmount.Equal(dec("4.968")) {
		t.Fatalf("tax: expected 4.968, got %s", q.TaxAmount)
	}
	if !q.GrandTotal.Equal(dec("26.568")) {
		t.Fatalf("grand: expected 26.568, got %s", q.GrandTotal)
	}
}

func TestQuoteWithServices(t *testing.T) {
	snap := snapshotWith(domesticTable(fixedRule()))
	snap.Services = []pricing.Service{codService()}

	req := quoteRequest("3")
	req.ServiceCodes = []string{"COD"}
	q, err := testEngine().Quote(snap, req)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if len(q.Services) != 1 || !q.Services[0].Price.Equal(dec("5.00")) {
		t.Fatalf("service lines: %+v", q.Services)
	}
	if !q.Subtotal.Equal(dec("17.50")) {
		t.Fatalf("subtotal: expected 17.50, got %s", q.Subtotal)
	}
}

func TestQuoteServiceNotAvailableFailsWhole(t *testing.T) {
	svc := codService()
	svc.SupportedZones = []string{"INTL_EU"}
	snap := snapshotWith(domesticTable(fixedRule()))
	snap.Services = []pricing.Service{svc}

	req := quoteRequest("3")
	req.ServiceCodes = []string{"COD"}
	q, err := testEngine().Quote(snap, req)
	if !errors.Is(err, ErrServiceNotAvailable) {
		t.Fatalf("expected ErrServiceNotAvailable, got %v", err)
	}
	if q != nil {
		t.Fatalf("failed quote must not produce a result, got %+v", q)
	}
}

func TestQuoteSummerPromoScenario(t *testing.T) {
	snap := snapshotWith(domesticTable(perKgRule()))
	code := "SUMMER10"
	summer := percentPromo(1, "10", false, 5)
	summer.Name = "SUMMER10"
	summer.PromoCode = &code
	stackable := percentPromo(2, "5", true, 1)
	snap.Promotions = []pricing.Promotion{summer, stackable}

	req := quoteRequest("7")
	req.PromoCode = "SUMMER10"
	q, err := testEngine().Quote(snap, req)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if len(q.Promotions) != 1 || q.Promotions[0].PromotionID != 1 {
		t.Fatalf("expected only SUMMER10, got %+v", q.Promotions)
	}
	if !q.PromotionDiscount.Equal(dec("2.40")) {
		t.Fatalf("promo discount: expected 2.40, got %s", q.PromotionDiscount)
	}
	if !q.NetTotal.Equal(dec("21.60")) {
		t.Fatalf("net: expected 21.60, got %s", q.NetTotal)
	}
}

func TestQuoteNetNeverNegative(t *testing.T) {
	snap := snapshotWith(domesticTable(fixedRule()))
	c := activeContract(pricing.DiscountFixed)
	c.FixedDiscount = dec("50.00")
	snap.Contracts = []pricing.Contract{*c}

	q, err := testEngine().Quote(snap, quoteRequest("3"))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !q.NetTotal.IsZero() || !q.TaxAmount.IsZero() || !q.GrandTotal.IsZero() {
		t.Fatalf("expected fully discounted quote, got net=%s tax=%s grand=%s", q.NetTotal, q.TaxAmount, q.GrandTotal)
	}
}

func TestQuoteTaxRateChain(t *testing.T) {
	rule := fixedRule()
	rule.TaxRate = decPtr("8")
	snap := snapshotWith(domesticTable(rule))

	q, err := testEngine().Quote(snap, quoteRequest("3"))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !q.TaxRate.Equal(dec("8")) {
		t.Fatalf("expected rule override 8, got %s", q.TaxRate)
	}

	snap = snapshotWith(domesticTable(fixedRule()))
	c := activeContract(pricing.DiscountPercentage)
	c.TaxRate = decPtr("5")
	snap.Contracts = []pricing.Contract{*c}
	q, err = testEngine().Quote(snap, quoteRequest("3"))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !q.TaxRate.Equal(dec("5")) {
		t.Fatalf("expected contract override 5, got %s", q.TaxRate)
	}
}

func TestQuoteCurrencyOverride(t *testing.T) {
	snap := snapshotWith(domesticTable(fixedRule()))
	cur := "EUR"
	c := activeContract(pricing.DiscountPercentage)
	c.Currency = &cur
	snap.Contracts = []pricing.Contract{*c}

	q, err := testEngine().Quote(snap, quoteRequest("3"))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Currency != "EUR" {
		t.Fatalf("expected EUR, got %s", q.Currency)
	}
}

func TestQuoteCarrierLimits(t *testing.T) {
	snap := snapshotWith(domesticTable(perKgRule()))
	snap.Carriers[0].MaxWeight = decPtr("10")

	_, err := testEngine().Quote(snap, quoteRequest("12"))
	if !errors.Is(err, ErrExceedsCarrierLimits) {
		t.Fatalf("expected ErrExceedsCarrierLimits, got %v", err)
	}
}

func TestQuoteInactiveCarrier(t *testing.T) {
	snap := snapshotWith(domesticTable(fixedRule()))
	snap.Carriers[0].IsActive = false

	_, err := testEngine().Quote(snap, quoteRequest("3"))
	if !errors.Is(err, ErrNoActiveRateTable) {
		t.Fatalf("expected ErrNoActiveRateTable, got %v", err)
	}
}

func TestQuoteAsOfPinsResolution(t *testing.T) {
	snap := snapshotWith(domesticTable(fixedRule()))

	req := quoteRequest("3")
	req.AsOf = testNow.AddDate(-1, 0, 0)
	_, err := testEngine().Quote(snap, req)
	if !errors.Is(err, ErrNoActiveRateTable) {
		t.Fatalf("expected ErrNoActiveRateTable before effective window, got %v", err)
	}
}

func TestQuoteDeterministic(t *testing.T) {
	snap := snapshotWith(domesticTable(perKgRule()))
	snap.Promotions = []pricing.Promotion{percentPromo(1, "10", true, 1)}

	first, err := testEngine().Quote(snap, quoteRequest("7"))
	if err != nil {
		t.Fatalf("first quote: %v", err)
	}
	second, err := testEngine().Quote(snap, quoteRequest("7"))
	if err != nil {
		t.Fatalf("second quote: %v", err)
	}
	if !first.GrandTotal.Equal(second.GrandTotal) || !first.Subtotal.Equal(second.Subtotal) {
		t.Fatalf("identical inputs produced different quotes: %s vs %s", first.GrandTotal, second.GrandTotal)
	}
}

func TestCompareSortsCheapestFirst(t *testing.T) {
	inpost := domesticTable(fixedRule())

	dhlRule := fixedRule()
	dhlRule.ID = 2
	dhlRule.Price = dec("20.00")
	dhl := domesticTable(dhlRule)
	dhl.ID = 2
	dhl.CarrierID = 2
	dhl.CarrierCode = "DHL"

	snap := snapshotWith(inpost, dhl)
	snap.Carriers = []pricing.Carrier{
		{ID: 2, Code: "DHL", Name: "DHL", ZoneCodes: []string{"DOMESTIC"}, IsActive: true},
		{ID: 1, Code: "INPOST", Name: "InPost", ZoneCodes: []string{"DOMESTIC"}, IsActive: true},
		{ID: 3, Code: "FEDEX", Name: "FedEx", ZoneCodes: []string{"INTL_EU"}, IsActive: true},
		{ID: 4, Code: "GLS", Name: "GLS", ZoneCodes: []string{"DOMESTIC"}, IsActive: true},
	}

	results := testEngine().Compare(snap, quoteRequest("3"))
	if len(results) != 3 {
		t.Fatalf("expected 3 entries (FEDEX does not serve the zone), got %d", len(results))
	}
	if results[0].CarrierCode != "INPOST" || results[1].CarrierCode != "DHL" {
		t.Fatalf("expected INPOST then DHL, got %s then %s", results[0].CarrierCode, results[1].CarrierCode)
	}
	if results[2].CarrierCode != "GLS" || results[2].Err == nil {
		t.Fatalf("expected GLS failure entry last, got %+v", results[2])
	}
	if !errors.Is(results[2].Err, ErrNoActiveRateTable) {
		t.Fatalf("expected ErrNoActiveRateTable for GLS, got %v", results[2].Err)
	}
}
