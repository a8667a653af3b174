package pricing

import (
	"testing"
	"time"
)

func TestContractActiveWindow(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	until := now.AddDate(0, 6, 0)
	c := Contract{
		IsActive:       true,
		EffectiveFrom:  now.AddDate(0, -1, 0),
		EffectiveUntil: &until,
	}
	if !c.IsCurrentlyActive(now) {
		t.Fatalf("expected contract active inside window")
	}
	if c.IsCurrentlyActive(until.Add(time.Hour)) {
		t.Fatalf("expected contract inactive after window")
	}
	c.IsActive = false
	if c.IsCurrentlyActive(now) {
		t.Fatalf("expected disabled contract inactive")
	}
}

func TestContractQualifiesForPricing(t *testing.T) {
	c := Contract{
		MinOrderValue: dp(t, "20"),
		MaxOrderValue: dp(t, "100"),
	}
	if c.QualifiesForPricing(d(t, "19.99")) {
		t.Fatalf("below minimum must not qualify")
	}
	if !c.QualifiesForPricing(d(t, "20")) {
		t.Fatalf("minimum boundary qualifies")
	}
	if !c.QualifiesForPricing(d(t, "100")) {
		t.Fatalf("maximum boundary qualifies")
	}
	if c.QualifiesForPricing(d(t, "100.01")) {
		t.Fatalf("above maximum must not qualify")
	}
	open := Contract{}
	if !open.QualifiesForPricing(d(t, "0.01")) {
		t.Fatalf("open bounds always qualify")
	}
}

func TestVolumeDiscountPercent(t *testing.T) {
	c := Contract{
		VolumeTiers: []VolumeTier{
			{MinCount: 10, DiscountPercent: d(t, "2")},
			{MinCount: 100, DiscountPercent: d(t, "5")},
			{MinCount: 500, DiscountPercent: d(t, "8")},
		},
	}
	if got := c.VolumeDiscountPercent(5); !got.IsZero() {
		t.Fatalf("expected no tier below 10, got %s", got)
	}
	if got := c.VolumeDiscountPercent(150); !got.Equal(d(t, "5")) {
		t.Fatalf("expected 5 for 150 shipments, got %s", got)
	}
	if got := c.VolumeDiscountPercent(9000); !got.Equal(d(t, "8")) {
		t.Fatalf("expected highest tier, got %s", got)
	}
}

func TestCustomRuleFirstMatchWins(t *testing.T) {
	rules := []CustomRule{
		{Field: FieldWeight, Op: OpGt, Value: "30", DiscountPercent: d(t, "12")},
		{Field: FieldSubtotal, Op: OpGte, Value: "100", DiscountPercent: d(t, "7")},
		{Field: FieldZone, Op: OpEq, Value: "INTL", DiscountPercent: d(t, "3")},
	}
	facts := RuleFacts{Weight: d(t, "40"), Subtotal: d(t, "200"), ZoneCode: "INTL"}
	if got := CustomRuleDiscount(rules, facts); !got.Equal(d(t, "12")) {
		t.Fatalf("expected first matching rule, got %s", got)
	}
	facts.Weight = d(t, "10")
	if got := CustomRuleDiscount(rules, facts); !got.Equal(d(t, "7")) {
		t.Fatalf("expected second rule, got %s", got)
	}
	none := RuleFacts{Weight: d(t, "1"), Subtotal: d(t, "1"), ZoneCode: "LOCAL"}
	if got := CustomRuleDiscount(rules, none); !got.IsZero() {
		t.Fatalf("expected zero when no rule matches, got %s", got)
	}
}

func TestParseCustomRulesRejectsMalformed(t *testing.T) {
	if _, err := ParseCustomRules([]byte(`[{"field":"weight","op":"gt","value":"abc","discount_percent":"5"}]`)); err == nil {
		t.Fatalf("expected error for non-numeric operand")
	}
	if _, err := ParseCustomRules([]byte(`[{"field":"zone","op":"gt","value":"INTL","discount_percent":"5"}]`)); err == nil {
		t.Fatalf("expected error for ordering op on zone")
	}
	if _, err := ParseCustomRules([]byte(`[{"field":"margin","op":"gt","value":"1","discount_percent":"5"}]`)); err == nil {
		t.Fatalf("expected error for unknown field")
	}
	rules, err := ParseCustomRules([]byte(`[{"field":"subtotal","op":"gte","value":"50","discount_percent":"2.5"}]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rules) != 1 || !rules[0].DiscountPercent.Equal(d(t, "2.5")) {
		t.Fatalf("unexpected rules %+v", rules)
	}
}

func TestParseVolumeTiersAndServiceDiscounts(t *testing.T) {
	tiers, err := ParseVolumeTiers([]byte(`[{"min_count":10,"discount_percent":"2"}]`))
	if err != nil || len(tiers) != 1 {
		t.Fatalf("unexpected tiers %+v err %v", tiers, err)
	}
	if _, err := ParseVolumeTiers([]byte(`[{"min_count":-1,"discount_percent":"2"}]`)); err == nil {
		t.Fatalf("expected error for negative min_count")
	}

	overrides, err := ParseServiceDiscounts([]byte(`{"cod":"50","insurance":"25"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !overrides["cod"].Equal(d(t, "50")) {
		t.Fatalf("unexpected overrides %+v", overrides)
	}
	if _, err := ParseServiceDiscounts([]byte(`{"cod":"-1"}`)); err == nil {
		t.Fatalf("expected error for negative override")
	}
}
