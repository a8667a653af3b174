package rating

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
)

// RuleEvaluator resolves a discount percentage from a contract's custom
// rules. The default evaluator applies the first matching rule; callers
// can swap in their own strategy without touching the engine.
type RuleEvaluator interface {
	Evaluate(rules []pricing.CustomRule, facts pricing.RuleFacts) decimal.Decimal
}

// FirstMatchEvaluator is the stock RuleEvaluator: rules are checked in
// order and the first match wins.
type FirstMatchEvaluator struct{}

func (FirstMatchEvaluator) Evaluate(rules []pricing.CustomRule, facts pricing.RuleFacts) decimal.Decimal {
	return pricing.CustomRuleDiscount(rules, facts)
}

// DiscountInput carries the order facts the contract stage prices against.
// Subtotal is base price plus priced services, before any reduction.
type DiscountInput struct {
	Subtotal        decimal.Decimal
	BasePrice       decimal.Decimal
	Facts           pricing.RuleFacts
	PeriodShipments int64
	At              time.Time
}

// CustomerDiscount computes the contract discount for one quote. A nil,
// inactive or disqualified contract yields zero rather than an error so
// walk-in customers price identically to contract customers with no
// applicable terms.
//
// Free-shipping thresholds stack on top of the typed discount: once the
// subtotal reaches the threshold the base transport price is forgiven in
// addition to whatever the discount type grants. The combined amount is
// clamped to the subtotal so a quote can never go negative here.
func CustomerDiscount(c *pricing.Contract, in DiscountInput, eval RuleEvaluator) decimal.Decimal {
	if c == nil || !c.IsCurrentlyActive(in.At) || !c.QualifiesForPricing(in.Subtotal) {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case pricing.DiscountPercentage:
		discount = pricing.Percent(in.Subtotal, c.BaseDiscountPercent)
	case pricing.DiscountFixed:
		discount = c.FixedDiscount
	case pricing.DiscountVolume:
		pct := c.VolumeDiscountPercent(in.PeriodShipments)
		discount = pricing.Percent(in.Subtotal, pct)
	case pricing.DiscountCustom:
		if eval == nil {
			eval = FirstMatchEvaluator{}
		}
		pct := eval.Evaluate(c.CustomRules, in.Facts)
		discount = pricing.Percent(in.Subtotal, pct)
	}

	if c.FreeShippingThreshold != nil && in.Subtotal.GreaterThanOrEqual(*c.FreeShippingThreshold) {
		discount = discount.Add(in.BasePrice)
	}

	if discount.GreaterThan(in.Subtotal) {
		discount = in.Subtotal
	}
	return pricing.Round4(pricing.NonNegative(discount))
}
