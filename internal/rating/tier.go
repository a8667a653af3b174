package rating

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
)

// tierCalculators dispatches base price math per calculation method. The set
// is closed; an unknown method is a configuration defect caught in BasePrice.
var tierCalculators = map[pricing.CalcMethod]func(pricing.Rule, decimal.Decimal) decimal.Decimal{
	pricing.CalcFixed:      fixedPrice,
	pricing.CalcPerKg:      perKgPrice,
	pricing.CalcPerKgStep:  steppedPrice,
	pricing.CalcPercentage: percentagePrice,
}

// BasePrice finds the rule bracket covering the billable weight and applies
// its calculation method. The result is clamped to the rule's price bounds
// and rounded to fixed-point precision.
func BasePrice(t pricing.Table, weight decimal.Decimal, dims *pricing.Dimensions) (decimal.Decimal, *pricing.Rule, error) {
	rule := matchRule(t.Rules, weight, dims)
	if rule == nil {
		return decimal.Zero, nil, fmt.Errorf("%w: table=%d weight=%s", ErrNoMatchingTier, t.ID, weight)
	}
	calc, ok := tierCalculators[rule.Method]
	if !ok {
		return decimal.Zero, nil, fmt.Errorf("unknown calculation method %q on rule %d", rule.Method, rule.ID)
	}
	price := calc(*rule, weight)
	price = pricing.Clamp(price, rule.MinPrice, rule.MaxPrice)
	return pricing.Round4(price), rule, nil
}

// matchRule returns the matching rule with the lowest sort order, breaking
// ties by lowest ID so misconfigured overlaps stay deterministic.
func matchRule(rules []pricing.Rule, weight decimal.Decimal, dims *pricing.Dimensions) *pricing.Rule {
	matched := make([]*pricing.Rule, 0, 2)
	for i := range rules {
		if rules[i].Matches(weight, dims) {
			matched = append(matched, &rules[i])
		}
	}
	if len(matched) == 0 {
		return nil
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].SortOrder != matched[j].SortOrder {
			return matched[i].SortOrder < matched[j].SortOrder
		}
		return matched[i].ID < matched[j].ID
	})
	return matched[0]
}

func fixedPrice(r pricing.Rule, _ decimal.Decimal) decimal.Decimal {
	return r.Price
}

func perKgPrice(r pricing.Rule, weight decimal.Decimal) decimal.Decimal {
	overage := pricing.NonNegative(weight.Sub(r.WeightFrom))
	return r.Price.Add(overage.Mul(r.PricePerKg))
}

// steppedPrice charges whole step increments: zero overage charges none, any
// positive overage charges floor(overage/step)+1 steps, so the price rises by
// exactly one increment at each step boundary.
func steppedPrice(r pricing.Rule, weight decimal.Decimal) decimal.Decimal {
	if r.WeightStep.IsZero() || r.WeightStep.IsNegative() {
		return r.Price
	}
	overage := pricing.NonNegative(weight.Sub(r.WeightFrom))
	if overage.IsZero() {
		return r.Price
	}
	quotient, _ := overage.QuoRem(r.WeightStep, 0)
	steps := quotient.Add(decimal.NewFromInt(1))
	return r.Price.Add(steps.Mul(r.PricePerKg).Mul(r.WeightStep))
}

func percentagePrice(r pricing.Rule, weight decimal.Decimal) decimal.Decimal {
	return pricing.Percent(r.Price, weight)
}
