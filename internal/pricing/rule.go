package pricing

import "github.com/shopspring/decimal"

// CalcMethod is the closed set of tier price calculation methods.
type CalcMethod string

const (
	CalcFixed     CalcMethod = "fixed"
	CalcPerKg     CalcMethod = "per_kg"
	CalcPerKgStep CalcMethod = "per_kg_step"
	// CalcPercentage scales the rule price by weight/100, treating
	// kilograms as a percentage multiplier.
	CalcPercentage CalcMethod = "percentage"
)

// Valid reports whether the method is one of the known kinds.
func (m CalcMethod) Valid() bool {
	switch m {
	case CalcFixed, CalcPerKg, CalcPerKgStep, CalcPercentage:
		return true
	}
	return false
}

// Rule is one weight (and optionally dimension) bracket inside a table.
type Rule struct {
	ID         int64
	TableID    int64
	WeightFrom decimal.Decimal
	WeightTo   *decimal.Decimal
	MaxLength  *decimal.Decimal
	MaxWidth   *decimal.Decimal
	MaxHeight  *decimal.Decimal
	Method     CalcMethod
	Price      decimal.Decimal
	PricePerKg decimal.Decimal
	WeightStep decimal.Decimal
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	TaxRate    *decimal.Decimal
	SortOrder  int
}

// Matches reports whether the billable weight (and the parcel's dimensions,
// when the rule carries dimension bounds) fall inside this bracket. The
// weight interval is inclusive on both ends; a nil WeightTo is unbounded.
func (r Rule) Matches(weight decimal.Decimal, dims *Dimensions) bool {
	if weight.LessThan(r.WeightFrom) {
		return false
	}
	if r.WeightTo != nil && weight.GreaterThan(*r.WeightTo) {
		return false
	}
	if r.MaxLength == nil && r.MaxWidth == nil && r.MaxHeight == nil {
		return true
	}
	if dims == nil {
		return false
	}
	if r.MaxLength != nil && dims.Length.GreaterThan(*r.MaxLength) {
		return false
	}
	if r.MaxWidth != nil && dims.Width.GreaterThan(*r.MaxWidth) {
		return false
	}
	if r.MaxHeight != nil && dims.Height.GreaterThan(*r.MaxHeight) {
		return false
	}
	return true
}
