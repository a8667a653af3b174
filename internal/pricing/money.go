package pricing

import "github.com/shopspring/decimal"

// MoneyPlaces is the fixed-point precision every computed amount is rounded to.
const MoneyPlaces = 4

var hundred = decimal.NewFromInt(100)

// Round4 rounds an amount to the engine's fixed-point precision.
func Round4(v decimal.Decimal) decimal.Decimal {
	return v.Round(MoneyPlaces)
}

// Percent returns pct percent of base.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred)
}

// Clamp bounds v to [min, max]; nil bounds are open.
func Clamp(v decimal.Decimal, min, max *decimal.Decimal) decimal.Decimal {
	if min != nil && v.LessThan(*min) {
		return *min
	}
	if max != nil && v.GreaterThan(*max) {
		return *max
	}
	return v
}

// NonNegative floors v at zero.
func NonNegative(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}

// DecimalPtr returns a pointer to v. Convenient for optional bounds in literals.
func DecimalPtr(v decimal.Decimal) *decimal.Decimal {
	return &v
}
