package pricing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountType is the closed set of contract discount strategies.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
	DiscountVolume     DiscountType = "volume"
	DiscountCustom     DiscountType = "custom_rules"
)

// Valid reports whether the discount type is one of the known kinds.
func (t DiscountType) Valid() bool {
	switch t {
	case DiscountPercentage, DiscountFixed, DiscountVolume, DiscountCustom:
		return true
	}
	return false
}

// VolumePeriod is the tracking window for volume discounts.
type VolumePeriod string

const (
	PeriodMonthly   VolumePeriod = "monthly"
	PeriodQuarterly VolumePeriod = "quarterly"
	PeriodYearly    VolumePeriod = "yearly"
)

// Valid reports whether the period is one of the known windows.
func (p VolumePeriod) Valid() bool {
	switch p {
	case PeriodMonthly, PeriodQuarterly, PeriodYearly:
		return true
	}
	return false
}

// VolumeTier grants a discount percentage once the period-to-date shipment
// count reaches MinCount.
type VolumeTier struct {
	MinCount        int64           `json:"min_count"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// Contract is a customer's negotiated pricing against exactly one base table.
type Contract struct {
	ID                    int64
	CustomerID            uuid.UUID
	TableID               int64
	DiscountType          DiscountType
	BaseDiscountPercent   decimal.Decimal
	FixedDiscount         decimal.Decimal
	MinOrderValue         *decimal.Decimal
	MaxOrderValue         *decimal.Decimal
	VolumeTiers           []VolumeTier
	VolumePeriod          VolumePeriod
	CustomRules           []CustomRule
	ServiceDiscounts      map[string]decimal.Decimal
	FreeShippingThreshold *decimal.Decimal
	TaxRate               *decimal.Decimal
	Currency              *string
	EffectiveFrom         time.Time
	EffectiveUntil        *time.Time
	IsActive              bool
}

// IsCurrentlyActive reports whether the contract is active and inside its
// effective window at the reference instant.
func (c Contract) IsCurrentlyActive(at time.Time) bool {
	if !c.IsActive {
		return false
	}
	if at.Before(c.EffectiveFrom) {
		return false
	}
	if c.EffectiveUntil != nil && at.After(*c.EffectiveUntil) {
		return false
	}
	return true
}

// QualifiesForPricing reports whether the subtotal sits inside the contract's
// qualifying order-value window. Nil bounds are open.
func (c Contract) QualifiesForPricing(subtotal decimal.Decimal) bool {
	if c.MinOrderValue != nil && subtotal.LessThan(*c.MinOrderValue) {
		return false
	}
	if c.MaxOrderValue != nil && subtotal.GreaterThan(*c.MaxOrderValue) {
		return false
	}
	return true
}

// VolumeDiscountPercent returns the percentage granted for a period-to-date
// shipment count: the highest tier whose MinCount has been reached, 0 when
// none has.
func (c Contract) VolumeDiscountPercent(periodCount int64) decimal.Decimal {
	best := decimal.Zero
	bestMin := int64(-1)
	for _, tier := range c.VolumeTiers {
		if periodCount >= tier.MinCount && tier.MinCount > bestMin {
			best = tier.DiscountPercent
			bestMin = tier.MinCount
		}
	}
	return best
}

// RuleField names a fact a custom rule can test.
type RuleField string

const (
	FieldWeight       RuleField = "weight"
	FieldSubtotal     RuleField = "subtotal"
	FieldServiceCount RuleField = "service_count"
	FieldZone         RuleField = "zone"
)

// RuleOp is a comparison operator in a custom rule condition.
type RuleOp string

const (
	OpEq  RuleOp = "eq"
	OpNe  RuleOp = "ne"
	OpGt  RuleOp = "gt"
	OpGte RuleOp = "gte"
	OpLt  RuleOp = "lt"
	OpLte RuleOp = "lte"
)

// CustomRule is one ordered {condition, discount} row of a custom_rules
// contract. Value holds the comparison operand; numeric for the numeric
// fields, a zone code for FieldZone.
type CustomRule struct {
	Field           RuleField       `json:"field"`
	Op              RuleOp          `json:"op"`
	Value           string          `json:"value"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// RuleFacts are the shipment facts custom rule conditions are tested against.
type RuleFacts struct {
	Weight       decimal.Decimal
	Subtotal     decimal.Decimal
	ServiceCount int
	ZoneCode     string
}

// Matches reports whether the rule's condition holds for the facts.
func (r CustomRule) Matches(f RuleFacts) bool {
	if r.Field == FieldZone {
		switch r.Op {
		case OpEq:
			return strings.EqualFold(f.ZoneCode, r.Value)
		case OpNe:
			return !strings.EqualFold(f.ZoneCode, r.Value)
		}
		return false
	}
	operand, err := decimal.NewFromString(strings.TrimSpace(r.Value))
	if err != nil {
		return false
	}
	var fact decimal.Decimal
	switch r.Field {
	case FieldWeight:
		fact = f.Weight
	case FieldSubtotal:
		fact = f.Subtotal
	case FieldServiceCount:
		fact = decimal.NewFromInt(int64(f.ServiceCount))
	default:
		return false
	}
	switch r.Op {
	case OpEq:
		return fact.Equal(operand)
	case OpNe:
		return !fact.Equal(operand)
	case OpGt:
		return fact.GreaterThan(operand)
	case OpGte:
		return fact.GreaterThanOrEqual(operand)
	case OpLt:
		return fact.LessThan(operand)
	case OpLte:
		return fact.LessThanOrEqual(operand)
	}
	return false
}

// CustomRuleDiscount evaluates ordered custom rules against the facts; the
// first matching rule's discount percentage wins, no match yields zero.
func CustomRuleDiscount(rules []CustomRule, f RuleFacts) decimal.Decimal {
	for _, r := range rules {
		if r.Matches(f) {
			return r.DiscountPercent
		}
	}
	return decimal.Zero
}

// ParseVolumeTiers decodes and validates a JSON volume-tier column.
func ParseVolumeTiers(raw []byte) ([]VolumeTier, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var tiers []VolumeTier
	if err := json.Unmarshal(raw, &tiers); err != nil {
		return nil, fmt.Errorf("parse volume tiers: %w", err)
	}
	for i, t := range tiers {
		if t.MinCount < 0 {
			return nil, fmt.Errorf("volume tier %d: negative min_count", i)
		}
		if t.DiscountPercent.IsNegative() {
			return nil, fmt.Errorf("volume tier %d: negative discount", i)
		}
	}
	return tiers, nil
}

// ParseCustomRules decodes and validates a JSON custom-rule column.
func ParseCustomRules(raw []byte) ([]CustomRule, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var rules []CustomRule
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("parse custom rules: %w", err)
	}
	for i, r := range rules {
		switch r.Field {
		case FieldWeight, FieldSubtotal, FieldServiceCount:
			if _, err := decimal.NewFromString(strings.TrimSpace(r.Value)); err != nil {
				return nil, fmt.Errorf("custom rule %d: non-numeric value %q", i, r.Value)
			}
			switch r.Op {
			case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
			default:
				return nil, fmt.Errorf("custom rule %d: unknown op %q", i, r.Op)
			}
		case FieldZone:
			if r.Op != OpEq && r.Op != OpNe {
				return nil, fmt.Errorf("custom rule %d: op %q not valid for zone", i, r.Op)
			}
		default:
			return nil, fmt.Errorf("custom rule %d: unknown field %q", i, r.Field)
		}
		if r.DiscountPercent.IsNegative() {
			return nil, fmt.Errorf("custom rule %d: negative discount", i)
		}
	}
	return rules, nil
}

// ParseServiceDiscounts decodes a JSON object of service code to discount
// percentage overrides.
func ParseServiceDiscounts(raw []byte) (map[string]decimal.Decimal, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var overrides map[string]decimal.Decimal
	if err := json.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse service discounts: %w", err)
	}
	for code, pct := range overrides {
		if pct.IsNegative() {
			return nil, fmt.Errorf("service discount %s: negative percentage", code)
		}
	}
	return overrides, nil
}
