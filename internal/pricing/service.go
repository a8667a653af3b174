package pricing

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ServicePricingType is the closed set of add-on service pricing strategies.
type ServicePricingType string

const (
	ServiceFixed      ServicePricingType = "fixed"
	ServicePercentage ServicePricingType = "percentage"
	ServicePerPackage ServicePricingType = "per_package"
	ServiceTierBased  ServicePricingType = "tier_based"
)

// Valid reports whether the pricing type is one of the known kinds.
func (t ServicePricingType) Valid() bool {
	switch t {
	case ServiceFixed, ServicePercentage, ServicePerPackage, ServiceTierBased:
		return true
	}
	return false
}

// Service is a carrier-level catalog entry for an optional add-on
// (COD, insurance, SMS notification, saturday delivery and the like).
type Service struct {
	ID             int64
	CarrierID      int64
	Code           string
	Name           string
	ServiceType    string
	PricingType    ServicePricingType
	DefaultPrice   decimal.Decimal
	PercentageRate *decimal.Decimal
	MinPrice       *decimal.Decimal
	MaxPrice       *decimal.Decimal
	SupportedZones []string
	IsActive       bool
}

// SupportsZone reports whether the service may be sold into the zone. An
// empty zone list means the service is available everywhere the carrier goes.
func (s Service) SupportsZone(zoneCode string) bool {
	if len(s.SupportedZones) == 0 {
		return true
	}
	for _, z := range s.SupportedZones {
		if strings.EqualFold(z, zoneCode) {
			return true
		}
	}
	return false
}

// ServicePrice is a per-table override of one Service's pricing, optionally
// carrying weight or declared-value tiers for tier_based services.
type ServicePrice struct {
	ID             int64
	TableID        int64
	ServiceID      int64
	Price          *decimal.Decimal
	PercentageRate *decimal.Decimal
	MinPrice       *decimal.Decimal
	MaxPrice       *decimal.Decimal
	WeightTiers    []WeightTier
	ValueTiers     []ValueTier
}

// WeightTier prices a weight bracket of a tier_based service. A nil To is
// unbounded.
type WeightTier struct {
	From  decimal.Decimal  `json:"from"`
	To    *decimal.Decimal `json:"to"`
	Price decimal.Decimal  `json:"price"`
}

// Covers reports whether the weight falls inside the bracket.
func (t WeightTier) Covers(w decimal.Decimal) bool {
	if w.LessThan(t.From) {
		return false
	}
	return t.To == nil || w.LessThanOrEqual(*t.To)
}

// ValueTier prices a declared-value bracket of a tier_based service. Exactly
// one of Price or Rate must be set; Rate is a percentage of the declared
// value.
type ValueTier struct {
	From  decimal.Decimal  `json:"from"`
	To    *decimal.Decimal `json:"to"`
	Price *decimal.Decimal `json:"price"`
	Rate  *decimal.Decimal `json:"rate"`
}

// Covers reports whether the declared value falls inside the bracket.
func (t ValueTier) Covers(v decimal.Decimal) bool {
	if v.LessThan(t.From) {
		return false
	}
	return t.To == nil || v.LessThanOrEqual(*t.To)
}

// ParseWeightTiers decodes and validates a JSON weight-tier column. Malformed
// configuration is rejected here so pricing never sees it.
func ParseWeightTiers(raw []byte) ([]WeightTier, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var tiers []WeightTier
	if err := json.Unmarshal(raw, &tiers); err != nil {
		return nil, fmt.Errorf("parse weight tiers: %w", err)
	}
	for i, t := range tiers {
		if t.From.IsNegative() {
			return nil, fmt.Errorf("weight tier %d: negative from", i)
		}
		if t.To != nil && t.To.LessThan(t.From) {
			return nil, fmt.Errorf("weight tier %d: to below from", i)
		}
		if t.Price.IsNegative() {
			return nil, fmt.Errorf("weight tier %d: negative price", i)
		}
	}
	return tiers, nil
}

// ParseValueTiers decodes and validates a JSON value-tier column.
func ParseValueTiers(raw []byte) ([]ValueTier, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var tiers []ValueTier
	if err := json.Unmarshal(raw, &tiers); err != nil {
		return nil, fmt.Errorf("parse value tiers: %w", err)
	}
	for i, t := range tiers {
		if t.From.IsNegative() {
			return nil, fmt.Errorf("value tier %d: negative from", i)
		}
		if t.To != nil && t.To.LessThan(t.From) {
			return nil, fmt.Errorf("value tier %d: to below from", i)
		}
		if t.Price == nil && t.Rate == nil {
			return nil, fmt.Errorf("value tier %d: neither price nor rate", i)
		}
	}
	return tiers, nil
}
