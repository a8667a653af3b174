package pricing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PromoDiscountType is the closed set of promotional discount strategies.
type PromoDiscountType string

const (
	PromoPercentage   PromoDiscountType = "percentage"
	PromoFixedAmount  PromoDiscountType = "fixed_amount"
	PromoFreeShipping PromoDiscountType = "free_shipping"
	PromoBuyXGetY     PromoDiscountType = "buy_x_get_y"
	PromoTierDiscount PromoDiscountType = "tier_discount"
)

// Valid reports whether the discount type is one of the known kinds.
func (t PromoDiscountType) Valid() bool {
	switch t {
	case PromoPercentage, PromoFixedAmount, PromoFreeShipping, PromoBuyXGetY, PromoTierDiscount:
		return true
	}
	return false
}

// TargetType scopes which shipments a promotion can match.
type TargetType string

const (
	TargetAll           TargetType = "all"
	TargetCarrier       TargetType = "carrier"
	TargetZone          TargetType = "zone"
	TargetService       TargetType = "service"
	TargetCustomer      TargetType = "customer"
	TargetCustomerGroup TargetType = "customer_group"
)

// Valid reports whether the target type is one of the known kinds.
func (t TargetType) Valid() bool {
	switch t {
	case TargetAll, TargetCarrier, TargetZone, TargetService, TargetCustomer, TargetCustomerGroup:
		return true
	}
	return false
}

// LimitType selects which counter a promotion's usage limit constrains.
type LimitType string

const (
	LimitTotal       LimitType = "total"
	LimitPerCustomer LimitType = "per_customer"
	LimitPerDay      LimitType = "per_day"
)

// Valid reports whether the limit type is one of the known kinds.
func (t LimitType) Valid() bool {
	switch t {
	case LimitTotal, LimitPerCustomer, LimitPerDay:
		return true
	}
	return false
}

// BuyXGetYConfig parameterises a buy_x_get_y promotion.
type BuyXGetYConfig struct {
	BuyQuantity     int64           `json:"buy_quantity"`
	GetQuantity     int64           `json:"get_quantity"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// PromoTier is one value bracket of a tier_discount promotion. Exactly one of
// DiscountPercent or DiscountAmount must be set.
type PromoTier struct {
	MinValue        decimal.Decimal  `json:"min_value"`
	MaxValue        *decimal.Decimal `json:"max_value"`
	DiscountPercent *decimal.Decimal `json:"discount_percent"`
	DiscountAmount  *decimal.Decimal `json:"discount_amount"`
}

// Covers reports whether the qualifying total falls inside the bracket.
func (t PromoTier) Covers(v decimal.Decimal) bool {
	if v.LessThan(t.MinValue) {
		return false
	}
	return t.MaxValue == nil || v.LessThanOrEqual(*t.MaxValue)
}

// Promotion is a time-boxed discount campaign, optionally scoped to one table
// or one customer contract and optionally gated by a promo code.
type Promotion struct {
	ID                int64
	Name              string
	PromoCode         *string
	TableID           *int64
	ContractID        *int64
	DiscountType      PromoDiscountType
	DiscountValue     decimal.Decimal
	MinOrderValue     *decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	TargetType        TargetType
	TargetValues      []string
	ValidFrom         time.Time
	ValidUntil        *time.Time
	UsageLimit        *int64
	LimitType         LimitType
	UsageCount        int64
	Priority          int
	IsStackable       bool
	IsActive          bool
	BuyXGetY          *BuyXGetYConfig
	TierBrackets      []PromoTier
}

// UsageCounts carries the caller-supplied per-customer and per-day usage for
// one promotion. The total counter lives on the Promotion row itself.
type UsageCounts struct {
	PerCustomer int64
	PerDay      int64
}

// IsCurrentlyValid reports whether the promotion is active, inside its valid
// window, and, for total-limited promotions, under its usage limit.
func (p Promotion) IsCurrentlyValid(at time.Time) bool {
	if !p.IsActive {
		return false
	}
	if at.Before(p.ValidFrom) {
		return false
	}
	if p.ValidUntil != nil && at.After(*p.ValidUntil) {
		return false
	}
	if p.LimitType == LimitTotal && p.UsageLimit != nil && p.UsageCount >= *p.UsageLimit {
		return false
	}
	return true
}

// HasUsageRemaining checks the caller-tracked counters against the usage
// limit for per-customer and per-day limited promotions.
func (p Promotion) HasUsageRemaining(c UsageCounts) bool {
	if p.UsageLimit == nil {
		return true
	}
	switch p.LimitType {
	case LimitPerCustomer:
		return c.PerCustomer < *p.UsageLimit
	case LimitPerDay:
		return c.PerDay < *p.UsageLimit
	}
	return true
}

// TargetContext carries the shipment facts a promotion's target is matched
// against.
type TargetContext struct {
	CarrierCode    string
	ZoneCode       string
	ServiceType    string
	CustomerID     uuid.UUID
	CustomerGroups []string
	TableID        int64
	ContractID     *int64
}

// MatchesTarget reports whether the promotion's target scope matches the
// shipment context.
func (p Promotion) MatchesTarget(tc TargetContext) bool {
	if p.TableID != nil && *p.TableID != tc.TableID {
		return false
	}
	if p.ContractID != nil {
		if tc.ContractID == nil || *tc.ContractID != *p.ContractID {
			return false
		}
	}
	switch p.TargetType {
	case TargetAll:
		return true
	case TargetCarrier:
		return containsFold(p.TargetValues, tc.CarrierCode)
	case TargetZone:
		return containsFold(p.TargetValues, tc.ZoneCode)
	case TargetService:
		return containsFold(p.TargetValues, tc.ServiceType)
	case TargetCustomer:
		return containsFold(p.TargetValues, tc.CustomerID.String())
	case TargetCustomerGroup:
		for _, g := range tc.CustomerGroups {
			if containsFold(p.TargetValues, g) {
				return true
			}
		}
		return false
	}
	return false
}

// QualifiesOrder reports whether the qualifying total meets the promotion's
// minimum order value.
func (p Promotion) QualifiesOrder(subtotal decimal.Decimal) bool {
	return p.MinOrderValue == nil || subtotal.GreaterThanOrEqual(*p.MinOrderValue)
}

// MatchesCode gates code-bearing promotions on the presented promo code.
// Codeless promotions match regardless of the presented code.
func (p Promotion) MatchesCode(code string) bool {
	if p.PromoCode == nil {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(code), *p.PromoCode)
}

// DiscountBasis carries the amounts a promotional discount is computed from.
type DiscountBasis struct {
	// Subtotal is the qualifying total (after the customer discount).
	Subtotal decimal.Decimal
	// BasePrice is the shipping component forgiven by free_shipping.
	BasePrice decimal.Decimal
	// PackageCount and UnitValue feed buy_x_get_y.
	PackageCount int64
	UnitValue    decimal.Decimal
}

// CalculateDiscount computes the promotion's discount for the basis, capped
// by MaxDiscountAmount when set. The result is never negative and never
// exceeds the qualifying subtotal.
func (p Promotion) CalculateDiscount(b DiscountBasis) decimal.Decimal {
	var discount decimal.Decimal
	switch p.DiscountType {
	case PromoPercentage:
		discount = Percent(b.Subtotal, p.DiscountValue)
	case PromoFixedAmount:
		discount = p.DiscountValue
	case PromoFreeShipping:
		discount = b.BasePrice
	case PromoBuyXGetY:
		discount = p.buyXGetYDiscount(b)
	case PromoTierDiscount:
		discount = p.tierDiscount(b.Subtotal)
	default:
		return decimal.Zero
	}
	if p.MaxDiscountAmount != nil && discount.GreaterThan(*p.MaxDiscountAmount) {
		discount = *p.MaxDiscountAmount
	}
	if discount.GreaterThan(b.Subtotal) {
		discount = b.Subtotal
	}
	return NonNegative(discount)
}

func (p Promotion) buyXGetYDiscount(b DiscountBasis) decimal.Decimal {
	cfg := p.BuyXGetY
	if cfg == nil || cfg.BuyQuantity <= 0 || cfg.GetQuantity <= 0 {
		return decimal.Zero
	}
	free := (b.PackageCount / cfg.BuyQuantity) * cfg.GetQuantity
	if free > b.PackageCount {
		free = b.PackageCount
	}
	if free <= 0 {
		return decimal.Zero
	}
	freeValue := b.UnitValue.Mul(decimal.NewFromInt(free))
	return Percent(freeValue, cfg.DiscountPercent)
}

func (p Promotion) tierDiscount(subtotal decimal.Decimal) decimal.Decimal {
	for _, tier := range p.TierBrackets {
		if !tier.Covers(subtotal) {
			continue
		}
		if tier.DiscountPercent != nil {
			return Percent(subtotal, *tier.DiscountPercent)
		}
		if tier.DiscountAmount != nil {
			return *tier.DiscountAmount
		}
		return decimal.Zero
	}
	return decimal.Zero
}

func containsFold(values []string, needle string) bool {
	for _, v := range values {
		if strings.EqualFold(v, needle) {
			return true
		}
	}
	return false
}

// promotionConfig is the JSON shape of the promotion config column.
type promotionConfig struct {
	BuyXGetY *BuyXGetYConfig `json:"buy_x_get_y,omitempty"`
	Tiers    []PromoTier     `json:"tiers,omitempty"`
}

// ParsePromotionConfig decodes and validates the config column for the given
// discount type. Types without extra configuration must leave it empty.
func ParsePromotionConfig(dt PromoDiscountType, raw []byte) (*BuyXGetYConfig, []PromoTier, error) {
	if len(raw) == 0 {
		if dt == PromoBuyXGetY {
			return nil, nil, fmt.Errorf("%s promotion requires configuration", dt)
		}
		if dt == PromoTierDiscount {
			return nil, nil, fmt.Errorf("%s promotion requires tier brackets", dt)
		}
		return nil, nil, nil
	}
	var cfg promotionConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, nil, fmt.Errorf("parse promotion config: %w", err)
	}
	switch dt {
	case PromoBuyXGetY:
		if cfg.BuyXGetY == nil {
			return nil, nil, fmt.Errorf("buy_x_get_y promotion missing buy_x_get_y config")
		}
		if cfg.BuyXGetY.BuyQuantity <= 0 || cfg.BuyXGetY.GetQuantity <= 0 {
			return nil, nil, fmt.Errorf("buy_x_get_y quantities must be positive")
		}
		if cfg.BuyXGetY.DiscountPercent.IsNegative() {
			return nil, nil, fmt.Errorf("buy_x_get_y discount must not be negative")
		}
		return cfg.BuyXGetY, nil, nil
	case PromoTierDiscount:
		if len(cfg.Tiers) == 0 {
			return nil, nil, fmt.Errorf("tier_discount promotion missing tiers")
		}
		for i, t := range cfg.Tiers {
			if t.MaxValue != nil && t.MaxValue.LessThan(t.MinValue) {
				return nil, nil, fmt.Errorf("promotion tier %d: max below min", i)
			}
			if t.DiscountPercent == nil && t.DiscountAmount == nil {
				return nil, nil, fmt.Errorf("promotion tier %d: neither percent nor amount", i)
			}
		}
		return nil, cfg.Tiers, nil
	}
	return nil, nil, nil
}
