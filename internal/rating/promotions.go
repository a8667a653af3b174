package rating

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
)

// PromoApplication is one promotion's contribution to a quote, kept for
// itemization and for usage bookkeeping on commit.
type PromoApplication struct {
	PromotionID  int64                     `json:"promotion_id"`
	Name         string                    `json:"name"`
	DiscountType pricing.PromoDiscountType `json:"discount_type"`
	Discount     decimal.Decimal           `json:"discount"`
	Stackable    bool                      `json:"stackable"`
}

// PromotionInput carries the order facts the promotion stage evaluates
// against. Subtotal is the amount remaining after the customer discount;
// discounts are still calculated from it per promotion.
type PromotionInput struct {
	Target       pricing.TargetContext
	Subtotal     decimal.Decimal
	BasePrice    decimal.Decimal
	PackageCount int64
	PromoCode    string
	At           time.Time
}

// ApplyPromotions selects the eligible promotions from the snapshot and
// computes their combined discount.
//
// Eligibility screens each promotion through its validity window, usage
// limits, targeting, minimum order value and promo code gate. When any
// eligible promotion is non-stackable it is mutually exclusive with every
// other promotion: only the single highest-priority one applies, ties
// broken by lowest ID. Otherwise all stackable promotions apply, each
// calculated from the same subtotal, and the summed discount is clamped
// to the subtotal.
func ApplyPromotions(snap *pricing.Snapshot, in PromotionInput) ([]PromoApplication, decimal.Decimal) {
	var eligible []pricing.Promotion
	for _, p := range snap.Promotions {
		if !p.IsCurrentlyValid(in.At) {
			continue
		}
		if !p.HasUsageRemaining(snap.UsageFor(p.ID)) {
			continue
		}
		if !p.MatchesTarget(in.Target) {
			continue
		}
		if !p.QualifiesOrder(in.Subtotal) {
			continue
		}
		if !p.MatchesCode(in.PromoCode) {
			continue
		}
		eligible = append(eligible, p)
	}
	if len(eligible) == 0 {
		return nil, decimal.Zero
	}

	if exclusive := pickExclusive(eligible); exclusive != nil {
		eligible = []pricing.Promotion{*exclusive}
	}

	basis := pricing.DiscountBasis{
		Subtotal:     in.Subtotal,
		BasePrice:    in.BasePrice,
		PackageCount: in.PackageCount,
	}
	if in.PackageCount > 0 {
		basis.UnitValue = in.Subtotal.Div(decimal.NewFromInt(in.PackageCount))
	}

	apps := make([]PromoApplication, 0, len(eligible))
	total := decimal.Zero
	for _, p := range eligible {
		d := pricing.Round4(p.CalculateDiscount(basis))
		if !d.IsPositive() {
			continue
		}
		apps = append(apps, PromoApplication{
			PromotionID:  p.ID,
			Name:         p.Name,
			DiscountType: p.DiscountType,
			Discount:     d,
			Stackable:    p.IsStackable,
		})
		total = total.Add(d)
	}
	if total.GreaterThan(in.Subtotal) {
		total = in.Subtotal
	}
	return apps, total
}

// pickExclusive returns the winning non-stackable promotion, or nil when
// every eligible promotion stacks.
func pickExclusive(eligible []pricing.Promotion) *pricing.Promotion {
	var candidates []pricing.Promotion
	for _, p := range eligible {
		if !p.IsStackable {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].ID < candidates[j].ID
	})
	return &candidates[0]
}
