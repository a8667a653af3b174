package rating

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
)

// ServiceLine is one priced add-on service on a quote.
type ServiceLine struct {
	Code  string          `json:"code"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// ServiceInput bundles the shipment facts add-on pricing needs.
type ServiceInput struct {
	Codes          []string
	BaseAmount     decimal.Decimal
	BillableWeight decimal.Decimal
	DeclaredValue  decimal.Decimal
	PackageCount   int64
	ZoneCode       string
	At             time.Time
	Contract       *pricing.Contract
}

// PriceServices prices the requested add-on services against the resolved
// table's overrides, falling back to the carrier catalog. Zone availability
// is checked before any pricing. Contract per-service discounts, when the
// contract is currently active, reduce individual lines.
func PriceServices(snap *pricing.Snapshot, t pricing.Table, in ServiceInput) ([]ServiceLine, decimal.Decimal, error) {
	if len(in.Codes) == 0 {
		return nil, decimal.Zero, nil
	}
	lines := make([]ServiceLine, 0, len(in.Codes))
	total := decimal.Zero
	for _, code := range in.Codes {
		svc := snap.ServiceByCode(t.CarrierID, code)
		if svc == nil || !svc.IsActive {
			return nil, decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownService, code)
		}
		if !svc.SupportsZone(in.ZoneCode) {
			return nil, decimal.Zero, fmt.Errorf("%w: service=%s zone=%s", ErrServiceNotAvailable, code, in.ZoneCode)
		}
		price, err := priceService(*svc, t.ServicePriceFor(svc.ID), in)
		if err != nil {
			return nil, decimal.Zero, err
		}
		if in.Contract != nil && in.Contract.IsCurrentlyActive(in.At) {
			if pct, ok := in.Contract.ServiceDiscounts[svc.Code]; ok {
				price = pricing.NonNegative(price.Sub(pricing.Percent(price, pct)))
			}
		}
		price = pricing.Round4(price)
		lines = append(lines, ServiceLine{Code: svc.Code, Name: svc.Name, Price: price})
		total = total.Add(price)
	}
	return lines, total, nil
}

func priceService(svc pricing.Service, override *pricing.ServicePrice, in ServiceInput) (decimal.Decimal, error) {
	var price decimal.Decimal
	switch svc.PricingType {
	case pricing.ServiceFixed:
		price = flatPrice(svc, override)
	case pricing.ServicePercentage:
		rate := decimal.Zero
		if override != nil && override.PercentageRate != nil {
			rate = *override.PercentageRate
		} else if svc.PercentageRate != nil {
			rate = *svc.PercentageRate
		}
		price = pricing.Percent(in.BaseAmount, rate)
	case pricing.ServicePerPackage:
		price = flatPrice(svc, override).Mul(decimal.NewFromInt(in.PackageCount))
	case pricing.ServiceTierBased:
		tiered, err := tierServicePrice(svc, override, in)
		if err != nil {
			return decimal.Zero, err
		}
		price = tiered
	default:
		return decimal.Zero, fmt.Errorf("unknown service pricing type %q on %s", svc.PricingType, svc.Code)
	}
	minP, maxP := svc.MinPrice, svc.MaxPrice
	if override != nil {
		if override.MinPrice != nil {
			minP = override.MinPrice
		}
		if override.MaxPrice != nil {
			maxP = override.MaxPrice
		}
	}
	return pricing.Clamp(price, minP, maxP), nil
}

func flatPrice(svc pricing.Service, override *pricing.ServicePrice) decimal.Decimal {
	if override != nil && override.Price != nil {
		return *override.Price
	}
	return svc.DefaultPrice
}

// tierServicePrice scans weight tiers first, then declared-value tiers. When
// no bracket covers the shipment the catalog default price is the fallback;
// without one the configuration cannot price this service.
func tierServicePrice(svc pricing.Service, override *pricing.ServicePrice, in ServiceInput) (decimal.Decimal, error) {
	if override != nil {
		for _, tier := range override.WeightTiers {
			if tier.Covers(in.BillableWeight) {
				return tier.Price, nil
			}
		}
		for _, tier := range override.ValueTiers {
			if !tier.Covers(in.DeclaredValue) {
				continue
			}
			if tier.Rate != nil {
				return pricing.Percent(in.DeclaredValue, *tier.Rate), nil
			}
			if tier.Price != nil {
				return *tier.Price, nil
			}
		}
	}
	if svc.DefaultPrice.IsPositive() {
		return svc.DefaultPrice, nil
	}
	return decimal.Zero, fmt.Errorf("%w: service=%s weight=%s value=%s",
		ErrServiceTierNotFound, svc.Code, in.BillableWeight, in.DeclaredValue)
}
