package rating

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
)

// BillableWeight derives the weight used for tier selection from the actual
// weight, the parcel dimensions and the table's pricing model.
func BillableWeight(t pricing.Table, actual decimal.Decimal, dims *pricing.Dimensions) (decimal.Decimal, error) {
	switch t.Model {
	case pricing.ModelWeight:
		return actual, nil
	case pricing.ModelVolumetric:
		vol, err := volumetricWeight(t, dims)
		if err != nil {
			return decimal.Zero, err
		}
		return vol, nil
	case pricing.ModelHybrid:
		if dims == nil {
			return decimal.Zero, fmt.Errorf("%w: model %s requires dimensions", ErrMissingDimensions, t.Model)
		}
		if t.VolumetricDivisor == nil || t.VolumetricDivisor.IsZero() {
			// Volumetric weight cannot be derived; actual weight governs.
			return actual, nil
		}
		vol := dims.Volume().Div(*t.VolumetricDivisor)
		if vol.GreaterThan(actual) {
			return vol, nil
		}
		return actual, nil
	}
	return decimal.Zero, fmt.Errorf("unknown pricing model %q", t.Model)
}

func volumetricWeight(t pricing.Table, dims *pricing.Dimensions) (decimal.Decimal, error) {
	if dims == nil {
		return decimal.Zero, fmt.Errorf("%w: model %s requires dimensions", ErrMissingDimensions, t.Model)
	}
	if t.VolumetricDivisor == nil || t.VolumetricDivisor.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: volumetric divisor not configured on table %d", ErrMissingDimensions, t.ID)
	}
	return dims.Volume().Div(*t.VolumetricDivisor), nil
}
