package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Model selects how billable weight is derived for a table.
type Model string

const (
	ModelWeight     Model = "weight"
	ModelVolumetric Model = "volumetric"
	ModelHybrid     Model = "hybrid"
)

// Valid reports whether the model is one of the known kinds.
func (m Model) Valid() bool {
	switch m {
	case ModelWeight, ModelVolumetric, ModelHybrid:
		return true
	}
	return false
}

// RequiresDimensions reports whether the model cannot price without dimensions.
func (m Model) RequiresDimensions() bool {
	return m == ModelVolumetric || m == ModelHybrid
}

// Dimensions are a parcel's physical measurements in centimetres.
type Dimensions struct {
	Length decimal.Decimal
	Width  decimal.Decimal
	Height decimal.Decimal
}

// Volume returns length times width times height.
func (d Dimensions) Volume() decimal.Decimal {
	return d.Length.Mul(d.Width).Mul(d.Height)
}

// Table is one versioned, effective-dated rate sheet for a
// (carrier, zone, service type) triple. A superseding version is a new row;
// existing rows are never mutated.
type Table struct {
	ID                int64
	CarrierID         int64
	CarrierCode       string
	ZoneID            int64
	ZoneCode          string
	ServiceType       string
	Model             Model
	BasePrice         decimal.Decimal
	MinWeight         *decimal.Decimal
	MaxWeight         *decimal.Decimal
	MaxLength         *decimal.Decimal
	MaxWidth          *decimal.Decimal
	MaxHeight         *decimal.Decimal
	VolumetricDivisor *decimal.Decimal
	Currency          string
	TaxRate           *decimal.Decimal
	EffectiveFrom     time.Time
	EffectiveUntil    *time.Time
	Version           int
	IsActive          bool

	Rules         []Rule
	ServicePrices []ServicePrice
}

// IsCurrentlyActive reports whether the table is active and its effective
// window covers the reference instant.
func (t Table) IsCurrentlyActive(at time.Time) bool {
	if !t.IsActive {
		return false
	}
	if at.Before(t.EffectiveFrom) {
		return false
	}
	if t.EffectiveUntil != nil && at.After(*t.EffectiveUntil) {
		return false
	}
	return true
}

// AcceptsWeight reports whether the billable weight sits inside the table's
// weight bounds. Nil bounds are open.
func (t Table) AcceptsWeight(w decimal.Decimal) bool {
	if t.MinWeight != nil && w.LessThan(*t.MinWeight) {
		return false
	}
	if t.MaxWeight != nil && w.GreaterThan(*t.MaxWeight) {
		return false
	}
	return true
}

// AcceptsDimensions reports whether the parcel fits the table's dimension
// bounds. Absent dimensions always fit; nil bounds are open.
func (t Table) AcceptsDimensions(d *Dimensions) bool {
	if d == nil {
		return true
	}
	if t.MaxLength != nil && d.Length.GreaterThan(*t.MaxLength) {
		return false
	}
	if t.MaxWidth != nil && d.Width.GreaterThan(*t.MaxWidth) {
		return false
	}
	if t.MaxHeight != nil && d.Height.GreaterThan(*t.MaxHeight) {
		return false
	}
	return true
}

// ServicePriceFor returns the table's override for the given service, if any.
func (t Table) ServicePriceFor(serviceID int64) *ServicePrice {
	for i := range t.ServicePrices {
		if t.ServicePrices[i].ServiceID == serviceID {
			return &t.ServicePrices[i]
		}
	}
	return nil
}
