package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Carrier is a shipping provider whose rate sheets this engine prices against.
type Carrier struct {
	ID        int64
	Code      string
	Name      string
	MaxWeight *decimal.Decimal
	MaxLength *decimal.Decimal
	MaxWidth  *decimal.Decimal
	MaxHeight *decimal.Decimal
	ZoneCodes []string
	IsActive  bool
}

// ServesZone reports whether the carrier lists the zone code among its zones.
func (c Carrier) ServesZone(zoneCode string) bool {
	for _, z := range c.ZoneCodes {
		if strings.EqualFold(z, zoneCode) {
			return true
		}
	}
	return false
}

// CanCarry reports whether a shipment's physical characteristics fit the
// carrier's capability limits. Nil limits are unbounded.
func (c Carrier) CanCarry(weight decimal.Decimal, dims *Dimensions) bool {
	if c.MaxWeight != nil && weight.GreaterThan(*c.MaxWeight) {
		return false
	}
	if dims == nil {
		return true
	}
	if c.MaxLength != nil && dims.Length.GreaterThan(*c.MaxLength) {
		return false
	}
	if c.MaxWidth != nil && dims.Width.GreaterThan(*c.MaxWidth) {
		return false
	}
	if c.MaxHeight != nil && dims.Height.GreaterThan(*c.MaxHeight) {
		return false
	}
	return true
}

// Zone is a geographic pricing category owned by one carrier. Destination
// resolution (country/postal to zone code) happens upstream; the engine only
// consumes resolved codes, so the membership fields exist for administration
// and seeding.
type Zone struct {
	ID             int64
	CarrierID      int64
	Code           string
	Name           string
	Kind           ZoneKind
	Countries      []string
	PostalPatterns []string
	IsActive       bool
}

// ZoneKind is the closed set of zone categories.
type ZoneKind string

const (
	ZoneLocal         ZoneKind = "local"
	ZoneNational      ZoneKind = "national"
	ZoneInternational ZoneKind = "international"
)

// Valid reports whether the kind is one of the known categories.
func (k ZoneKind) Valid() bool {
	switch k {
	case ZoneLocal, ZoneNational, ZoneInternational:
		return true
	}
	return false
}

// ContainsCountry reports whether the ISO country code belongs to this zone.
func (z Zone) ContainsCountry(country string) bool {
	for _, c := range z.Countries {
		if strings.EqualFold(c, country) {
			return true
		}
	}
	return false
}
