package rating

import (
	"fmt"
	"strings"
	"time"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
)

// ResolveTable selects the single current table for a carrier/zone/service
// triple as of the reference instant: active tables whose effective window
// covers it, highest version wins. Zero survivors is a configuration gap;
// two survivors sharing the maximum version is a data-integrity violation the
// resolver refuses to break arbitrarily.
func ResolveTable(tables []pricing.Table, carrierCode, zoneCode, serviceType string, at time.Time) (*pricing.Table, error) {
	var best *pricing.Table
	duplicate := false
	for i := range tables {
		t := &tables[i]
		if !strings.EqualFold(t.CarrierCode, carrierCode) {
			continue
		}
		if !strings.EqualFold(t.ZoneCode, zoneCode) {
			continue
		}
		if !strings.EqualFold(t.ServiceType, serviceType) {
			continue
		}
		if !t.IsCurrentlyActive(at) {
			continue
		}
		switch {
		case best == nil || t.Version > best.Version:
			best = t
			duplicate = false
		case t.Version == best.Version:
			duplicate = true
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: carrier=%s zone=%s service=%s at=%s",
			ErrNoActiveRateTable, carrierCode, zoneCode, serviceType, at.Format(time.RFC3339))
	}
	if duplicate {
		return nil, fmt.Errorf("%w: carrier=%s zone=%s service=%s version=%d",
			ErrAmbiguousRateTable, carrierCode, zoneCode, serviceType, best.Version)
	}
	return best, nil
}
