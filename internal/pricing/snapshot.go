package pricing

import (
	"strings"
	"time"
)

// Snapshot is the fully resolved, read-only rate configuration one quote
// computation runs against. The store materialises it before the engine is
// invoked; nothing in it is mutated during pricing.
type Snapshot struct {
	Carriers   []Carrier
	Tables     []Table
	Services   []Service
	Contracts  []Contract
	Promotions []Promotion
	// Usage holds caller-tracked per-customer and per-day usage counters
	// keyed by promotion ID.
	Usage map[int64]UsageCounts
	// CustomerGroups are the requesting customer's group memberships, used
	// for customer_group promotion targeting.
	CustomerGroups []string
	// PeriodShipments is the customer's period-to-date committed shipment
	// count, feeding volume discounts. Zero when the aggregate is
	// unavailable.
	PeriodShipments int64
	TakenAt         time.Time
}

// CarrierByCode returns the carrier with the given code, nil when absent.
func (s *Snapshot) CarrierByCode(code string) *Carrier {
	for i := range s.Carriers {
		if strings.EqualFold(s.Carriers[i].Code, code) {
			return &s.Carriers[i]
		}
	}
	return nil
}

// ServiceByCode returns the carrier's service catalog entry for a code.
func (s *Snapshot) ServiceByCode(carrierID int64, code string) *Service {
	for i := range s.Services {
		if s.Services[i].CarrierID == carrierID && strings.EqualFold(s.Services[i].Code, code) {
			return &s.Services[i]
		}
	}
	return nil
}

// ContractForTable returns the customer's contract referencing the table,
// nil when the customer holds none for it.
func (s *Snapshot) ContractForTable(tableID int64) *Contract {
	for i := range s.Contracts {
		if s.Contracts[i].TableID == tableID {
			return &s.Contracts[i]
		}
	}
	return nil
}

// UsageFor returns the caller-tracked usage counters for a promotion.
func (s *Snapshot) UsageFor(promoID int64) UsageCounts {
	if s.Usage == nil {
		return UsageCounts{}
	}
	return s.Usage[promoID]
}
