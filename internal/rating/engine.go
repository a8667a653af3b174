package rating

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
)

// Request describes one shipment to be priced.
type Request struct {
	CarrierCode   string
	ZoneCode      string
	ServiceType   string
	ActualWeight  decimal.Decimal
	Dimensions    *pricing.Dimensions
	PackageCount  int64
	DeclaredValue decimal.Decimal
	ServiceCodes  []string
	PromoCode     string
	CustomerID    uuid.UUID
	// AsOf pins effective-date resolution; the zero value means "now".
	AsOf time.Time
}

// Quote is the itemized outcome of one rate computation. Every amount is
// rounded to four decimal places.
type Quote struct {
	CarrierCode       string             `json:"carrier_code"`
	ZoneCode          string             `json:"zone_code"`
	ServiceType       string             `json:"service_type"`
	TableID           int64              `json:"table_id"`
	TableVersion      int                `json:"table_version"`
	RuleID            *int64             `json:"rule_id,omitempty"`
	BillableWeight    decimal.Decimal    `json:"billable_weight"`
	BasePrice         decimal.Decimal    `json:"base_price"`
	Services          []ServiceLine      `json:"services,omitempty"`
	ServicesTotal     decimal.Decimal    `json:"services_total"`
	Subtotal          decimal.Decimal    `json:"subtotal"`
	CustomerDiscount  decimal.Decimal    `json:"customer_discount"`
	Promotions        []PromoApplication `json:"promotions,omitempty"`
	PromotionDiscount decimal.Decimal    `json:"promotion_discount"`
	TotalDiscount     decimal.Decimal    `json:"total_discount"`
	NetTotal          decimal.Decimal    `json:"net_total"`
	TaxRate           decimal.Decimal    `json:"tax_rate"`
	TaxAmount         decimal.Decimal    `json:"tax_amount"`
	GrandTotal        decimal.Decimal    `json:"grand_total"`
	Currency          string             `json:"currency"`
	QuotedAt          time.Time          `json:"quoted_at"`
}

// CarrierQuote is one carrier's entry in a comparison: either a quote or
// the reason that carrier could not price the shipment.
type CarrierQuote struct {
	CarrierCode string `json:"carrier_code"`
	CarrierName string `json:"carrier_name"`
	Quote       *Quote `json:"quote,omitempty"`
	Err         error  `json:"-"`
}

// Engine runs the rate computation pipeline against a snapshot. It holds
// no state between calls; the zero value is usable.
type Engine struct {
	// Rules overrides custom-rules evaluation for custom_rules contracts.
	// Nil selects FirstMatchEvaluator.
	Rules RuleEvaluator
	Now   func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Quote prices one shipment: table resolution, billable weight, tier
// pricing, add-on services, customer discount, promotions, then tax. The
// snapshot is never mutated; commit-time effects (promotion usage, volume
// counters) are the caller's to persist.
func (e *Engine) Quote(snap *pricing.Snapshot, req Request) (*Quote, error) {
	at := req.AsOf
	if at.IsZero() {
		at = e.now()
	}
	count := req.PackageCount
	if count <= 0 {
		count = 1
	}

	if carrier := snap.CarrierByCode(req.CarrierCode); carrier != nil {
		if !carrier.IsActive {
			return nil, fmt.Errorf("carrier %s is not active: %w", carrier.Code, ErrNoActiveRateTable)
		}
		if !carrier.CanCarry(req.ActualWeight, req.Dimensions) {
			return nil, fmt.Errorf("carrier %s cannot take this parcel: %w", carrier.Code, ErrExceedsCarrierLimits)
		}
	}

	table, err := ResolveTable(snap.Tables, req.CarrierCode, req.ZoneCode, req.ServiceType, at)
	if err != nil {
		return nil, err
	}

	weight, err := BillableWeight(*table, req.ActualWeight, req.Dimensions)
	if err != nil {
		return nil, err
	}

	base, rule, err := BasePrice(*table, weight, req.Dimensions)
	if err != nil {
		return nil, err
	}

	contract := snap.ContractForTable(table.ID)
	if contract != nil && !contract.IsCurrentlyActive(at) {
		contract = nil
	}

	services, servicesTotal, err := PriceServices(snap, *table, ServiceInput{
		Codes:          req.ServiceCodes,
		BaseAmount:     base,
		BillableWeight: weight,
		DeclaredValue:  req.DeclaredValue,
		PackageCount:   count,
		ZoneCode:       req.ZoneCode,
		At:             at,
		Contract:       contract,
	})
	if err != nil {
		return nil, err
	}

	subtotal := pricing.Round4(base.Add(servicesTotal))

	customerDiscount := CustomerDiscount(contract, DiscountInput{
		Subtotal:  subtotal,
		BasePrice: base,
		Facts: pricing.RuleFacts{
			Weight:       weight,
			Subtotal:     subtotal,
			ServiceCount: len(services),
			ZoneCode:     table.ZoneCode,
		},
		PeriodShipments: snap.PeriodShipments,
		At:              at,
	}, e.Rules)

	var contractID *int64
	if contract != nil {
		id := contract.ID
		contractID = &id
	}
	qualifying := pricing.NonNegative(subtotal.Sub(customerDiscount))
	promos, promoDiscount := ApplyPromotions(snap, PromotionInput{
		Target: pricing.TargetContext{
			CarrierCode:    table.CarrierCode,
			ZoneCode:       table.ZoneCode,
			ServiceType:    table.ServiceType,
			CustomerID:     req.CustomerID,
			CustomerGroups: snap.CustomerGroups,
			TableID:        table.ID,
			ContractID:     contractID,
		},
		Subtotal:     qualifying,
		BasePrice:    base,
		PackageCount: count,
		PromoCode:    req.PromoCode,
		At:           at,
	})

	totalDiscount := pricing.Round4(customerDiscount.Add(promoDiscount))
	net := pricing.NonNegative(subtotal.Sub(totalDiscount))
	taxRate := resolveTaxRate(rule, contract, *table)
	tax := pricing.Round4(pricing.Percent(net, taxRate))

	var ruleID *int64
	if rule != nil {
		id := rule.ID
		ruleID = &id
	}

	return &Quote{
		CarrierCode:       table.CarrierCode,
		ZoneCode:          table.ZoneCode,
		ServiceType:       table.ServiceType,
		TableID:           table.ID,
		TableVersion:      table.Version,
		RuleID:            ruleID,
		BillableWeight:    weight,
		BasePrice:         base,
		Services:          services,
		ServicesTotal:     servicesTotal,
		Subtotal:          subtotal,
		CustomerDiscount:  customerDiscount,
		Promotions:        promos,
		PromotionDiscount: promoDiscount,
		TotalDiscount:     totalDiscount,
		NetTotal:          net,
		TaxRate:           taxRate,
		TaxAmount:         tax,
		GrandTotal:        pricing.Round4(net.Add(tax)),
		Currency:          resolveCurrency(contract, *table),
		QuotedAt:          at,
	}, nil
}

// Compare prices the shipment against every active carrier serving the
// requested zone. Carriers whose limits or configuration reject the
// shipment stay in the result with the failure attached; successful
// quotes sort cheapest first.
func (e *Engine) Compare(snap *pricing.Snapshot, req Request) []CarrierQuote {
	var out []CarrierQuote
	for _, c := range snap.Carriers {
		if !c.IsActive || !c.ServesZone(req.ZoneCode) {
			continue
		}
		r := req
		r.CarrierCode = c.Code
		q, err := e.Quote(snap, r)
		out = append(out, CarrierQuote{
			CarrierCode: c.Code,
			CarrierName: c.Name,
			Quote:       q,
			Err:         err,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		qi, qj := out[i].Quote, out[j].Quote
		if (qi == nil) != (qj == nil) {
			return qi != nil
		}
		if qi == nil {
			return false
		}
		return qi.GrandTotal.LessThan(qj.GrandTotal)
	})
	return out
}

// Tax rate precedence: matched rule, then contract, then the table, then
// zero.
func resolveTaxRate(rule *pricing.Rule, c *pricing.Contract, t pricing.Table) decimal.Decimal {
	if rule != nil && rule.TaxRate != nil {
		return *rule.TaxRate
	}
	if c != nil && c.TaxRate != nil {
		return *c.TaxRate
	}
	if t.TaxRate != nil {
		return *t.TaxRate
	}
	return decimal.Zero
}

func resolveCurrency(c *pricing.Contract, t pricing.Table) string {
	if c != nil && c.Currency != nil && *c.Currency != "" {
		return *c.Currency
	}
	return t.Currency
}
