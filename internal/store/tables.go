package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
)

// CreateCarrier inserts a carrier and returns its ID.
func (s *Store) CreateCarrier(ctx context.Context, c pricing.Carrier) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO carriers (code, name, max_weight, max_length, max_width, max_height, zone_codes, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`, c.Code, c.Name, c.MaxWeight, c.MaxLength, c.MaxWidth, c.MaxHeight, c.ZoneCodes, c.IsActive).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create carrier: %w", err)
	}
	return id, nil
}

// CreateZone inserts a pricing zone for a carrier.
func (s *Store) CreateZone(ctx context.Context, z pricing.Zone) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO pricing_zones (carrier_id, code, name, kind, countries, postal_patterns, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`, z.CarrierID, z.Code, z.Name, z.Kind, z.Countries, z.PostalPatterns, z.IsActive).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create zone: %w", err)
	}
	return id, nil
}

// NextTableVersion returns the version number a new sheet for the triple
// should carry. Superseding never mutates prior versions.
func (s *Store) NextTableVersion(ctx context.Context, carrierID, zoneID int64, serviceType string) (int, error) {
	var version int
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1
		FROM pricing_tables
		WHERE carrier_id = $1 AND zone_id = $2 AND service_type = $3
	`, carrierID, zoneID, serviceType).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("next table version: %w", err)
	}
	return version, nil
}

// CreateTable inserts a rate sheet and returns its ID. Rules and service
// price overrides are inserted separately; run the whole composition inside
// WithTx.
func (s *Store) CreateTable(ctx context.Context, t pricing.Table) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO pricing_tables (
			carrier_id, zone_id, service_type, pricing_model, base_price,
			min_weight, max_weight, max_length, max_width, max_height,
			volumetric_divisor, currency, tax_rate, effective_from, effective_until,
			version, is_active
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING id
	`, t.CarrierID, t.ZoneID, t.ServiceType, t.Model, t.BasePrice,
		t.MinWeight, t.MaxWeight, t.MaxLength, t.MaxWidth, t.MaxHeight,
		t.VolumetricDivisor, t.Currency, t.TaxRate, t.EffectiveFrom, t.EffectiveUntil,
		t.Version, t.IsActive).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create table: %w", err)
	}
	return id, nil
}

// CreateRule inserts one weight bracket for a table.
func (s *Store) CreateRule(ctx context.Context, r pricing.Rule) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO pricing_rules (
			table_id, weight_from, weight_to, max_length, max_width, max_height,
			calculation_method, price, price_per_kg, weight_step,
			min_price, max_price, tax_rate, sort_order
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id
	`, r.TableID, r.WeightFrom, r.WeightTo, r.MaxLength, r.MaxWidth, r.MaxHeight,
		r.Method, r.Price, r.PricePerKg, r.WeightStep,
		r.MinPrice, r.MaxPrice, r.TaxRate, r.SortOrder).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create rule: %w", err)
	}
	return id, nil
}

// CreateService inserts a carrier-level add-on catalog entry.
func (s *Store) CreateService(ctx context.Context, sv pricing.Service) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO additional_services (
			carrier_id, code, name, service_type, pricing_type, default_price,
			percentage_rate, min_price, max_price, supported_zones, is_active
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id
	`, sv.CarrierID, sv.Code, sv.Name, sv.ServiceType, sv.PricingType, sv.DefaultPrice,
		sv.PercentageRate, sv.MinPrice, sv.MaxPrice, sv.SupportedZones, sv.IsActive).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create service: %w", err)
	}
	return id, nil
}

// CreateServicePrice inserts a per-table override of one service's pricing.
func (s *Store) CreateServicePrice(ctx context.Context, sp pricing.ServicePrice) (int64, error) {
	var weightTiers, valueTiers []byte
	var err error
	if len(sp.WeightTiers) > 0 {
		if weightTiers, err = json.Marshal(sp.WeightTiers); err != nil {
			return 0, fmt.Errorf("marshal weight tiers: %w", err)
		}
	}
	if len(sp.ValueTiers) > 0 {
		if valueTiers, err = json.Marshal(sp.ValueTiers); err != nil {
			return 0, fmt.Errorf("marshal value tiers: %w", err)
		}
	}
	var id int64
	err = s.db.QueryRow(ctx, `
		INSERT INTO additional_service_prices (
			table_id, service_id, price, percentage_rate, min_price, max_price, weight_tiers, value_tiers
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`, sp.TableID, sp.ServiceID, sp.Price, sp.PercentageRate, sp.MinPrice, sp.MaxPrice, weightTiers, valueTiers).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create service price: %w", err)
	}
	return id, nil
}
