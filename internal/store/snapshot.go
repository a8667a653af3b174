package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
)

// LoadSnapshot materialises the full rate configuration visible to one
// customer: every active carrier, table (with rules and service price
// overrides), service catalog entry and promotion, plus the customer's own
// contracts and group memberships. JSON config columns are parsed into
// typed structs here; malformed configuration fails the load rather than
// reaching the engine.
//
// Promotion usage counters and the period volume aggregate are runtime
// state owned by other collaborators; callers fill those in afterwards.
func (s *Store) LoadSnapshot(ctx context.Context, customerID uuid.UUID) (*pricing.Snapshot, error) {
	snap := &pricing.Snapshot{TakenAt: time.Now()}

	var err error
	if snap.Carriers, err = s.loadCarriers(ctx); err != nil {
		return nil, err
	}
	if snap.Tables, err = s.loadTables(ctx); err != nil {
		return nil, err
	}
	if snap.Services, err = s.loadServices(ctx); err != nil {
		return nil, err
	}
	if snap.Contracts, err = s.loadContracts(ctx, customerID); err != nil {
		return nil, err
	}
	if snap.Promotions, err = s.loadPromotions(ctx); err != nil {
		return nil, err
	}
	if snap.CustomerGroups, err = s.loadCustomerGroups(ctx, customerID); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Store) loadCarriers(ctx context.Context) ([]pricing.Carrier, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, code, name, max_weight, max_length, max_width, max_height, zone_codes, is_active
		FROM carriers
		WHERE is_active = TRUE
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("load carriers: %w", err)
	}
	defer rows.Close()

	var carriers []pricing.Carrier
	for rows.Next() {
		var c pricing.Carrier
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.MaxWeight, &c.MaxLength, &c.MaxWidth, &c.MaxHeight, &c.ZoneCodes, &c.IsActive); err != nil {
			return nil, fmt.Errorf("scan carrier: %w", err)
		}
		carriers = append(carriers, c)
	}
	return carriers, rows.Err()
}

func (s *Store) loadTables(ctx context.Context) ([]pricing.Table, error) {
	rows, err := s.db.Query(ctx, `
		SELECT t.id, t.carrier_id, c.code, t.zone_id, z.code, t.service_type, t.pricing_model,
		       t.base_price, t.min_weight, t.max_weight, t.max_length, t.max_width, t.max_height,
		       t.volumetric_divisor, t.currency, t.tax_rate, t.effective_from, t.effective_until,
		       t.version, t.is_active
		FROM pricing_tables t
		JOIN carriers c ON c.id = t.carrier_id
		JOIN pricing_zones z ON z.id = t.zone_id
		WHERE t.is_active = TRUE
		ORDER BY t.id
	`)
	if err != nil {
		return nil, fmt.Errorf("load tables: %w", err)
	}
	defer rows.Close()

	var tables []pricing.Table
	index := map[int64]int{}
	ids := []int64{}
	for rows.Next() {
		var t pricing.Table
		if err := rows.Scan(&t.ID, &t.CarrierID, &t.CarrierCode, &t.ZoneID, &t.ZoneCode, &t.ServiceType, &t.Model,
			&t.BasePrice, &t.MinWeight, &t.MaxWeight, &t.MaxLength, &t.MaxWidth, &t.MaxHeight,
			&t.VolumetricDivisor, &t.Currency, &t.TaxRate, &t.EffectiveFrom, &t.EffectiveUntil,
			&t.Version, &t.IsActive); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		index[t.ID] = len(tables)
		ids = append(ids, t.ID)
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, nil
	}
	if err := s.attachRules(ctx, tables, index, ids); err != nil {
		return nil, err
	}
	if err := s.attachServicePrices(ctx, tables, index, ids); err != nil {
		return nil, err
	}
	return tables, nil
}

func (s *Store) attachRules(ctx context.Context, tables []pricing.Table, index map[int64]int, ids []int64) error {
	rows, err := s.db.Query(ctx, `
		SELECT id, table_id, weight_from, weight_to, max_length, max_width, max_height,
		       calculation_method, price, price_per_kg, weight_step, min_price, max_price,
		       tax_rate, sort_order
		FROM pricing_rules
		WHERE table_id = ANY($1)
		ORDER BY table_id, sort_order, id
	`, ids)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r pricing.Rule
		if err := rows.Scan(&r.ID, &r.TableID, &r.WeightFrom, &r.WeightTo, &r.MaxLength, &r.MaxWidth, &r.MaxHeight,
			&r.Method, &r.Price, &r.PricePerKg, &r.WeightStep, &r.MinPrice, &r.MaxPrice,
			&r.TaxRate, &r.SortOrder); err != nil {
			return fmt.Errorf("scan rule: %w", err)
		}
		if i, ok := index[r.TableID]; ok {
			tables[i].Rules = append(tables[i].Rules, r)
		}
	}
	return rows.Err()
}

func (s *Store) attachServicePrices(ctx context.Context, tables []pricing.Table, index map[int64]int, ids []int64) error {
	rows, err := s.db.Query(ctx, `
		SELECT id, table_id, service_id, price, percentage_rate, min_price, max_price,
		       weight_tiers, value_tiers
		FROM additional_service_prices
		WHERE table_id = ANY($1)
		ORDER BY table_id, id
	`, ids)
	if err != nil {
		return fmt.Errorf("load service prices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sp pricing.ServicePrice
		var weightTiers, valueTiers []byte
		if err := rows.Scan(&sp.ID, &sp.TableID, &sp.ServiceID, &sp.Price, &sp.PercentageRate, &sp.MinPrice, &sp.MaxPrice,
			&weightTiers, &valueTiers); err != nil {
			return fmt.Errorf("scan service price: %w", err)
		}
		if sp.WeightTiers, err = pricing.ParseWeightTiers(weightTiers); err != nil {
			return fmt.Errorf("service price %d: %w", sp.ID, err)
		}
		if sp.ValueTiers, err = pricing.ParseValueTiers(valueTiers); err != nil {
			return fmt.Errorf("service price %d: %w", sp.ID, err)
		}
		if i, ok := index[sp.TableID]; ok {
			tables[i].ServicePrices = append(tables[i].ServicePrices, sp)
		}
	}
	return rows.Err()
}

func (s *Store) loadServices(ctx context.Context) ([]pricing.Service, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, carrier_id, code, name, service_type, pricing_type, default_price,
		       percentage_rate, min_price, max_price, supported_zones, is_active
		FROM additional_services
		WHERE is_active = TRUE
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	defer rows.Close()

	var services []pricing.Service
	for rows.Next() {
		var sv pricing.Service
		if err := rows.Scan(&sv.ID, &sv.CarrierID, &sv.Code, &sv.Name, &sv.ServiceType, &sv.PricingType, &sv.DefaultPrice,
			&sv.PercentageRate, &sv.MinPrice, &sv.MaxPrice, &sv.SupportedZones, &sv.IsActive); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, sv)
	}
	return services, rows.Err()
}

func (s *Store) loadContracts(ctx context.Context, customerID uuid.UUID) ([]pricing.Contract, error) {
	if customerID == uuid.Nil {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, customer_id, table_id, discount_type, base_discount_percent, fixed_discount,
		       min_order_value, max_order_value, volume_tiers, volume_period, custom_rules,
		       service_discounts, free_shipping_threshold, tax_rate, currency,
		       effective_from, effective_until, is_active
		FROM customer_pricings
		WHERE customer_id = $1
		ORDER BY id
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("load contracts: %w", err)
	}
	defer rows.Close()

	var contracts []pricing.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

func scanContract(row pgx.Row) (pricing.Contract, error) {
	var c pricing.Contract
	var volumeTiers, customRules, serviceDiscounts []byte
	err := row.Scan(&c.ID, &c.CustomerID, &c.TableID, &c.DiscountType, &c.BaseDiscountPercent, &c.FixedDiscount,
		&c.MinOrderValue, &c.MaxOrderValue, &volumeTiers, &c.VolumePeriod, &customRules,
		&serviceDiscounts, &c.FreeShippingThreshold, &c.TaxRate, &c.Currency,
		&c.EffectiveFrom, &c.EffectiveUntil, &c.IsActive)
	if err != nil {
		return c, fmt.Errorf("scan contract: %w", err)
	}
	if c.VolumeTiers, err = pricing.ParseVolumeTiers(volumeTiers); err != nil {
		return c, fmt.Errorf("contract %d: %w", c.ID, err)
	}
	if c.CustomRules, err = pricing.ParseCustomRules(customRules); err != nil {
		return c, fmt.Errorf("contract %d: %w", c.ID, err)
	}
	if c.ServiceDiscounts, err = pricing.ParseServiceDiscounts(serviceDiscounts); err != nil {
		return c, fmt.Errorf("contract %d: %w", c.ID, err)
	}
	return c, nil
}

func (s *Store) loadPromotions(ctx context.Context) ([]pricing.Promotion, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, promo_code, table_id, customer_pricing_id, discount_type, discount_value,
		       min_order_value, max_discount_amount, target_type, target_values,
		       valid_from, valid_until, usage_limit, limit_type, usage_count,
		       priority, is_stackable, is_active, config
		FROM promotional_pricings
		WHERE is_active = TRUE
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("load promotions: %w", err)
	}
	defer rows.Close()

	var promos []pricing.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		promos = append(promos, p)
	}
	return promos, rows.Err()
}

func scanPromotion(row pgx.Row) (pricing.Promotion, error) {
	var p pricing.Promotion
	var config []byte
	err := row.Scan(&p.ID, &p.Name, &p.PromoCode, &p.TableID, &p.ContractID, &p.DiscountType, &p.DiscountValue,
		&p.MinOrderValue, &p.MaxDiscountAmount, &p.TargetType, &p.TargetValues,
		&p.ValidFrom, &p.ValidUntil, &p.UsageLimit, &p.LimitType, &p.UsageCount,
		&p.Priority, &p.IsStackable, &p.IsActive, &config)
	if err != nil {
		return p, fmt.Errorf("scan promotion: %w", err)
	}
	if p.BuyXGetY, p.TierBrackets, err = pricing.ParsePromotionConfig(p.DiscountType, config); err != nil {
		return p, fmt.Errorf("promotion %d: %w", p.ID, err)
	}
	return p, nil
}

func (s *Store) loadCustomerGroups(ctx context.Context, customerID uuid.UUID) ([]string, error) {
	if customerID == uuid.Nil {
		return nil, nil
	}
	var groups []string
	err := s.db.QueryRow(ctx, `SELECT groups FROM customers WHERE id = $1`, customerID).Scan(&groups)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("customer %s: %w", customerID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load customer groups: %w", err)
	}
	return groups, nil
}
