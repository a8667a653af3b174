package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
)

const contractColumns = `id, customer_id, table_id, discount_type, base_discount_percent, fixed_discount,
	min_order_value, max_order_value, volume_tiers, volume_period, custom_rules,
	service_discounts, free_shipping_threshold, tax_rate, currency,
	effective_from, effective_until, is_active`

// CreateContract inserts a negotiated contract. The (customer, table) pair
// is unique; callers translate the violation into their own error.
func (s *Store) CreateContract(ctx context.Context, c pricing.Contract) (int64, error) {
	volumeTiers, customRules, serviceDiscounts, err := contractJSON(c)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.db.QueryRow(ctx, `
		INSERT INTO customer_pricings (
			customer_id, table_id, discount_type, base_discount_percent, fixed_discount,
			min_order_value, max_order_value, volume_tiers, volume_period, custom_rules,
			service_discounts, free_shipping_threshold, tax_rate, currency,
			effective_from, effective_until, is_active
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING id
	`, c.CustomerID, c.TableID, c.DiscountType, c.BaseDiscountPercent, c.FixedDiscount,
		c.MinOrderValue, c.MaxOrderValue, volumeTiers, c.VolumePeriod, customRules,
		serviceDiscounts, c.FreeShippingThreshold, c.TaxRate, c.Currency,
		c.EffectiveFrom, c.EffectiveUntil, c.IsActive).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create contract: %w", err)
	}
	return id, nil
}

// UpdateContract rewrites a contract's negotiated terms.
func (s *Store) UpdateContract(ctx context.Context, c pricing.Contract) error {
	volumeTiers, customRules, serviceDiscounts, err := contractJSON(c)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE customer_pricings
		SET discount_type = $2, base_discount_percent = $3, fixed_discount = $4,
		    min_order_value = $5, max_order_value = $6, volume_tiers = $7,
		    volume_period = $8, custom_rules = $9, service_discounts = $10,
		    free_shipping_threshold = $11, tax_rate = $12, currency = $13,
		    effective_from = $14, effective_until = $15, is_active = $16,
		    updated_at = now()
		WHERE id = $1
	`, c.ID, c.DiscountType, c.BaseDiscountPercent, c.FixedDiscount,
		c.MinOrderValue, c.MaxOrderValue, volumeTiers,
		c.VolumePeriod, customRules, serviceDiscounts,
		c.FreeShippingThreshold, c.TaxRate, c.Currency,
		c.EffectiveFrom, c.EffectiveUntil, c.IsActive)
	if err != nil {
		return fmt.Errorf("update contract: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("contract %d: %w", c.ID, ErrNotFound)
	}
	return nil
}

func (s *Store) GetContract(ctx context.Context, id int64) (pricing.Contract, error) {
	row := s.db.QueryRow(ctx, `SELECT `+contractColumns+` FROM customer_pricings WHERE id = $1`, id)
	c, err := scanContract(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, fmt.Errorf("contract %d: %w", id, ErrNotFound)
	}
	return c, err
}

// ListContracts returns contracts, optionally narrowed to one customer.
func (s *Store) ListContracts(ctx context.Context, customerID uuid.UUID, limit, offset int32) ([]pricing.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM customer_pricings ORDER BY id DESC LIMIT $1 OFFSET $2`
	args := []any{limit, offset}
	if customerID != uuid.Nil {
		query = `SELECT ` + contractColumns + ` FROM customer_pricings WHERE customer_id = $3 ORDER BY id DESC LIMIT $1 OFFSET $2`
		args = append(args, customerID)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
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

// InsertAudit appends one customer-pricing audit entry. The log is
// append-only; there is no update or delete path.
func (s *Store) InsertAudit(ctx context.Context, e pricing.AuditEntry) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO customer_pricing_audits (customer_pricing_id, changed_by, action, old_values, new_values, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, e.ContractID, e.ChangedBy, e.Action, e.OldValues, e.NewValues, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// ListAudits returns a contract's audit trail, most recent first.
func (s *Store) ListAudits(ctx context.Context, contractID int64, limit, offset int32) ([]pricing.AuditEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, customer_pricing_id, changed_by, action, old_values, new_values, created_at
		FROM customer_pricing_audits
		WHERE customer_pricing_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, contractID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	defer rows.Close()
	var entries []pricing.AuditEntry
	for rows.Next() {
		var e pricing.AuditEntry
		if err := rows.Scan(&e.ID, &e.ContractID, &e.ChangedBy, &e.Action, &e.OldValues, &e.NewValues, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func contractJSON(c pricing.Contract) (volumeTiers, customRules, serviceDiscounts []byte, err error) {
	if len(c.VolumeTiers) > 0 {
		if volumeTiers, err = json.Marshal(c.VolumeTiers); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal volume tiers: %w", err)
		}
	}
	if len(c.CustomRules) > 0 {
		if customRules, err = json.Marshal(c.CustomRules); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal custom rules: %w", err)
		}
	}
	if len(c.ServiceDiscounts) > 0 {
		if serviceDiscounts, err = json.Marshal(c.ServiceDiscounts); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal service discounts: %w", err)
		}
	}
	return volumeTiers, customRules, serviceDiscounts, nil
}
