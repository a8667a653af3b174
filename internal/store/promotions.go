package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
)

// ErrUsageExhausted is returned when a totals-limited promotion has no
// usage remaining; a concurrent commit may have taken the last slot.
var ErrUsageExhausted = errors.New("promotion usage exhausted")

const promotionColumns = `id, name, promo_code, table_id, customer_pricing_id, discount_type, discount_value,
	min_order_value, max_discount_amount, target_type, target_values,
	valid_from, valid_until, usage_limit, limit_type, usage_count,
	priority, is_stackable, is_active, config`

// CreatePromotion inserts a campaign row. Config carries the raw
// promotion-type JSON (buy_x_get_y or tiers), already validated by the
// caller.
func (s *Store) CreatePromotion(ctx context.Context, p pricing.Promotion, config []byte) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO promotional_pricings (
			name, promo_code, table_id, customer_pricing_id, discount_type, discount_value,
			min_order_value, max_discount_amount, target_type, target_values,
			valid_from, valid_until, usage_limit, limit_type,
			priority, is_stackable, is_active, config
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		RETURNING id
	`, p.Name, p.PromoCode, p.TableID, p.ContractID, p.DiscountType, p.DiscountValue,
		p.MinOrderValue, p.MaxDiscountAmount, p.TargetType, p.TargetValues,
		p.ValidFrom, p.ValidUntil, p.UsageLimit, p.LimitType,
		p.Priority, p.IsStackable, p.IsActive, config).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create promotion: %w", err)
	}
	return id, nil
}

// UpdatePromotion rewrites a campaign's configuration. The usage counter is
// deliberately not touched; only commits mutate it.
func (s *Store) UpdatePromotion(ctx context.Context, p pricing.Promotion, config []byte) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE promotional_pricings
		SET name = $2, promo_code = $3, table_id = $4, customer_pricing_id = $5,
		    discount_type = $6, discount_value = $7, min_order_value = $8,
		    max_discount_amount = $9, target_type = $10, target_values = $11,
		    valid_from = $12, valid_until = $13, usage_limit = $14, limit_type = $15,
		    priority = $16, is_stackable = $17, is_active = $18, config = $19,
		    updated_at = now()
		WHERE id = $1
	`, p.ID, p.Name, p.PromoCode, p.TableID, p.ContractID,
		p.DiscountType, p.DiscountValue, p.MinOrderValue,
		p.MaxDiscountAmount, p.TargetType, p.TargetValues,
		p.ValidFrom, p.ValidUntil, p.UsageLimit, p.LimitType,
		p.Priority, p.IsStackable, p.IsActive, config)
	if err != nil {
		return fmt.Errorf("update promotion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("promotion %d: %w", p.ID, ErrNotFound)
	}
	return nil
}

func (s *Store) GetPromotion(ctx context.Context, id int64) (pricing.Promotion, error) {
	row := s.db.QueryRow(ctx, `SELECT `+promotionColumns+` FROM promotional_pricings WHERE id = $1`, id)
	p, err := scanPromotion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, fmt.Errorf("promotion %d: %w", id, ErrNotFound)
	}
	return p, err
}

func (s *Store) ListPromotions(ctx context.Context, limit, offset int32) ([]pricing.Promotion, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+promotionColumns+`
		FROM promotional_pricings
		ORDER BY id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
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

// IncrementPromotionUsage bumps the total usage counter under the row's
// limit guard. A zero-row update on a totals-limited promotion means the
// last slot was taken, possibly by a concurrent commit.
func (s *Store) IncrementPromotionUsage(ctx context.Context, id int64) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, `
		UPDATE promotional_pricings
		SET usage_count = usage_count + 1, updated_at = now()
		WHERE id = $1
		  AND (usage_limit IS NULL OR limit_type <> 'total' OR usage_count < usage_limit)
		RETURNING usage_count
	`, id).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("promotion %d: %w", id, ErrUsageExhausted)
	}
	if err != nil {
		return 0, fmt.Errorf("increment promotion usage: %w", err)
	}
	return count, nil
}

// TotalUsageCounts returns the stored total usage counter per active
// promotion, for drift checks against the redis-side counters.
func (s *Store) TotalUsageCounts(ctx context.Context) (map[int64]int64, error) {
	rows, err := s.db.Query(ctx, `SELECT id, usage_count FROM promotional_pricings WHERE is_active = TRUE`)
	if err != nil {
		return nil, fmt.Errorf("load usage counts: %w", err)
	}
	defer rows.Close()

	counts := map[int64]int64{}
	for rows.Next() {
		var id, count int64
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("scan usage count: %w", err)
		}
		counts[id] = count
	}
	return counts, rows.Err()
}
