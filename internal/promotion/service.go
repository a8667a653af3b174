// Package promotion owns the admin lifecycle of promotional pricing
// campaigns: payload validation, persistence and the counter hygiene
// around redemption bookkeeping.
package promotion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/common"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/events"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
)

// Store captures the persistence operations the admin service needs.
type Store interface {
	CreatePromotion(ctx context.Context, p pricing.Promotion, config []byte) (int64, error)
	UpdatePromotion(ctx context.Context, p pricing.Promotion, config []byte) error
	GetPromotion(ctx context.Context, id int64) (pricing.Promotion, error)
	ListPromotions(ctx context.Context, limit, offset int32) ([]pricing.Promotion, error)
}

// Service validates and persists promotion campaigns. Configuration writes
// are announced on the event bus so caches can drop stale snapshots.
type Service struct {
	DB     Store
	Events *events.Bus
	Now    func() time.Time
}

// Input is the admin wire payload for creating or updating a promotion.
type Input struct {
	Name              string           `json:"name"`
	PromoCode         *string          `json:"promoCode"`
	TableID           *int64           `json:"tableId"`
	ContractID        *int64           `json:"customerPricingId"`
	DiscountType      string           `json:"discountType"`
	DiscountValue     decimal.Decimal  `json:"discountValue"`
	MinOrderValue     *decimal.Decimal `json:"minOrderValue"`
	MaxDiscountAmount *decimal.Decimal `json:"maxDiscountAmount"`
	TargetType        string           `json:"targetType"`
	TargetValues      []string         `json:"targetValues"`
	ValidFrom         time.Time        `json:"validFrom"`
	ValidUntil        *time.Time       `json:"validUntil"`
	UsageLimit        *int64           `json:"usageLimit"`
	LimitType         string           `json:"limitType"`
	Priority          int              `json:"priority"`
	IsStackable       bool             `json:"isStackable"`
	IsActive          *bool            `json:"isActive"`
	Config            json.RawMessage  `json:"config"`
}

// Create validates and inserts a promotion, returning it with its ID set.
func (s *Service) Create(ctx context.Context, in Input) (pricing.Promotion, error) {
	p, config, err := s.build(in)
	if err != nil {
		return pricing.Promotion{}, err
	}
	id, err := s.DB.CreatePromotion(ctx, p, config)
	if err != nil {
		return pricing.Promotion{}, err
	}
	p.ID = id
	s.emit(ctx, events.TopicPromotionCreated, p)
	return p, nil
}

// Update validates and replaces a promotion's definition. The usage counter
// is never touched by an update.
func (s *Service) Update(ctx context.Context, id int64, in Input) (pricing.Promotion, error) {
	existing, err := s.DB.GetPromotion(ctx, id)
	if err != nil {
		return pricing.Promotion{}, err
	}
	p, config, err := s.build(in)
	if err != nil {
		return pricing.Promotion{}, err
	}
	p.ID = id
	p.UsageCount = existing.UsageCount
	if err := s.DB.UpdatePromotion(ctx, p, config); err != nil {
		return pricing.Promotion{}, err
	}
	s.emit(ctx, events.TopicPromotionUpdated, p)
	return p, nil
}

// Get returns one promotion by ID.
func (s *Service) Get(ctx context.Context, id int64) (pricing.Promotion, error) {
	return s.DB.GetPromotion(ctx, id)
}

// List returns a page of promotions.
func (s *Service) List(ctx context.Context, limit, offset int32) ([]pricing.Promotion, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.DB.ListPromotions(ctx, limit, offset)
}

func (s *Service) emit(ctx context.Context, topic string, p pricing.Promotion) {
	if s.Events == nil {
		return
	}
	_ = s.Events.Emit(ctx, topic, strconv.FormatInt(p.ID, 10), map[string]any{
		"promotionId":  p.ID,
		"name":         p.Name,
		"discountType": string(p.DiscountType),
	})
}

// build converts and validates the wire payload. Validation failures come
// back as AppErrors so handlers map them to 400 responses directly.
func (s *Service) build(in Input) (pricing.Promotion, []byte, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return pricing.Promotion{}, nil, invalid("name is required")
	}
	dt := pricing.PromoDiscountType(strings.TrimSpace(in.DiscountType))
	if !dt.Valid() {
		return pricing.Promotion{}, nil, invalid(fmt.Sprintf("unknown discount type %q", in.DiscountType))
	}
	if in.DiscountValue.IsNegative() {
		return pricing.Promotion{}, nil, invalid("discount value must not be negative")
	}
	if dt == pricing.PromoPercentage && in.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		return pricing.Promotion{}, nil, invalid("percentage discount cannot exceed 100")
	}
	target := pricing.TargetType(strings.TrimSpace(in.TargetType))
	if target == "" {
		target = pricing.TargetAll
	}
	if !target.Valid() {
		return pricing.Promotion{}, nil, invalid(fmt.Sprintf("unknown target type %q", in.TargetType))
	}
	if target != pricing.TargetAll && len(in.TargetValues) == 0 {
		return pricing.Promotion{}, nil, invalid("target values are required for scoped targets")
	}
	if in.ValidFrom.IsZero() {
		return pricing.Promotion{}, nil, invalid("validFrom is required")
	}
	if in.ValidUntil != nil && !in.ValidUntil.After(in.ValidFrom) {
		return pricing.Promotion{}, nil, invalid("validUntil must be after validFrom")
	}
	limitType := pricing.LimitType(strings.TrimSpace(in.LimitType))
	if in.UsageLimit != nil {
		if *in.UsageLimit <= 0 {
			return pricing.Promotion{}, nil, invalid("usage limit must be positive")
		}
		if limitType == "" {
			limitType = pricing.LimitTotal
		}
		if !limitType.Valid() {
			return pricing.Promotion{}, nil, invalid(fmt.Sprintf("unknown limit type %q", in.LimitType))
		}
	} else if limitType != "" && !limitType.Valid() {
		return pricing.Promotion{}, nil, invalid(fmt.Sprintf("unknown limit type %q", in.LimitType))
	}
	var code *string
	if in.PromoCode != nil {
		trimmed := strings.TrimSpace(*in.PromoCode)
		if trimmed != "" {
			code = &trimmed
		}
	}
	buyXGetY, tiers, err := pricing.ParsePromotionConfig(dt, in.Config)
	if err != nil {
		return pricing.Promotion{}, nil, invalid(err.Error())
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	p := pricing.Promotion{
		Name:              name,
		PromoCode:         code,
		TableID:           in.TableID,
		ContractID:        in.ContractID,
		DiscountType:      dt,
		DiscountValue:     in.DiscountValue,
		MinOrderValue:     in.MinOrderValue,
		MaxDiscountAmount: in.MaxDiscountAmount,
		TargetType:        target,
		TargetValues:      in.TargetValues,
		ValidFrom:         in.ValidFrom,
		ValidUntil:        in.ValidUntil,
		UsageLimit:        in.UsageLimit,
		LimitType:         limitType,
		Priority:          in.Priority,
		IsStackable:       in.IsStackable,
		IsActive:          active,
		BuyXGetY:          buyXGetY,
		TierBrackets:      tiers,
	}
	var config []byte
	if len(in.Config) > 0 {
		config = append([]byte(nil), in.Config...)
	}
	return p, config, nil
}

func invalid(message string) error {
	return common.NewAppError("VALIDATION", message, http.StatusBadRequest, nil)
}
