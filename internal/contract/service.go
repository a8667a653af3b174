// Package contract owns the admin lifecycle of negotiated customer pricing.
// Every successful mutation enqueues an audit entry and announces itself on
// the event bus.
package contract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/audit"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/common"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/events"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
)

// Store captures the persistence operations the admin service needs.
type Store interface {
	CreateContract(ctx context.Context, c pricing.Contract) (int64, error)
	UpdateContract(ctx context.Context, c pricing.Contract) error
	GetContract(ctx context.Context, id int64) (pricing.Contract, error)
	ListContracts(ctx context.Context, customerID uuid.UUID, limit, offset int32) ([]pricing.Contract, error)
}

// AuditRecorder enqueues change-trail entries.
type AuditRecorder interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Service validates and persists customer pricing contracts.
type Service struct {
	DB     Store
	Audit  AuditRecorder
	Events *events.Bus
	Log    zerolog.Logger
	Now    func() time.Time
}

// Input is the admin wire payload for creating or updating a contract.
// Tier, rule and override columns arrive as raw JSON and are validated with
// the same parsers the snapshot loader uses.
type Input struct {
	CustomerID            string           `json:"customerId"`
	TableID               int64            `json:"tableId"`
	DiscountType          string           `json:"discountType"`
	BaseDiscountPercent   decimal.Decimal  `json:"baseDiscountPercent"`
	FixedDiscount         decimal.Decimal  `json:"fixedDiscount"`
	MinOrderValue         *decimal.Decimal `json:"minOrderValue"`
	MaxOrderValue         *decimal.Decimal `json:"maxOrderValue"`
	VolumeTiers           json.RawMessage  `json:"volumeTiers"`
	VolumePeriod          string           `json:"volumePeriod"`
	CustomRules           json.RawMessage  `json:"customRules"`
	ServiceDiscounts      json.RawMessage  `json:"serviceDiscounts"`
	FreeShippingThreshold *decimal.Decimal `json:"freeShippingThreshold"`
	TaxRate               *decimal.Decimal `json:"taxRate"`
	Currency              *string          `json:"currency"`
	EffectiveFrom         time.Time        `json:"effectiveFrom"`
	EffectiveUntil        *time.Time       `json:"effectiveUntil"`
	IsActive              *bool            `json:"isActive"`
}

// Create validates and inserts a contract, then records the audit entry.
func (s *Service) Create(ctx context.Context, actor string, in Input) (pricing.Contract, error) {
	c, err := s.build(in)
	if err != nil {
		return pricing.Contract{}, err
	}
	id, err := s.DB.CreateContract(ctx, c)
	if err != nil {
		return pricing.Contract{}, err
	}
	c.ID = id
	s.record(ctx, actor, audit.ActionCreated, nil, c)
	s.emit(ctx, events.TopicContractCreated, c)
	return c, nil
}

// Update validates and replaces a contract's definition, recording both the
// old and new values in the audit trail.
func (s *Service) Update(ctx context.Context, actor string, id int64, in Input) (pricing.Contract, error) {
	old, err := s.DB.GetContract(ctx, id)
	if err != nil {
		return pricing.Contract{}, err
	}
	c, err := s.build(in)
	if err != nil {
		return pricing.Contract{}, err
	}
	c.ID = id
	if err := s.DB.UpdateContract(ctx, c); err != nil {
		return pricing.Contract{}, err
	}
	s.record(ctx, actor, audit.ActionUpdated, &old, c)
	s.emit(ctx, events.TopicContractUpdated, c)
	return c, nil
}

// Get returns one contract by ID.
func (s *Service) Get(ctx context.Context, id int64) (pricing.Contract, error) {
	return s.DB.GetContract(ctx, id)
}

// List returns a page of contracts, optionally scoped to one customer.
func (s *Service) List(ctx context.Context, customerID uuid.UUID, limit, offset int32) ([]pricing.Contract, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.DB.ListContracts(ctx, customerID, limit, offset)
}

func (s *Service) record(ctx context.Context, actor, action string, old *pricing.Contract, current pricing.Contract) {
	if s.Audit == nil {
		return
	}
	entry := audit.Entry{
		ContractID: current.ID,
		ChangedBy:  actor,
		Action:     action,
		NewValues:  contractJSON(&current),
		ChangedAt:  s.now(),
	}
	if old != nil {
		entry.OldValues = contractJSON(old)
	}
	if err := s.Audit.Record(ctx, entry); err != nil {
		s.Log.Warn().Err(err).Int64("contract_id", current.ID).Msg("audit entry not enqueued")
	}
}

func (s *Service) emit(ctx context.Context, topic string, c pricing.Contract) {
	if s.Events == nil {
		return
	}
	_ = s.Events.Emit(ctx, topic, strconv.FormatInt(c.ID, 10), map[string]any{
		"contractId":   c.ID,
		"customerId":   c.CustomerID.String(),
		"tableId":      c.TableID,
		"discountType": string(c.DiscountType),
	})
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func contractJSON(c *pricing.Contract) json.RawMessage {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil
	}
	return raw
}

// build converts and validates the wire payload.
func (s *Service) build(in Input) (pricing.Contract, error) {
	customerID, err := uuid.Parse(strings.TrimSpace(in.CustomerID))
	if err != nil || customerID == uuid.Nil {
		return pricing.Contract{}, invalid("customerId must be a valid UUID")
	}
	if in.TableID <= 0 {
		return pricing.Contract{}, invalid("tableId is required")
	}
	dt := pricing.DiscountType(strings.TrimSpace(in.DiscountType))
	if !dt.Valid() {
		return pricing.Contract{}, invalid(fmt.Sprintf("unknown discount type %q", in.DiscountType))
	}
	if in.BaseDiscountPercent.IsNegative() || in.BaseDiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return pricing.Contract{}, invalid("baseDiscountPercent must be between 0 and 100")
	}
	if in.FixedDiscount.IsNegative() {
		return pricing.Contract{}, invalid("fixedDiscount must not be negative")
	}
	if in.EffectiveFrom.IsZero() {
		return pricing.Contract{}, invalid("effectiveFrom is required")
	}
	if in.EffectiveUntil != nil && !in.EffectiveUntil.After(in.EffectiveFrom) {
		return pricing.Contract{}, invalid("effectiveUntil must be after effectiveFrom")
	}
	if in.MinOrderValue != nil && in.MaxOrderValue != nil && in.MaxOrderValue.LessThan(*in.MinOrderValue) {
		return pricing.Contract{}, invalid("maxOrderValue must not be below minOrderValue")
	}
	volumeTiers, err := pricing.ParseVolumeTiers(in.VolumeTiers)
	if err != nil {
		return pricing.Contract{}, invalid(err.Error())
	}
	period := pricing.VolumePeriod(strings.TrimSpace(in.VolumePeriod))
	if dt == pricing.DiscountVolume {
		if len(volumeTiers) == 0 {
			return pricing.Contract{}, invalid("volume discount requires volumeTiers")
		}
		if period == "" {
			period = pricing.PeriodMonthly
		}
		if !period.Valid() {
			return pricing.Contract{}, invalid(fmt.Sprintf("unknown volume period %q", in.VolumePeriod))
		}
	} else if period != "" && !period.Valid() {
		return pricing.Contract{}, invalid(fmt.Sprintf("unknown volume period %q", in.VolumePeriod))
	}
	customRules, err := pricing.ParseCustomRules(in.CustomRules)
	if err != nil {
		return pricing.Contract{}, invalid(err.Error())
	}
	if dt == pricing.DiscountCustom && len(customRules) == 0 {
		return pricing.Contract{}, invalid("custom discount requires customRules")
	}
	serviceDiscounts, err := pricing.ParseServiceDiscounts(in.ServiceDiscounts)
	if err != nil {
		return pricing.Contract{}, invalid(err.Error())
	}
	if in.TaxRate != nil && (in.TaxRate.IsNegative() || in.TaxRate.GreaterThan(decimal.NewFromInt(100))) {
		return pricing.Contract{}, invalid("taxRate must be between 0 and 100")
	}
	var currency *string
	if in.Currency != nil {
		trimmed := strings.ToUpper(strings.TrimSpace(*in.Currency))
		if trimmed != "" {
			if len(trimmed) != 3 {
				return pricing.Contract{}, invalid("currency must be a 3-letter code")
			}
			currency = &trimmed
		}
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	return pricing.Contract{
		CustomerID:            customerID,
		TableID:               in.TableID,
		DiscountType:          dt,
		BaseDiscountPercent:   in.BaseDiscountPercent,
		FixedDiscount:         in.FixedDiscount,
		MinOrderValue:         in.MinOrderValue,
		MaxOrderValue:         in.MaxOrderValue,
		VolumeTiers:           volumeTiers,
		VolumePeriod:          period,
		CustomRules:           customRules,
		ServiceDiscounts:      serviceDiscounts,
		FreeShippingThreshold: in.FreeShippingThreshold,
		TaxRate:               in.TaxRate,
		Currency:              currency,
		EffectiveFrom:         in.EffectiveFrom,
		EffectiveUntil:        in.EffectiveUntil,
		IsActive:              active,
	}, nil
}

func invalid(message string) error {
	return common.NewAppError("VALIDATION", message, http.StatusBadRequest, nil)
}
