package quote

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/common"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/rating"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/store"
)

// Handler exposes the quote operations over HTTP.
type Handler struct {
	Svc *Service
	V   *validator.Validate
}

type dimensionsPayload struct {
	Length decimal.Decimal `json:"length"`
	Width  decimal.Decimal `json:"width"`
	Height decimal.Decimal `json:"height"`
}

// QuoteRequest is the wire shape shared by the compute, commit and compare
// endpoints. Compare ignores the carrier code.
type QuoteRequest struct {
	CarrierCode   string             `json:"carrierCode" validate:"required"`
	ZoneCode      string             `json:"zoneCode" validate:"required"`
	ServiceType   string             `json:"serviceType" validate:"required"`
	Weight        decimal.Decimal    `json:"weight"`
	Dimensions    *dimensionsPayload `json:"dimensions"`
	PackageCount  int64              `json:"packageCount"`
	DeclaredValue decimal.Decimal    `json:"declaredValue"`
	Services      []string           `json:"services"`
	PromoCode     string             `json:"promoCode"`
	AsOf          *time.Time         `json:"asOf"`
}

func (p QuoteRequest) toRating() rating.Request {
	req := rating.Request{
		CarrierCode:   p.CarrierCode,
		ZoneCode:      p.ZoneCode,
		ServiceType:   p.ServiceType,
		ActualWeight:  p.Weight,
		PackageCount:  p.PackageCount,
		DeclaredValue: p.DeclaredValue,
		ServiceCodes:  p.Services,
		PromoCode:     p.PromoCode,
	}
	if p.Dimensions != nil {
		req.Dimensions = &pricing.Dimensions{
			Length: p.Dimensions.Length,
			Width:  p.Dimensions.Width,
			Height: p.Dimensions.Height,
		}
	}
	if p.AsOf != nil {
		req.AsOf = *p.AsOf
	}
	return req
}

// Compute handles POST /api/v1/quotes.
func (h *Handler) Compute(w http.ResponseWriter, r *http.Request) {
	customerID, payload, ok := h.decode(w, r, false)
	if !ok {
		return
	}
	q, err := h.Svc.Quote(r.Context(), customerID, payload.toRating())
	if err != nil {
		writeQuoteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": q})
}

// Commit handles POST /api/v1/quotes/commit.
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	customerID, payload, ok := h.decode(w, r, false)
	if !ok {
		return
	}
	q, err := h.Svc.Commit(r.Context(), customerID, payload.toRating())
	if err != nil {
		writeQuoteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": q})
}

// Compare handles POST /api/v1/quotes/compare.
func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	customerID, payload, ok := h.decode(w, r, true)
	if !ok {
		return
	}
	results, err := h.Svc.Compare(r.Context(), customerID, payload.toRating())
	if err != nil {
		writeQuoteError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(results))
	for _, cq := range results {
		item := map[string]any{
			"carrierCode": cq.CarrierCode,
			"carrierName": cq.CarrierName,
		}
		if cq.Err != nil {
			item["error"] = map[string]any{
				"code":    errorCode(cq.Err),
				"message": cq.Err.Error(),
			}
		} else {
			item["quote"] = cq.Quote
		}
		items = append(items, item)
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// decode parses, validates and scopes the request payload. compare relaxes
// the carrier code requirement.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, compare bool) (uuid.UUID, QuoteRequest, bool) {
	var payload QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return uuid.Nil, payload, false
	}
	if h.V != nil {
		var err error
		if compare {
			err = h.V.StructExcept(payload, "CarrierCode")
		} else {
			err = h.V.Struct(payload)
		}
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid payload", validationDetails(err))
			return uuid.Nil, payload, false
		}
	}
	if !payload.Weight.IsPositive() {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "weight must be positive", nil)
		return uuid.Nil, payload, false
	}
	if payload.PackageCount < 0 {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "packageCount must not be negative", nil)
		return uuid.Nil, payload, false
	}
	customerID := uuid.Nil
	if raw, ok := common.CustomerID(r.Context()); ok && raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid customer identity", nil)
			return uuid.Nil, payload, false
		}
		customerID = id
	}
	return customerID, payload, true
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}

// errorCode maps engine and store failures to stable API error codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, rating.ErrNoActiveRateTable):
		return "NO_ACTIVE_RATE_TABLE"
	case errors.Is(err, rating.ErrAmbiguousRateTable):
		return "AMBIGUOUS_RATE_TABLE"
	case errors.Is(err, rating.ErrMissingDimensions):
		return "MISSING_DIMENSIONS"
	case errors.Is(err, rating.ErrNoMatchingTier):
		return "NO_MATCHING_TIER"
	case errors.Is(err, rating.ErrServiceNotAvailable):
		return "SERVICE_NOT_AVAILABLE"
	case errors.Is(err, rating.ErrServiceTierNotFound):
		return "SERVICE_TIER_NOT_FOUND"
	case errors.Is(err, rating.ErrUnknownService):
		return "UNKNOWN_SERVICE"
	case errors.Is(err, rating.ErrExceedsCarrierLimits):
		return "EXCEEDS_CARRIER_LIMITS"
	case errors.Is(err, store.ErrUsageExhausted):
		return "PROMO_USAGE_EXHAUSTED"
	default:
		return "INTERNAL"
	}
}

func writeQuoteError(w http.ResponseWriter, err error) {
	code := errorCode(err)
	switch code {
	case "INTERNAL":
		common.JSONError(w, http.StatusInternalServerError, code, "quote computation failed", nil)
	case "AMBIGUOUS_RATE_TABLE", "PROMO_USAGE_EXHAUSTED":
		common.JSONError(w, http.StatusConflict, code, err.Error(), nil)
	default:
		common.JSONError(w, http.StatusUnprocessableEntity, code, err.Error(), nil)
	}
}
