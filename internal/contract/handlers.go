package contract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/common"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/store"
)

// AuditLister reads a contract's change trail.
type AuditLister interface {
	ListAudits(ctx context.Context, contractID int64, limit, offset int32) ([]pricing.AuditEntry, error)
}

// Handler exposes the admin customer-pricing endpoints.
type Handler struct {
	Svc    *Service
	Audits AuditLister
}

// Create handles POST /api/v1/admin/customer-pricing.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload Input
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	c, err := h.Svc.Create(r.Context(), adminActor(r.Context()), payload)
	if err != nil {
		writeContractError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": c})
}

// Update handles PUT /api/v1/admin/customer-pricing/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var payload Input
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	c, err := h.Svc.Update(r.Context(), adminActor(r.Context()), id, payload)
	if err != nil {
		writeContractError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": c})
}

// Get handles GET /api/v1/admin/customer-pricing/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeContractError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": c})
}

// List handles GET /api/v1/admin/customer-pricing. An optional customerId
// query parameter scopes the listing.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	customerID := uuid.Nil
	if raw := strings.TrimSpace(r.URL.Query().Get("customerId")); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid customerId", nil)
			return
		}
		customerID = parsed
	}
	limit := int32(common.AtoiDefault(r.URL.Query().Get("limit"), 50))
	offset := int32(common.AtoiDefault(r.URL.Query().Get("offset"), 0))
	items, err := h.Svc.List(r.Context(), customerID, limit, offset)
	if err != nil {
		writeContractError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// AuditTrail handles GET /api/v1/admin/customer-pricing/{id}/audit.
func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	if h.Audits == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "audit store not configured", nil)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	limit := int32(common.AtoiDefault(r.URL.Query().Get("limit"), 50))
	offset := int32(common.AtoiDefault(r.URL.Query().Get("offset"), 0))
	entries, err := h.Audits.ListAudits(r.Context(), id, limit, offset)
	if err != nil {
		writeContractError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": entries})
}

func adminActor(ctx context.Context) string {
	if sub, ok := common.AdminSubject(ctx); ok && sub != "" {
		return sub
	}
	return "admin"
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid id", nil)
		return 0, false
	}
	return id, true
}

func writeContractError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	switch {
	case errors.As(err, &appErr):
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
	case errors.Is(err, store.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "customer pricing not found", nil)
	case store.IsUniqueViolation(err):
		common.JSONError(w, http.StatusConflict, "CONFLICT", "customer pricing already exists", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to process customer pricing", nil)
	}
}
