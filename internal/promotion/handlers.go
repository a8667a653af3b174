package promotion

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/common"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/store"
)

// Handler exposes the admin promotion endpoints.
type Handler struct {
	Svc *Service
}

// Create handles POST /api/v1/admin/promotions.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload Input
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	p, err := h.Svc.Create(r.Context(), payload)
	if err != nil {
		writeAdminError(w, err, "promotion")
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": p})
}

// Update handles PUT /api/v1/admin/promotions/{id}.
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
	p, err := h.Svc.Update(r.Context(), id, payload)
	if err != nil {
		writeAdminError(w, err, "promotion")
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// Get handles GET /api/v1/admin/promotions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeAdminError(w, err, "promotion")
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// List handles GET /api/v1/admin/promotions.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := int32(common.AtoiDefault(r.URL.Query().Get("limit"), 50))
	offset := int32(common.AtoiDefault(r.URL.Query().Get("offset"), 0))
	items, err := h.Svc.List(r.Context(), limit, offset)
	if err != nil {
		writeAdminError(w, err, "promotion")
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
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

// writeAdminError maps service and store failures onto the canonical error
// shape shared by the admin endpoints.
func writeAdminError(w http.ResponseWriter, err error, noun string) {
	var appErr *common.AppError
	switch {
	case errors.As(err, &appErr):
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
	case errors.Is(err, store.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", noun+" not found", nil)
	case store.IsUniqueViolation(err):
		common.JSONError(w, http.StatusConflict, "CONFLICT", noun+" already exists", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to process "+noun, nil)
	}
}
