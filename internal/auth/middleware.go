package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/common"
)

// Middleware guards the public and admin route groups.
type Middleware struct {
	Keys  *KeyService
	Admin *AdminVerifier
}

// Authenticate attaches the customer identity when a valid API key is
// presented but lets unauthenticated requests through. Quote and compare
// serve rack rates to anonymous callers.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" || m.Keys == nil {
			next.ServeHTTP(w, r)
			return
		}
		customer, err := m.Keys.Verify(r.Context(), raw)
		if err != nil {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid api key", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithCustomerID(r.Context(), customer.ID.String())))
	})
}

// RequireCustomer enforces a valid API key. Commit mutates usage counters and
// volume history, so it always needs an identity.
func (m Middleware) RequireCustomer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing api key", nil)
			return
		}
		customer, err := m.Keys.Verify(r.Context(), raw)
		if err != nil {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid api key", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithCustomerID(r.Context(), customer.ID.String())))
	})
}

// RequireAdmin enforces a valid operator JWT with the admin role.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing token", nil)
			return
		}
		sub, err := m.Admin.Verify(raw)
		if err != nil {
			if errors.Is(err, ErrNotAdmin) {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "admin role required", nil)
				return
			}
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithAdminSubject(r.Context(), sub)))
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
