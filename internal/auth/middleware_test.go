package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/common"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/store"
)

func newKeyMiddleware(t *testing.T) (Middleware, string, uuid.UUID) {
	t.Helper()
	customerID := uuid.New()
	raw, hash, err := NewKey(customerID)
	if err != nil {
		t.Fatalf("mint key: %v", err)
	}
	m := Middleware{
		Keys: &KeyService{DB: &stubCustomers{customers: map[uuid.UUID]store.Customer{
			customerID: {ID: customerID, APIKeyHash: hash, IsActive: true},
		}}},
		Admin: newVerifier(),
	}
	return m, raw, customerID
}

func TestRequireCustomerSetsIdentity(t *testing.T) {
	m, key, customerID := newKeyMiddleware(t)

	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = common.CustomerID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes/commit", nil)
	req.Header.Set("Authorization", "Bearer "+key)
	rec := httptest.NewRecorder()
	m.RequireCustomer(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got != customerID.String() {
		t.Fatalf("customer in context = %q, want %q", got, customerID)
	}
}

func TestRequireCustomerRejectsMissingKey(t *testing.T) {
	m, _, _ := newKeyMiddleware(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes/commit", nil)
	rec := httptest.NewRecorder()
	m.RequireCustomer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticateAllowsAnonymous(t *testing.T) {
	m, _, _ := newKeyMiddleware(t)

	ran := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ran = true
		if _, ok := common.CustomerID(r.Context()); ok {
			t.Fatal("anonymous request must not carry a customer identity")
		}
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", nil)
	rec := httptest.NewRecorder()
	m.Authenticate(next).ServeHTTP(rec, req)

	if !ran {
		t.Fatal("handler did not run")
	}
}

func TestAuthenticateRejectsBadKey(t *testing.T) {
	m, _, _ := newKeyMiddleware(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", nil)
	req.Header.Set("Authorization", "Bearer sk_"+uuid.New().String()+"_d3Jvbmc")
	rec := httptest.NewRecorder()
	m.Authenticate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAdminSetsSubject(t *testing.T) {
	m, _, _ := newKeyMiddleware(t)

	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = common.AdminSubject(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/promotions", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, nil))
	rec := httptest.NewRecorder()
	m.RequireAdmin(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got != "ops@skybroker" {
		t.Fatalf("admin subject = %q, want ops@skybroker", got)
	}
}

func TestRequireAdminRejectsNonAdminRole(t *testing.T) {
	m, _, _ := newKeyMiddleware(t)

	token := signedToken(t, func(b *jwt.Builder) {
		b.Claim("roles", []string{"viewer"})
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/promotions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	m.RequireAdmin(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestRequireAdminRejectsMissingToken(t *testing.T) {
	m, _, _ := newKeyMiddleware(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/promotions", nil)
	rec := httptest.NewRecorder()
	m.RequireAdmin(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
