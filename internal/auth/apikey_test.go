package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/store"
)

type stubCustomers struct {
	customers map[uuid.UUID]store.Customer
	err       error
}

func (s *stubCustomers) CustomerByID(_ context.Context, id uuid.UUID) (store.Customer, error) {
	if s.err != nil {
		return store.Customer{}, s.err
	}
	c, ok := s.customers[id]
	if !ok {
		return store.Customer{}, store.ErrNotFound
	}
	return c, nil
}

func TestNewKeyRoundTrip(t *testing.T) {
	customerID := uuid.New()
	raw, hash, err := NewKey(customerID)
	if err != nil {
		t.Fatalf("mint key: %v", err)
	}

	id, secret, err := ParseKey(raw)
	if err != nil {
		t.Fatalf("parse minted key: %v", err)
	}
	if id != customerID {
		t.Fatalf("parsed customer %s, want %s", id, customerID)
	}
	if secret == "" {
		t.Fatal("expected non-empty secret")
	}

	svc := &KeyService{DB: &stubCustomers{customers: map[uuid.UUID]store.Customer{
		customerID: {ID: customerID, APIKeyHash: hash, IsActive: true},
	}}}
	c, err := svc.Verify(context.Background(), raw)
	if err != nil {
		t.Fatalf("verify minted key: %v", err)
	}
	if c.ID != customerID {
		t.Fatalf("verified customer %s, want %s", c.ID, customerID)
	}
}

func TestParseKeyRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"sk_",
		"not-a-key",
		"sk_not-a-uuid_secret",
		"sk_" + uuid.New().String(),
		"sk_" + uuid.New().String() + "_",
		"sk_" + uuid.Nil.String() + "_secret",
		"pk_" + uuid.New().String() + "_secret",
	}
	for _, raw := range cases {
		if _, _, err := ParseKey(raw); !errors.Is(err, ErrMalformedKey) {
			t.Fatalf("ParseKey(%q) = %v, want ErrMalformedKey", raw, err)
		}
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	customerID := uuid.New()
	_, hash, err := NewKey(customerID)
	if err != nil {
		t.Fatalf("mint key: %v", err)
	}

	svc := &KeyService{DB: &stubCustomers{customers: map[uuid.UUID]store.Customer{
		customerID: {ID: customerID, APIKeyHash: hash, IsActive: true},
	}}}
	wrong := "sk_" + customerID.String() + "_bm90LXRoZS1zZWNyZXQ"
	if _, err := svc.Verify(context.Background(), wrong); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("Verify with wrong secret = %v, want ErrInvalidKey", err)
	}
}

func TestVerifyRejectsUnknownCustomer(t *testing.T) {
	svc := &KeyService{DB: &stubCustomers{}}
	raw := "sk_" + uuid.New().String() + "_c2VjcmV0"
	if _, err := svc.Verify(context.Background(), raw); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("Verify unknown customer = %v, want ErrInvalidKey", err)
	}
}

func TestVerifyRejectsInactiveCustomer(t *testing.T) {
	customerID := uuid.New()
	raw, hash, err := NewKey(customerID)
	if err != nil {
		t.Fatalf("mint key: %v", err)
	}

	svc := &KeyService{DB: &stubCustomers{customers: map[uuid.UUID]store.Customer{
		customerID: {ID: customerID, APIKeyHash: hash, IsActive: false},
	}}}
	if _, err := svc.Verify(context.Background(), raw); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("Verify inactive customer = %v, want ErrInvalidKey", err)
	}
}

func TestVerifySurfacesStoreFailure(t *testing.T) {
	boom := errors.New("connection refused")
	svc := &KeyService{DB: &stubCustomers{err: boom}}
	raw := "sk_" + uuid.New().String() + "_c2VjcmV0"
	_, err := svc.Verify(context.Background(), raw)
	if !errors.Is(err, boom) {
		t.Fatalf("Verify with store failure = %v, want wrapped %v", err, boom)
	}
	if errors.Is(err, ErrInvalidKey) {
		t.Fatal("infrastructure failure must not read as an invalid key")
	}
}
