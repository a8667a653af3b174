// Package auth verifies the two caller identities of the rating API:
// customers presenting sk_ API keys and operators presenting admin JWTs.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/store"
)

const keyPrefix = "sk_"

var (
	// ErrMalformedKey marks keys that do not match sk_<uuid>_<secret>.
	ErrMalformedKey = errors.New("auth: malformed api key")
	// ErrInvalidKey marks well-formed keys that fail verification.
	ErrInvalidKey = errors.New("auth: invalid api key")
)

// CustomerStore loads customer accounts for key verification.
type CustomerStore interface {
	CustomerByID(ctx context.Context, id uuid.UUID) (store.Customer, error)
}

// KeyService verifies customer API keys. The key embeds the customer UUID so
// verification is a single point lookup plus an argon2id comparison against
// the stored hash; the secret itself is never persisted.
type KeyService struct {
	DB CustomerStore
}

// ParseKey splits a raw API key into its customer ID and secret halves.
// The secret may itself contain underscores; the first underscore after the
// prefix is the separator because UUIDs never contain one.
func ParseKey(raw string) (uuid.UUID, string, error) {
	rest, found := strings.CutPrefix(strings.TrimSpace(raw), keyPrefix)
	if !found {
		return uuid.Nil, "", ErrMalformedKey
	}
	idPart, secret, found := strings.Cut(rest, "_")
	if !found || secret == "" {
		return uuid.Nil, "", ErrMalformedKey
	}
	id, err := uuid.Parse(idPart)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, "", ErrMalformedKey
	}
	return id, secret, nil
}

// NewKey mints an API key for the given customer, returning the raw key to
// hand out once and the argon2id hash to store.
func NewKey(customerID uuid.UUID) (raw, hash string, err error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(buf)
	hash, err = argon2id.CreateHash(secret, argon2id.DefaultParams)
	if err != nil {
		return "", "", fmt.Errorf("hash secret: %w", err)
	}
	return keyPrefix + customerID.String() + "_" + secret, hash, nil
}

// Verify authenticates a raw API key and returns the owning customer.
// Missing and inactive customers fail the same way as a wrong secret so the
// response does not leak which accounts exist.
func (s *KeyService) Verify(ctx context.Context, raw string) (store.Customer, error) {
	id, secret, err := ParseKey(raw)
	if err != nil {
		return store.Customer{}, err
	}
	c, err := s.DB.CustomerByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Customer{}, ErrInvalidKey
		}
		return store.Customer{}, fmt.Errorf("load customer: %w", err)
	}
	if !c.IsActive {
		return store.Customer{}, ErrInvalidKey
	}
	ok, err := argon2id.ComparePasswordAndHash(secret, c.APIKeyHash)
	if err != nil || !ok {
		return store.Customer{}, ErrInvalidKey
	}
	return c, nil
}
