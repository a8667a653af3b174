package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Customer is an API consumer of the quoting service. The key hash is an
// argon2id digest of the secret half of the customer's API key.
type Customer struct {
	ID         uuid.UUID
	Name       string
	Email      string
	APIKeyHash string
	Groups     []string
	IsActive   bool
}

// CreateCustomer inserts a customer account.
func (s *Store) CreateCustomer(ctx context.Context, c Customer) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO customers (id, name, email, api_key_hash, groups, is_active)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, c.ID, c.Name, c.Email, c.APIKeyHash, c.Groups, c.IsActive)
	if err != nil {
		return fmt.Errorf("create customer: %w", err)
	}
	return nil
}

// CustomerByID fetches one customer for API-key verification.
func (s *Store) CustomerByID(ctx context.Context, id uuid.UUID) (Customer, error) {
	var c Customer
	err := s.db.QueryRow(ctx, `
		SELECT id, name, email, api_key_hash, groups, is_active
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Email, &c.APIKeyHash, &c.Groups, &c.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, fmt.Errorf("customer %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return c, fmt.Errorf("load customer: %w", err)
	}
	return c, nil
}
