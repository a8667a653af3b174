package common

import "context"

type ctxKey string

const (
	customerIDKey ctxKey = "auth/customer-id"
	adminSubKey   ctxKey = "auth/admin-subject"
)

// WithCustomerID stores the authenticated customer identifier on the provided context.
func WithCustomerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, customerIDKey, id)
}

// CustomerID extracts the authenticated customer identifier from the context if present.
func CustomerID(ctx context.Context) (string, bool) {
	v := ctx.Value(customerIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// WithAdminSubject stores the verified admin token subject on the provided context.
func WithAdminSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, adminSubKey, sub)
}

// AdminSubject extracts the verified admin token subject from the context if present.
func AdminSubject(ctx context.Context) (string, bool) {
	v := ctx.Value(adminSubKey)
	if v == nil {
		return "", false
	}
	sub, ok := v.(string)
	return sub, ok
}
