package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VolumeSample records one committed quote for period-volume statistics.
type VolumeSample struct {
	CustomerID  uuid.UUID
	CarrierCode string
	GrandTotal  decimal.Decimal
	Currency    string
	CommittedAt time.Time
}

// InsertVolumeSample appends one committed-quote sample.
func (s *Store) InsertVolumeSample(ctx context.Context, v VolumeSample) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO quote_volume_samples (customer_id, carrier_code, grand_total, currency, committed_at)
		VALUES ($1,$2,$3,$4,$5)
	`, v.CustomerID, v.CarrierCode, v.GrandTotal, v.Currency, v.CommittedAt)
	if err != nil {
		return fmt.Errorf("insert volume sample: %w", err)
	}
	return nil
}

// CountVolumeSince returns the customer's committed shipment count from the
// period start onward.
func (s *Store) CountVolumeSince(ctx context.Context, customerID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM quote_volume_samples
		WHERE customer_id = $1 AND committed_at >= $2
	`, customerID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count volume: %w", err)
	}
	return count, nil
}
