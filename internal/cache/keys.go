// Package cache centralises the redis key layout shared by the quote
// service, the promotion admin surface and the counter sweep worker.
package cache

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const snapshotPrefix = "snap:"

// SnapshotPattern matches every cached rating snapshot key.
const SnapshotPattern = snapshotPrefix + "*"

// PromoDayPattern matches every per-day promotion usage counter key.
const PromoDayPattern = "promo:usage:day:*"

// SnapshotKey returns the rating snapshot cache key for one customer scope.
// The nil UUID keys the anonymous (no contract) snapshot.
func SnapshotKey(customerID uuid.UUID) string {
	return snapshotPrefix + customerID.String()
}

// PromoCustomerKey returns the lifetime usage counter key for one promotion
// and customer pair.
func PromoCustomerKey(promoID int64, customerID uuid.UUID) string {
	return fmt.Sprintf("promo:usage:cust:%d:%s", promoID, customerID)
}

// PromoDayKey returns the usage counter key for one promotion on one UTC day.
func PromoDayKey(promoID int64, day time.Time) string {
	return fmt.Sprintf("promo:usage:day:%d:%s", promoID, day.UTC().Format("2006-01-02"))
}

// ParsePromoDayKey splits a per-day counter key back into its promotion ID
// and date, so the sweep worker can decide whether the key is stale. The
// last return is false when the key does not follow the per-day layout.
func ParsePromoDayKey(key string) (int64, time.Time, bool) {
	var promoID int64
	var datePart string
	if _, err := fmt.Sscanf(key, "promo:usage:day:%d:%s", &promoID, &datePart); err != nil {
		return 0, time.Time{}, false
	}
	day, err := time.Parse("2006-01-02", datePart)
	if err != nil {
		return 0, time.Time{}, false
	}
	return promoID, day, true
}
