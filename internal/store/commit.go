package store

import (
	"context"
	"fmt"
)

// CommitRecord captures the durable side effects of one committed quote:
// which promotions were redeemed and the volume sample that feeds future
// period counts.
type CommitRecord struct {
	Sample       VolumeSample
	PromotionIDs []int64
}

// CommitQuote applies a commit record atomically. Every applied promotion's
// total usage counter is incremented under the row-level guard; a guard
// rejection rolls the whole commit back, including the volume sample.
func (s *Store) CommitQuote(ctx context.Context, rec CommitRecord) error {
	return s.WithTx(ctx, func(tx *Store) error {
		for _, id := range rec.PromotionIDs {
			if _, err := tx.IncrementPromotionUsage(ctx, id); err != nil {
				return fmt.Errorf("promotion %d: %w", id, err)
			}
		}
		return tx.InsertVolumeSample(ctx, rec.Sample)
	})
}
