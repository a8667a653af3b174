package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
)

// RecorderStore persists audit entries.
type RecorderStore interface {
	InsertAudit(ctx context.Context, e pricing.AuditEntry) error
}

// Recorder is the worker-side consumer of customer pricing audit tasks.
type Recorder struct {
	DB  RecorderStore
	Log zerolog.Logger
}

// HandleCustomerPricingTask decodes and persists one audit entry. Malformed
// payloads are dropped rather than retried.
func (r *Recorder) HandleCustomerPricingTask(ctx context.Context, t *asynq.Task) error {
	var e Entry
	if err := json.Unmarshal(t.Payload(), &e); err != nil {
		return fmt.Errorf("audit: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := r.DB.InsertAudit(ctx, pricing.AuditEntry{
		ContractID: e.ContractID,
		ChangedBy:  e.ChangedBy,
		Action:     e.Action,
		OldValues:  e.OldValues,
		NewValues:  e.NewValues,
		CreatedAt:  e.ChangedAt,
	}); err != nil {
		return fmt.Errorf("audit: persist entry: %w", err)
	}
	r.Log.Debug().Int64("contract_id", e.ContractID).Str("action", e.Action).Msg("audit entry recorded")
	return nil
}
