// Package audit carries the customer pricing change trail: admin mutations
// enqueue an entry as a task, the worker persists it append-only.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// TaskCustomerPricing is the asynq task type for contract audit entries.
const TaskCustomerPricing = "audit:customer_pricing"

// Actions recorded in the trail.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
)

// Entry is the wire payload of one contract change.
type Entry struct {
	ContractID int64           `json:"contract_id"`
	ChangedBy  string          `json:"changed_by"`
	Action     string          `json:"action"`
	OldValues  json.RawMessage `json:"old_values,omitempty"`
	NewValues  json.RawMessage `json:"new_values,omitempty"`
	ChangedAt  time.Time       `json:"changed_at"`
}

// NewCustomerPricingTask builds the asynq task for one entry.
func NewCustomerPricingTask(e Entry) (*asynq.Task, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("audit: encode entry: %w", err)
	}
	return asynq.NewTask(TaskCustomerPricing, payload), nil
}

// TaskEnqueuer is the slice of the asynq client the service uses.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Service enqueues audit entries for asynchronous persistence.
type Service struct {
	Tasks TaskEnqueuer
	Log   zerolog.Logger
	Now   func() time.Time
}

// Record enqueues one entry. The write itself happens on the worker, so a
// successful return only means the entry is durably queued.
func (s *Service) Record(ctx context.Context, e Entry) error {
	if s == nil || s.Tasks == nil {
		return errors.New("audit: task client not configured")
	}
	if e.ContractID <= 0 {
		return errors.New("audit: contract id is required")
	}
	if e.Action == "" {
		return errors.New("audit: action is required")
	}
	if e.ChangedAt.IsZero() {
		e.ChangedAt = s.now()
	}
	task, err := NewCustomerPricingTask(e)
	if err != nil {
		return err
	}
	info, err := s.Tasks.EnqueueContext(ctx, task, asynq.MaxRetry(5), asynq.Timeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("audit: enqueue: %w", err)
	}
	s.Log.Debug().
		Str("task_id", info.ID).
		Int64("contract_id", e.ContractID).
		Str("action", e.Action).
		Msg("audit entry enqueued")
	return nil
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
