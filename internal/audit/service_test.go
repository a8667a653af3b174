package audit_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/audit"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
)

var testNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

type stubEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (s *stubEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}

func TestRecordEnqueuesEntry(t *testing.T) {
	enq := &stubEnqueuer{}
	svc := &audit.Service{Tasks: enq, Now: func() time.Time { return testNow }}

	err := svc.Record(context.Background(), audit.Entry{
		ContractID: 7,
		ChangedBy:  "admin@example.com",
		Action:     audit.ActionUpdated,
		OldValues:  json.RawMessage(`{"base_discount_percent":"5"}`),
		NewValues:  json.RawMessage(`{"base_discount_percent":"7"}`),
	})
	require.NoError(t, err)
	require.Len(t, enq.tasks, 1)
	require.Equal(t, audit.TaskCustomerPricing, enq.tasks[0].Type())

	var decoded audit.Entry
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &decoded))
	require.EqualValues(t, 7, decoded.ContractID)
	require.Equal(t, audit.ActionUpdated, decoded.Action)
	require.True(t, decoded.ChangedAt.Equal(testNow), "zero timestamp filled with clock")
}

func TestRecordRequiresContractID(t *testing.T) {
	svc := &audit.Service{Tasks: &stubEnqueuer{}}
	err := svc.Record(context.Background(), audit.Entry{Action: audit.ActionCreated})
	require.Error(t, err)
}

func TestRecordRequiresAction(t *testing.T) {
	svc := &audit.Service{Tasks: &stubEnqueuer{}}
	err := svc.Record(context.Background(), audit.Entry{ContractID: 1})
	require.Error(t, err)
}

type stubRecorderStore struct {
	entries []pricing.AuditEntry
}

func (s *stubRecorderStore) InsertAudit(ctx context.Context, e pricing.AuditEntry) error {
	s.entries = append(s.entries, e)
	return nil
}

func TestRecorderPersistsEntry(t *testing.T) {
	task, err := audit.NewCustomerPricingTask(audit.Entry{
		ContractID: 3,
		ChangedBy:  "admin@example.com",
		Action:     audit.ActionCreated,
		NewValues:  json.RawMessage(`{"discount_type":"percentage"}`),
		ChangedAt:  testNow,
	})
	require.NoError(t, err)

	db := &stubRecorderStore{}
	rec := &audit.Recorder{DB: db}
	require.NoError(t, rec.HandleCustomerPricingTask(context.Background(), task))
	require.Len(t, db.entries, 1)
	require.EqualValues(t, 3, db.entries[0].ContractID)
	require.Equal(t, audit.ActionCreated, db.entries[0].Action)
	require.True(t, db.entries[0].CreatedAt.Equal(testNow))
}

func TestRecorderSkipsMalformedPayload(t *testing.T) {
	rec := &audit.Recorder{DB: &stubRecorderStore{}}
	err := rec.HandleCustomerPricingTask(context.Background(), asynq.NewTask(audit.TaskCustomerPricing, []byte("{broken")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
