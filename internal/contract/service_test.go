package contract_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/audit"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/common"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/contract"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/events"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/store"
)

var (
	testNow      = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	testCustomer = uuid.MustParse("6a0cfe6e-98a6-4236-9c5e-7f9d6a9f0f01")
)

type stubStore struct {
	created  []pricing.Contract
	updated  []pricing.Contract
	existing map[int64]pricing.Contract
	nextID   int64
}

func (s *stubStore) CreateContract(ctx context.Context, c pricing.Contract) (int64, error) {
	s.created = append(s.created, c)
	s.nextID++
	return s.nextID, nil
}

func (s *stubStore) UpdateContract(ctx context.Context, c pricing.Contract) error {
	s.updated = append(s.updated, c)
	return nil
}

func (s *stubStore) GetContract(ctx context.Context, id int64) (pricing.Contract, error) {
	c, ok := s.existing[id]
	if !ok {
		return pricing.Contract{}, store.ErrNotFound
	}
	return c, nil
}

func (s *stubStore) ListContracts(ctx context.Context, customerID uuid.UUID, limit, offset int32) ([]pricing.Contract, error) {
	return nil, nil
}

type stubAudit struct {
	entries []audit.Entry
}

func (s *stubAudit) Record(_ context.Context, e audit.Entry) error {
	s.entries = append(s.entries, e)
	return nil
}

type captureNotifier struct {
	topics []string
}

func (c *captureNotifier) Notify(_ context.Context, e events.Event) error {
	c.topics = append(c.topics, e.Topic)
	return nil
}

func newService(db *stubStore, trail *stubAudit, notifier *captureNotifier) *contract.Service {
	return &contract.Service{
		DB:     db,
		Audit:  trail,
		Events: &events.Bus{Notifiers: []events.Notifier{notifier}},
		Now:    func() time.Time { return testNow },
	}
}

func validInput() contract.Input {
	return contract.Input{
		CustomerID:          testCustomer.String(),
		TableID:             3,
		DiscountType:        "percentage",
		BaseDiscountPercent: decimal.RequireFromString("12.5"),
		EffectiveFrom:       testNow,
	}
}

func TestCreatePersistsAuditsAndEmits(t *testing.T) {
	t.Parallel()
	db := &stubStore{}
	trail := &stubAudit{}
	notifier := &captureNotifier{}
	svc := newService(db, trail, notifier)

	c, err := svc.Create(context.Background(), "ops@skybroker", validInput())
	require.NoError(t, err)
	require.EqualValues(t, 1, c.ID)
	require.Equal(t, testCustomer, c.CustomerID)
	require.True(t, c.IsActive, "contracts default to active")

	require.Len(t, trail.entries, 1)
	entry := trail.entries[0]
	require.EqualValues(t, 1, entry.ContractID)
	require.Equal(t, "ops@skybroker", entry.ChangedBy)
	require.Equal(t, audit.ActionCreated, entry.Action)
	require.Nil(t, entry.OldValues)
	require.NotEmpty(t, entry.NewValues)

	var recorded pricing.Contract
	require.NoError(t, json.Unmarshal(entry.NewValues, &recorded))
	require.Equal(t, testCustomer, recorded.CustomerID)

	require.Equal(t, []string{events.TopicContractCreated}, notifier.topics)
}

func TestUpdateRecordsOldAndNewValues(t *testing.T) {
	t.Parallel()
	old := pricing.Contract{
		ID:                  7,
		CustomerID:          testCustomer,
		TableID:             3,
		DiscountType:        pricing.DiscountPercentage,
		BaseDiscountPercent: decimal.RequireFromString("5"),
		EffectiveFrom:       testNow.AddDate(0, -2, 0),
		IsActive:            true,
	}
	db := &stubStore{existing: map[int64]pricing.Contract{7: old}}
	trail := &stubAudit{}
	notifier := &captureNotifier{}
	svc := newService(db, trail, notifier)

	in := validInput()
	in.BaseDiscountPercent = decimal.RequireFromString("15")
	c, err := svc.Update(context.Background(), "ops@skybroker", 7, in)
	require.NoError(t, err)
	require.EqualValues(t, 7, c.ID)
	require.Len(t, db.updated, 1)

	require.Len(t, trail.entries, 1)
	entry := trail.entries[0]
	require.Equal(t, audit.ActionUpdated, entry.Action)
	require.NotEmpty(t, entry.OldValues)

	var was pricing.Contract
	require.NoError(t, json.Unmarshal(entry.OldValues, &was))
	require.True(t, was.BaseDiscountPercent.Equal(decimal.RequireFromString("5")),
		"old values keep the pre-update discount, got %s", was.BaseDiscountPercent)

	var now pricing.Contract
	require.NoError(t, json.Unmarshal(entry.NewValues, &now))
	require.True(t, now.BaseDiscountPercent.Equal(decimal.RequireFromString("15")))

	require.Equal(t, []string{events.TopicContractUpdated}, notifier.topics)
}

func TestUpdateMissingContract(t *testing.T) {
	t.Parallel()
	svc := newService(&stubStore{}, &stubAudit{}, &captureNotifier{})

	_, err := svc.Update(context.Background(), "ops@skybroker", 99, validInput())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()
	until := testNow.AddDate(0, -1, 0)
	min := decimal.RequireFromString("100")
	max := decimal.RequireFromString("50")
	tax := decimal.RequireFromString("120")
	currency := "ZLOTY"

	cases := []struct {
		name   string
		mutate func(*contract.Input)
	}{
		{"missing customer", func(in *contract.Input) { in.CustomerID = "" }},
		{"nil customer", func(in *contract.Input) { in.CustomerID = uuid.Nil.String() }},
		{"missing table", func(in *contract.Input) { in.TableID = 0 }},
		{"unknown discount type", func(in *contract.Input) { in.DiscountType = "loyalty" }},
		{"negative base discount", func(in *contract.Input) { in.BaseDiscountPercent = decimal.RequireFromString("-1") }},
		{"base discount above 100", func(in *contract.Input) { in.BaseDiscountPercent = decimal.RequireFromString("101") }},
		{"negative fixed discount", func(in *contract.Input) { in.FixedDiscount = decimal.RequireFromString("-2") }},
		{"missing effectiveFrom", func(in *contract.Input) { in.EffectiveFrom = time.Time{} }},
		{"inverted window", func(in *contract.Input) { in.EffectiveUntil = &until }},
		{"inverted order bounds", func(in *contract.Input) { in.MinOrderValue, in.MaxOrderValue = &min, &max }},
		{"volume without tiers", func(in *contract.Input) { in.DiscountType = "volume" }},
		{"unknown volume period", func(in *contract.Input) {
			in.DiscountType = "volume"
			in.VolumeTiers = json.RawMessage(`[{"min_count":10,"discount_percent":"5"}]`)
			in.VolumePeriod = "weekly"
		}},
		{"custom without rules", func(in *contract.Input) { in.DiscountType = "custom_rules" }},
		{"malformed volume tiers", func(in *contract.Input) { in.VolumeTiers = json.RawMessage(`{"nope":true}`) }},
		{"tax rate above 100", func(in *contract.Input) { in.TaxRate = &tax }},
		{"currency not 3 letters", func(in *contract.Input) { in.Currency = &currency }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			in := validInput()
			tc.mutate(&in)

			svc := newService(&stubStore{}, &stubAudit{}, &captureNotifier{})
			_, err := svc.Create(context.Background(), "ops@skybroker", in)
			require.Error(t, err)

			var appErr *common.AppError
			require.ErrorAs(t, err, &appErr)
			require.Equal(t, "VALIDATION", appErr.Code)
		})
	}
}

func TestCreateVolumeContractDefaultsPeriod(t *testing.T) {
	t.Parallel()
	db := &stubStore{}
	svc := newService(db, &stubAudit{}, &captureNotifier{})

	in := validInput()
	in.DiscountType = "volume"
	in.VolumeTiers = json.RawMessage(`[{"min_count":50,"discount_percent":"5"},{"min_count":200,"discount_percent":"10"}]`)

	c, err := svc.Create(context.Background(), "ops@skybroker", in)
	require.NoError(t, err)
	require.Equal(t, pricing.PeriodMonthly, c.VolumePeriod)
	require.Len(t, c.VolumeTiers, 2)
	require.EqualValues(t, 50, c.VolumeTiers[0].MinCount)
}

func TestCreateParsesCustomRules(t *testing.T) {
	t.Parallel()
	db := &stubStore{}
	svc := newService(db, &stubAudit{}, &captureNotifier{})

	in := validInput()
	in.DiscountType = "custom_rules"
	in.CustomRules = json.RawMessage(`[{"field":"weight","op":"gte","value":"10","discount_percent":"7"}]`)

	c, err := svc.Create(context.Background(), "ops@skybroker", in)
	require.NoError(t, err)
	require.Len(t, c.CustomRules, 1)
	require.Equal(t, pricing.FieldWeight, c.CustomRules[0].Field)
	require.Equal(t, pricing.OpGte, c.CustomRules[0].Op)
}

func TestCreateNormalisesCurrency(t *testing.T) {
	t.Parallel()
	db := &stubStore{}
	svc := newService(db, &stubAudit{}, &captureNotifier{})

	raw := " pln "
	in := validInput()
	in.Currency = &raw

	c, err := svc.Create(context.Background(), "ops@skybroker", in)
	require.NoError(t, err)
	require.NotNil(t, c.Currency)
	require.Equal(t, "PLN", *c.Currency)
}
