package rules

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-cpq/internal/pricing"
)

type fakeStore struct {
	rows  map[uuid.UUID]StoredRule
	order []uuid.UUID
}

func newFakeStore() *fakeStore { return &fakeStore{rows: map[uuid.UUID]StoredRule{}} }

func (f *fakeStore) Get(_ context.Context, orgID string, id uuid.UUID) (StoredRule, error) {
	r, ok := f.rows[id]
	if !ok || r.OrgID != orgID {
		return StoredRule{}, ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) List(_ context.Context, orgID string) ([]StoredRule, error) {
	var out []StoredRule
	for _, id := range f.order {
		if r := f.rows[id]; r.OrgID == orgID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) ListActive(ctx context.Context, orgID string) ([]StoredRule, error) {
	all, err := f.List(ctx, orgID)
	if err != nil {
		return nil, err
	}
	var out []StoredRule
	for _, r := range all {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) Create(_ context.Context, r StoredRule) (StoredRule, error) {
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	f.rows[r.ID] = r
	f.order = append(f.order, r.ID)
	return r, nil
}

func (f *fakeStore) Update(_ context.Context, r StoredRule) (StoredRule, error) {
	r.UpdatedAt = time.Now()
	f.rows[r.ID] = r
	return r, nil
}

func (f *fakeStore) Delete(_ context.Context, orgID string, id uuid.UUID) error {
	r, ok := f.rows[id]
	if !ok || r.OrgID != orgID {
		return ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	svc, err := NewService(store, 0)
	require.NoError(t, err)
	return svc, store
}

func TestCreateDecodesTierConditions(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.Create(context.Background(), "acme", Input{
		Name:          "volume",
		Type:          "tier",
		Conditions:    json.RawMessage(`{"min_qty":10}`),
		DiscountType:  "percentage",
		DiscountValue: "10",
	})
	require.NoError(t, err)
	require.NotNil(t, created.Conditions.Tier)
	require.True(t, created.Active, "rules default to active")
}

func TestCreateRejectsBadConditions(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), "acme", Input{
		Name:          "broken",
		Type:          "tier",
		Conditions:    json.RawMessage(`{"min_qty":`),
		DiscountType:  "percentage",
		DiscountValue: "10",
	})
	require.Error(t, err)
}

func TestCreateRejectsBadDiscountValue(t *testing.T) {
	svc, _ := newTestService(t)

	for _, value := range []string{"abc", "-5", "150"} {
		_, err := svc.Create(context.Background(), "acme", Input{
			Name:          "bad " + value,
			Type:          "promotion",
			DiscountType:  "percentage",
			DiscountValue: value,
		})
		require.Error(t, err, "value %q should be rejected", value)
	}

	// 150 is a legal fixed amount, just not a legal percentage.
	_, err := svc.Create(context.Background(), "acme", Input{
		Name:          "big fixed",
		Type:          "promotion",
		DiscountType:  "fixed",
		DiscountValue: "150",
	})
	require.NoError(t, err)
}

func TestPreviewAppliesActiveRules(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	productID := uuid.New()

	_, err := svc.Create(ctx, "acme", Input{
		Name:          "vip deal",
		Type:          "customer_level",
		Conditions:    json.RawMessage(`{"level":"vip"}`),
		DiscountType:  "percentage",
		DiscountValue: "10",
	})
	require.NoError(t, err)

	inactive := false
	_, err = svc.Create(ctx, "acme", Input{
		Name:          "disabled promo",
		Type:          "promotion",
		DiscountType:  "percentage",
		DiscountValue: "50",
		Active:        &inactive,
	})
	require.NoError(t, err)

	result, err := svc.Preview(ctx, "acme", PreviewInput{
		ProductID:     productID,
		Quantity:      "2",
		BasePrice:     "100",
		CustomerLevel: "vip",
	})
	require.NoError(t, err)
	require.Len(t, result.AppliedRules, 1)
	require.Equal(t, pricing.RuleTypeCustomerLevel, result.AppliedRules[0].RuleType)
	require.Equal(t, "90.00", result.UnitPrice.StringFixed(2))
	require.Equal(t, "180.00", result.LineTotal.StringFixed(2))
}

func TestPreviewRejectsBadContext(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Preview(context.Background(), "acme", PreviewInput{
		ProductID:     uuid.New(),
		Quantity:      "0",
		BasePrice:     "100",
		CustomerLevel: "normal",
	})
	require.Error(t, err)
}

func TestRulesAreOrgScoped(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "acme", Input{
		Name:          "promo",
		Type:          "promotion",
		DiscountType:  "fixed",
		DiscountValue: "5",
	})
	require.NoError(t, err)

	_, err = svc.Get(ctx, "other", created.ID)
	require.Error(t, err)
	require.Error(t, svc.Delete(ctx, "other", created.ID))
	require.NoError(t, svc.Delete(ctx, "acme", created.ID))
}
