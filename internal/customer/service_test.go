package customer

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-cpq/internal/pricing"
)

type fakeStore struct {
	rows map[uuid.UUID]Customer
}

func newFakeStore() *fakeStore { return &fakeStore{rows: map[uuid.UUID]Customer{}} }

func (f *fakeStore) Get(_ context.Context, orgID string, id uuid.UUID) (Customer, error) {
	c, ok := f.rows[id]
	if !ok || c.OrgID != orgID {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) List(_ context.Context, orgID string) ([]Customer, error) {
	var out []Customer
	for _, c := range f.rows {
		if c.OrgID == orgID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) Create(_ context.Context, c Customer) (Customer, error) {
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	f.rows[c.ID] = c
	return c, nil
}

func (f *fakeStore) Update(_ context.Context, c Customer) (Customer, error) {
	c.UpdatedAt = time.Now()
	f.rows[c.ID] = c
	return c, nil
}

func TestCreateNormalisesEmail(t *testing.T) {
	svc, err := NewService(newFakeStore())
	require.NoError(t, err)

	c, err := svc.Create(context.Background(), "acme", Input{Name: " Ana ", Email: " Ana@Example.COM ", Level: "vip"})
	require.NoError(t, err)
	require.Equal(t, "Ana", c.Name)
	require.Equal(t, "ana@example.com", c.Email)
	require.Equal(t, pricing.CustomerLevelVIP, c.Level)
}

func TestLevelDefaultsToNormalForUnknownCustomer(t *testing.T) {
	svc, err := NewService(newFakeStore())
	require.NoError(t, err)

	level := svc.Level(context.Background(), "acme", uuid.New())
	require.Equal(t, pricing.CustomerLevelNormal, level)
}

func TestUpdateUnknownCustomerFails(t *testing.T) {
	svc, err := NewService(newFakeStore())
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), "acme", uuid.New(), Input{Name: "x", Email: "x@y.z", Level: "new"})
	require.Error(t, err)
}

func TestGetIsOrgScoped(t *testing.T) {
	store := newFakeStore()
	svc, err := NewService(store)
	require.NoError(t, err)

	c, err := svc.Create(context.Background(), "acme", Input{Name: "Ana", Email: "a@b.c", Level: "new"})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "other", c.ID)
	require.Error(t, err)
}
