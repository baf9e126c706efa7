package quote

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-cpq/internal/catalog"
	"github.com/noah-isme/backend-cpq/internal/common"
	"github.com/noah-isme/backend-cpq/internal/events"
	"github.com/noah-isme/backend-cpq/internal/pricing"
)

type fakeStore struct {
	quotes map[uuid.UUID]Quote
	lines  map[uuid.UUID]map[uuid.UUID]Line
	shares map[string]Share
	order  map[uuid.UUID][]uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		quotes: map[uuid.UUID]Quote{},
		lines:  map[uuid.UUID]map[uuid.UUID]Line{},
		shares: map[string]Share{},
		order:  map[uuid.UUID][]uuid.UUID{},
	}
}

func (f *fakeStore) CreateQuote(_ context.Context, q Quote) (Quote, error) {
	q.Version = 1
	q.CreatedAt = time.Now()
	q.UpdatedAt = q.CreatedAt
	f.quotes[q.ID] = q
	return q, nil
}

func (f *fakeStore) GetQuote(_ context.Context, orgID string, id uuid.UUID) (Quote, error) {
	q, ok := f.quotes[id]
	if !ok || q.OrgID != orgID {
		return Quote{}, ErrNotFound
	}
	return q, nil
}

func (f *fakeStore) ListQuotes(_ context.Context, orgID string, _, _ int) ([]Quote, error) {
	var out []Quote
	for _, q := range f.quotes {
		if q.OrgID == orgID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateQuote(_ context.Context, q Quote) (Quote, error) {
	stored, ok := f.quotes[q.ID]
	if !ok || stored.OrgID != q.OrgID {
		return Quote{}, ErrNotFound
	}
	if stored.Version != q.Version {
		return Quote{}, ErrVersionConflict
	}
	q.Version++
	q.UpdatedAt = time.Now()
	f.quotes[q.ID] = q
	return q, nil
}

func (f *fakeStore) ListLines(_ context.Context, quoteID uuid.UUID) ([]Line, error) {
	var out []Line
	for _, id := range f.order[quoteID] {
		if l, ok := f.lines[quoteID][id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) GetLine(_ context.Context, quoteID, lineID uuid.UUID) (Line, error) {
	l, ok := f.lines[quoteID][lineID]
	if !ok {
		return Line{}, ErrNotFound
	}
	return l, nil
}

func (f *fakeStore) UpsertLine(_ context.Context, l Line) (Line, error) {
	if f.lines[l.QuoteID] == nil {
		f.lines[l.QuoteID] = map[uuid.UUID]Line{}
	}
	if _, exists := f.lines[l.QuoteID][l.ID]; !exists {
		f.order[l.QuoteID] = append(f.order[l.QuoteID], l.ID)
	}
	f.lines[l.QuoteID][l.ID] = l
	return l, nil
}

func (f *fakeStore) DeleteLine(_ context.Context, quoteID, lineID uuid.UUID) error {
	if _, ok := f.lines[quoteID][lineID]; !ok {
		return ErrNotFound
	}
	delete(f.lines[quoteID], lineID)
	return nil
}

func (f *fakeStore) CreateShare(_ context.Context, sh Share) (Share, error) {
	sh.CreatedAt = time.Now()
	f.shares[sh.Token] = sh
	return sh, nil
}

func (f *fakeStore) GetShare(_ context.Context, token string) (Share, error) {
	sh, ok := f.shares[token]
	if !ok {
		return Share{}, ErrNotFound
	}
	return sh, nil
}

func (f *fakeStore) MarkShareResponded(_ context.Context, token, response string) error {
	sh, ok := f.shares[token]
	if !ok || sh.Response != nil {
		return ErrNotFound
	}
	now := time.Now()
	sh.Response = &response
	sh.RespondedAt = &now
	f.shares[token] = sh
	return nil
}

type fakeProducts struct {
	rows map[uuid.UUID]catalog.Product
}

func (f *fakeProducts) GetProduct(_ context.Context, _ string, id uuid.UUID) (catalog.Product, error) {
	p, ok := f.rows[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

type fakeLevels struct{ level pricing.CustomerLevel }

func (f *fakeLevels) Level(context.Context, string, uuid.UUID) pricing.CustomerLevel {
	if f.level == "" {
		return pricing.CustomerLevelNormal
	}
	return f.level
}

func (f *fakeLevels) Email(context.Context, string, uuid.UUID) string {
	return "customer@example.com"
}

type fakeRules struct{ rules []pricing.Rule }

func (f *fakeRules) ActiveRules(context.Context, string) ([]pricing.Rule, error) {
	return f.rules, nil
}

type memoryEventStore struct {
	events []events.Event
}

func (m *memoryEventStore) Insert(_ context.Context, topic string, quoteID uuid.UUID, payload []byte) (events.Event, error) {
	ev := events.Event{ID: uuid.New(), Topic: topic, QuoteID: quoteID, Payload: payload, OccurredAt: time.Now()}
	m.events = append(m.events, ev)
	return ev, nil
}

func (m *memoryEventStore) ListByQuote(_ context.Context, quoteID uuid.UUID) ([]events.Event, error) {
	var out []events.Event
	for _, ev := range m.events {
		if ev.QuoteID == quoteID {
			out = append(out, ev)
		}
	}
	return out, nil
}

type fixture struct {
	svc      *Service
	store    *fakeStore
	products *fakeProducts
	rules    *fakeRules
	events   *memoryEventStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newFakeStore()
	products := &fakeProducts{rows: map[uuid.UUID]catalog.Product{}}
	ruleSet := &fakeRules{}
	eventStore := &memoryEventStore{}
	svc, err := NewService(ServiceConfig{
		Store:     store,
		Products:  products,
		Customers: &fakeLevels{},
		Rules:     ruleSet,
		Bus:       &events.Bus{Store: eventStore},
		Events:    eventStore,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	return &fixture{svc: svc, store: store, products: products, rules: ruleSet, events: eventStore}
}

func (f *fixture) addProduct(t *testing.T, price string) catalog.Product {
	t.Helper()
	v, err := decimal.NewFromString(price)
	require.NoError(t, err)
	p := catalog.Product{ID: uuid.New(), OrgID: "acme", Name: "Widget", SKU: "W-1", BasePrice: v, Active: true}
	f.products.rows[p.ID] = p
	return p
}

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestAddLinePricesAndRecomputesTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.addProduct(t, "100.00")

	f.rules.rules = []pricing.Rule{{
		ID:            uuid.New(),
		Name:          "volume",
		OrgID:         "acme",
		Type:          pricing.RuleTypeTier,
		Conditions:    pricing.Conditions{Tier: &pricing.TierConditions{MinQty: dec("10")}},
		DiscountType:  pricing.DiscountPercentage,
		DiscountValue: dec("10"),
		Active:        true,
	}}

	q, err := f.svc.Create(ctx, "acme", CreateInput{CustomerID: uuid.New()})
	require.NoError(t, err)

	detail, err := f.svc.AddLine(ctx, "acme", q.ID, LineInput{ProductID: product.ID, Quantity: "20"})
	require.NoError(t, err)
	require.Len(t, detail.Lines, 1)

	line := detail.Lines[0]
	require.Equal(t, "90.00", line.UnitPrice.StringFixed(2))
	require.Equal(t, "1800.00", line.LineTotal.StringFixed(2))
	require.Len(t, line.AuditTrail, 1)

	require.Equal(t, "1800.00", detail.Subtotal.StringFixed(2))
	require.Equal(t, "90.00", detail.TaxAmount.StringFixed(2))
	require.Equal(t, "1890.00", detail.TotalAmount.StringFixed(2))
	require.EqualValues(t, 2, detail.Version, "recompute must bump the version")
}

func TestUpdateLineRepricesFromScratch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.addProduct(t, "100.00")

	f.rules.rules = []pricing.Rule{{
		ID:            uuid.New(),
		Name:          "volume",
		OrgID:         "acme",
		Type:          pricing.RuleTypeTier,
		Conditions:    pricing.Conditions{Tier: &pricing.TierConditions{MinQty: dec("10")}},
		DiscountType:  pricing.DiscountPercentage,
		DiscountValue: dec("10"),
		Active:        true,
	}}

	q, err := f.svc.Create(ctx, "acme", CreateInput{CustomerID: uuid.New()})
	require.NoError(t, err)
	detail, err := f.svc.AddLine(ctx, "acme", q.ID, LineInput{ProductID: product.ID, Quantity: "20"})
	require.NoError(t, err)

	// Dropping below the tier threshold must shed the discount entirely.
	detail, err = f.svc.UpdateLine(ctx, "acme", q.ID, detail.Lines[0].ID, LineInput{ProductID: product.ID, Quantity: "5"})
	require.NoError(t, err)
	line := detail.Lines[0]
	require.Equal(t, "100.00", line.UnitPrice.StringFixed(2))
	require.Empty(t, line.AuditTrail)
	require.Equal(t, "500.00", detail.Subtotal.StringFixed(2))
}

func TestRemoveLineRecomputes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p1 := f.addProduct(t, "100.00")
	p2 := f.addProduct(t, "50.00")

	q, err := f.svc.Create(ctx, "acme", CreateInput{CustomerID: uuid.New()})
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, "acme", q.ID, LineInput{ProductID: p1.ID, Quantity: "1"})
	require.NoError(t, err)
	detail, err := f.svc.AddLine(ctx, "acme", q.ID, LineInput{ProductID: p2.ID, Quantity: "2"})
	require.NoError(t, err)
	require.Equal(t, "200.00", detail.Subtotal.StringFixed(2))

	detail, err = f.svc.RemoveLine(ctx, "acme", q.ID, detail.Lines[0].ID)
	require.NoError(t, err)
	require.Len(t, detail.Lines, 1)
	require.Equal(t, "100.00", detail.Subtotal.StringFixed(2))
}

func TestHeaderDiscountAndTaxFlowIntoTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.addProduct(t, "100.00")

	q, err := f.svc.Create(ctx, "acme", CreateInput{CustomerID: uuid.New()})
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, "acme", q.ID, LineInput{ProductID: product.ID, Quantity: "10"})
	require.NoError(t, err)

	discount := "100.00"
	taxRate := "0.10"
	detail, err := f.svc.UpdateHeader(ctx, "acme", q.ID, HeaderInput{DiscountAmount: &discount, TaxRate: &taxRate})
	require.NoError(t, err)
	require.Equal(t, "1000.00", detail.Subtotal.StringFixed(2))
	require.Equal(t, "90.00", detail.TaxAmount.StringFixed(2))
	require.Equal(t, "990.00", detail.TotalAmount.StringFixed(2))
}

func TestLinesFrozenAfterSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.addProduct(t, "100.00")

	q, err := f.svc.Create(ctx, "acme", CreateInput{CustomerID: uuid.New()})
	require.NoError(t, err)
	_, err = f.svc.AddLine(ctx, "acme", q.ID, LineInput{ProductID: product.ID, Quantity: "1"})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, "acme", q.ID)
	require.NoError(t, err)

	_, err = f.svc.AddLine(ctx, "acme", q.ID, LineInput{ProductID: product.ID, Quantity: "2"})
	require.Error(t, err)
}

func TestVersionConflictSurfacesAsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.Create(ctx, "acme", CreateInput{CustomerID: uuid.New()})
	require.NoError(t, err)

	stale := q
	stale.Version = q.Version - 1
	_, err = f.store.UpdateQuote(ctx, stale)
	require.ErrorIs(t, err, ErrVersionConflict)

	mapped := f.svc.mapErr(err, "QUOTE_NOT_FOUND", "quote not found")
	var appErr *common.AppError
	require.ErrorAs(t, mapped, &appErr)
	require.Equal(t, "VERSION_CONFLICT", appErr.Code)
	require.Equal(t, http.StatusConflict, appErr.HTTPStatus)
}

func TestCreateValidatesHeaderNumbers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "acme", CreateInput{CustomerID: uuid.New(), DiscountAmount: "-1"})
	require.Error(t, err)
	_, err = f.svc.Create(ctx, "acme", CreateInput{CustomerID: uuid.New(), TaxRate: "bogus"})
	require.Error(t, err)
}
