package quote

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-cpq/internal/catalog"
	"github.com/noah-isme/backend-cpq/internal/common"
	"github.com/noah-isme/backend-cpq/internal/events"
	"github.com/noah-isme/backend-cpq/internal/obs"
	"github.com/noah-isme/backend-cpq/internal/pricing"
)

type storeProvider interface {
	CreateQuote(ctx context.Context, q Quote) (Quote, error)
	GetQuote(ctx context.Context, orgID string, id uuid.UUID) (Quote, error)
	ListQuotes(ctx context.Context, orgID string, limit, offset int) ([]Quote, error)
	UpdateQuote(ctx context.Context, q Quote) (Quote, error)
	ListLines(ctx context.Context, quoteID uuid.UUID) ([]Line, error)
	GetLine(ctx context.Context, quoteID, lineID uuid.UUID) (Line, error)
	UpsertLine(ctx context.Context, l Line) (Line, error)
	DeleteLine(ctx context.Context, quoteID, lineID uuid.UUID) error
	CreateShare(ctx context.Context, sh Share) (Share, error)
	GetShare(ctx context.Context, token string) (Share, error)
	MarkShareResponded(ctx context.Context, token, response string) error
}

type productProvider interface {
	GetProduct(ctx context.Context, orgID string, id uuid.UUID) (catalog.Product, error)
}

type customerProvider interface {
	Level(ctx context.Context, orgID string, id uuid.UUID) pricing.CustomerLevel
	Email(ctx context.Context, orgID string, id uuid.UUID) string
}

type ruleProvider interface {
	ActiveRules(ctx context.Context, orgID string) ([]pricing.Rule, error)
}

type eventLister interface {
	ListByQuote(ctx context.Context, quoteID uuid.UUID) ([]events.Event, error)
}

// Service manages quote lifecycle: pricing lines through the rule engine,
// recomputing totals, and driving the approval status machine.
type Service struct {
	store     storeProvider
	products  productProvider
	customers customerProvider
	rules     ruleProvider
	bus       *events.Bus
	events    eventLister
	logger    zerolog.Logger
	taxRate   decimal.Decimal
	shareTTL  time.Duration
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store          storeProvider
	Products       productProvider
	Customers      customerProvider
	Rules          ruleProvider
	Bus            *events.Bus
	Events         eventLister
	Logger         zerolog.Logger
	DefaultTaxRate decimal.Decimal
	ShareTTL       time.Duration
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("quote: store is required")
	}
	if cfg.Products == nil || cfg.Customers == nil || cfg.Rules == nil {
		return nil, errors.New("quote: catalog, customer, and rule providers are required")
	}
	taxRate := cfg.DefaultTaxRate
	if taxRate.IsZero() {
		taxRate = pricing.DefaultTaxRate
	}
	ttl := cfg.ShareTTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Service{
		store:     cfg.Store,
		products:  cfg.Products,
		customers: cfg.Customers,
		rules:     cfg.Rules,
		bus:       cfg.Bus,
		events:    cfg.Events,
		logger:    cfg.Logger,
		taxRate:   taxRate,
		shareTTL:  ttl,
	}, nil
}

// Detail is a quote header together with its lines.
type Detail struct {
	Quote
	Lines []Line `json:"lines"`
}

// CreateInput carries the fields for opening a draft quote.
type CreateInput struct {
	CustomerID     uuid.UUID `json:"customerId" validate:"required"`
	DiscountAmount string    `json:"discountAmount"`
	TaxRate        string    `json:"taxRate"`
}

// Create opens a new draft quote for a customer.
func (s *Service) Create(ctx context.Context, orgID string, in CreateInput) (Quote, error) {
	discount := decimal.Zero
	if v := strings.TrimSpace(in.DiscountAmount); v != "" {
		var err error
		if discount, err = decimal.NewFromString(v); err != nil || discount.IsNegative() {
			return Quote{}, common.ValidationError("INVALID_DISCOUNT", "discountAmount must be a non-negative decimal")
		}
	}
	taxRate := s.taxRate
	if v := strings.TrimSpace(in.TaxRate); v != "" {
		var err error
		if taxRate, err = decimal.NewFromString(v); err != nil || taxRate.IsNegative() {
			return Quote{}, common.ValidationError("INVALID_TAX_RATE", "taxRate must be a non-negative decimal")
		}
	}
	return s.store.CreateQuote(ctx, Quote{
		ID:             uuid.New(),
		OrgID:          orgID,
		CustomerID:     in.CustomerID,
		Status:         StatusDraft,
		DiscountAmount: discount,
		TaxRate:        taxRate,
		Subtotal:       decimal.Zero,
		TaxAmount:      decimal.Zero,
		TotalAmount:    decimal.Zero,
	})
}

// Get returns a quote with its lines.
func (s *Service) Get(ctx context.Context, orgID string, id uuid.UUID) (Detail, error) {
	q, err := s.store.GetQuote(ctx, orgID, id)
	if err != nil {
		return Detail{}, s.mapErr(err, "QUOTE_NOT_FOUND", "quote not found")
	}
	lines, err := s.store.ListLines(ctx, q.ID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Quote: q, Lines: lines}, nil
}

// List returns quote headers for an org.
func (s *Service) List(ctx context.Context, orgID string, limit, offset int) ([]Quote, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListQuotes(ctx, orgID, limit, offset)
}

// LineInput carries the fields for adding or updating a line.
type LineInput struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  string    `json:"quantity" validate:"required"`
}

// AddLine prices a new line and recomputes the quote totals.
func (s *Service) AddLine(ctx context.Context, orgID string, quoteID uuid.UUID, in LineInput) (Detail, error) {
	return s.mutateLine(ctx, orgID, quoteID, uuid.New(), in)
}

// UpdateLine reprices an existing line and recomputes the quote totals.
func (s *Service) UpdateLine(ctx context.Context, orgID string, quoteID, lineID uuid.UUID, in LineInput) (Detail, error) {
	if _, err := s.store.GetLine(ctx, quoteID, lineID); err != nil {
		return Detail{}, s.mapErr(err, "LINE_NOT_FOUND", "quote line not found")
	}
	return s.mutateLine(ctx, orgID, quoteID, lineID, in)
}

func (s *Service) mutateLine(ctx context.Context, orgID string, quoteID, lineID uuid.UUID, in LineInput) (Detail, error) {
	q, err := s.store.GetQuote(ctx, orgID, quoteID)
	if err != nil {
		return Detail{}, s.mapErr(err, "QUOTE_NOT_FOUND", "quote not found")
	}
	if !q.Status.Editable() {
		return Detail{}, common.Conflict("QUOTE_FROZEN", "lines can only change while the quote is a draft")
	}
	qty, err := decimal.NewFromString(strings.TrimSpace(in.Quantity))
	if err != nil {
		return Detail{}, common.ValidationError("INVALID_QUANTITY", "quantity must be a decimal number")
	}
	product, err := s.products.GetProduct(ctx, orgID, in.ProductID)
	if err != nil {
		return Detail{}, err
	}
	line, err := s.priceLine(ctx, q, product, lineID, qty)
	if err != nil {
		return Detail{}, err
	}
	if _, err := s.store.UpsertLine(ctx, line); err != nil {
		return Detail{}, err
	}
	return s.recompute(ctx, q)
}

// RemoveLine deletes a line and recomputes the quote totals.
func (s *Service) RemoveLine(ctx context.Context, orgID string, quoteID, lineID uuid.UUID) (Detail, error) {
	q, err := s.store.GetQuote(ctx, orgID, quoteID)
	if err != nil {
		return Detail{}, s.mapErr(err, "QUOTE_NOT_FOUND", "quote not found")
	}
	if !q.Status.Editable() {
		return Detail{}, common.Conflict("QUOTE_FROZEN", "lines can only change while the quote is a draft")
	}
	if err := s.store.DeleteLine(ctx, quoteID, lineID); err != nil {
		return Detail{}, s.mapErr(err, "LINE_NOT_FOUND", "quote line not found")
	}
	return s.recompute(ctx, q)
}

func (s *Service) priceLine(ctx context.Context, q Quote, product catalog.Product, lineID uuid.UUID, qty decimal.Decimal) (Line, error) {
	rules, err := s.rules.ActiveRules(ctx, q.OrgID)
	if err != nil {
		return Line{}, err
	}
	pctx := pricing.Context{
		ProductID:  product.ID,
		CategoryID: product.CategoryID,
		Quantity:   qty,
		BasePrice:  product.BasePrice,
		Level:      s.customers.Level(ctx, q.OrgID, q.CustomerID),
		OrgID:      q.OrgID,
	}
	start := time.Now()
	result, err := pricing.Calculate(pctx, rules, start)
	types := make([]string, 0, len(result.AppliedRules))
	for _, applied := range result.AppliedRules {
		types = append(types, string(applied.RuleType))
	}
	obs.ObservePricing(time.Since(start), err == nil, types...)
	if err != nil {
		if errors.Is(err, pricing.ErrInvalidQuantity) {
			return Line{}, common.ValidationError("INVALID_QUANTITY", "quantity must be greater than zero")
		}
		if errors.Is(err, pricing.ErrInvalidPrice) {
			return Line{}, common.ValidationError("INVALID_PRICE", "product base price must not be negative")
		}
		return Line{}, err
	}
	return Line{
		ID:             lineID,
		QuoteID:        q.ID,
		ProductID:      product.ID,
		ProductName:    product.Name,
		Quantity:       qty,
		BasePrice:      product.BasePrice,
		UnitPrice:      result.UnitPrice,
		LineTotal:      result.LineTotal,
		DiscountAmount: result.DiscountAmount,
		AuditTrail:     result.AppliedRules,
	}, nil
}

// recompute rebuilds the header totals from the current lines and persists
// them under the version guard.
func (s *Service) recompute(ctx context.Context, q Quote) (Detail, error) {
	lines, err := s.store.ListLines(ctx, q.ID)
	if err != nil {
		return Detail{}, err
	}
	items := make([]pricing.LineItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, pricing.LineItem{UnitPrice: l.UnitPrice, Quantity: l.Quantity})
	}
	totals := pricing.CalculateTotals(items, q.TaxRate, q.DiscountAmount)
	q.Subtotal = totals.Subtotal
	q.TaxAmount = totals.TaxAmount
	q.TotalAmount = totals.TotalAmount
	updated, err := s.store.UpdateQuote(ctx, q)
	if err != nil {
		return Detail{}, s.mapErr(err, "QUOTE_NOT_FOUND", "quote not found")
	}
	return Detail{Quote: updated, Lines: lines}, nil
}

// HeaderInput carries whole-quote adjustments.
type HeaderInput struct {
	DiscountAmount *string `json:"discountAmount"`
	TaxRate        *string `json:"taxRate"`
}

// UpdateHeader changes the whole-quote discount or tax rate and recomputes.
func (s *Service) UpdateHeader(ctx context.Context, orgID string, quoteID uuid.UUID, in HeaderInput) (Detail, error) {
	q, err := s.store.GetQuote(ctx, orgID, quoteID)
	if err != nil {
		return Detail{}, s.mapErr(err, "QUOTE_NOT_FOUND", "quote not found")
	}
	if !q.Status.Editable() {
		return Detail{}, common.Conflict("QUOTE_FROZEN", "header can only change while the quote is a draft")
	}
	if in.DiscountAmount != nil {
		v, err := decimal.NewFromString(strings.TrimSpace(*in.DiscountAmount))
		if err != nil || v.IsNegative() {
			return Detail{}, common.ValidationError("INVALID_DISCOUNT", "discountAmount must be a non-negative decimal")
		}
		q.DiscountAmount = v
	}
	if in.TaxRate != nil {
		v, err := decimal.NewFromString(strings.TrimSpace(*in.TaxRate))
		if err != nil || v.IsNegative() {
			return Detail{}, common.ValidationError("INVALID_TAX_RATE", "taxRate must be a non-negative decimal")
		}
		q.TaxRate = v
	}
	return s.recompute(ctx, q)
}

func (s *Service) mapErr(err error, code, message string) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NotFound(code, message)
	case errors.Is(err, ErrVersionConflict):
		return common.Conflict("VERSION_CONFLICT", "quote was modified concurrently, retry with fresh data")
	default:
		return err
	}
}
