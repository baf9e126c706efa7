package rules

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-cpq/internal/common"
	"github.com/noah-isme/backend-cpq/internal/obs"
	"github.com/noah-isme/backend-cpq/internal/pricing"
)

type storeProvider interface {
	Get(ctx context.Context, orgID string, id uuid.UUID) (StoredRule, error)
	List(ctx context.Context, orgID string) ([]StoredRule, error)
	ListActive(ctx context.Context, orgID string) ([]StoredRule, error)
	Create(ctx context.Context, r StoredRule) (StoredRule, error)
	Update(ctx context.Context, r StoredRule) (StoredRule, error)
	Delete(ctx context.Context, orgID string, id uuid.UUID) error
}

// Service manages pricing rules and runs pricing previews.
type Service struct {
	store           storeProvider
	defaultPriority int
}

// NewService constructs a Service.
func NewService(store storeProvider, defaultPriority int) (*Service, error) {
	if store == nil {
		return nil, errors.New("rules: store is required")
	}
	return &Service{store: store, defaultPriority: defaultPriority}, nil
}

// Input carries the writable rule fields. Conditions is kept raw so each rule
// type can decode its own shape.
type Input struct {
	Name          string          `json:"name" validate:"required,min=1,max=200"`
	Type          string          `json:"type" validate:"required,oneof=promotion bundle tier customer_level"`
	ProductID     *uuid.UUID      `json:"productId"`
	CategoryID    *uuid.UUID      `json:"categoryId"`
	Conditions    json.RawMessage `json:"conditions"`
	DiscountType  string          `json:"discountType" validate:"required,oneof=percentage fixed price_override"`
	DiscountValue string          `json:"discountValue" validate:"required"`
	Priority      *int            `json:"priority"`
	Active        *bool           `json:"active"`
	StartDate     *time.Time      `json:"startDate"`
	EndDate       *time.Time      `json:"endDate"`
}

func (s *Service) fromInput(orgID string, id uuid.UUID, in Input) (StoredRule, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(in.DiscountValue))
	if err != nil {
		return StoredRule{}, common.ValidationError("INVALID_DISCOUNT_VALUE", "discountValue must be a decimal number")
	}
	if value.IsNegative() {
		return StoredRule{}, common.ValidationError("INVALID_DISCOUNT_VALUE", "discountValue must not be negative")
	}
	if in.DiscountType == string(pricing.DiscountPercentage) && value.GreaterThan(decimal.NewFromInt(100)) {
		return StoredRule{}, common.ValidationError("INVALID_DISCOUNT_VALUE", "percentage discounts cannot exceed 100")
	}
	ruleType := pricing.RuleType(in.Type)
	raw := in.Conditions
	if len(raw) == 0 {
		raw = []byte(`{}`)
	}
	// New and updated rules must carry well-formed conditions. Only rows that
	// rot in storage get the lenient treatment.
	conds, err := pricing.DecodeConditions(ruleType, raw)
	if err != nil {
		return StoredRule{}, common.ValidationError("INVALID_CONDITIONS", "conditions do not match the rule type: "+err.Error())
	}
	priority := s.defaultPriority
	if in.Priority != nil {
		priority = *in.Priority
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	return StoredRule{
		Rule: pricing.Rule{
			ID:            id,
			OrgID:         orgID,
			Name:          strings.TrimSpace(in.Name),
			Type:          ruleType,
			ProductID:     in.ProductID,
			CategoryID:    in.CategoryID,
			Conditions:    conds,
			DiscountType:  pricing.DiscountType(in.DiscountType),
			DiscountValue: value,
			Priority:      priority,
			Active:        active,
			StartDate:     in.StartDate,
			EndDate:       in.EndDate,
		},
		RawConditions: raw,
	}, nil
}

// Get returns one rule.
func (s *Service) Get(ctx context.Context, orgID string, id uuid.UUID) (StoredRule, error) {
	r, err := s.store.Get(ctx, orgID, id)
	if errors.Is(err, ErrNotFound) {
		return StoredRule{}, common.NotFound("RULE_NOT_FOUND", "pricing rule not found")
	}
	return r, err
}

// List returns all rules for an org.
func (s *Service) List(ctx context.Context, orgID string) ([]StoredRule, error) {
	return s.store.List(ctx, orgID)
}

// Create validates and stores a new rule.
func (s *Service) Create(ctx context.Context, orgID string, in Input) (StoredRule, error) {
	r, err := s.fromInput(orgID, uuid.New(), in)
	if err != nil {
		return StoredRule{}, err
	}
	created, err := s.store.Create(ctx, r)
	if err != nil {
		return StoredRule{}, mapPgError(err)
	}
	return created, nil
}

// Update validates and stores rule changes.
func (s *Service) Update(ctx context.Context, orgID string, id uuid.UUID, in Input) (StoredRule, error) {
	if _, err := s.Get(ctx, orgID, id); err != nil {
		return StoredRule{}, err
	}
	r, err := s.fromInput(orgID, id, in)
	if err != nil {
		return StoredRule{}, err
	}
	updated, err := s.store.Update(ctx, r)
	if err != nil {
		return StoredRule{}, mapPgError(err)
	}
	return updated, nil
}

// Delete removes a rule.
func (s *Service) Delete(ctx context.Context, orgID string, id uuid.UUID) error {
	err := s.store.Delete(ctx, orgID, id)
	if errors.Is(err, ErrNotFound) {
		return common.NotFound("RULE_NOT_FOUND", "pricing rule not found")
	}
	return err
}

// PreviewInput is an ad-hoc pricing context for trying rules out.
type PreviewInput struct {
	ProductID     uuid.UUID  `json:"productId" validate:"required"`
	CategoryID    *uuid.UUID `json:"categoryId"`
	Quantity      string     `json:"quantity" validate:"required"`
	BasePrice     string     `json:"basePrice" validate:"required"`
	CustomerLevel string     `json:"customerLevel" validate:"required,oneof=vip normal new"`
}

// Preview prices the given context against the org's active rules without
// touching any quote.
func (s *Service) Preview(ctx context.Context, orgID string, in PreviewInput) (pricing.Result, error) {
	qty, err := decimal.NewFromString(strings.TrimSpace(in.Quantity))
	if err != nil {
		return pricing.Result{}, common.ValidationError("INVALID_QUANTITY", "quantity must be a decimal number")
	}
	price, err := decimal.NewFromString(strings.TrimSpace(in.BasePrice))
	if err != nil {
		return pricing.Result{}, common.ValidationError("INVALID_PRICE", "basePrice must be a decimal number")
	}
	pctx := pricing.Context{
		ProductID:  in.ProductID,
		CategoryID: in.CategoryID,
		Quantity:   qty,
		BasePrice:  price,
		Level:      pricing.CustomerLevel(in.CustomerLevel),
		OrgID:      orgID,
	}
	active, err := s.ActiveRules(ctx, orgID)
	if err != nil {
		return pricing.Result{}, err
	}
	start := time.Now()
	result, err := pricing.Calculate(pctx, active, start)
	types := make([]string, 0, len(result.AppliedRules))
	for _, applied := range result.AppliedRules {
		types = append(types, string(applied.RuleType))
	}
	obs.ObservePricing(time.Since(start), err == nil, types...)
	if err != nil {
		if errors.Is(err, pricing.ErrInvalidQuantity) {
			return pricing.Result{}, common.ValidationError("INVALID_QUANTITY", "quantity must be greater than zero")
		}
		if errors.Is(err, pricing.ErrInvalidPrice) {
			return pricing.Result{}, common.ValidationError("INVALID_PRICE", "basePrice must not be negative")
		}
		return pricing.Result{}, err
	}
	return result, nil
}

// ActiveRules loads the org's active rules as engine input.
func (s *Service) ActiveRules(ctx context.Context, orgID string) ([]pricing.Rule, error) {
	stored, err := s.store.ListActive(ctx, orgID)
	if err != nil {
		return nil, err
	}
	out := make([]pricing.Rule, 0, len(stored))
	for _, r := range stored {
		out = append(out, r.Rule)
	}
	return out, nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return common.Conflict("RULE_EXISTS", "a rule with this name already exists")
	}
	return err
}
