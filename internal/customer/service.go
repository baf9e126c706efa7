package customer

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-cpq/internal/common"
	"github.com/noah-isme/backend-cpq/internal/pricing"
)

type storeProvider interface {
	Get(ctx context.Context, orgID string, id uuid.UUID) (Customer, error)
	List(ctx context.Context, orgID string) ([]Customer, error)
	Create(ctx context.Context, c Customer) (Customer, error)
	Update(ctx context.Context, c Customer) (Customer, error)
}

// Service manages customers and resolves levels for pricing.
type Service struct {
	store storeProvider
}

// NewService constructs a Service.
func NewService(store storeProvider) (*Service, error) {
	if store == nil {
		return nil, errors.New("customer: store is required")
	}
	return &Service{store: store}, nil
}

// Input carries the writable customer fields.
type Input struct {
	Name  string `json:"name" validate:"required,min=1,max=200"`
	Email string `json:"email" validate:"required,email"`
	Level string `json:"level" validate:"required,oneof=vip normal new"`
}

// Get returns one customer.
func (s *Service) Get(ctx context.Context, orgID string, id uuid.UUID) (Customer, error) {
	c, err := s.store.Get(ctx, orgID, id)
	if errors.Is(err, ErrNotFound) {
		return Customer{}, common.NotFound("CUSTOMER_NOT_FOUND", "customer not found")
	}
	return c, err
}

// List returns all customers for an org.
func (s *Service) List(ctx context.Context, orgID string) ([]Customer, error) {
	return s.store.List(ctx, orgID)
}

// Create stores a new customer.
func (s *Service) Create(ctx context.Context, orgID string, in Input) (Customer, error) {
	return s.store.Create(ctx, Customer{
		ID:    uuid.New(),
		OrgID: orgID,
		Name:  strings.TrimSpace(in.Name),
		Email: strings.ToLower(strings.TrimSpace(in.Email)),
		Level: pricing.CustomerLevel(in.Level),
	})
}

// Update stores customer changes.
func (s *Service) Update(ctx context.Context, orgID string, id uuid.UUID, in Input) (Customer, error) {
	if _, err := s.Get(ctx, orgID, id); err != nil {
		return Customer{}, err
	}
	return s.store.Update(ctx, Customer{
		ID:    id,
		OrgID: orgID,
		Name:  strings.TrimSpace(in.Name),
		Email: strings.ToLower(strings.TrimSpace(in.Email)),
		Level: pricing.CustomerLevel(in.Level),
	})
}

// Level resolves a customer's pricing level, defaulting to normal when the
// customer is unknown so ad-hoc quotes still price.
func (s *Service) Level(ctx context.Context, orgID string, id uuid.UUID) pricing.CustomerLevel {
	c, err := s.store.Get(ctx, orgID, id)
	if err != nil {
		return pricing.CustomerLevelNormal
	}
	return c.Level
}

// Email resolves a customer's address for notifications. Unknown customers
// yield an empty string, which downstream senders treat as "skip".
func (s *Service) Email(ctx context.Context, orgID string, id uuid.UUID) string {
	c, err := s.store.Get(ctx, orgID, id)
	if err != nil {
		return ""
	}
	return c.Email
}
