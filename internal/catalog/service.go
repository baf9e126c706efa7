package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-cpq/internal/common"
)

type storeProvider interface {
	GetProduct(ctx context.Context, orgID string, id uuid.UUID) (Product, error)
	ListProducts(ctx context.Context, orgID string) ([]Product, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) (Product, error)
	GetCategory(ctx context.Context, orgID string, id uuid.UUID) (Category, error)
	ListCategories(ctx context.Context, orgID string) ([]Category, error)
	CreateCategory(ctx context.Context, c Category) (Category, error)
}

// Service orchestrates catalog reads through the cache and writes with invalidation.
type Service struct {
	store  storeProvider
	cache  *Cache
	logger zerolog.Logger
}

// NewService constructs a Service.
func NewService(store storeProvider, cache *Cache, logger zerolog.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("catalog: store is required")
	}
	return &Service{store: store, cache: cache, logger: logger}, nil
}

func productKey(orgID string, id uuid.UUID) string {
	return fmt.Sprintf("cpq:catalog:%s:product:%s", orgID, id)
}

func productListKey(orgID string) string {
	return fmt.Sprintf("cpq:catalog:%s:products", orgID)
}

func categoryListKey(orgID string) string {
	return fmt.Sprintf("cpq:catalog:%s:categories", orgID)
}

// GetProduct returns a product, served from cache when possible.
func (s *Service) GetProduct(ctx context.Context, orgID string, id uuid.UUID) (Product, error) {
	key := productKey(orgID, id)
	var cached Product
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	} else if ok {
		return cached, nil
	}
	p, err := s.store.GetProduct(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Product{}, common.NotFound("PRODUCT_NOT_FOUND", "product not found")
		}
		return Product{}, err
	}
	if err := s.cache.SetJSON(ctx, key, p); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
	return p, nil
}

// ListProducts returns the active products for an org.
func (s *Service) ListProducts(ctx context.Context, orgID string) ([]Product, error) {
	key := productListKey(orgID)
	var cached []Product
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	} else if ok {
		return cached, nil
	}
	items, err := s.store.ListProducts(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, key, items); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
	return items, nil
}

// ProductInput carries the writable product fields.
type ProductInput struct {
	Name       string     `json:"name" validate:"required,min=1,max=200"`
	SKU        string     `json:"sku" validate:"required,min=1,max=64"`
	CategoryID *uuid.UUID `json:"categoryId"`
	BasePrice  string     `json:"basePrice" validate:"required"`
	Active     *bool      `json:"active"`
}

func (in ProductInput) price() (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(in.BasePrice))
	if err != nil {
		return decimal.Decimal{}, common.ValidationError("INVALID_PRICE", "basePrice must be a decimal number")
	}
	if v.IsNegative() {
		return decimal.Decimal{}, common.ValidationError("INVALID_PRICE", "basePrice must not be negative")
	}
	return v, nil
}

// CreateProduct validates and stores a new product, then drops the list cache.
func (s *Service) CreateProduct(ctx context.Context, orgID string, in ProductInput) (Product, error) {
	price, err := in.price()
	if err != nil {
		return Product{}, err
	}
	if in.CategoryID != nil {
		if _, err := s.store.GetCategory(ctx, orgID, *in.CategoryID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return Product{}, common.ValidationError("CATEGORY_NOT_FOUND", "categoryId does not exist")
			}
			return Product{}, err
		}
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	p, err := s.store.CreateProduct(ctx, Product{
		ID:         uuid.New(),
		OrgID:      orgID,
		Name:       strings.TrimSpace(in.Name),
		SKU:        strings.TrimSpace(in.SKU),
		CategoryID: in.CategoryID,
		BasePrice:  price,
		Active:     active,
	})
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx, productListKey(orgID))
	return p, nil
}

// UpdateProduct validates and stores product changes, then drops stale cache entries.
func (s *Service) UpdateProduct(ctx context.Context, orgID string, id uuid.UUID, in ProductInput) (Product, error) {
	price, err := in.price()
	if err != nil {
		return Product{}, err
	}
	current, err := s.store.GetProduct(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Product{}, common.NotFound("PRODUCT_NOT_FOUND", "product not found")
		}
		return Product{}, err
	}
	active := current.Active
	if in.Active != nil {
		active = *in.Active
	}
	p, err := s.store.UpdateProduct(ctx, Product{
		ID:         id,
		OrgID:      orgID,
		Name:       strings.TrimSpace(in.Name),
		SKU:        strings.TrimSpace(in.SKU),
		CategoryID: in.CategoryID,
		BasePrice:  price,
		Active:     active,
	})
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx, productKey(orgID, id), productListKey(orgID))
	return p, nil
}

// ListCategories returns the categories for an org.
func (s *Service) ListCategories(ctx context.Context, orgID string) ([]Category, error) {
	key := categoryListKey(orgID)
	var cached []Category
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	} else if ok {
		return cached, nil
	}
	items, err := s.store.ListCategories(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, key, items); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
	return items, nil
}

// CategoryInput carries the writable category fields.
type CategoryInput struct {
	Name string `json:"name" validate:"required,min=1,max=120"`
}

// CreateCategory stores a new category and drops the list cache.
func (s *Service) CreateCategory(ctx context.Context, orgID string, in CategoryInput) (Category, error) {
	c, err := s.store.CreateCategory(ctx, Category{
		ID:    uuid.New(),
		OrgID: orgID,
		Name:  strings.TrimSpace(in.Name),
	})
	if err != nil {
		return Category{}, err
	}
	s.invalidate(ctx, categoryListKey(orgID))
	return c, nil
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.logger.Warn().Err(err).Strs("keys", keys).Msg("catalog cache invalidation failed")
	}
}
