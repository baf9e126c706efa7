package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Product is a sellable item whose base price feeds pricing.
type Product struct {
	ID         uuid.UUID       `json:"id"`
	OrgID      string          `json:"orgId"`
	Name       string          `json:"name"`
	SKU        string          `json:"sku"`
	CategoryID *uuid.UUID      `json:"categoryId,omitempty"`
	BasePrice  decimal.Decimal `json:"basePrice"`
	Active     bool            `json:"active"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Category groups products for rule scoping.
type Category struct {
	ID        uuid.UUID `json:"id"`
	OrgID     string    `json:"orgId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// ErrNotFound is returned when a catalog row does not exist.
var ErrNotFound = errors.New("catalog: not found")

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides catalog persistence over Postgres.
type Store struct {
	db dbtx
}

// NewStore constructs a Store.
func NewStore(db dbtx) *Store {
	return &Store{db: db}
}

const productColumns = `id, org_id, name, sku, category_id, base_price::text, active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p     Product
		price string
	)
	err := row.Scan(&p.ID, &p.OrgID, &p.Name, &p.SKU, &p.CategoryID, &price, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	p.BasePrice, err = decimal.NewFromString(price)
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

// GetProduct fetches a product by id within an org.
func (s *Store) GetProduct(ctx context.Context, orgID string, id uuid.UUID) (Product, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE org_id = $1 AND id = $2`, orgID, id)
	return scanProduct(row)
}

// ListProducts returns active products for an org ordered by name.
func (s *Store) ListProducts(ctx context.Context, orgID string) ([]Product, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE org_id = $1 AND active ORDER BY name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateProduct inserts a product and returns the stored row.
func (s *Store) CreateProduct(ctx context.Context, p Product) (Product, error) {
	row := s.db.QueryRow(ctx,
		`INSERT INTO products (id, org_id, name, sku, category_id, base_price, active)
		 VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)
		 RETURNING `+productColumns,
		p.ID, p.OrgID, p.Name, p.SKU, p.CategoryID, p.BasePrice.String(), p.Active)
	return scanProduct(row)
}

// UpdateProduct updates mutable product fields and returns the stored row.
func (s *Store) UpdateProduct(ctx context.Context, p Product) (Product, error) {
	row := s.db.QueryRow(ctx,
		`UPDATE products
		 SET name = $3, sku = $4, category_id = $5, base_price = $6::numeric, active = $7, updated_at = now()
		 WHERE org_id = $1 AND id = $2
		 RETURNING `+productColumns,
		p.OrgID, p.ID, p.Name, p.SKU, p.CategoryID, p.BasePrice.String(), p.Active)
	return scanProduct(row)
}

// GetCategory fetches a category by id within an org.
func (s *Store) GetCategory(ctx context.Context, orgID string, id uuid.UUID) (Category, error) {
	var c Category
	err := s.db.QueryRow(ctx,
		`SELECT id, org_id, name, created_at FROM categories WHERE org_id = $1 AND id = $2`, orgID, id).
		Scan(&c.ID, &c.OrgID, &c.Name, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	return c, err
}

// ListCategories returns categories for an org ordered by name.
func (s *Store) ListCategories(ctx context.Context, orgID string) ([]Category, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, org_id, name, created_at FROM categories WHERE org_id = $1 ORDER BY name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.OrgID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCategory inserts a category and returns the stored row.
func (s *Store) CreateCategory(ctx context.Context, c Category) (Category, error) {
	err := s.db.QueryRow(ctx,
		`INSERT INTO categories (id, org_id, name) VALUES ($1, $2, $3)
		 RETURNING id, org_id, name, created_at`,
		c.ID, c.OrgID, c.Name).
		Scan(&c.ID, &c.OrgID, &c.Name, &c.CreatedAt)
	return c, err
}
