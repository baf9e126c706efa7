package customer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/backend-cpq/internal/pricing"
)

// Customer is a quote recipient whose level drives level-based discounts.
type Customer struct {
	ID        uuid.UUID             `json:"id"`
	OrgID     string                `json:"orgId"`
	Name      string                `json:"name"`
	Email     string                `json:"email"`
	Level     pricing.CustomerLevel `json:"level"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// ErrNotFound is returned when a customer row does not exist.
var ErrNotFound = errors.New("customer: not found")

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides customer persistence over Postgres.
type Store struct {
	db dbtx
}

// NewStore constructs a Store.
func NewStore(db dbtx) *Store {
	return &Store{db: db}
}

const columns = `id, org_id, name, email, level, created_at, updated_at`

func scan(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.OrgID, &c.Name, &c.Email, &c.Level, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	return c, err
}

// Get fetches a customer by id within an org.
func (s *Store) Get(ctx context.Context, orgID string, id uuid.UUID) (Customer, error) {
	return scan(s.db.QueryRow(ctx,
		`SELECT `+columns+` FROM customers WHERE org_id = $1 AND id = $2`, orgID, id))
}

// List returns customers for an org ordered by name.
func (s *Store) List(ctx context.Context, orgID string) ([]Customer, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+columns+` FROM customers WHERE org_id = $1 ORDER BY name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Customer
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Create inserts a customer and returns the stored row.
func (s *Store) Create(ctx context.Context, c Customer) (Customer, error) {
	return scan(s.db.QueryRow(ctx,
		`INSERT INTO customers (id, org_id, name, email, level)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+columns,
		c.ID, c.OrgID, c.Name, c.Email, c.Level))
}

// Update updates mutable customer fields and returns the stored row.
func (s *Store) Update(ctx context.Context, c Customer) (Customer, error) {
	return scan(s.db.QueryRow(ctx,
		`UPDATE customers SET name = $3, email = $4, level = $5, updated_at = now()
		 WHERE org_id = $1 AND id = $2
		 RETURNING `+columns,
		c.OrgID, c.ID, c.Name, c.Email, c.Level))
}
