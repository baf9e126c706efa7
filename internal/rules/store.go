package rules

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-cpq/internal/pricing"
)

// ErrNotFound is returned when a rule row does not exist.
var ErrNotFound = errors.New("rules: not found")

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides pricing rule persistence over Postgres.
type Store struct {
	db dbtx
}

// NewStore constructs a Store.
func NewStore(db dbtx) *Store {
	return &Store{db: db}
}

// StoredRule is a pricing rule row together with its bookkeeping columns.
type StoredRule struct {
	pricing.Rule
	RawConditions []byte    `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

const columns = `id, org_id, name, rule_type, product_id, category_id, conditions,
	discount_type, discount_value::text, priority, active, start_date, end_date,
	created_at, updated_at`

func scanRule(row pgx.Row) (StoredRule, error) {
	var (
		r     StoredRule
		value string
	)
	err := row.Scan(&r.ID, &r.OrgID, &r.Name, &r.Type, &r.ProductID, &r.CategoryID,
		&r.RawConditions, &r.DiscountType, &value, &r.Priority, &r.Active,
		&r.StartDate, &r.EndDate, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StoredRule{}, ErrNotFound
		}
		return StoredRule{}, err
	}
	r.DiscountValue, err = decimal.NewFromString(value)
	if err != nil {
		return StoredRule{}, err
	}
	// A row whose conditions no longer decode must stay loadable; the engine
	// treats it as never matching.
	r.Conditions = pricing.DecodeStoredConditions(r.Type, r.RawConditions)
	return r, nil
}

// Get fetches one rule by id within an org.
func (s *Store) Get(ctx context.Context, orgID string, id uuid.UUID) (StoredRule, error) {
	return scanRule(s.db.QueryRow(ctx,
		`SELECT `+columns+` FROM pricing_rules WHERE org_id = $1 AND id = $2`, orgID, id))
}

// List returns all rules for an org in insertion order.
func (s *Store) List(ctx context.Context, orgID string) ([]StoredRule, error) {
	return s.list(ctx,
		`SELECT `+columns+` FROM pricing_rules WHERE org_id = $1 ORDER BY created_at, id`, orgID)
}

// ListActive returns active rules for an org in insertion order. Insertion
// order is the tie-breaker for equal priorities, so it must be stable here.
func (s *Store) ListActive(ctx context.Context, orgID string) ([]StoredRule, error) {
	return s.list(ctx,
		`SELECT `+columns+` FROM pricing_rules WHERE org_id = $1 AND active ORDER BY created_at, id`, orgID)
}

func (s *Store) list(ctx context.Context, sql string, args ...any) ([]StoredRule, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StoredRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Create inserts a rule and returns the stored row.
func (s *Store) Create(ctx context.Context, r StoredRule) (StoredRule, error) {
	return scanRule(s.db.QueryRow(ctx,
		`INSERT INTO pricing_rules
		 (id, org_id, name, rule_type, product_id, category_id, conditions,
		  discount_type, discount_value, priority, active, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10, $11, $12, $13)
		 RETURNING `+columns,
		r.ID, r.OrgID, r.Name, r.Type, r.ProductID, r.CategoryID, r.RawConditions,
		r.DiscountType, r.DiscountValue.String(), r.Priority, r.Active, r.StartDate, r.EndDate))
}

// Update replaces mutable rule fields and returns the stored row.
func (s *Store) Update(ctx context.Context, r StoredRule) (StoredRule, error) {
	return scanRule(s.db.QueryRow(ctx,
		`UPDATE pricing_rules
		 SET name = $3, rule_type = $4, product_id = $5, category_id = $6, conditions = $7,
		     discount_type = $8, discount_value = $9::numeric, priority = $10, active = $11,
		     start_date = $12, end_date = $13, updated_at = now()
		 WHERE org_id = $1 AND id = $2
		 RETURNING `+columns,
		r.OrgID, r.ID, r.Name, r.Type, r.ProductID, r.CategoryID, r.RawConditions,
		r.DiscountType, r.DiscountValue.String(), r.Priority, r.Active, r.StartDate, r.EndDate))
}

// Delete removes a rule. It reports ErrNotFound when nothing was deleted.
func (s *Store) Delete(ctx context.Context, orgID string, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM pricing_rules WHERE org_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
