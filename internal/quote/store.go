package quote

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-cpq/internal/pricing"
)

// Quote is a quote header. Monetary fields are recomputed from the lines on
// every change, never patched in place.
type Quote struct {
	ID             uuid.UUID       `json:"id"`
	OrgID          string          `json:"orgId"`
	CustomerID     uuid.UUID       `json:"customerId"`
	Status         Status          `json:"status"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	TaxRate        decimal.Decimal `json:"taxRate"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"taxAmount"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Line is a priced quote line. UnitPrice, LineTotal, discount amount, and the
// audit trail are engine output captured at pricing time.
type Line struct {
	ID             uuid.UUID             `json:"id"`
	QuoteID        uuid.UUID             `json:"quoteId"`
	ProductID      uuid.UUID             `json:"productId"`
	ProductName    string                `json:"productName"`
	Quantity       decimal.Decimal       `json:"quantity"`
	BasePrice      decimal.Decimal       `json:"basePrice"`
	UnitPrice      decimal.Decimal       `json:"unitPrice"`
	LineTotal      decimal.Decimal       `json:"lineTotal"`
	DiscountAmount decimal.Decimal       `json:"discountAmount"`
	AuditTrail     []pricing.AppliedRule `json:"auditTrail"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

// Share grants customers access to a sent quote through an opaque token.
type Share struct {
	Token       string     `json:"token"`
	QuoteID     uuid.UUID  `json:"quoteId"`
	OrgID       string     `json:"orgId"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	Response    *string    `json:"response,omitempty"`
	RespondedAt *time.Time `json:"respondedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

var (
	// ErrNotFound is returned when a quote, line, or share does not exist.
	ErrNotFound = errors.New("quote: not found")
	// ErrVersionConflict is returned when an update races a newer version.
	ErrVersionConflict = errors.New("quote: version conflict")
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides quote persistence over Postgres.
type Store struct {
	db dbtx
}

// NewStore constructs a Store.
func NewStore(db dbtx) *Store {
	return &Store{db: db}
}

const quoteColumns = `id, org_id, customer_id, status, discount_amount::text,
	tax_rate::text, subtotal::text, tax_amount::text, total_amount::text,
	version, created_at, updated_at`

func scanQuote(row pgx.Row) (Quote, error) {
	var (
		q                                       Quote
		discount, taxRate, subtotal, tax, total string
	)
	err := row.Scan(&q.ID, &q.OrgID, &q.CustomerID, &q.Status, &discount,
		&taxRate, &subtotal, &tax, &total, &q.Version, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, ErrNotFound
		}
		return Quote{}, err
	}
	for dst, src := range map[*decimal.Decimal]string{
		&q.DiscountAmount: discount,
		&q.TaxRate:        taxRate,
		&q.Subtotal:       subtotal,
		&q.TaxAmount:      tax,
		&q.TotalAmount:    total,
	} {
		if *dst, err = decimal.NewFromString(src); err != nil {
			return Quote{}, err
		}
	}
	return q, nil
}

// CreateQuote inserts a draft quote header.
func (s *Store) CreateQuote(ctx context.Context, q Quote) (Quote, error) {
	return scanQuote(s.db.QueryRow(ctx,
		`INSERT INTO quotes
		 (id, org_id, customer_id, status, discount_amount, tax_rate, subtotal, tax_amount, total_amount, version)
		 VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9::numeric, 1)
		 RETURNING `+quoteColumns,
		q.ID, q.OrgID, q.CustomerID, q.Status, q.DiscountAmount.String(), q.TaxRate.String(),
		q.Subtotal.String(), q.TaxAmount.String(), q.TotalAmount.String()))
}

// GetQuote fetches a quote header by id within an org.
func (s *Store) GetQuote(ctx context.Context, orgID string, id uuid.UUID) (Quote, error) {
	return scanQuote(s.db.QueryRow(ctx,
		`SELECT `+quoteColumns+` FROM quotes WHERE org_id = $1 AND id = $2`, orgID, id))
}

// ListQuotes returns quote headers for an org, newest first.
func (s *Store) ListQuotes(ctx context.Context, orgID string, limit, offset int) ([]Quote, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+quoteColumns+` FROM quotes WHERE org_id = $1
		 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// UpdateQuote writes header fields guarded by the version column. The stored
// version must equal q.Version; on success the row carries q.Version+1.
func (s *Store) UpdateQuote(ctx context.Context, q Quote) (Quote, error) {
	updated, err := scanQuote(s.db.QueryRow(ctx,
		`UPDATE quotes
		 SET status = $3, discount_amount = $4::numeric, tax_rate = $5::numeric,
		     subtotal = $6::numeric, tax_amount = $7::numeric, total_amount = $8::numeric,
		     version = version + 1, updated_at = now()
		 WHERE org_id = $1 AND id = $2 AND version = $9
		 RETURNING `+quoteColumns,
		q.OrgID, q.ID, q.Status, q.DiscountAmount.String(), q.TaxRate.String(),
		q.Subtotal.String(), q.TaxAmount.String(), q.TotalAmount.String(), q.Version))
	if errors.Is(err, ErrNotFound) {
		// Row missing or version stale; disambiguate for the caller.
		if _, getErr := s.GetQuote(ctx, q.OrgID, q.ID); getErr == nil {
			return Quote{}, ErrVersionConflict
		}
		return Quote{}, ErrNotFound
	}
	return updated, err
}

const lineColumns = `id, quote_id, product_id, product_name, quantity::text,
	base_price::text, unit_price::text, line_total::text, discount_amount::text,
	audit_trail, created_at, updated_at`

func scanLine(row pgx.Row) (Line, error) {
	var (
		l                                    Line
		qty, base, unit, total, discount     string
		trail                                []byte
	)
	err := row.Scan(&l.ID, &l.QuoteID, &l.ProductID, &l.ProductName, &qty,
		&base, &unit, &total, &discount, &trail, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Line{}, ErrNotFound
		}
		return Line{}, err
	}
	for dst, src := range map[*decimal.Decimal]string{
		&l.Quantity:       qty,
		&l.BasePrice:      base,
		&l.UnitPrice:      unit,
		&l.LineTotal:      total,
		&l.DiscountAmount: discount,
	} {
		if *dst, err = decimal.NewFromString(src); err != nil {
			return Line{}, err
		}
	}
	if len(trail) > 0 {
		if err := json.Unmarshal(trail, &l.AuditTrail); err != nil {
			return Line{}, err
		}
	}
	return l, nil
}

// ListLines returns a quote's lines in insertion order.
func (s *Store) ListLines(ctx context.Context, quoteID uuid.UUID) ([]Line, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+lineColumns+` FROM quote_items WHERE quote_id = $1 ORDER BY created_at, id`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Line
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetLine fetches one line of a quote.
func (s *Store) GetLine(ctx context.Context, quoteID, lineID uuid.UUID) (Line, error) {
	return scanLine(s.db.QueryRow(ctx,
		`SELECT `+lineColumns+` FROM quote_items WHERE quote_id = $1 AND id = $2`, quoteID, lineID))
}

// UpsertLine inserts or replaces a priced line.
func (s *Store) UpsertLine(ctx context.Context, l Line) (Line, error) {
	trail, err := json.Marshal(l.AuditTrail)
	if err != nil {
		return Line{}, err
	}
	return scanLine(s.db.QueryRow(ctx,
		`INSERT INTO quote_items
		 (id, quote_id, product_id, product_name, quantity, base_price, unit_price, line_total, discount_amount, audit_trail)
		 VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10)
		 ON CONFLICT (id) DO UPDATE SET
		   product_id = EXCLUDED.product_id, product_name = EXCLUDED.product_name,
		   quantity = EXCLUDED.quantity, base_price = EXCLUDED.base_price,
		   unit_price = EXCLUDED.unit_price, line_total = EXCLUDED.line_total,
		   discount_amount = EXCLUDED.discount_amount, audit_trail = EXCLUDED.audit_trail,
		   updated_at = now()
		 RETURNING `+lineColumns,
		l.ID, l.QuoteID, l.ProductID, l.ProductName, l.Quantity.String(), l.BasePrice.String(),
		l.UnitPrice.String(), l.LineTotal.String(), l.DiscountAmount.String(), trail))
}

// DeleteLine removes a line. It reports ErrNotFound when nothing was deleted.
func (s *Store) DeleteLine(ctx context.Context, quoteID, lineID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM quote_items WHERE quote_id = $1 AND id = $2`, quoteID, lineID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateShare inserts a share token.
func (s *Store) CreateShare(ctx context.Context, sh Share) (Share, error) {
	err := s.db.QueryRow(ctx,
		`INSERT INTO quote_shares (token, quote_id, org_id, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING token, quote_id, org_id, expires_at, response, responded_at, created_at`,
		sh.Token, sh.QuoteID, sh.OrgID, sh.ExpiresAt).
		Scan(&sh.Token, &sh.QuoteID, &sh.OrgID, &sh.ExpiresAt, &sh.Response, &sh.RespondedAt, &sh.CreatedAt)
	return sh, err
}

// GetShare fetches a share by token.
func (s *Store) GetShare(ctx context.Context, token string) (Share, error) {
	var sh Share
	err := s.db.QueryRow(ctx,
		`SELECT token, quote_id, org_id, expires_at, response, responded_at, created_at
		 FROM quote_shares WHERE token = $1`, token).
		Scan(&sh.Token, &sh.QuoteID, &sh.OrgID, &sh.ExpiresAt, &sh.Response, &sh.RespondedAt, &sh.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Share{}, ErrNotFound
	}
	return sh, err
}

// MarkShareResponded records the customer's accept/decline on the share row.
func (s *Store) MarkShareResponded(ctx context.Context, token, response string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE quote_shares SET response = $2, responded_at = now()
		 WHERE token = $1 AND response IS NULL`, token, response)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
