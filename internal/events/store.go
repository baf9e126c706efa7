package events

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type dbtx interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists domain events to Postgres.
type Store struct {
	db dbtx
}

// NewStore constructs a Store.
func NewStore(db dbtx) *Store {
	return &Store{db: db}
}

// Insert appends one event and returns the stored row.
func (s *Store) Insert(ctx context.Context, topic string, quoteID uuid.UUID, payload []byte) (Event, error) {
	var ev Event
	err := s.db.QueryRow(ctx,
		`INSERT INTO quote_events (id, topic, quote_id, payload)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, topic, quote_id, payload, occurred_at`,
		uuid.New(), topic, quoteID, payload).
		Scan(&ev.ID, &ev.Topic, &ev.QuoteID, &ev.Payload, &ev.OccurredAt)
	return ev, err
}

// ListByQuote returns the event history for one quote, oldest first.
func (s *Store) ListByQuote(ctx context.Context, quoteID uuid.UUID) ([]Event, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, topic, quote_id, payload, occurred_at
		 FROM quote_events WHERE quote_id = $1 ORDER BY occurred_at, id`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.Topic, &ev.QuoteID, &ev.Payload, &ev.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
