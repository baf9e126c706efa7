package quote

import (
	"context"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-cpq/internal/common"
	"github.com/noah-isme/backend-cpq/internal/events"
	"github.com/noah-isme/backend-cpq/internal/obs"
)

// Submit moves a draft into pending approval.
func (s *Service) Submit(ctx context.Context, orgID string, id uuid.UUID) (Quote, error) {
	return s.transition(ctx, orgID, id, StatusPendingApproval, events.TopicQuoteSubmitted, nil)
}

// Approve accepts a pending quote.
func (s *Service) Approve(ctx context.Context, orgID string, id uuid.UUID) (Quote, error) {
	return s.transition(ctx, orgID, id, StatusApproved, events.TopicQuoteApproved, nil)
}

// Reject turns down a pending quote with an optional reason.
func (s *Service) Reject(ctx context.Context, orgID string, id uuid.UUID, reason string) (Quote, error) {
	var payload any
	if reason != "" {
		payload = map[string]string{"reason": reason}
	}
	return s.transition(ctx, orgID, id, StatusRejected, events.TopicQuoteRejected, payload)
}

// Send marks an approved quote as sent to the customer and issues a share
// token for the customer response.
func (s *Service) Send(ctx context.Context, orgID string, id uuid.UUID) (Quote, Share, error) {
	q, err := s.transition(ctx, orgID, id, StatusSent, events.TopicQuoteSent, nil)
	if err != nil {
		return Quote{}, Share{}, err
	}
	share, err := s.IssueShare(ctx, orgID, id)
	if err != nil {
		return Quote{}, Share{}, err
	}
	return q, share, nil
}

func (s *Service) transition(ctx context.Context, orgID string, id uuid.UUID, to Status, topic string, payload any) (Quote, error) {
	q, err := s.store.GetQuote(ctx, orgID, id)
	if err != nil {
		return Quote{}, s.mapErr(err, "QUOTE_NOT_FOUND", "quote not found")
	}
	if !CanTransition(q.Status, to) {
		obs.ObserveQuoteTransition(string(to), false)
		appErr := common.Conflict("INVALID_TRANSITION",
			"cannot move quote from "+string(q.Status)+" to "+string(to))
		appErr.Err = ErrInvalidTransition
		return Quote{}, appErr
	}
	from := q.Status
	q.Status = to
	updated, err := s.store.UpdateQuote(ctx, q)
	if err != nil {
		obs.ObserveQuoteTransition(string(to), false)
		return Quote{}, s.mapErr(err, "QUOTE_NOT_FOUND", "quote not found")
	}
	obs.ObserveQuoteTransition(string(to), true)
	s.emit(ctx, topic, updated, string(from), payload)
	return updated, nil
}

// History returns the lifecycle events recorded for a quote, oldest first.
func (s *Service) History(ctx context.Context, orgID string, id uuid.UUID) ([]events.Event, error) {
	if _, err := s.store.GetQuote(ctx, orgID, id); err != nil {
		return nil, s.mapErr(err, "QUOTE_NOT_FOUND", "quote not found")
	}
	if s.events == nil {
		return []events.Event{}, nil
	}
	evs, err := s.events.ListByQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	if evs == nil {
		evs = []events.Event{}
	}
	return evs, nil
}

// emit publishes a lifecycle event. Event failures are logged, not returned:
// the transition already committed.
func (s *Service) emit(ctx context.Context, topic string, q Quote, from string, extra any) {
	if s.bus == nil {
		return
	}
	payload := map[string]any{
		"quoteId":     q.ID,
		"orgId":       q.OrgID,
		"customerId":  q.CustomerID,
		"from":        from,
		"status":      q.Status,
		"totalAmount": q.TotalAmount,
	}
	if email := s.customers.Email(ctx, q.OrgID, q.CustomerID); email != "" {
		payload["customerEmail"] = email
	}
	if m, ok := extra.(map[string]string); ok {
		for k, v := range m {
			payload[k] = v
		}
	}
	if _, err := s.bus.Emit(ctx, topic, q.ID, payload); err != nil {
		s.logger.Error().Err(err).Str("topic", topic).Stringer("quote_id", q.ID).Msg("emit quote event")
	}
}
