package quote

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-cpq/internal/common"
	"github.com/noah-isme/backend-cpq/internal/events"
	"github.com/noah-isme/backend-cpq/internal/obs"
)

// Share responses submitted by customers.
const (
	ResponseAccepted = "accepted"
	ResponseDeclined = "declined"
)

// IssueShare creates an opaque share token for a sent quote.
func (s *Service) IssueShare(ctx context.Context, orgID string, quoteID uuid.UUID) (Share, error) {
	q, err := s.store.GetQuote(ctx, orgID, quoteID)
	if err != nil {
		return Share{}, s.mapErr(err, "QUOTE_NOT_FOUND", "quote not found")
	}
	if q.Status != StatusSent {
		return Share{}, common.Conflict("QUOTE_NOT_SENT", "share tokens can only be issued for sent quotes")
	}
	token, err := newShareToken()
	if err != nil {
		return Share{}, err
	}
	return s.store.CreateShare(ctx, Share{
		Token:     token,
		QuoteID:   quoteID,
		OrgID:     orgID,
		ExpiresAt: time.Now().Add(s.shareTTL),
	})
}

// GetShared resolves a share token to the quote it exposes.
func (s *Service) GetShared(ctx context.Context, token string) (Detail, error) {
	share, err := s.validShare(ctx, token)
	if err != nil {
		return Detail{}, err
	}
	return s.Get(ctx, share.OrgID, share.QuoteID)
}

// Respond records the customer's accept or decline and transitions the quote.
func (s *Service) Respond(ctx context.Context, token, response string) (Quote, error) {
	if response != ResponseAccepted && response != ResponseDeclined {
		return Quote{}, common.ValidationError("INVALID_RESPONSE", "response must be accepted or declined")
	}
	share, err := s.validShare(ctx, token)
	if err != nil {
		return Quote{}, err
	}
	if share.Response != nil {
		return Quote{}, common.Conflict("ALREADY_RESPONDED", "this quote already received a response")
	}
	to := StatusAccepted
	topic := events.TopicQuoteAccepted
	if response == ResponseDeclined {
		to = StatusDeclined
		topic = events.TopicQuoteDeclined
	}
	q, err := s.transition(ctx, share.OrgID, share.QuoteID, to, topic, nil)
	if err != nil {
		return Quote{}, err
	}
	if err := s.store.MarkShareResponded(ctx, token, response); err != nil {
		// The transition already committed; the share row is bookkeeping.
		s.logger.Error().Err(err).Str("token", token).Msg("mark share responded")
	}
	obs.ObserveShareResponse(response)
	return q, nil
}

func (s *Service) validShare(ctx context.Context, token string) (Share, error) {
	share, err := s.store.GetShare(ctx, token)
	if err != nil {
		return Share{}, s.mapErr(err, "SHARE_NOT_FOUND", "share link not found")
	}
	if time.Now().After(share.ExpiresAt) {
		return Share{}, common.NotFound("SHARE_EXPIRED", "share link has expired")
	}
	return share, nil
}

func newShareToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("quote: generate share token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
