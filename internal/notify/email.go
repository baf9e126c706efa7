package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/backend-cpq/internal/common"
	"github.com/noah-isme/backend-cpq/internal/events"
)

// EmailNotifier sends transactional emails for selected quote topics.
type EmailNotifier struct {
	Mail         common.EmailSender
	Enabled      bool
	From         string
	TopicToggles map[string]bool
}

// Notify implements the events.Notifier interface.
func (n EmailNotifier) Notify(_ context.Context, event events.Event) error {
	if !n.Enabled || n.Mail == nil {
		return nil
	}
	if n.TopicToggles != nil {
		if enabled, ok := n.TopicToggles[event.Topic]; ok && !enabled {
			return nil
		}
	}
	payload := map[string]any{}
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("email notify: decode payload: %w", err)
		}
	}
	to := extractRecipient(payload)
	if to == "" {
		return nil
	}
	subject := subjectFor(event.Topic)
	body := bodyFor(event.Topic, payload, event.OccurredAt)
	return n.Mail.Send(to, subject, body)
}

func extractRecipient(payload map[string]any) string {
	keys := []string{"email", "recipient", "customerEmail"}
	for _, key := range keys {
		if val, ok := payload[key]; ok {
			if s, ok := val.(string); ok {
				s = strings.TrimSpace(s)
				if s != "" {
					return s
				}
			}
		}
	}
	return ""
}

func subjectFor(topic string) string {
	switch topic {
	case events.TopicQuoteSubmitted:
		return "Your quote is awaiting approval"
	case events.TopicQuoteApproved:
		return "Your quote has been approved"
	case events.TopicQuoteRejected:
		return "Your quote needs changes"
	case events.TopicQuoteSent:
		return "Your quote is ready"
	case events.TopicQuoteAccepted:
		return "Quote accepted"
	case events.TopicQuoteDeclined:
		return "Quote declined"
	default:
		return "Quote update"
	}
}

func bodyFor(topic string, payload map[string]any, occurredAt time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s\n", topic)
	if !occurredAt.IsZero() {
		fmt.Fprintf(&b, "At: %s\n", occurredAt.Format(time.RFC3339))
	}
	if v, ok := payload["quoteId"]; ok {
		fmt.Fprintf(&b, "Quote: %v\n", v)
	}
	if v, ok := payload["totalAmount"]; ok {
		fmt.Fprintf(&b, "Total: %v\n", v)
	}
	if v, ok := payload["reason"]; ok {
		fmt.Fprintf(&b, "Reason: %v\n", v)
	}
	return b.String()
}
