package events

// Topic constants for domain events emitted by the quoting platform.
const (
	TopicQuoteSubmitted = "quote.submitted"
	TopicQuoteApproved  = "quote.approved"
	TopicQuoteRejected  = "quote.rejected"
	TopicQuoteSent      = "quote.sent"
	TopicQuoteAccepted  = "quote.accepted"
	TopicQuoteDeclined  = "quote.declined"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicQuoteSubmitted,
		TopicQuoteApproved,
		TopicQuoteRejected,
		TopicQuoteSent,
		TopicQuoteAccepted,
		TopicQuoteDeclined,
	}
}
