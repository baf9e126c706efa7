package quote

import "errors"

// Status is the lifecycle state of a quote.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusSent            Status = "sent"
	StatusAccepted        Status = "accepted"
	StatusDeclined        Status = "declined"
)

// ErrInvalidTransition is returned when a status change is not allowed from
// the quote's current state.
var ErrInvalidTransition = errors.New("quote: invalid status transition")

var transitions = map[Status][]Status{
	StatusDraft:           {StatusPendingApproval},
	StatusPendingApproval: {StatusApproved, StatusRejected},
	StatusApproved:        {StatusSent},
	StatusSent:            {StatusAccepted, StatusDeclined},
}

// CanTransition reports whether a quote may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Editable reports whether line items may still change. Once a quote leaves
// draft its priced contents are frozen.
func (s Status) Editable() bool {
	return s == StatusDraft
}
