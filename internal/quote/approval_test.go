package quote

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-cpq/internal/events"
)

func TestCanTransition(t *testing.T) {
	allowed := [][2]Status{
		{StatusDraft, StatusPendingApproval},
		{StatusPendingApproval, StatusApproved},
		{StatusPendingApproval, StatusRejected},
		{StatusApproved, StatusSent},
		{StatusSent, StatusAccepted},
		{StatusSent, StatusDeclined},
	}
	for _, pair := range allowed {
		require.True(t, CanTransition(pair[0], pair[1]), "%s -> %s should be allowed", pair[0], pair[1])
	}

	denied := [][2]Status{
		{StatusDraft, StatusApproved},
		{StatusDraft, StatusSent},
		{StatusApproved, StatusAccepted},
		{StatusRejected, StatusPendingApproval},
		{StatusAccepted, StatusDeclined},
		{StatusDeclined, StatusDraft},
	}
	for _, pair := range denied {
		require.False(t, CanTransition(pair[0], pair[1]), "%s -> %s should be denied", pair[0], pair[1])
	}
}

func TestApprovalFlowEmitsEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.Create(ctx, "acme", CreateInput{CustomerID: uuid.New()})
	require.NoError(t, err)

	q, err = f.svc.Submit(ctx, "acme", q.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPendingApproval, q.Status)

	q, err = f.svc.Approve(ctx, "acme", q.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, q.Status)

	q, share, err := f.svc.Send(ctx, "acme", q.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSent, q.Status)
	require.NotEmpty(t, share.Token)

	topics := make([]string, 0, len(f.events.events))
	for _, ev := range f.events.events {
		topics = append(topics, ev.Topic)
	}
	require.Equal(t, []string{
		events.TopicQuoteSubmitted,
		events.TopicQuoteApproved,
		events.TopicQuoteSent,
	}, topics)
}

func TestHistoryListsQuoteEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.Create(ctx, "acme", CreateInput{CustomerID: uuid.New()})
	require.NoError(t, err)

	history, err := f.svc.History(ctx, "acme", q.ID)
	require.NoError(t, err)
	require.Empty(t, history)

	_, err = f.svc.Submit(ctx, "acme", q.ID)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, "acme", q.ID)
	require.NoError(t, err)

	history, err = f.svc.History(ctx, "acme", q.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, events.TopicQuoteSubmitted, history[0].Topic)
	require.Equal(t, events.TopicQuoteApproved, history[1].Topic)

	_, err = f.svc.History(ctx, "acme", uuid.New())
	require.Error(t, err)
}

func TestRejectCarriesReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.Create(ctx, "acme", CreateInput{CustomerID: uuid.New()})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, "acme", q.ID)
	require.NoError(t, err)

	rejected, err := f.svc.Reject(ctx, "acme", q.ID, "pricing too aggressive")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)

	last := f.events.events[len(f.events.events)-1]
	require.Equal(t, events.TopicQuoteRejected, last.Topic)
	require.Contains(t, string(last.Payload), "pricing too aggressive")
}

func TestInvalidTransitionReturnsSentinel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.Create(ctx, "acme", CreateInput{CustomerID: uuid.New()})
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, "acme", q.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, _, err = f.svc.Send(ctx, "acme", q.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	require.Empty(t, f.events.events, "failed transitions must not emit events")
}
