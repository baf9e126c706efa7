package quote

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-cpq/internal/events"
)

func sentQuote(t *testing.T, f *fixture) (Quote, Share) {
	t.Helper()
	ctx := context.Background()
	q, err := f.svc.Create(ctx, "acme", CreateInput{CustomerID: uuid.New()})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, "acme", q.ID)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, "acme", q.ID)
	require.NoError(t, err)
	sent, share, err := f.svc.Send(ctx, "acme", q.ID)
	require.NoError(t, err)
	return sent, share
}

func TestShareOnlyIssuedForSentQuotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.Create(ctx, "acme", CreateInput{CustomerID: uuid.New()})
	require.NoError(t, err)

	_, err = f.svc.IssueShare(ctx, "acme", q.ID)
	require.Error(t, err)
}

func TestSharedQuoteIsReadable(t *testing.T) {
	f := newFixture(t)
	q, share := sentQuote(t, f)

	detail, err := f.svc.GetShared(context.Background(), share.Token)
	require.NoError(t, err)
	require.Equal(t, q.ID, detail.ID)
}

func TestExpiredShareIsRejected(t *testing.T) {
	f := newFixture(t)
	_, share := sentQuote(t, f)

	stored := f.store.shares[share.Token]
	stored.ExpiresAt = time.Now().Add(-time.Hour)
	f.store.shares[share.Token] = stored

	_, err := f.svc.GetShared(context.Background(), share.Token)
	require.Error(t, err)
	_, err = f.svc.Respond(context.Background(), share.Token, ResponseAccepted)
	require.Error(t, err)
}

func TestRespondAcceptTransitionsQuote(t *testing.T) {
	f := newFixture(t)
	_, share := sentQuote(t, f)

	q, err := f.svc.Respond(context.Background(), share.Token, ResponseAccepted)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, q.Status)

	last := f.events.events[len(f.events.events)-1]
	require.Equal(t, events.TopicQuoteAccepted, last.Topic)

	stored := f.store.shares[share.Token]
	require.NotNil(t, stored.Response)
	require.Equal(t, ResponseAccepted, *stored.Response)
}

func TestRespondDeclineTransitionsQuote(t *testing.T) {
	f := newFixture(t)
	_, share := sentQuote(t, f)

	q, err := f.svc.Respond(context.Background(), share.Token, ResponseDeclined)
	require.NoError(t, err)
	require.Equal(t, StatusDeclined, q.Status)
}

func TestDoubleRespondIsRejected(t *testing.T) {
	f := newFixture(t)
	_, share := sentQuote(t, f)

	_, err := f.svc.Respond(context.Background(), share.Token, ResponseAccepted)
	require.NoError(t, err)

	_, err = f.svc.Respond(context.Background(), share.Token, ResponseDeclined)
	require.Error(t, err)
}

func TestRespondValidatesInput(t *testing.T) {
	f := newFixture(t)
	_, share := sentQuote(t, f)

	_, err := f.svc.Respond(context.Background(), share.Token, "maybe")
	require.Error(t, err)

	_, err = f.svc.Respond(context.Background(), "no-such-token", ResponseAccepted)
	require.Error(t, err)
}
