package pricing_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-cpq/internal/pricing"
)

func TestDecodeTierConditions(t *testing.T) {
	t.Parallel()

	c, err := pricing.DecodeConditions(pricing.RuleTypeTier, []byte(`{"min_qty": 10, "max_qty": 99}`))
	require.NoError(t, err)
	require.NotNil(t, c.Tier)
	require.Equal(t, "10", c.Tier.MinQty.String())
	require.NotNil(t, c.Tier.MaxQty)
	require.Equal(t, "99", c.Tier.MaxQty.String())

	c, err = pricing.DecodeConditions(pricing.RuleTypeTier, []byte(`{"min_qty": 5}`))
	require.NoError(t, err)
	require.Nil(t, c.Tier.MaxQty)
}

func TestDecodeBundleConditions(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	c, err := pricing.DecodeConditions(pricing.RuleTypeBundle, []byte(`{"product_ids": ["11111111-1111-1111-1111-111111111111"]}`))
	require.NoError(t, err)
	require.NotNil(t, c.Bundle)
	require.Equal(t, []uuid.UUID{id}, c.Bundle.ProductIDs)
}

func TestDecodePromotionConditions(t *testing.T) {
	t.Parallel()

	c, err := pricing.DecodeConditions(pricing.RuleTypePromotion, []byte(`{"start_date": "2026-03-01T00:00:00Z"}`))
	require.NoError(t, err)
	require.NotNil(t, c.Promotion)
	require.NotNil(t, c.Promotion.StartDate)
	require.Nil(t, c.Promotion.EndDate)
}

func TestDecodeEmptyAndUnknown(t *testing.T) {
	t.Parallel()

	c, err := pricing.DecodeConditions(pricing.RuleTypeTier, nil)
	require.NoError(t, err)
	require.Nil(t, c.Tier)

	c, err = pricing.DecodeConditions(pricing.RuleType("loyalty"), []byte(`{"anything": true}`))
	require.NoError(t, err)
	require.False(t, c.Malformed)
}

func TestDecodeStoredConditionsMarksMalformed(t *testing.T) {
	t.Parallel()

	c := pricing.DecodeStoredConditions(pricing.RuleTypeTier, []byte(`{"min_qty": "not a number"}`))
	require.True(t, c.Malformed)

	c = pricing.DecodeStoredConditions(pricing.RuleTypeBundle, []byte(`{"product_ids": ["nope"]}`))
	require.True(t, c.Malformed)
}

func TestEncodeConditionsRoundTrip(t *testing.T) {
	t.Parallel()

	in := pricing.Conditions{Tier: &pricing.TierConditions{MinQty: dec("10")}}
	raw, err := pricing.EncodeConditions(pricing.RuleTypeTier, in)
	require.NoError(t, err)
	out, err := pricing.DecodeConditions(pricing.RuleTypeTier, raw)
	require.NoError(t, err)
	require.True(t, out.Tier.MinQty.Equal(in.Tier.MinQty))

	// A union without the matching variant encodes as an empty object.
	raw, err = pricing.EncodeConditions(pricing.RuleTypePromotion, pricing.Conditions{})
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(raw))
}
