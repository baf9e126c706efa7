package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-cpq/internal/pricing"
)

func TestQuoteTotalsScenario(t *testing.T) {
	t.Parallel()

	items := []pricing.LineItem{{UnitPrice: dec("90"), Quantity: dec("20")}}
	totals := pricing.CalculateTotals(items, dec("0.05"), dec("100"))
	require.Equal(t, "1800.00", totals.Subtotal.StringFixed(2))
	require.Equal(t, "85.00", totals.TaxAmount.StringFixed(2))
	require.Equal(t, "1785.00", totals.TotalAmount.StringFixed(2))
}

func TestQuoteTotalsNegativeTaxableIsNotClamped(t *testing.T) {
	t.Parallel()

	items := []pricing.LineItem{{UnitPrice: dec("40"), Quantity: dec("1")}}
	totals := pricing.CalculateTotals(items, dec("0.10"), dec("100"))
	require.Equal(t, "40.00", totals.Subtotal.StringFixed(2))
	require.Equal(t, "-6.00", totals.TaxAmount.StringFixed(2))
	require.Equal(t, "-66.00", totals.TotalAmount.StringFixed(2))
}

func TestQuoteTotalsAdditivity(t *testing.T) {
	t.Parallel()

	items := []pricing.LineItem{
		{UnitPrice: dec("19.99"), Quantity: dec("3")},
		{UnitPrice: dec("0.07"), Quantity: dec("11")},
		{UnitPrice: dec("120.50"), Quantity: dec("2.5")},
	}
	totals := pricing.CalculateTotals(items, dec("0"), dec("0"))

	lineSum := dec("0")
	for _, it := range items {
		lineSum = lineSum.Add(it.UnitPrice.Mul(it.Quantity).Round(2))
	}
	diff := totals.Subtotal.Sub(lineSum).Abs()
	require.True(t, diff.LessThanOrEqual(dec("0.01")), "subtotal drifted by %s", diff)
	require.True(t, totals.TaxAmount.IsZero())
	require.True(t, totals.TotalAmount.Equal(totals.Subtotal))
}

func TestQuoteTotalsEmptyItems(t *testing.T) {
	t.Parallel()

	totals := pricing.CalculateTotals(nil, pricing.DefaultTaxRate, dec("0"))
	require.True(t, totals.Subtotal.IsZero())
	require.True(t, totals.TaxAmount.IsZero())
	require.True(t, totals.TotalAmount.IsZero())
}

func TestQuoteTotalsOrderIndependent(t *testing.T) {
	t.Parallel()

	a := []pricing.LineItem{
		{UnitPrice: dec("10.01"), Quantity: dec("2")},
		{UnitPrice: dec("33.33"), Quantity: dec("3")},
		{UnitPrice: dec("5"), Quantity: dec("0.5")},
	}
	b := []pricing.LineItem{a[2], a[0], a[1]}

	ta := pricing.CalculateTotals(a, dec("0.05"), dec("7"))
	tb := pricing.CalculateTotals(b, dec("0.05"), dec("7"))
	require.Equal(t, ta.Subtotal.StringFixed(2), tb.Subtotal.StringFixed(2))
	require.Equal(t, ta.TaxAmount.StringFixed(2), tb.TaxAmount.StringFixed(2))
	require.Equal(t, ta.TotalAmount.StringFixed(2), tb.TotalAmount.StringFixed(2))
}
