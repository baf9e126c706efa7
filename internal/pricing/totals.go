package pricing

import "github.com/shopspring/decimal"

// DefaultTaxRate is applied when a quote does not carry an explicit rate.
var DefaultTaxRate = decimal.NewFromFloat(0.05)

// LineItem is the minimal shape the totals aggregator needs from a priced
// quote line.
type LineItem struct {
	UnitPrice decimal.Decimal
	Quantity  decimal.Decimal
}

// Totals are the quote-header figures derived from the current line items.
// They are recomputed from scratch whenever lines change, never patched.
type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// CalculateTotals sums the line items and applies the whole-quote discount
// and tax. The taxable amount is deliberately not clamped: a discount larger
// than the subtotal propagates as a negative taxable amount and a negative
// tax amount.
func CalculateTotals(items []LineItem, taxRate, discountAmount decimal.Decimal) Totals {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.UnitPrice.Mul(it.Quantity))
	}
	subtotal := sum.Round(2)
	taxable := subtotal.Sub(discountAmount)
	tax := taxable.Mul(taxRate).Round(2)
	return Totals{
		Subtotal:    subtotal,
		TaxAmount:   tax,
		TotalAmount: taxable.Add(tax).Round(2),
	}
}
