package pricing

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Grouped holds applicable rules keyed by type, each group sorted by
// descending priority. Ties keep the caller's original order.
type Grouped map[RuleType][]Rule

// Best returns the highest-priority rule of the given type, if any.
func (g Grouped) Best(t RuleType) (Rule, bool) {
	rules := g[t]
	if len(rules) == 0 {
		return Rule{}, false
	}
	return rules[0], true
}

// SelectApplicable narrows the candidate set to rules matching the context
// and groups them by type. The compositor only ever consumes the head of
// each group, so rules of the same type never stack.
func SelectApplicable(c Context, rules []Rule, now time.Time) Grouped {
	grouped := Grouped{}
	for _, r := range rules {
		if r.Applicable(c, now) {
			grouped[r.Type] = append(grouped[r.Type], r)
		}
	}
	for t := range grouped {
		group := grouped[t]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Priority > group[j].Priority
		})
	}
	return grouped
}

// AppliedRule is one entry of the audit trail. DiscountAmount is the
// resulting absolute discount in currency units, never the raw rule value.
type AppliedRule struct {
	RuleID         uuid.UUID       `json:"rule_id"`
	RuleName       string          `json:"rule_name"`
	RuleType       RuleType        `json:"rule_type"`
	DiscountType   DiscountType    `json:"discount_type"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Priority       int             `json:"priority"`
}

// Result is the outcome of pricing a single line. Callers copy the fields
// they persist onto the quote line; the result itself is never stored.
type Result struct {
	OriginalPrice      decimal.Decimal `json:"original_price"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	LineTotal          decimal.Decimal `json:"line_total"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	AppliedRules       []AppliedRule   `json:"applied_rules"`
}

// ApplyDiscounts walks the fixed type order and applies at most one rule per
// type to the running price. It returns the final (unrounded) price, the sum
// of recorded discounts, and the audit trail ordered by application.
func ApplyDiscounts(basePrice decimal.Decimal, grouped Grouped) (decimal.Decimal, decimal.Decimal, []AppliedRule) {
	price := basePrice
	totalDiscount := decimal.Zero
	applied := make([]AppliedRule, 0, len(ApplyOrder))
	for _, t := range ApplyOrder {
		rule, ok := grouped.Best(t)
		if !ok {
			continue
		}
		next, amount := applyDiscount(price, rule.DiscountType, rule.DiscountValue)
		price = next
		// A rule enters the audit trail only when it produced a positive
		// discount. A price-raising override therefore changes the price but
		// stays unrecorded.
		if amount.IsPositive() {
			totalDiscount = totalDiscount.Add(amount)
			applied = append(applied, AppliedRule{
				RuleID:         rule.ID,
				RuleName:       rule.Name,
				RuleType:       rule.Type,
				DiscountType:   rule.DiscountType,
				DiscountValue:  rule.DiscountValue,
				DiscountAmount: amount,
				Priority:       rule.Priority,
			})
		}
	}
	return price, totalDiscount, applied
}

// applyDiscount returns the discounted price and the signed discount amount
// for a single rule against the current running price.
func applyDiscount(price decimal.Decimal, t DiscountType, value decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	switch t {
	case DiscountPercentage:
		amount := price.Mul(value).Div(hundred)
		return price.Sub(amount), amount
	case DiscountFixed:
		// Never discounts below zero and never reports more than the price.
		amount := value
		if amount.GreaterThan(price) {
			amount = price
		}
		next := price.Sub(value)
		if next.IsNegative() {
			next = decimal.Zero
		}
		return next, amount
	case DiscountPriceOverride:
		// The amount may be negative when the override raises the price.
		return value, price.Sub(value)
	default:
		return price, decimal.Zero
	}
}

// Calculate prices one line end to end: validates the context, selects
// applicable rules, composes discounts and rounds the money fields to two
// decimals. It is pure; calling it twice with the same inputs yields
// identical results.
func Calculate(c Context, rules []Rule, now time.Time) (Result, error) {
	if err := c.Validate(); err != nil {
		return Result{}, err
	}
	grouped := SelectApplicable(c, rules, now)
	final, totalDiscount, applied := ApplyDiscounts(c.BasePrice, grouped)

	unitPrice := final.Round(2)
	lineTotal := final.Mul(c.Quantity).Round(2)
	discountPct := decimal.Zero
	if c.BasePrice.IsPositive() {
		discountPct = c.BasePrice.Sub(unitPrice).Div(c.BasePrice).Mul(hundred).Round(2)
	}
	return Result{
		OriginalPrice:      c.BasePrice,
		UnitPrice:          unitPrice,
		LineTotal:          lineTotal,
		DiscountPercentage: discountPct,
		DiscountAmount:     totalDiscount.Round(2),
		AppliedRules:       applied,
	}, nil
}
