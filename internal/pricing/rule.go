package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RuleType is the mutually exclusive category of a pricing rule. At most one
// rule per type is ever applied to a line.
type RuleType string

// Known rule types, listed in their fixed application order.
const (
	RuleTypePromotion     RuleType = "promotion"
	RuleTypeBundle        RuleType = "bundle"
	RuleTypeTier          RuleType = "tier"
	RuleTypeCustomerLevel RuleType = "customer_level"
)

// ApplyOrder is the fixed order in which rule types are composed, regardless
// of individual rule priorities.
var ApplyOrder = []RuleType{RuleTypePromotion, RuleTypeBundle, RuleTypeTier, RuleTypeCustomerLevel}

// KnownRuleType reports whether t is one of the four built-in types.
func KnownRuleType(t RuleType) bool {
	switch t {
	case RuleTypePromotion, RuleTypeBundle, RuleTypeTier, RuleTypeCustomerLevel:
		return true
	}
	return false
}

// DiscountType describes how a rule's discount value is interpreted.
type DiscountType string

// Known discount types.
const (
	DiscountPercentage    DiscountType = "percentage"
	DiscountFixed         DiscountType = "fixed"
	DiscountPriceOverride DiscountType = "price_override"
)

// KnownDiscountType reports whether t is one of the built-in discount types.
func KnownDiscountType(t DiscountType) bool {
	switch t {
	case DiscountPercentage, DiscountFixed, DiscountPriceOverride:
		return true
	}
	return false
}

// TierConditions gates a rule on the ordered quantity. A missing lower bound
// defaults to zero; a missing upper bound is unbounded.
type TierConditions struct {
	MinQty decimal.Decimal  `json:"min_qty"`
	MaxQty *decimal.Decimal `json:"max_qty,omitempty"`
}

// CustomerLevelConditions gates a rule on the customer's level. An empty
// level acts as a wildcard.
type CustomerLevelConditions struct {
	Level CustomerLevel `json:"level,omitempty"`
}

// BundleConditions gates a rule on membership of a product set. An empty set
// never matches.
type BundleConditions struct {
	ProductIDs []uuid.UUID `json:"product_ids"`
}

// PromotionConditions gates a rule on a date window, inclusive on both
// bounds. An absent bound is unbounded on that side.
type PromotionConditions struct {
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// Conditions is the type-dependent payload of a rule modelled as a tagged
// union: the variant matching the rule's type is consulted, all others are
// ignored. A nil variant falls back to that type's default semantics
// (tier from zero, wildcard level, unbounded promotion, never-matching
// bundle). Malformed marks a payload that failed to decode; the rule then
// never matches instead of erroring.
type Conditions struct {
	Tier          *TierConditions          `json:"tier,omitempty"`
	CustomerLevel *CustomerLevelConditions `json:"customerLevel,omitempty"`
	Bundle        *BundleConditions        `json:"bundle,omitempty"`
	Promotion     *PromotionConditions     `json:"promotion,omitempty"`
	Malformed     bool                     `json:"-"`
}

// Rule is a single pricing rule as stored by the rule repository. The engine
// only ever reads rules; ownership stays with the caller.
type Rule struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	OrgID         string          `json:"orgId"`
	Type          RuleType        `json:"type"`
	ProductID     *uuid.UUID      `json:"productId,omitempty"`
	CategoryID    *uuid.UUID      `json:"categoryId,omitempty"`
	Conditions    Conditions      `json:"conditions"`
	DiscountType  DiscountType    `json:"discountType"`
	DiscountValue decimal.Decimal `json:"discountValue"`
	Priority      int             `json:"priority"`
	Active        bool            `json:"active"`
	StartDate     *time.Time      `json:"startDate,omitempty"`
	EndDate       *time.Time      `json:"endDate,omitempty"`
}

// Applicable reports whether the rule matches the context at the given
// instant. Callers are expected to pre-filter to active rules, but inactive
// rules are rejected here regardless.
func (r Rule) Applicable(c Context, now time.Time) bool {
	if !r.Active {
		return false
	}
	if !r.scopeMatch(c) {
		return false
	}
	if !KnownRuleType(r.Type) {
		// Unknown types match unconditionally; their discount is a no-op anyway.
		return true
	}
	if r.Conditions.Malformed {
		return false
	}
	switch r.Type {
	case RuleTypeTier:
		return r.tierMatch(c)
	case RuleTypeCustomerLevel:
		return r.levelMatch(c)
	case RuleTypeBundle:
		return r.bundleMatch(c)
	case RuleTypePromotion:
		return r.promotionMatch(now)
	}
	return false
}

// scopeMatch is a disjunction: an unset-or-equal product scope OR an
// unset-or-equal category scope satisfies it.
func (r Rule) scopeMatch(c Context) bool {
	productOK := r.ProductID == nil || *r.ProductID == c.ProductID
	categoryOK := r.CategoryID == nil || (c.CategoryID != nil && *r.CategoryID == *c.CategoryID)
	return productOK || categoryOK
}

func (r Rule) tierMatch(c Context) bool {
	min := decimal.Zero
	var max *decimal.Decimal
	if t := r.Conditions.Tier; t != nil {
		min = t.MinQty
		max = t.MaxQty
	}
	if c.Quantity.LessThan(min) {
		return false
	}
	if max != nil && c.Quantity.GreaterThan(*max) {
		return false
	}
	return true
}

func (r Rule) levelMatch(c Context) bool {
	cl := r.Conditions.CustomerLevel
	if cl == nil || cl.Level == "" {
		return true
	}
	return cl.Level == c.Level
}

func (r Rule) bundleMatch(c Context) bool {
	b := r.Conditions.Bundle
	if b == nil || len(b.ProductIDs) == 0 {
		return false
	}
	for _, id := range b.ProductIDs {
		if id == c.ProductID {
			return true
		}
	}
	return false
}

func (r Rule) promotionMatch(now time.Time) bool {
	p := r.Conditions.Promotion
	if p == nil {
		return true
	}
	if p.StartDate != nil && now.Before(*p.StartDate) {
		return false
	}
	if p.EndDate != nil && now.After(*p.EndDate) {
		return false
	}
	return true
}
