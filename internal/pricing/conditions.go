package pricing

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeConditions parses a raw conditions payload for the given rule type
// into the tagged union. Unknown rule types decode to an empty union. The
// error is for write-path validation; read paths that want the engine's
// never-match behaviour instead should use DecodeStoredConditions.
func DecodeConditions(t RuleType, raw []byte) (Conditions, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return Conditions{}, nil
	}
	var c Conditions
	var err error
	switch t {
	case RuleTypeTier:
		var v TierConditions
		if err = strictUnmarshal(raw, &v); err == nil {
			c.Tier = &v
		}
	case RuleTypeCustomerLevel:
		var v CustomerLevelConditions
		if err = strictUnmarshal(raw, &v); err == nil {
			c.CustomerLevel = &v
		}
	case RuleTypeBundle:
		var v BundleConditions
		if err = strictUnmarshal(raw, &v); err == nil {
			c.Bundle = &v
		}
	case RuleTypePromotion:
		var v PromotionConditions
		if err = strictUnmarshal(raw, &v); err == nil {
			c.Promotion = &v
		}
	default:
		return Conditions{}, nil
	}
	if err != nil {
		return Conditions{}, fmt.Errorf("pricing: decode %s conditions: %w", t, err)
	}
	return c, nil
}

// DecodeStoredConditions converts a stored payload without failing: a payload
// that no longer parses yields a Malformed union, which the engine treats as
// "rule does not match". A single bad rule must never block a quote
// calculation.
func DecodeStoredConditions(t RuleType, raw []byte) Conditions {
	c, err := DecodeConditions(t, raw)
	if err != nil {
		return Conditions{Malformed: true}
	}
	return c
}

// EncodeConditions serialises the variant selected by the rule type back to
// its wire shape.
func EncodeConditions(t RuleType, c Conditions) ([]byte, error) {
	switch t {
	case RuleTypeTier:
		if c.Tier != nil {
			return json.Marshal(c.Tier)
		}
	case RuleTypeCustomerLevel:
		if c.CustomerLevel != nil {
			return json.Marshal(c.CustomerLevel)
		}
	case RuleTypeBundle:
		if c.Bundle != nil {
			return json.Marshal(c.Bundle)
		}
	case RuleTypePromotion:
		if c.Promotion != nil {
			return json.Marshal(c.Promotion)
		}
	}
	return []byte("{}"), nil
}

func strictUnmarshal(raw []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	return dec.Decode(dst)
}
