package pricing

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidQuantity is returned when a pricing context carries a non-positive quantity.
	ErrInvalidQuantity = errors.New("pricing: quantity must be positive")
	// ErrInvalidPrice is returned when a pricing context carries a negative base price.
	ErrInvalidPrice = errors.New("pricing: base price must not be negative")
)

// CustomerLevel is the pricing tier assigned to a customer.
type CustomerLevel string

// Known customer levels.
const (
	CustomerLevelVIP    CustomerLevel = "vip"
	CustomerLevelNormal CustomerLevel = "normal"
	CustomerLevelNew    CustomerLevel = "new"
)

// Valid reports whether the level is one of the known values.
func (l CustomerLevel) Valid() bool {
	switch l {
	case CustomerLevelVIP, CustomerLevelNormal, CustomerLevelNew:
		return true
	}
	return false
}

// Context carries everything needed to price a single quote line. It is built
// per call and discarded; it has no stored identity.
type Context struct {
	ProductID  uuid.UUID
	CategoryID *uuid.UUID
	Quantity   decimal.Decimal
	Level      CustomerLevel
	BasePrice  decimal.Decimal
	OrgID      string
}

// Validate rejects caller contract violations before any rule is evaluated.
// Malformed rules are never an error; malformed contexts always are.
func (c Context) Validate() error {
	if !c.Quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if c.BasePrice.IsNegative() {
		return ErrInvalidPrice
	}
	return nil
}
