package model

import (
	"github.com/shopspring/decimal"

	"main/internal/errors"
)

var (
	ErrEmptyNumeric    = errors.New("empty numeric text")
	ErrNonPositive     = errors.New("value must be strictly positive")
	ErrMalformedNumber = errors.New("malformed numeric text")
)

// Price is an exact-decimal traded price. Construction rejects zero, negative
// and malformed textual input; arithmetic on the embedded decimal may produce
// zero or negative intermediate values, which stay plain decimals.
type Price struct {
	decimal.Decimal
}

// NewPrice parses a strictly positive decimal price from text.
func NewPrice(s string) (Price, error) {
	d, err := parsePositive(s)
	if err != nil {
		return Price{}, errors.Wrap(err, "parse price")
	}

	return Price{d}, nil
}

// RequirePrice parses s and panics on invalid input.
func RequirePrice(s string) Price {
	p, err := NewPrice(s)
	if err != nil {
		panic(err)
	}

	return p
}

// PriceFromDecimal wraps an already-validated positive decimal.
func PriceFromDecimal(d decimal.Decimal) (Price, error) {
	if !d.IsPositive() {
		return Price{}, errors.Wrap(ErrNonPositive, "price from decimal")
	}

	return Price{d}, nil
}

func (p Price) Equal(o Price) bool        { return p.Decimal.Equal(o.Decimal) }
func (p Price) Cmp(o Price) int           { return p.Decimal.Cmp(o.Decimal) }
func (p Price) LessThan(o Price) bool     { return p.Decimal.LessThan(o.Decimal) }
func (p Price) GreaterThan(o Price) bool  { return p.Decimal.GreaterThan(o.Decimal) }
func (p Price) IsZero() bool              { return p.Decimal.IsZero() }

// Ratio returns the dimensionless quotient p/o.
func (p Price) Ratio(o Price) decimal.Decimal {
	return p.Decimal.Div(o.Decimal)
}

// Size is an exact-decimal traded quantity. The validated constructors reject
// zero and negative input. The Go zero value represents quantity zero and is
// used as the level-removal sentinel in book deltas; it is never stored in a
// book and never produced by NewSize.
type Size struct {
	decimal.Decimal
}

// NewSize parses a strictly positive decimal quantity from text.
func NewSize(s string) (Size, error) {
	d, err := parsePositive(s)
	if err != nil {
		return Size{}, errors.Wrap(err, "parse size")
	}

	return Size{d}, nil
}

// RequireSize parses s and panics on invalid input.
func RequireSize(s string) Size {
	q, err := NewSize(s)
	if err != nil {
		panic(err)
	}

	return q
}

// SizeFromDecimal wraps an already-validated positive decimal.
func SizeFromDecimal(d decimal.Decimal) (Size, error) {
	if !d.IsPositive() {
		return Size{}, errors.Wrap(ErrNonPositive, "size from decimal")
	}

	return Size{d}, nil
}

func (s Size) Equal(o Size) bool       { return s.Decimal.Equal(o.Decimal) }
func (s Size) Cmp(o Size) int          { return s.Decimal.Cmp(o.Decimal) }
func (s Size) LessThan(o Size) bool    { return s.Decimal.LessThan(o.Decimal) }
func (s Size) GreaterThan(o Size) bool { return s.Decimal.GreaterThan(o.Decimal) }
func (s Size) IsZero() bool            { return s.Decimal.IsZero() }

// Notional returns price times size, the monetary value of the quantity.
// The result is a plain decimal, not a Price or Size.
func Notional(p Price, s Size) decimal.Decimal {
	return p.Decimal.Mul(s.Decimal)
}

func parsePositive(s string) (decimal.Decimal, error) {
	if len(s) == 0 {
		return decimal.Decimal{}, ErrEmptyNumeric
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, ErrMalformedNumber
	}

	if !d.IsPositive() {
		return decimal.Decimal{}, ErrNonPositive
	}

	return d, nil
}
