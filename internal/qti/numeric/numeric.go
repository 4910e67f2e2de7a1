// Package numeric wraps arbitrary-precision decimal arithmetic for all
// scoring-relevant computation. Mapping sums, tolerance comparisons and
// rounding must route through this package; comparing raw float64 values
// can change a candidate's score at boundary cases.
package numeric

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidNumber reports a string that could not be read as a number.
var ErrInvalidNumber = errors.New("invalid number")

// Number is an immutable exact decimal.
type Number struct {
	dec decimal.Decimal
}

// Parse reads a decimal from its string form. The empty string, whitespace
// and any non-numeric input fail with ErrInvalidNumber.
func Parse(s string) (Number, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Number{}, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return Number{}, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	return Number{dec: d}, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) Number {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return n
}

func FromInt(n int) Number       { return Number{dec: decimal.NewFromInt(int64(n))} }
func FromFloat(f float64) Number { return Number{dec: decimal.NewFromFloat(f)} }
func Zero() Number               { return Number{} }

// ComparedTo returns -1, 0 or 1.
func (n Number) ComparedTo(o Number) int { return n.dec.Cmp(o.dec) }

func (n Number) Plus(o Number) Number         { return Number{dec: n.dec.Add(o.dec)} }
func (n Number) Minus(o Number) Number        { return Number{dec: n.dec.Sub(o.dec)} }
func (n Number) MultipliedBy(o Number) Number { return Number{dec: n.dec.Mul(o.dec)} }

// DividedBy divides with the library's extended precision. Division by zero
// is the caller's responsibility to rule out.
func (n Number) DividedBy(o Number) Number { return Number{dec: n.dec.Div(o.dec)} }

func (n Number) Modulo(o Number) Number { return Number{dec: n.dec.Mod(o.dec)} }

// Round rounds to places decimal places, halves away from zero.
func (n Number) Round(places int32) Number { return Number{dec: n.dec.Round(places)} }

func (n Number) IsZero() bool     { return n.dec.IsZero() }
func (n Number) IsNegative() bool { return n.dec.IsNegative() }

// String is the canonical lossless form: round-tripping through Parse
// yields an equal Number.
func (n Number) String() string { return n.dec.String() }

func (n Number) Float64() float64 { return n.dec.InexactFloat64() }
func (n Number) Int() int         { return int(n.dec.IntPart()) }

// IsInteger reports whether the value has no fractional part.
func (n Number) IsInteger() bool { return n.dec.IsInteger() }

// GCD computes the greatest common divisor by the Euclidean algorithm.
func GCD(a, b Number) Number {
	if b.IsZero() {
		return a
	}
	return GCD(b, a.Modulo(b))
}

// LCM is a*b/gcd(a,b). Zero operands yield zero.
func LCM(a, b Number) Number {
	if a.IsZero() || b.IsZero() {
		return Zero()
	}
	return a.MultipliedBy(b).DividedBy(GCD(a, b))
}

// GeneralizedGCD folds GCD pairwise across nums. It panics on an empty slice.
func GeneralizedGCD(nums []Number) Number {
	v := nums[0]
	for _, n := range nums[1:] {
		v = GCD(v, n)
	}
	return v
}

// GeneralizedLCM folds LCM pairwise across nums; any zero element makes the
// result zero.
func GeneralizedLCM(nums []Number) Number {
	v := nums[0]
	for _, n := range nums[1:] {
		if v.IsZero() || n.IsZero() {
			return Zero()
		}
		v = LCM(v, n)
	}
	return v
}
