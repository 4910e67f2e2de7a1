package value

import (
	"fmt"
	"strconv"

	"github.com/open-assess/qtiproc/internal/qti/numeric"
)

// PairValue holds the two components of a pair or directedPair.
type PairValue struct {
	First  string
	Second string
}

// PointValue holds the two components of a point.
type PointValue struct {
	X int
	Y int
}

// Scalar is one atomic value of a single base type. Only the field matching
// Type is meaningful; construct through the New* helpers.
type Scalar struct {
	Type  BaseType
	Bool  bool
	Int   int
	Float float64 // float and duration (seconds)
	Str   string  // string, identifier, uri
	Pair  PairValue
	Point PointValue
	Data  []byte // file payload
}

func NewBoolean(b bool) Scalar        { return Scalar{Type: Boolean, Bool: b} }
func NewInteger(n int) Scalar         { return Scalar{Type: Integer, Int: n} }
func NewFloat(f float64) Scalar       { return Scalar{Type: Float, Float: f} }
func NewDuration(secs float64) Scalar { return Scalar{Type: Duration, Float: secs} }
func NewString(s string) Scalar       { return Scalar{Type: String, Str: s} }
func NewIdentifier(s string) Scalar   { return Scalar{Type: Identifier, Str: s} }
func NewURI(s string) Scalar          { return Scalar{Type: URI, Str: s} }
func NewPoint(x, y int) Scalar        { return Scalar{Type: Point, Point: PointValue{X: x, Y: y}} }
func NewPair(a, b string) Scalar      { return Scalar{Type: Pair, Pair: PairValue{First: a, Second: b}} }
func NewFile(data []byte) Scalar      { return Scalar{Type: File, Data: data} }

func NewDirectedPair(a, b string) Scalar {
	return Scalar{Type: DirectedPair, Pair: PairValue{First: a, Second: b}}
}

// Number converts a numeric scalar into the exact decimal engine.
func (s Scalar) Number() (numeric.Number, bool) {
	switch s.Type {
	case Integer:
		return numeric.FromInt(s.Int), true
	case Float, Duration:
		return numeric.FromFloat(s.Float), true
	}
	return numeric.Number{}, false
}

// Equal compares two scalars of the same base type. Numeric comparison goes
// through the numeric engine; pair equality ignores component order while
// directedPair does not.
func (s Scalar) Equal(o Scalar) bool {
	if s.Type != o.Type {
		// integer/float cross-comparison is still numeric equality
		if s.Type.IsNumeric() && o.Type.IsNumeric() {
			a, _ := s.Number()
			b, _ := o.Number()
			return a.ComparedTo(b) == 0
		}
		return false
	}
	switch s.Type {
	case Boolean:
		return s.Bool == o.Bool
	case Integer:
		return s.Int == o.Int
	case Float, Duration:
		a, _ := s.Number()
		b, _ := o.Number()
		return a.ComparedTo(b) == 0
	case String, Identifier, URI:
		return s.Str == o.Str
	case Point:
		return s.Point == o.Point
	case DirectedPair:
		return s.Pair == o.Pair
	case Pair:
		return s.Pair == o.Pair ||
			(s.Pair.First == o.Pair.Second && s.Pair.Second == o.Pair.First)
	case File:
		return string(s.Data) == string(o.Data)
	}
	return false
}

// Key is the canonical string form used for sorting, deduplication and map
// keys. Numeric values are canonicalized through the numeric engine so
// "1.50" and "1.5" collapse to the same key.
func (s Scalar) Key() string {
	switch s.Type {
	case Boolean:
		return strconv.FormatBool(s.Bool)
	case Integer:
		return strconv.Itoa(s.Int)
	case Float, Duration:
		return numeric.FromFloat(s.Float).String()
	case String, Identifier, URI:
		return s.Str
	case Point:
		return fmt.Sprintf("%d %d", s.Point.X, s.Point.Y)
	case Pair, DirectedPair:
		return s.Pair.First + " " + s.Pair.Second
	case File:
		return string(s.Data)
	}
	return ""
}
