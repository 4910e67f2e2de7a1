// Package geometry implements the point-in-shape containment test behind
// area-mapped point responses.
package geometry

import (
	"fmt"
	"math"

	"github.com/open-assess/qtiproc/internal/qti/numeric"
	"github.com/open-assess/qtiproc/internal/qti/value"
)

// Shape enumerates the QTI area shapes.
type Shape string

const (
	Circle  Shape = "circle"
	Rect    Shape = "rect"
	Poly    Shape = "poly"
	Default Shape = "default"
	Ellipse Shape = "ellipse"
)

// ParseShape validates a shape attribute. Ellipse is in the vocabulary but
// unsupported; it must be rejected here rather than silently miscomputed.
func ParseShape(s string) (Shape, error) {
	switch sh := Shape(s); sh {
	case Circle, Rect, Poly, Default:
		return sh, nil
	case Ellipse:
		return "", fmt.Errorf("shape %q is not supported", s)
	}
	return "", fmt.Errorf("invalid shape: %q", s)
}

// CoordsForShape validates the coordinate count for a shape.
func CoordsForShape(shape Shape, coords []float64) error {
	switch shape {
	case Circle:
		if len(coords) != 3 {
			return fmt.Errorf("circle requires 3 coords, got %d", len(coords))
		}
	case Rect:
		if len(coords) != 4 {
			return fmt.Errorf("rect requires 4 coords, got %d", len(coords))
		}
	case Poly:
		if len(coords) < 6 || len(coords)%2 != 0 {
			return fmt.Errorf("poly requires an even number of coords, at least 6, got %d", len(coords))
		}
	case Default:
		if len(coords) != 0 {
			return fmt.Errorf("default shape takes no coords, got %d", len(coords))
		}
	default:
		return fmt.Errorf("invalid shape: %q", shape)
	}
	return nil
}

// IsPointInside reports whether p lies inside the shape. All boundaries are
// inclusive. The shape and coords are assumed validated.
func IsPointInside(shape Shape, coords []float64, p value.PointValue) bool {
	switch shape {
	case Circle:
		return insideCircle(coords, p)
	case Rect:
		return insideRect(coords, p)
	case Poly:
		return insidePoly(coords, p)
	case Default:
		return true
	}
	return false
}

func insideCircle(coords []float64, p value.PointValue) bool {
	dx := numeric.FromFloat(float64(p.X)).Minus(numeric.FromFloat(coords[0]))
	dy := numeric.FromFloat(float64(p.Y)).Minus(numeric.FromFloat(coords[1]))
	r := numeric.FromFloat(coords[2])
	dist2 := dx.MultipliedBy(dx).Plus(dy.MultipliedBy(dy))
	return dist2.ComparedTo(r.MultipliedBy(r)) <= 0
}

func insideRect(coords []float64, p value.PointValue) bool {
	x, y := float64(p.X), float64(p.Y)
	return x >= coords[0] && y >= coords[1] && x <= coords[2] && y <= coords[3]
}

// insidePoly uses the signed-angle-sum test: the signed angles subtended at
// the point by successive polygon edges sum to ±2π inside the polygon and to
// zero outside. The running sum is accumulated through the numeric engine
// and rounded to 6 decimal places before the zero test so boundary cases do
// not drift on accumulated floating error. A point coinciding with a vertex
// counts as inside.
func insidePoly(coords []float64, p value.PointValue) bool {
	vertices := closePolygon(coords)
	px, py := float64(p.X), float64(p.Y)

	sum := numeric.Zero()
	for i := 0; i+3 < len(vertices); i += 2 {
		x1 := vertices[i] - px
		y1 := vertices[i+1] - py
		x2 := vertices[i+2] - px
		y2 := vertices[i+3] - py
		if (x1 == 0 && y1 == 0) || (x2 == 0 && y2 == 0) {
			return true
		}
		cross := x1*y2 - y1*x2
		dot := x1*x2 + y1*y2
		sum = sum.Plus(numeric.FromFloat(math.Atan2(cross, dot)))
	}
	return !sum.Round(6).IsZero()
}

// closePolygon appends the first vertex when the coordinate list is not
// already closed.
func closePolygon(coords []float64) []float64 {
	n := len(coords)
	if n >= 4 && coords[0] == coords[n-2] && coords[1] == coords[n-1] {
		return coords
	}
	closed := make([]float64, n, n+2)
	copy(closed, coords)
	return append(closed, coords[0], coords[1])
}
