package geometry_test

import (
	"testing"

	"github.com/open-assess/qtiproc/internal/qti/geometry"
	"github.com/open-assess/qtiproc/internal/qti/value"
)

func pt(x, y int) value.PointValue { return value.PointValue{X: x, Y: y} }

func TestParseShape(t *testing.T) {
	if _, err := geometry.ParseShape("ellipse"); err == nil {
		t.Error("ellipse should be rejected")
	}
	if _, err := geometry.ParseShape("blob"); err == nil {
		t.Error("unknown shape should be rejected")
	}
	if _, err := geometry.ParseShape("poly"); err != nil {
		t.Errorf("poly: %v", err)
	}
}

func TestCoordsForShape(t *testing.T) {
	cases := []struct {
		shape  geometry.Shape
		coords []float64
		ok     bool
	}{
		{geometry.Circle, []float64{10, 10, 5}, true},
		{geometry.Circle, []float64{10, 10}, false},
		{geometry.Rect, []float64{0, 0, 10, 10}, true},
		{geometry.Rect, []float64{0, 0, 10}, false},
		{geometry.Poly, []float64{0, 0, 10, 0, 5, 8}, true},
		{geometry.Poly, []float64{0, 0, 10, 0}, false},
		{geometry.Poly, []float64{0, 0, 10, 0, 5}, false},
		{geometry.Default, nil, true},
	}
	for _, tc := range cases {
		err := geometry.CoordsForShape(tc.shape, tc.coords)
		if (err == nil) != tc.ok {
			t.Errorf("CoordsForShape(%s, %v): err = %v, want ok=%v", tc.shape, tc.coords, err, tc.ok)
		}
	}
}

func TestCircleContainment(t *testing.T) {
	coords := []float64{10, 10, 5}
	if !geometry.IsPointInside(geometry.Circle, coords, pt(10, 10)) {
		t.Error("center should be inside")
	}
	if !geometry.IsPointInside(geometry.Circle, coords, pt(15, 10)) {
		t.Error("boundary point should be inside")
	}
	if geometry.IsPointInside(geometry.Circle, coords, pt(16, 10)) {
		t.Error("outside point should not be inside")
	}
}

func TestRectContainment(t *testing.T) {
	coords := []float64{0, 0, 10, 10}
	for _, in := range []value.PointValue{pt(0, 0), pt(10, 10), pt(5, 5), pt(0, 10)} {
		if !geometry.IsPointInside(geometry.Rect, coords, in) {
			t.Errorf("point %v should be inside", in)
		}
	}
	for _, out := range []value.PointValue{pt(-1, 5), pt(11, 5), pt(5, 11)} {
		if geometry.IsPointInside(geometry.Rect, coords, out) {
			t.Errorf("point %v should be outside", out)
		}
	}
}

func TestPolyContainment(t *testing.T) {
	// Triangle (0,0) (10,0) (5,8), not pre-closed.
	coords := []float64{0, 0, 10, 0, 5, 8}
	if !geometry.IsPointInside(geometry.Poly, coords, pt(5, 3)) {
		t.Error("interior point should be inside")
	}
	if geometry.IsPointInside(geometry.Poly, coords, pt(20, 20)) {
		t.Error("exterior point should be outside")
	}
	if !geometry.IsPointInside(geometry.Poly, coords, pt(0, 0)) {
		t.Error("vertex should count as inside")
	}

	// Concave polygon: interior notch point is outside.
	concave := []float64{0, 0, 10, 0, 10, 10, 5, 4, 0, 10}
	if !geometry.IsPointInside(geometry.Poly, concave, pt(2, 2)) {
		t.Error("point in concave body should be inside")
	}
	if geometry.IsPointInside(geometry.Poly, concave, pt(5, 8)) {
		t.Error("point in the notch should be outside")
	}
}

func TestDefaultShape(t *testing.T) {
	if !geometry.IsPointInside(geometry.Default, nil, pt(-100, -100)) {
		t.Error("default shape contains every point")
	}
}
