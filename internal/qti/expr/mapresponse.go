package expr

import (
	"github.com/open-assess/qtiproc/internal/qti/decls"
	"github.com/open-assess/qtiproc/internal/qti/geometry"
	"github.com/open-assess/qtiproc/internal/qti/mapping"
	"github.com/open-assess/qtiproc/internal/qti/value"
)

// MapResponse is qti-map-response: a response variable mapped through its
// declared mapping table.
type MapResponse struct {
	Identifier string
}

func (e *MapResponse) Evaluate(ctx *decls.Context) (value.Value, error) {
	d := ctx.ResponseDeclaration(e.Identifier)
	if d == nil || d.Mapping == nil {
		return nullValue(), nil
	}
	return mapping.MapResponse(d.Mapping, d.Value), nil
}

// MapResponsePoint is qti-map-response-point: a point response mapped
// through its declared area mapping.
type MapResponsePoint struct {
	Identifier string
}

func (e *MapResponsePoint) Evaluate(ctx *decls.Context) (value.Value, error) {
	d := ctx.ResponseDeclaration(e.Identifier)
	if d == nil || d.AreaMapping == nil {
		return nullValue(), nil
	}
	return mapping.MapResponsePoint(d.AreaMapping, d.Value), nil
}

// Inside is qti-inside: whether any point of the child value falls inside
// the given area.
type Inside struct {
	Shape  geometry.Shape
	Coords []float64
	Expr   Expression
}

func (e *Inside) Evaluate(ctx *decls.Context) (value.Value, error) {
	v, err := e.Expr.Evaluate(ctx)
	if err != nil {
		return nullValue(), err
	}
	if v.IsNull() || v.BaseType() != value.Point {
		return nullValue(), nil
	}
	if s, ok := v.Single(); ok {
		return boolValue(geometry.IsPointInside(e.Shape, e.Coords, s.Point)), nil
	}
	list, ok := v.List()
	if !ok {
		return nullValue(), nil
	}
	for _, s := range list {
		if geometry.IsPointInside(e.Shape, e.Coords, s.Point) {
			return boolValue(true), nil
		}
	}
	return boolValue(false), nil
}
