package mapping

import (
	"sort"
	"strings"

	"github.com/open-assess/qtiproc/internal/qti/geometry"
	"github.com/open-assess/qtiproc/internal/qti/numeric"
	"github.com/open-assess/qtiproc/internal/qti/value"
)

// MapResponse maps a response value through the table and returns a
// single-cardinality float.
//
// Single cardinality: the first entry whose key matches the (canonicalized)
// response wins. Multiple/ordered cardinality: duplicates are collapsed
// first, then every entry is tested against every distinct container value
// and matching contributions are summed. The result is clamped to the
// table's bounds; a null response or no match yields the table default.
func MapResponse(t *Table, v value.Value) value.Value {
	if t == nil {
		return value.NewNull(value.Float, value.Single)
	}
	if v.IsNull() {
		return floatValue(t.DefaultValue)
	}

	switch v.Cardinality() {
	case value.Single:
		s, _ := v.Single()
		for _, e := range t.Entries {
			if keysMatch(e, s) {
				return floatValue(t.ApplyConstraints(e.MappedValue))
			}
		}

	case value.Multiple, value.Ordered:
		scalars, _ := v.List()
		distinct := dedupeScalars(scalars)
		sum := numeric.Zero()
		for _, e := range t.Entries {
			for _, s := range distinct {
				if keysMatch(e, s) {
					sum = sum.Plus(e.MappedValue)
				}
			}
		}
		return floatValue(t.ApplyConstraints(sum))
	}

	return floatValue(t.DefaultValue)
}

// keysMatch compares a map key against a response scalar. Only responses with
// a numeric base type compare through the numeric engine; everything else
// compares as a string under the entry's case rule, so a string response
// "1e2" never matches the key "100".
func keysMatch(e Entry, s value.Scalar) bool {
	if s.Type.IsNumeric() {
		if kn, err := numeric.Parse(e.MapKey); err == nil {
			if sn, ok := s.Number(); ok {
				return kn.ComparedTo(sn) == 0
			}
		}
	}
	if e.CaseSensitive {
		return e.MapKey == s.Key()
	}
	return strings.EqualFold(e.MapKey, s.Key())
}

// dedupeScalars drops duplicate container values, preserving first-seen order.
func dedupeScalars(scalars []value.Scalar) []value.Scalar {
	seen := make(map[string]bool, len(scalars))
	distinct := make([]value.Scalar, 0, len(scalars))
	for _, s := range scalars {
		k := s.Key()
		if !seen[k] {
			seen[k] = true
			distinct = append(distinct, s)
		}
	}
	return distinct
}

// MapValueFromLookupTable maps a numeric outcome through a lookup table.
// A nil table yields null; a null input yields the table default.
func MapValueFromLookupTable(t *LookupTable, v value.Value) value.Value {
	if t == nil {
		return value.NewNull("", value.Single)
	}
	s, ok := v.Single()
	if v.IsNull() || !ok {
		return t.DefaultValue
	}
	source, ok := s.Number()
	if !ok {
		return t.DefaultValue
	}

	switch t.Kind {
	case Interpolation:
		entries := make([]LookupEntry, len(t.Entries))
		copy(entries, t.Entries)
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].SourceValue.ComparedTo(entries[j].SourceValue) < 0
		})
		for _, e := range entries {
			cmp := source.ComparedTo(e.SourceValue)
			if cmp < 0 || (e.IncludeBoundary && cmp == 0) {
				return value.NewSingle(e.TargetValue)
			}
		}

	case Match:
		for _, e := range t.Entries {
			if source.ComparedTo(e.SourceValue) == 0 {
				return value.NewSingle(e.TargetValue)
			}
		}
	}

	return t.DefaultValue
}

// MapResponsePoint maps a point response through an area table and returns a
// single-cardinality float.
//
// Single cardinality: the first area (in table order) containing the point
// wins. Multiple cardinality: each area contributes its mapped value at most
// once regardless of how many points fall inside it, and every point matched
// by no area contributes the table default.
func MapResponsePoint(t *AreaTable, v value.Value) value.Value {
	if t == nil {
		return value.NewNull(value.Float, value.Single)
	}
	if v.IsNull() {
		return floatValue(t.DefaultValue)
	}

	switch v.Cardinality() {
	case value.Single:
		s, _ := v.Single()
		if s.Type != value.Point {
			return floatValue(t.DefaultValue)
		}
		for _, e := range t.Entries {
			if geometry.IsPointInside(e.Shape, e.Coords, s.Point) {
				return floatValue(t.ApplyConstraints(e.MappedValue))
			}
		}
		return floatValue(t.ApplyConstraints(t.DefaultValue))

	case value.Multiple, value.Ordered:
		scalars, _ := v.List()
		sum := numeric.Zero()
		matched := make([]bool, len(t.Entries))
		for _, s := range scalars {
			if s.Type != value.Point {
				continue
			}
			hit := false
			for i, e := range t.Entries {
				if geometry.IsPointInside(e.Shape, e.Coords, s.Point) {
					hit = true
					if !matched[i] {
						matched[i] = true
						sum = sum.Plus(e.MappedValue)
					}
					break
				}
			}
			if !hit {
				sum = sum.Plus(t.DefaultValue)
			}
		}
		return floatValue(t.ApplyConstraints(sum))
	}

	return floatValue(t.DefaultValue)
}

func floatValue(n numeric.Number) value.Value {
	return value.NewSingle(value.NewFloat(n.Float64()))
}
