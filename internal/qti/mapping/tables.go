// Package mapping implements the response-to-outcome transforms: key/value
// mapping, lookup tables and area mapping.
package mapping

import (
	"github.com/open-assess/qtiproc/internal/qti/geometry"
	"github.com/open-assess/qtiproc/internal/qti/numeric"
	"github.com/open-assess/qtiproc/internal/qti/value"
)

// Entry is one qti-map-entry.
type Entry struct {
	MapKey        string
	MappedValue   numeric.Number
	CaseSensitive bool
}

// Table is a qti-mapping: ordered entries plus constraints. The bounds are
// optional; DefaultValue applies when no key matches.
type Table struct {
	Entries      []Entry
	DefaultValue numeric.Number
	LowerBound   *numeric.Number
	UpperBound   *numeric.Number
}

// ApplyConstraints clamps n to the declared bounds.
func (t *Table) ApplyConstraints(n numeric.Number) numeric.Number {
	if t.LowerBound != nil && n.ComparedTo(*t.LowerBound) < 0 {
		n = *t.LowerBound
	}
	if t.UpperBound != nil && n.ComparedTo(*t.UpperBound) > 0 {
		n = *t.UpperBound
	}
	return n
}

// LookupKind distinguishes the two lookup table forms.
type LookupKind string

const (
	Interpolation LookupKind = "interpolation"
	Match         LookupKind = "match"
)

// LookupEntry is one interpolation or match table entry.
type LookupEntry struct {
	SourceValue     numeric.Number
	TargetValue     value.Scalar
	IncludeBoundary bool // interpolation only
}

// LookupTable is a qti-interpolation-table or qti-match-table.
type LookupTable struct {
	Kind         LookupKind
	Entries      []LookupEntry
	DefaultValue value.Value
}

// AreaEntry is one qti-area-map-entry.
type AreaEntry struct {
	Shape       geometry.Shape
	Coords      []float64
	MappedValue numeric.Number
}

// AreaTable is a qti-area-mapping.
type AreaTable struct {
	Entries      []AreaEntry
	DefaultValue numeric.Number
	LowerBound   *numeric.Number
	UpperBound   *numeric.Number
}

// ApplyConstraints clamps n to the declared bounds.
func (t *AreaTable) ApplyConstraints(n numeric.Number) numeric.Number {
	if t.LowerBound != nil && n.ComparedTo(*t.LowerBound) < 0 {
		n = *t.LowerBound
	}
	if t.UpperBound != nil && n.ComparedTo(*t.UpperBound) > 0 {
		n = *t.UpperBound
	}
	return n
}
