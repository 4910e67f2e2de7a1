// Package value models QTI variable values: a base type, a cardinality and
// the value itself, with explicit null semantics. It carries no evaluation
// logic; rule and expression semantics live in internal/qti/expr.
package value

import "fmt"

// BaseType enumerates the QTI base types.
type BaseType string

const (
	Boolean      BaseType = "boolean"
	DirectedPair BaseType = "directedPair"
	Duration     BaseType = "duration"
	File         BaseType = "file"
	Float        BaseType = "float"
	Identifier   BaseType = "identifier"
	Integer      BaseType = "integer"
	Pair         BaseType = "pair"
	Point        BaseType = "point"
	String       BaseType = "string"
	URI          BaseType = "uri"
)

var baseTypes = map[BaseType]bool{
	Boolean: true, DirectedPair: true, Duration: true, File: true,
	Float: true, Identifier: true, Integer: true, Pair: true,
	Point: true, String: true, URI: true,
}

// ParseBaseType validates a base-type attribute value.
func ParseBaseType(s string) (BaseType, error) {
	bt := BaseType(s)
	if !baseTypes[bt] {
		return "", fmt.Errorf("invalid base-type: %q", s)
	}
	return bt, nil
}

// IsNumeric reports whether values of this base type participate in
// arithmetic and numeric comparison.
func (b BaseType) IsNumeric() bool { return b == Float || b == Integer }

// Cardinality enumerates the QTI cardinalities.
type Cardinality string

const (
	Single   Cardinality = "single"
	Multiple Cardinality = "multiple"
	Ordered  Cardinality = "ordered"
	Record   Cardinality = "record"
)

// ParseCardinality validates a cardinality attribute value.
func ParseCardinality(s string) (Cardinality, error) {
	switch c := Cardinality(s); c {
	case Single, Multiple, Ordered, Record:
		return c, nil
	}
	return "", fmt.Errorf("invalid cardinality: %q", s)
}

// ValidateBaseTypeCardinality enforces the declaration invariant: base-type
// is required unless cardinality is record, in which case it must be absent.
func ValidateBaseTypeCardinality(baseType string, cardinality Cardinality) error {
	if cardinality == Record {
		if baseType != "" {
			return fmt.Errorf("base-type not permitted for %q cardinality", Record)
		}
		return nil
	}
	if baseType == "" {
		return fmt.Errorf("base-type is a required attribute")
	}
	_, err := ParseBaseType(baseType)
	return err
}
