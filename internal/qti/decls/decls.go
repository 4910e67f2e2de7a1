// Package decls holds the live variable declarations an item instance is
// evaluated against. One Context is constructed per item instance and passed
// explicitly into every evaluation call; there is no process-wide store.
package decls

import (
	"encoding/json"

	"github.com/open-assess/qtiproc/internal/qti/mapping"
	"github.com/open-assess/qtiproc/internal/qti/value"
)

// Kind is the declaration namespace.
type Kind string

const (
	ResponseVar Kind = "response"
	OutcomeVar  Kind = "outcome"
	TemplateVar Kind = "template"
	ContextVar  Kind = "context"
)

// Declaration is one typed variable slot.
type Declaration struct {
	Identifier   string
	Kind         Kind
	BaseType     value.BaseType // empty for record cardinality
	Cardinality  value.Cardinality
	Value        value.Value
	DefaultValue value.Value

	// Response variables only.
	CorrectResponse value.Value
	State           json.RawMessage
	Mapping         *mapping.Table
	AreaMapping     *mapping.AreaTable

	// Outcome variables only.
	LookupTable *mapping.LookupTable

	// Template variables only.
	MathVariable  bool
	ParamVariable bool
}
