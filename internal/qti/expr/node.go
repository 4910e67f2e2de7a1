// Package expr is the tree-walking interpreter over the QTI processing
// language: expressions evaluate to values, rules mutate the declaration
// store. Each evaluation is a pure function of the store contents and the
// static node tree; there is no cross-call state.
//
// Type and cardinality mismatches inside an expression do not abort the
// processing pass. Following the QTI null-propagation philosophy they
// evaluate to null, and parent expressions propagate the null as an
// ordinary value.
package expr

import (
	"errors"

	"github.com/open-assess/qtiproc/internal/qti/decls"
	"github.com/open-assess/qtiproc/internal/qti/value"
)

// Expression is one expression node: evaluates children, applies its own
// semantics, returns a Value. Errors are reserved for broken trees; operand
// mismatches return null values instead.
type Expression interface {
	Evaluate(ctx *decls.Context) (value.Value, error)
}

// Rule is one response or template rule node: executes a side effect against
// the store and returns control.
type Rule interface {
	Execute(ctx *decls.Context) error
}

// Sentinels unwinding early exits out of a rule tree. The processing
// wrappers swallow them at the top.
var (
	ErrExitResponse = errors.New("exit response processing")
	ErrExitTemplate = errors.New("exit template processing")

	// ErrTemplateConstraint signals a failed qti-template-constraint; the
	// host re-runs template processing until it passes or gives up.
	ErrTemplateConstraint = errors.New("template constraint not satisfied")
)

var responseRuleNames = map[string]bool{
	"qti-response-processing-fragment": true,
	"qti-response-condition":           true,
	"qti-set-outcome-value":            true,
	"qti-lookup-outcome-value":         true,
	"qti-exit-response":                true,
}

var templateRuleNames = map[string]bool{
	"qti-set-template-value":   true,
	"qti-exit-template":        true,
	"qti-template-condition":   true,
	"qti-set-default-value":    true,
	"qti-set-correct-response": true,
	"qti-template-constraint":  true,
}

var expressionNames = map[string]bool{
	"qti-base-value": true, "qti-variable": true, "qti-correct": true,
	"qti-default": true, "qti-is-null": true, "qti-null": true,
	"qti-and": true, "qti-or": true, "qti-not": true, "qti-match": true,
	"qti-map-response": true, "qti-member": true, "qti-contains": true,
	"qti-container-size": true, "qti-subtract": true, "qti-sum": true,
	"qti-random": true, "qti-random-float": true, "qti-random-integer": true,
	"qti-index": true, "qti-integer-divide": true, "qti-integer-modulus": true,
	"qti-integer-to-float": true, "qti-equal": true, "qti-equal-rounded": true,
	"qti-field-value": true, "qti-multiple": true, "qti-ordered": true,
	"qti-map-response-point": true, "qti-product": true, "qti-delete": true,
	"qti-string-match": true, "qti-pattern-match": true, "qti-substring": true,
	"qti-round": true, "qti-round-to": true, "qti-truncate": true,
	"qti-divide": true, "qti-gt": true, "qti-gte": true, "qti-lt": true,
	"qti-lte": true, "qti-max": true, "qti-min": true,
	"qti-custom-operator": true, "qti-math-operator": true,
	"qti-math-constant": true, "qti-repeat": true, "qti-gcd": true,
	"qti-lcm": true, "qti-stats-operator": true, "qti-power": true,
	"qti-any-n": true, "qti-inside": true,
}

// IsExpressionName reports whether an element name is an expression kind.
func IsExpressionName(name string) bool { return expressionNames[name] }

// IsResponseRuleName reports whether an element name is a response rule kind.
func IsResponseRuleName(name string) bool { return responseRuleNames[name] }

// IsTemplateRuleName reports whether an element name is a template rule kind.
func IsTemplateRuleName(name string) bool { return templateRuleNames[name] }
