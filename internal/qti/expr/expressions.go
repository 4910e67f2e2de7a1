package expr

import (
	"github.com/open-assess/qtiproc/internal/qti/decls"
	"github.com/open-assess/qtiproc/internal/qti/value"
)

func nullValue() value.Value           { return value.NewNull("", value.Single) }
func boolValue(b bool) value.Value     { return value.NewSingle(value.NewBoolean(b)) }
func intValue(n int) value.Value       { return value.NewSingle(value.NewInteger(n)) }
func floatValue(f float64) value.Value { return value.NewSingle(value.NewFloat(f)) }

// BaseValue is qti-base-value: a literal coerced at construction time.
type BaseValue struct {
	Value value.Value
}

// NewBaseValue coerces a lexical literal; a coercion failure is a parse
// fault raised during tree construction, not evaluation.
func NewBaseValue(baseType value.BaseType, lexical string) (*BaseValue, error) {
	s, err := value.ParseScalar(baseType, lexical)
	if err != nil {
		return nil, err
	}
	return &BaseValue{Value: value.NewSingle(s)}, nil
}

func (e *BaseValue) Evaluate(*decls.Context) (value.Value, error) {
	return e.Value, nil
}

// Variable is qti-variable: the current value of a declared variable.
type Variable struct {
	Identifier string
}

func (e *Variable) Evaluate(ctx *decls.Context) (value.Value, error) {
	d := ctx.Variable(e.Identifier)
	if d == nil {
		return nullValue(), nil
	}
	return d.Value, nil
}

// Correct is qti-correct: the declared correct response.
type Correct struct {
	Identifier string
}

func (e *Correct) Evaluate(ctx *decls.Context) (value.Value, error) {
	d := ctx.ResponseDeclaration(e.Identifier)
	if d == nil {
		return nullValue(), nil
	}
	return d.CorrectResponse, nil
}

// Default is qti-default: the declared default value.
type Default struct {
	Identifier string
}

func (e *Default) Evaluate(ctx *decls.Context) (value.Value, error) {
	d := ctx.Variable(e.Identifier)
	if d == nil {
		return nullValue(), nil
	}
	return d.DefaultValue, nil
}

// Null is qti-null.
type Null struct{}

func (Null) Evaluate(*decls.Context) (value.Value, error) {
	return nullValue(), nil
}

// IsNull is qti-is-null.
type IsNull struct {
	Expr Expression
}

func (e *IsNull) Evaluate(ctx *decls.Context) (value.Value, error) {
	v, err := e.Expr.Evaluate(ctx)
	if err != nil {
		return nullValue(), err
	}
	return boolValue(v.IsNull()), nil
}

// FieldValue is qti-field-value: one named field of a record.
type FieldValue struct {
	FieldIdentifier string
	Expr            Expression
}

func (e *FieldValue) Evaluate(ctx *decls.Context) (value.Value, error) {
	v, err := e.Expr.Evaluate(ctx)
	if err != nil {
		return nullValue(), err
	}
	fields, ok := v.Fields()
	if !ok {
		return nullValue(), nil
	}
	f, ok := fields[e.FieldIdentifier]
	if !ok || f.Null {
		return nullValue(), nil
	}
	return value.NewSingle(f.Value), nil
}

// MultipleOf is qti-multiple: children combined into a multiple container.
// Null children are ignored; no non-null child yields null.
type MultipleOf struct {
	Exprs []Expression
}

func (e *MultipleOf) Evaluate(ctx *decls.Context) (value.Value, error) {
	return combineContainer(ctx, value.Multiple, e.Exprs)
}

// OrderedOf is qti-ordered.
type OrderedOf struct {
	Exprs []Expression
}

func (e *OrderedOf) Evaluate(ctx *decls.Context) (value.Value, error) {
	return combineContainer(ctx, value.Ordered, e.Exprs)
}

func combineContainer(ctx *decls.Context, card value.Cardinality, exprs []Expression) (value.Value, error) {
	var scalars []value.Scalar
	var baseType value.BaseType
	for _, child := range exprs {
		v, err := child.Evaluate(ctx)
		if err != nil {
			return nullValue(), err
		}
		if v.IsNull() {
			continue
		}
		if baseType == "" {
			baseType = v.BaseType()
		} else if v.BaseType() != baseType {
			return nullValue(), nil
		}
		if s, ok := v.Single(); ok {
			scalars = append(scalars, s)
			continue
		}
		if list, ok := v.List(); ok {
			scalars = append(scalars, list...)
			continue
		}
		return nullValue(), nil
	}
	if len(scalars) == 0 {
		return nullValue(), nil
	}
	return value.NewContainer(card, baseType, scalars), nil
}

// ContainerSize is qti-container-size.
type ContainerSize struct {
	Expr Expression
}

func (e *ContainerSize) Evaluate(ctx *decls.Context) (value.Value, error) {
	v, err := e.Expr.Evaluate(ctx)
	if err != nil {
		return nullValue(), err
	}
	list, ok := v.List()
	if !ok {
		return nullValue(), nil
	}
	return intValue(len(list)), nil
}

// Contains is qti-contains: whether the second container is contained in
// the first. Multiple containment is multiset inclusion; ordered containment
// requires a contiguous subsequence.
type Contains struct {
	Haystack Expression
	Needle   Expression
}

func (e *Contains) Evaluate(ctx *decls.Context) (value.Value, error) {
	h, err := e.Haystack.Evaluate(ctx)
	if err != nil {
		return nullValue(), err
	}
	n, err := e.Needle.Evaluate(ctx)
	if err != nil {
		return nullValue(), err
	}
	if h.IsNull() || n.IsNull() {
		return nullValue(), nil
	}
	if h.Cardinality() != n.Cardinality() || h.BaseType() != n.BaseType() {
		return nullValue(), nil
	}
	hl, ok := h.List()
	if !ok {
		return nullValue(), nil
	}
	nl, _ := n.List()

	if h.Cardinality() == value.Multiple {
		counts := make(map[string]int, len(hl))
		for _, s := range hl {
			counts[s.Key()]++
		}
		for _, s := range nl {
			counts[s.Key()]--
			if counts[s.Key()] < 0 {
				return boolValue(false), nil
			}
		}
		return boolValue(true), nil
	}

	// ordered: contiguous subsequence
	for start := 0; start+len(nl) <= len(hl); start++ {
		if orderedMatch(hl[start:start+len(nl)], nl) {
			return boolValue(true), nil
		}
	}
	return boolValue(false), nil
}

// Member is qti-member: whether a single value occurs in a container.
type Member struct {
	Needle    Expression
	Container Expression
}

func (e *Member) Evaluate(ctx *decls.Context) (value.Value, error) {
	n, err := e.Needle.Evaluate(ctx)
	if err != nil {
		return nullValue(), err
	}
	c, err := e.Container.Evaluate(ctx)
	if err != nil {
		return nullValue(), err
	}
	if n.IsNull() || c.IsNull() {
		return nullValue(), nil
	}
	ns, ok := n.Single()
	if !ok {
		return nullValue(), nil
	}
	list, ok := c.List()
	if !ok {
		return nullValue(), nil
	}
	for _, s := range list {
		if singlesMatch(ns, s) {
			return boolValue(true), nil
		}
	}
	return boolValue(false), nil
}

// Index is qti-index: the n-th (1-based) element of an ordered container.
// Out-of-range indexes yield null.
type Index struct {
	N    IntRef
	Expr Expression
}

func (e *Index) Evaluate(ctx *decls.Context) (value.Value, error) {
	v, err := e.Expr.Evaluate(ctx)
	if err != nil {
		return nullValue(), err
	}
	n, ok := e.N.Resolve(ctx)
	if !ok {
		return nullValue(), nil
	}
	list, ok := v.List()
	if !ok || v.Cardinality() != value.Ordered {
		return nullValue(), nil
	}
	if n < 1 || n > len(list) {
		return nullValue(), nil
	}
	return value.NewSingle(list[n-1]), nil
}

// Delete is qti-delete: the container with every instance of the given
// single value removed.
type Delete struct {
	Needle    Expression
	Container Expression
}

func (e *Delete) Evaluate(ctx *decls.Context) (value.Value, error) {
	n, err := e.Needle.Evaluate(ctx)
	if err != nil {
		return nullValue(), err
	}
	c, err := e.Container.Evaluate(ctx)
	if err != nil {
		return nullValue(), err
	}
	if n.IsNull() || c.IsNull() {
		return nullValue(), nil
	}
	ns, ok := n.Single()
	if !ok {
		return nullValue(), nil
	}
	list, ok := c.List()
	if !ok {
		return nullValue(), nil
	}
	var kept []value.Scalar
	for _, s := range list {
		if !singlesMatch(ns, s) {
			kept = append(kept, s)
		}
	}
	return value.NewContainer(c.Cardinality(), c.BaseType(), kept), nil
}

// Repeat is qti-repeat: children evaluated numberRepeats times, results
// appended into an ordered container.
type Repeat struct {
	NumberRepeats IntRef
	Exprs         []Expression
}

func (e *Repeat) Evaluate(ctx *decls.Context) (value.Value, error) {
	n, ok := e.NumberRepeats.Resolve(ctx)
	if !ok || n < 1 {
		return nullValue(), nil
	}
	var scalars []value.Scalar
	var baseType value.BaseType
	for i := 0; i < n; i++ {
		v, err := combineContainer(ctx, value.Ordered, e.Exprs)
		if err != nil {
			return nullValue(), err
		}
		if v.IsNull() {
			continue
		}
		if baseType == "" {
			baseType = v.BaseType()
		} else if baseType != v.BaseType() {
			return nullValue(), nil
		}
		list, _ := v.List()
		scalars = append(scalars, list...)
	}
	if len(scalars) == 0 {
		return nullValue(), nil
	}
	return value.NewContainer(value.Ordered, baseType, scalars), nil
}

// IntRef is an integer attribute that is either a literal or a reference to
// a template variable.
type IntRef struct {
	Literal    int
	Identifier string
}

// Resolve returns the literal, or the referenced template variable's
// integer value.
func (r IntRef) Resolve(ctx *decls.Context) (int, bool) {
	if r.Identifier == "" {
		return r.Literal, true
	}
	d := ctx.Variable(r.Identifier)
	if d == nil {
		return 0, false
	}
	s, ok := d.Value.Single()
	if !ok || s.Type != value.Integer {
		return 0, false
	}
	return s.Int, true
}

// FloatRef is a float attribute that is either a literal or a reference to
// a template variable.
type FloatRef struct {
	Literal    float64
	Identifier string
}

// Resolve returns the literal, or the referenced variable's numeric value.
func (r FloatRef) Resolve(ctx *decls.Context) (float64, bool) {
	if r.Identifier == "" {
		return r.Literal, true
	}
	d := ctx.Variable(r.Identifier)
	if d == nil {
		return 0, false
	}
	s, ok := d.Value.Single()
	if !ok {
		return 0, false
	}
	n, ok := s.Number()
	if !ok {
		return 0, false
	}
	return n.Float64(), true
}
