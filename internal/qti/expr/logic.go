package expr

import (
	"github.com/open-assess/qtiproc/internal/qti/decls"
	"github.com/open-assess/qtiproc/internal/qti/value"
)

// evalBool evaluates a child expected to be a single boolean. The second
// return distinguishes null/mismatch from a real boolean.
func evalBool(ctx *decls.Context, e Expression) (b, ok bool, err error) {
	v, err := e.Evaluate(ctx)
	if err != nil {
		return false, false, err
	}
	s, isSingle := v.Single()
	if v.IsNull() || !isSingle || s.Type != value.Boolean {
		return false, false, nil
	}
	return s.Bool, true, nil
}

// And is qti-and: false dominates, then null, then true.
type And struct {
	Exprs []Expression
}

func (e *And) Evaluate(ctx *decls.Context) (value.Value, error) {
	sawNull := false
	for _, child := range e.Exprs {
		b, ok, err := evalBool(ctx, child)
		if err != nil {
			return nullValue(), err
		}
		if !ok {
			sawNull = true
			continue
		}
		if !b {
			return boolValue(false), nil
		}
	}
	if sawNull {
		return nullValue(), nil
	}
	return boolValue(true), nil
}

// Or is qti-or: true dominates, then null, then false.
type Or struct {
	Exprs []Expression
}

func (e *Or) Evaluate(ctx *decls.Context) (value.Value, error) {
	sawNull := false
	for _, child := range e.Exprs {
		b, ok, err := evalBool(ctx, child)
		if err != nil {
			return nullValue(), err
		}
		if !ok {
			sawNull = true
			continue
		}
		if b {
			return boolValue(true), nil
		}
	}
	if sawNull {
		return nullValue(), nil
	}
	return boolValue(false), nil
}

// Not is qti-not.
type Not struct {
	Expr Expression
}

func (e *Not) Evaluate(ctx *decls.Context) (value.Value, error) {
	b, ok, err := evalBool(ctx, e.Expr)
	if err != nil {
		return nullValue(), err
	}
	if !ok {
		return nullValue(), nil
	}
	return boolValue(!b), nil
}

// MatchExpr is qti-match: deep equality of two values of the same base type
// and cardinality. Incompatible shapes yield null.
type MatchExpr struct {
	First  Expression
	Second Expression
}

func (e *MatchExpr) Evaluate(ctx *decls.Context) (value.Value, error) {
	a, err := e.First.Evaluate(ctx)
	if err != nil {
		return nullValue(), err
	}
	b, err := e.Second.Evaluate(ctx)
	if err != nil {
		return nullValue(), err
	}
	if a.IsNull() || b.IsNull() {
		return nullValue(), nil
	}
	matched, ok := valuesMatch(a, b)
	if !ok {
		return nullValue(), nil
	}
	return boolValue(matched), nil
}

// AnyN is qti-any-n: true when between min and max children are true, with
// three-valued logic over null children.
type AnyN struct {
	Min   IntRef
	Max   IntRef
	Exprs []Expression
}

func (e *AnyN) Evaluate(ctx *decls.Context) (value.Value, error) {
	min, okMin := e.Min.Resolve(ctx)
	max, okMax := e.Max.Resolve(ctx)
	if !okMin || !okMax {
		return nullValue(), nil
	}
	trues, nulls := 0, 0
	for _, child := range e.Exprs {
		b, ok, err := evalBool(ctx, child)
		if err != nil {
			return nullValue(), err
		}
		switch {
		case !ok:
			nulls++
		case b:
			trues++
		}
	}
	if trues > max || trues+nulls < min {
		return boolValue(false), nil
	}
	if trues >= min && trues+nulls <= max {
		return boolValue(true), nil
	}
	// the nulls decide the outcome
	return nullValue(), nil
}
