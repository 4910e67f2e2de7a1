package expr

import (
	"math"

	"github.com/open-assess/qtiproc/internal/qti/decls"
	"github.com/open-assess/qtiproc/internal/qti/numeric"
	"github.com/open-assess/qtiproc/internal/qti/value"
)

// operand is one numeric operand with its integer-ness preserved so that
// integer-only operations can keep an integer result type.
type operand struct {
	num   numeric.Number
	isInt bool
}

// collectOperands flattens the numeric operands of the children. Containers
// contribute all of their elements. A null child or a non-numeric operand
// makes the whole collection null (ok=false).
func collectOperands(ctx *decls.Context, exprs []Expression) (ops []operand, ok bool, err error) {
	for _, e := range exprs {
		v, err := e.Evaluate(ctx)
		if err != nil {
			return nil, false, err
		}
		if v.IsNull() || !v.BaseType().IsNumeric() {
			return nil, false, nil
		}
		if s, isSingle := v.Single(); isSingle {
			n, _ := s.Number()
			ops = append(ops, operand{num: n, isInt: s.Type == value.Integer})
			continue
		}
		list, isList := v.List()
		if !isList {
			return nil, false, nil
		}
		for _, s := range list {
			n, _ := s.Number()
			ops = append(ops, operand{num: n, isInt: s.Type == value.Integer})
		}
	}
	if len(ops) == 0 {
		return nil, false, nil
	}
	return ops, true, nil
}

func allInt(ops []operand) bool {
	for _, o := range ops {
		if !o.isInt {
			return false
		}
	}
	return true
}

func numberValue(n numeric.Number, asInt bool) value.Value {
	if asInt {
		return intValue(n.Int())
	}
	return floatValue(n.Float64())
}

// evalNumber evaluates a child expected to be a single numeric value.
func evalNumber(ctx *decls.Context, e Expression) (numeric.Number, bool, error) {
	v, err := e.Evaluate(ctx)
	if err != nil {
		return numeric.Number{}, false, err
	}
	s, isSingle := v.Single()
	if v.IsNull() || !isSingle {
		return numeric.Number{}, false, nil
	}
	n, ok := s.Number()
	return n, ok, nil
}

// Sum is qti-sum: n-ary addition. Integer result only when every operand is
// an integer.
type Sum struct {
	Exprs []Expression
}

func (e *Sum) Evaluate(ctx *decls.Context) (value.Value, error) {
	ops, ok, err := collectOperands(ctx, e.Exprs)
	if err != nil || !ok {
		return nullValue(), err
	}
	total := numeric.Zero()
	for _, o := range ops {
		total = total.Plus(o.num)
	}
	return numberValue(total, allInt(ops)), nil
}

// Product is qti-product.
type Product struct {
	Exprs []Expression
}

func (e *Product) Evaluate(ctx *decls.Context) (value.Value, error) {
	ops, ok, err := collectOperands(ctx, e.Exprs)
	if err != nil || !ok {
		return nullValue(), err
	}
	total := numeric.FromInt(1)
	for _, o := range ops {
		total = total.MultipliedBy(o.num)
	}
	return numberValue(total, allInt(ops)), nil
}

// Subtract is qti-subtract.
type Subtract struct {
	First  Expression
	Second Expression
}

func (e *Subtract) Evaluate(ctx *decls.Context) (value.Value, error) {
	ops, ok, err := collectOperands(ctx, []Expression{e.First, e.Second})
	if err != nil || !ok || len(ops) != 2 {
		return nullValue(), err
	}
	return numberValue(ops[0].num.Minus(ops[1].num), allInt(ops)), nil
}

// Divide is qti-divide: float division, null on a zero divisor.
type Divide struct {
	First  Expression
	Second Expression
}

func (e *Divide) Evaluate(ctx *decls.Context) (value.Value, error) {
	ops, ok, err := collectOperands(ctx, []Expression{e.First, e.Second})
	if err != nil || !ok || len(ops) != 2 {
		return nullValue(), err
	}
	if ops[1].num.IsZero() {
		return nullValue(), nil
	}
	return floatValue(ops[0].num.DividedBy(ops[1].num).Float64()), nil
}

// IntegerDivide is qti-integer-divide: truncated integer division.
type IntegerDivide struct {
	First  Expression
	Second Expression
}

func (e *IntegerDivide) Evaluate(ctx *decls.Context) (value.Value, error) {
	ops, ok, err := collectOperands(ctx, []Expression{e.First, e.Second})
	if err != nil || !ok || len(ops) != 2 {
		return nullValue(), err
	}
	if ops[1].num.IsZero() {
		return nullValue(), nil
	}
	q := ops[0].num.DividedBy(ops[1].num)
	return intValue(int(math.Trunc(q.Float64()))), nil
}

// IntegerModulus is qti-integer-modulus.
type IntegerModulus struct {
	First  Expression
	Second Expression
}

func (e *IntegerModulus) Evaluate(ctx *decls.Context) (value.Value, error) {
	ops, ok, err := collectOperands(ctx, []Expression{e.First, e.Second})
	if err != nil || !ok || len(ops) != 2 {
		return nullValue(), err
	}
	if ops[1].num.IsZero() {
		return nullValue(), nil
	}
	return intValue(ops[0].num.Modulo(ops[1].num).Int()), nil
}

// IntegerToFloat is qti-integer-to-float.
type IntegerToFloat struct {
	Expr Expression
}

func (e *IntegerToFloat) Evaluate(ctx *decls.Context) (value.Value, error) {
	n, ok, err := evalNumber(ctx, e.Expr)
	if err != nil || !ok {
		return nullValue(), err
	}
	return floatValue(n.Float64()), nil
}

// Round is qti-round: nearest integer, halves round up.
type Round struct {
	Expr Expression
}

func (e *Round) Evaluate(ctx *decls.Context) (value.Value, error) {
	n, ok, err := evalNumber(ctx, e.Expr)
	if err != nil || !ok {
		return nullValue(), err
	}
	return intValue(int(math.Floor(n.Float64() + 0.5))), nil
}

// Truncate is qti-truncate: drop the fractional part.
type Truncate struct {
	Expr Expression
}

func (e *Truncate) Evaluate(ctx *decls.Context) (value.Value, error) {
	n, ok, err := evalNumber(ctx, e.Expr)
	if err != nil || !ok {
		return nullValue(), err
	}
	return intValue(int(math.Trunc(n.Float64()))), nil
}

// RoundingMode selects between significant-figure and decimal-place
// rounding for qti-round-to and qti-equal-rounded.
type RoundingMode string

const (
	SignificantFigures RoundingMode = "significantFigures"
	DecimalPlaces      RoundingMode = "decimalPlaces"
)

// RoundTo is qti-round-to.
type RoundTo struct {
	Mode    RoundingMode
	Figures IntRef
	Expr    Expression
}

func (e *RoundTo) Evaluate(ctx *decls.Context) (value.Value, error) {
	n, ok, err := evalNumber(ctx, e.Expr)
	if err != nil || !ok {
		return nullValue(), err
	}
	figures, okFig := e.Figures.Resolve(ctx)
	if !okFig {
		return nullValue(), nil
	}
	rounded, ok := roundWithMode(n, e.Mode, figures)
	if !ok {
		return nullValue(), nil
	}
	return floatValue(rounded.Float64()), nil
}

func roundWithMode(n numeric.Number, mode RoundingMode, figures int) (numeric.Number, bool) {
	switch mode {
	case DecimalPlaces:
		if figures < 0 {
			return numeric.Number{}, false
		}
		return n.Round(int32(figures)), true
	case SignificantFigures:
		if figures < 1 {
			return numeric.Number{}, false
		}
		if n.IsZero() {
			return n, true
		}
		magnitude := int(math.Floor(math.Log10(math.Abs(n.Float64()))))
		return n.Round(int32(figures - 1 - magnitude)), true
	}
	return numeric.Number{}, false
}

// Power is qti-power: integer result when both operands are integers and
// the result is exact, float otherwise. Out-of-domain results yield null.
type Power struct {
	Base     Expression
	Exponent Expression
}

func (e *Power) Evaluate(ctx *decls.Context) (value.Value, error) {
	ops, ok, err := collectOperands(ctx, []Expression{e.Base, e.Exponent})
	if err != nil || !ok || len(ops) != 2 {
		return nullValue(), err
	}
	result := math.Pow(ops[0].num.Float64(), ops[1].num.Float64())
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return nullValue(), nil
	}
	if allInt(ops) && result == math.Trunc(result) {
		return intValue(int(result)), nil
	}
	return floatValue(result), nil
}

// compareOp is the shared body of qti-gt/gte/lt/lte.
type compareOp struct {
	First  Expression
	Second Expression
	verify func(cmp int) bool
}

func (e *compareOp) Evaluate(ctx *decls.Context) (value.Value, error) {
	ops, ok, err := collectOperands(ctx, []Expression{e.First, e.Second})
	if err != nil || !ok || len(ops) != 2 {
		return nullValue(), err
	}
	return boolValue(e.verify(ops[0].num.ComparedTo(ops[1].num))), nil
}

func NewGt(a, b Expression) Expression {
	return &compareOp{First: a, Second: b, verify: func(cmp int) bool { return cmp > 0 }}
}
func NewGte(a, b Expression) Expression {
	return &compareOp{First: a, Second: b, verify: func(cmp int) bool { return cmp >= 0 }}
}
func NewLt(a, b Expression) Expression {
	return &compareOp{First: a, Second: b, verify: func(cmp int) bool { return cmp < 0 }}
}
func NewLte(a, b Expression) Expression {
	return &compareOp{First: a, Second: b, verify: func(cmp int) bool { return cmp <= 0 }}
}

// ToleranceMode selects the qti-equal comparison rule.
type ToleranceMode string

const (
	Exact    ToleranceMode = "exact"
	Absolute ToleranceMode = "absolute"
	Relative ToleranceMode = "relative"
)

// Equal is qti-equal: numeric equality under a tolerance mode.
type Equal struct {
	Mode         ToleranceMode
	Tolerance    []FloatRef // 1 or 2 entries for absolute/relative
	IncludeLower bool
	IncludeUpper bool
	First        Expression
	Second       Expression
}

func (e *Equal) Evaluate(ctx *decls.Context) (value.Value, error) {
	ops, ok, err := collectOperands(ctx, []Expression{e.First, e.Second})
	if err != nil || !ok || len(ops) != 2 {
		return nullValue(), err
	}
	x, y := ops[0].num, ops[1].num

	if e.Mode == Exact || len(e.Tolerance) == 0 {
		return boolValue(x.ComparedTo(y) == 0), nil
	}

	t0, ok0 := e.Tolerance[0].Resolve(ctx)
	t1, ok1 := t0, ok0
	if len(e.Tolerance) > 1 {
		t1, ok1 = e.Tolerance[1].Resolve(ctx)
	}
	if !ok0 || !ok1 {
		return nullValue(), nil
	}

	var lower, upper numeric.Number
	switch e.Mode {
	case Absolute:
		lower = x.Minus(numeric.FromFloat(t0))
		upper = x.Plus(numeric.FromFloat(t1))
	case Relative:
		hundred := numeric.FromInt(100)
		lower = x.MultipliedBy(numeric.FromInt(1).Minus(numeric.FromFloat(t0).DividedBy(hundred)))
		upper = x.MultipliedBy(numeric.FromInt(1).Plus(numeric.FromFloat(t1).DividedBy(hundred)))
	default:
		return nullValue(), nil
	}

	lowCmp := y.ComparedTo(lower)
	upCmp := y.ComparedTo(upper)
	lowOK := lowCmp > 0 || (e.IncludeLower && lowCmp == 0)
	upOK := upCmp < 0 || (e.IncludeUpper && upCmp == 0)
	return boolValue(lowOK && upOK), nil
}

// EqualRounded is qti-equal-rounded: both operands rounded, then compared.
type EqualRounded struct {
	Mode    RoundingMode
	Figures IntRef
	First   Expression
	Second  Expression
}

func (e *EqualRounded) Evaluate(ctx *decls.Context) (value.Value, error) {
	ops, ok, err := collectOperands(ctx, []Expression{e.First, e.Second})
	if err != nil || !ok || len(ops) != 2 {
		return nullValue(), err
	}
	figures, okFig := e.Figures.Resolve(ctx)
	if !okFig {
		return nullValue(), nil
	}
	a, okA := roundWithMode(ops[0].num, e.Mode, figures)
	b, okB := roundWithMode(ops[1].num, e.Mode, figures)
	if !okA || !okB {
		return nullValue(), nil
	}
	return boolValue(a.ComparedTo(b) == 0), nil
}

// Max is qti-max: float result unless every operand is an integer.
type Max struct {
	Exprs []Expression
}

func (e *Max) Evaluate(ctx *decls.Context) (value.Value, error) {
	ops, ok, err := collectOperands(ctx, e.Exprs)
	if err != nil || !ok {
		return nullValue(), err
	}
	best := ops[0].num
	for _, o := range ops[1:] {
		if o.num.ComparedTo(best) > 0 {
			best = o.num
		}
	}
	return numberValue(best, allInt(ops)), nil
}

// Min is qti-min.
type Min struct {
	Exprs []Expression
}

func (e *Min) Evaluate(ctx *decls.Context) (value.Value, error) {
	ops, ok, err := collectOperands(ctx, e.Exprs)
	if err != nil || !ok {
		return nullValue(), err
	}
	best := ops[0].num
	for _, o := range ops[1:] {
		if o.num.ComparedTo(best) < 0 {
			best = o.num
		}
	}
	return numberValue(best, allInt(ops)), nil
}

// Gcd is qti-gcd: generalized gcd over all integer operands.
type Gcd struct {
	Exprs []Expression
}

func (e *Gcd) Evaluate(ctx *decls.Context) (value.Value, error) {
	ops, ok, err := collectOperands(ctx, e.Exprs)
	if err != nil || !ok || !allInt(ops) {
		return nullValue(), err
	}
	nums := make([]numeric.Number, len(ops))
	for i, o := range ops {
		nums[i] = o.num
	}
	return intValue(numeric.GeneralizedGCD(nums).Int()), nil
}

// Lcm is qti-lcm: generalized lcm; any zero operand makes the result zero.
type Lcm struct {
	Exprs []Expression
}

func (e *Lcm) Evaluate(ctx *decls.Context) (value.Value, error) {
	ops, ok, err := collectOperands(ctx, e.Exprs)
	if err != nil || !ok || !allInt(ops) {
		return nullValue(), err
	}
	nums := make([]numeric.Number, len(ops))
	for i, o := range ops {
		nums[i] = o.num
	}
	return intValue(numeric.GeneralizedLCM(nums).Int()), nil
}
