package expr

import (
	"math"

	"github.com/open-assess/qtiproc/internal/qti/decls"
	"github.com/open-assess/qtiproc/internal/qti/numeric"
	"github.com/open-assess/qtiproc/internal/qti/value"
)

// mathFns is the closed qti-math-operator vocabulary. atan2 is the only
// two-argument operator.
var mathFns = map[string]func(float64) float64{
	"abs":       math.Abs,
	"acos":      math.Acos,
	"acot":      func(x float64) float64 { return math.Atan(1 / x) },
	"acsc":      func(x float64) float64 { return math.Asin(1 / x) },
	"asec":      func(x float64) float64 { return math.Acos(1 / x) },
	"asin":      math.Asin,
	"atan":      math.Atan,
	"ceil":      math.Ceil,
	"cos":       math.Cos,
	"cosh":      math.Cosh,
	"cot":       func(x float64) float64 { return 1 / math.Tan(x) },
	"coth":      func(x float64) float64 { return 1 / math.Tanh(x) },
	"csc":       func(x float64) float64 { return 1 / math.Sin(x) },
	"csch":      func(x float64) float64 { return 1 / math.Sinh(x) },
	"exp":       math.Exp,
	"floor":     math.Floor,
	"ln":        math.Log,
	"log":       math.Log10,
	"sec":       func(x float64) float64 { return 1 / math.Cos(x) },
	"sech":      func(x float64) float64 { return 1 / math.Cosh(x) },
	"signum":    func(x float64) float64 { return float64(sign(x)) },
	"sin":       math.Sin,
	"sinh":      math.Sinh,
	"tan":       math.Tan,
	"tanh":      math.Tanh,
	"toDegrees": func(x float64) float64 { return x * 180 / math.Pi },
	"toRadians": func(x float64) float64 { return x * math.Pi / 180 },
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// IsMathOperatorName reports whether name is in the qti-math-operator
// vocabulary.
func IsMathOperatorName(name string) bool {
	if name == "atan2" {
		return true
	}
	_, ok := mathFns[name]
	return ok
}

// MathOperator is qti-math-operator. Results outside the real domain
// (NaN, infinities) yield null.
type MathOperator struct {
	Name  string
	Exprs []Expression
}

func (e *MathOperator) Evaluate(ctx *decls.Context) (value.Value, error) {
	ops, ok, err := collectOperands(ctx, e.Exprs)
	if err != nil || !ok {
		return nullValue(), err
	}

	var result float64
	if e.Name == "atan2" {
		if len(ops) != 2 {
			return nullValue(), nil
		}
		result = math.Atan2(ops[0].num.Float64(), ops[1].num.Float64())
	} else {
		fn, known := mathFns[e.Name]
		if !known || len(ops) != 1 {
			return nullValue(), nil
		}
		result = fn(ops[0].num.Float64())
	}

	if math.IsNaN(result) || math.IsInf(result, 0) {
		return nullValue(), nil
	}
	return floatValue(result), nil
}

// MathConstant is qti-math-constant: pi or e.
type MathConstant struct {
	Name string
}

func (e *MathConstant) Evaluate(*decls.Context) (value.Value, error) {
	switch e.Name {
	case "pi":
		return floatValue(math.Pi), nil
	case "e":
		return floatValue(math.E), nil
	}
	return nullValue(), nil
}

// statsNames is the closed qti-stats-operator vocabulary.
var statsNames = map[string]bool{
	"mean": true, "sampleVariance": true, "sampleSD": true,
	"popVariance": true, "popSD": true,
}

// IsStatsOperatorName reports whether name is in the qti-stats-operator
// vocabulary.
func IsStatsOperatorName(name string) bool { return statsNames[name] }

// StatsOperator is qti-stats-operator over a numeric container.
type StatsOperator struct {
	Name string
	Expr Expression
}

func (e *StatsOperator) Evaluate(ctx *decls.Context) (value.Value, error) {
	ops, ok, err := collectOperands(ctx, []Expression{e.Expr})
	if err != nil || !ok {
		return nullValue(), err
	}
	n := len(ops)
	sum := numeric.Zero()
	for _, o := range ops {
		sum = sum.Plus(o.num)
	}
	mean := sum.DividedBy(numeric.FromInt(n))
	if e.Name == "mean" {
		return floatValue(mean.Float64()), nil
	}

	sqSum := numeric.Zero()
	for _, o := range ops {
		d := o.num.Minus(mean)
		sqSum = sqSum.Plus(d.MultipliedBy(d))
	}

	switch e.Name {
	case "popVariance":
		return floatValue(sqSum.DividedBy(numeric.FromInt(n)).Float64()), nil
	case "popSD":
		return floatValue(math.Sqrt(sqSum.DividedBy(numeric.FromInt(n)).Float64())), nil
	case "sampleVariance":
		if n < 2 {
			return nullValue(), nil
		}
		return floatValue(sqSum.DividedBy(numeric.FromInt(n - 1)).Float64()), nil
	case "sampleSD":
		if n < 2 {
			return nullValue(), nil
		}
		return floatValue(math.Sqrt(sqSum.DividedBy(numeric.FromInt(n - 1)).Float64())), nil
	}
	return nullValue(), nil
}
