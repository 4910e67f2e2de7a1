package expr

import (
	"github.com/open-assess/qtiproc/internal/qti/decls"
	"github.com/open-assess/qtiproc/internal/qti/value"
)

// Random is qti-random: one element drawn from a container.
type Random struct {
	Expr Expression
}

func (e *Random) Evaluate(ctx *decls.Context) (value.Value, error) {
	v, err := e.Expr.Evaluate(ctx)
	if err != nil {
		return nullValue(), err
	}
	list, ok := v.List()
	if !ok || len(list) == 0 {
		return nullValue(), nil
	}
	return value.NewSingle(list[ctx.Rand.Intn(len(list))]), nil
}

// RandomInteger is qti-random-integer: min..max inclusive stepped by step.
type RandomInteger struct {
	Min  IntRef
	Max  IntRef
	Step IntRef
}

func (e *RandomInteger) Evaluate(ctx *decls.Context) (value.Value, error) {
	min, okMin := e.Min.Resolve(ctx)
	max, okMax := e.Max.Resolve(ctx)
	if !okMin || !okMax || max < min {
		return nullValue(), nil
	}
	step, okStep := e.Step.Resolve(ctx)
	if !okStep || step < 1 {
		step = 1
	}
	steps := (max-min)/step + 1
	return intValue(min + step*ctx.Rand.Intn(steps)), nil
}

// RandomFloat is qti-random-float: uniform in [min, max).
type RandomFloat struct {
	Min FloatRef
	Max FloatRef
}

func (e *RandomFloat) Evaluate(ctx *decls.Context) (value.Value, error) {
	min, okMin := e.Min.Resolve(ctx)
	max, okMax := e.Max.Resolve(ctx)
	if !okMin || !okMax || max < min {
		return nullValue(), nil
	}
	return floatValue(min + ctx.Rand.Float64()*(max-min)), nil
}

// ShuffleScalars randomizes scalars in place with the Durstenfeld shuffle.
func ShuffleScalars(ctx *decls.Context, scalars []value.Scalar) {
	for i := len(scalars) - 1; i > 0; i-- {
		j := ctx.Rand.Intn(i + 1)
		scalars[i], scalars[j] = scalars[j], scalars[i]
	}
}

// ShuffleScalarsFixed is ShuffleScalars with fixed positions pinned: swaps
// touching a fixed index are skipped.
func ShuffleScalarsFixed(ctx *decls.Context, scalars []value.Scalar, fixed []bool) {
	for i := len(scalars) - 1; i > 0; i-- {
		j := ctx.Rand.Intn(i + 1)
		if i < len(fixed) && fixed[i] || j < len(fixed) && fixed[j] {
			continue
		}
		scalars[i], scalars[j] = scalars[j], scalars[i]
	}
}
