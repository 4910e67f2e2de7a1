package expr_test

import (
	"math/rand"
	"testing"

	"github.com/open-assess/qtiproc/internal/qti/decls"
	"github.com/open-assess/qtiproc/internal/qti/expr"
	"github.com/open-assess/qtiproc/internal/qti/value"
)

func newCtx() *decls.Context {
	ctx := decls.NewContext()
	ctx.Rand = rand.New(rand.NewSource(1))
	return ctx
}

func lit(t *testing.T, baseType value.BaseType, lexical string) expr.Expression {
	t.Helper()
	e, err := expr.NewBaseValue(baseType, lexical)
	if err != nil {
		t.Fatalf("NewBaseValue(%s, %q): %v", baseType, lexical, err)
	}
	return e
}

func intLit(t *testing.T, s string) expr.Expression   { return lit(t, value.Integer, s) }
func floatLit(t *testing.T, s string) expr.Expression { return lit(t, value.Float, s) }
func boolLit(t *testing.T, s string) expr.Expression  { return lit(t, value.Boolean, s) }

func eval(t *testing.T, e expr.Expression) value.Value {
	t.Helper()
	v, err := e.Evaluate(newCtx())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	return v
}

func wantBool(t *testing.T, v value.Value, want bool) {
	t.Helper()
	s, ok := v.Single()
	if !ok || s.Type != value.Boolean {
		t.Fatalf("want boolean, got %+v", v)
	}
	if s.Bool != want {
		t.Errorf("got %v, want %v", s.Bool, want)
	}
}

func wantNull(t *testing.T, v value.Value) {
	t.Helper()
	if !v.IsNull() {
		t.Fatalf("want null, got %+v", v)
	}
}

func wantFloat(t *testing.T, v value.Value, want float64) {
	t.Helper()
	s, ok := v.Single()
	if !ok || !s.Type.IsNumeric() {
		t.Fatalf("want numeric single, got %+v", v)
	}
	var got float64
	if s.Type == value.Integer {
		got = float64(s.Int)
	} else {
		got = s.Float
	}
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSumNullPropagation(t *testing.T) {
	sum := &expr.Sum{Exprs: []expr.Expression{intLit(t, "1"), expr.Null{}, intLit(t, "2")}}
	wantNull(t, eval(t, sum))
}

func TestSumIntegerVsFloat(t *testing.T) {
	allInt := &expr.Sum{Exprs: []expr.Expression{intLit(t, "1"), intLit(t, "2")}}
	s, _ := eval(t, allInt).Single()
	if s.Type != value.Integer || s.Int != 3 {
		t.Errorf("integer sum = %+v", s)
	}

	mixed := &expr.Sum{Exprs: []expr.Expression{intLit(t, "1"), floatLit(t, "0.2")}}
	s, _ = eval(t, mixed).Single()
	if s.Type != value.Float || s.Float != 1.2 {
		t.Errorf("mixed sum = %+v", s)
	}
}

func TestExactDecimalSum(t *testing.T) {
	sum := &expr.Sum{Exprs: []expr.Expression{floatLit(t, "0.1"), floatLit(t, "0.2")}}
	wantFloat(t, eval(t, sum), 0.3)
}

func TestDivideByZeroIsNull(t *testing.T) {
	div := &expr.Divide{First: intLit(t, "1"), Second: intLit(t, "0")}
	wantNull(t, eval(t, div))
}

func TestThreeValuedAnd(t *testing.T) {
	// false dominates null.
	and := &expr.And{Exprs: []expr.Expression{boolLit(t, "true"), expr.Null{}, boolLit(t, "false")}}
	wantBool(t, eval(t, and), false)

	// true and null is null.
	and = &expr.And{Exprs: []expr.Expression{boolLit(t, "true"), expr.Null{}}}
	wantNull(t, eval(t, and))

	and = &expr.And{Exprs: []expr.Expression{boolLit(t, "true"), boolLit(t, "true")}}
	wantBool(t, eval(t, and), true)
}

func TestThreeValuedOr(t *testing.T) {
	or := &expr.Or{Exprs: []expr.Expression{boolLit(t, "false"), expr.Null{}, boolLit(t, "true")}}
	wantBool(t, eval(t, or), true)

	or = &expr.Or{Exprs: []expr.Expression{boolLit(t, "false"), expr.Null{}}}
	wantNull(t, eval(t, or))
}

func TestAnyN(t *testing.T) {
	exprs := []expr.Expression{boolLit(t, "true"), boolLit(t, "true"), boolLit(t, "false")}
	anyN := &expr.AnyN{Min: expr.IntRef{Literal: 1}, Max: expr.IntRef{Literal: 2}, Exprs: exprs}
	wantBool(t, eval(t, anyN), true)

	anyN = &expr.AnyN{Min: expr.IntRef{Literal: 3}, Max: expr.IntRef{Literal: 3}, Exprs: exprs}
	wantBool(t, eval(t, anyN), false)

	// One true, one null, min 2 max 2: the null decides, so null.
	anyN = &expr.AnyN{
		Min: expr.IntRef{Literal: 2}, Max: expr.IntRef{Literal: 2},
		Exprs: []expr.Expression{boolLit(t, "true"), expr.Null{}, boolLit(t, "false")},
	}
	wantNull(t, eval(t, anyN))
}

func TestMatchMultipleIgnoresOrder(t *testing.T) {
	a := &expr.MultipleOf{Exprs: []expr.Expression{intLit(t, "1"), intLit(t, "2")}}
	b := &expr.MultipleOf{Exprs: []expr.Expression{intLit(t, "2"), intLit(t, "1")}}
	wantBool(t, eval(t, &expr.MatchExpr{First: a, Second: b}), true)

	// Ordered containers respect order.
	oa := &expr.OrderedOf{Exprs: []expr.Expression{intLit(t, "1"), intLit(t, "2")}}
	ob := &expr.OrderedOf{Exprs: []expr.Expression{intLit(t, "2"), intLit(t, "1")}}
	wantBool(t, eval(t, &expr.MatchExpr{First: oa, Second: ob}), false)
}

func TestMatchCardinalityMismatchIsNull(t *testing.T) {
	single := intLit(t, "1")
	multi := &expr.MultipleOf{Exprs: []expr.Expression{intLit(t, "1")}}
	wantNull(t, eval(t, &expr.MatchExpr{First: single, Second: multi}))
}

func TestMatchRecordIsNull(t *testing.T) {
	// Match is defined over single/multiple/ordered operands only; record
	// operands follow the null rule for unsupported shapes.
	ctx := newCtx()
	ctx.DefineResponse(&decls.Declaration{
		Identifier: "REC", Kind: decls.ResponseVar, Cardinality: value.Record,
		Value: value.NewRecord(map[string]value.Field{
			"x": value.NewField("x", value.NewInteger(7)),
		}),
	})
	rec := &expr.Variable{Identifier: "REC"}
	v, err := (&expr.MatchExpr{First: rec, Second: rec}).Evaluate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	wantNull(t, v)
}

func TestIsNull(t *testing.T) {
	wantBool(t, eval(t, &expr.IsNull{Expr: expr.Null{}}), true)
	wantBool(t, eval(t, &expr.IsNull{Expr: intLit(t, "1")}), false)
}

func TestIndex(t *testing.T) {
	ordered := &expr.OrderedOf{Exprs: []expr.Expression{
		lit(t, value.Identifier, "a"), lit(t, value.Identifier, "b"), lit(t, value.Identifier, "c"),
	}}
	v := eval(t, &expr.Index{N: expr.IntRef{Literal: 2}, Expr: ordered})
	s, _ := v.Single()
	if s.Str != "b" {
		t.Errorf("index 2 = %+v, want b", s)
	}

	wantNull(t, eval(t, &expr.Index{N: expr.IntRef{Literal: 9}, Expr: ordered}))
}

func TestContains(t *testing.T) {
	big := &expr.MultipleOf{Exprs: []expr.Expression{intLit(t, "1"), intLit(t, "1"), intLit(t, "2")}}
	needsTwo := &expr.MultipleOf{Exprs: []expr.Expression{intLit(t, "1"), intLit(t, "1")}}
	wantBool(t, eval(t, &expr.Contains{Haystack: big, Needle: needsTwo}), true)

	needsThree := &expr.MultipleOf{Exprs: []expr.Expression{intLit(t, "1"), intLit(t, "1"), intLit(t, "1")}}
	wantBool(t, eval(t, &expr.Contains{Haystack: big, Needle: needsThree}), false)

	// Ordered containment is contiguous subsequence.
	oa := &expr.OrderedOf{Exprs: []expr.Expression{intLit(t, "1"), intLit(t, "2"), intLit(t, "3")}}
	sub := &expr.OrderedOf{Exprs: []expr.Expression{intLit(t, "2"), intLit(t, "3")}}
	wantBool(t, eval(t, &expr.Contains{Haystack: oa, Needle: sub}), true)
	gap := &expr.OrderedOf{Exprs: []expr.Expression{intLit(t, "1"), intLit(t, "3")}}
	wantBool(t, eval(t, &expr.Contains{Haystack: oa, Needle: gap}), false)
}

func TestEqualTolerance(t *testing.T) {
	eq := &expr.Equal{
		Mode:         expr.Absolute,
		Tolerance:    []expr.FloatRef{{Literal: 0.5}},
		IncludeLower: true,
		IncludeUpper: true,
		First:        floatLit(t, "10"),
		Second:       floatLit(t, "10.5"),
	}
	wantBool(t, eval(t, eq), true)

	eq.IncludeUpper = false
	wantBool(t, eval(t, eq), false)

	exact := &expr.Equal{Mode: expr.Exact, First: floatLit(t, "0.3"), Second: &expr.Sum{
		Exprs: []expr.Expression{floatLit(t, "0.1"), floatLit(t, "0.2")},
	}}
	wantBool(t, eval(t, exact), true)
}

func TestRoundHalfUp(t *testing.T) {
	wantFloat(t, eval(t, &expr.Round{Expr: floatLit(t, "6.5")}), 7)
	wantFloat(t, eval(t, &expr.Round{Expr: floatLit(t, "-6.5")}), -6)
}

func TestRoundTo(t *testing.T) {
	sig := &expr.RoundTo{
		Mode: expr.SignificantFigures, Figures: expr.IntRef{Literal: 3},
		Expr: floatLit(t, "1239451"),
	}
	wantFloat(t, eval(t, sig), 1240000)

	dec := &expr.RoundTo{
		Mode: expr.DecimalPlaces, Figures: expr.IntRef{Literal: 2},
		Expr: floatLit(t, "3.14159"),
	}
	wantFloat(t, eval(t, dec), 3.14)
}

func TestGcdLcm(t *testing.T) {
	gcd := &expr.Gcd{Exprs: []expr.Expression{intLit(t, "12"), intLit(t, "18"), intLit(t, "30")}}
	wantFloat(t, eval(t, gcd), 6)

	lcm := &expr.Lcm{Exprs: []expr.Expression{intLit(t, "4"), intLit(t, "6")}}
	wantFloat(t, eval(t, lcm), 12)

	// Gcd over floats is a type mismatch: null.
	bad := &expr.Gcd{Exprs: []expr.Expression{floatLit(t, "12.5"), intLit(t, "5")}}
	wantNull(t, eval(t, bad))
}

func TestPatternMatch(t *testing.T) {
	pm := &expr.PatternMatch{Pattern: "[a-z]+", Expr: lit(t, value.String, "hello")}
	wantBool(t, eval(t, pm), true)

	// Full-string semantics: a partial match is not a match.
	pm = &expr.PatternMatch{Pattern: "[a-z]+", Expr: lit(t, value.String, "hello1")}
	wantBool(t, eval(t, pm), false)

	// Uncompilable pattern yields null.
	pm = &expr.PatternMatch{Pattern: "(", Expr: lit(t, value.String, "x")}
	wantNull(t, eval(t, pm))
}

func TestStringMatchCaseFolding(t *testing.T) {
	sm := &expr.StringMatch{
		CaseSensitive: false,
		First:         lit(t, value.String, "Hello"),
		Second:        lit(t, value.String, "hELLO"),
	}
	wantBool(t, eval(t, sm), true)

	sm.CaseSensitive = true
	wantBool(t, eval(t, sm), false)
}

func TestMathOperator(t *testing.T) {
	abs := &expr.MathOperator{Name: "abs", Exprs: []expr.Expression{floatLit(t, "-4.5")}}
	wantFloat(t, eval(t, abs), 4.5)

	// ln of a negative number is NaN, which must surface as null.
	ln := &expr.MathOperator{Name: "ln", Exprs: []expr.Expression{floatLit(t, "-1")}}
	wantNull(t, eval(t, ln))
}

func TestStatsOperator(t *testing.T) {
	data := &expr.MultipleOf{Exprs: []expr.Expression{
		floatLit(t, "1"), floatLit(t, "2"), floatLit(t, "3"), floatLit(t, "4"),
	}}
	wantFloat(t, eval(t, &expr.StatsOperator{Name: "mean", Expr: data}), 2.5)

	// Sample variance needs at least two values.
	one := &expr.MultipleOf{Exprs: []expr.Expression{floatLit(t, "1")}}
	wantNull(t, eval(t, &expr.StatsOperator{Name: "sampleVariance", Expr: one}))
}

func TestRandomInteger(t *testing.T) {
	ctx := newCtx()
	ri := &expr.RandomInteger{
		Min: expr.IntRef{Literal: 2}, Max: expr.IntRef{Literal: 10}, Step: expr.IntRef{Literal: 2},
	}
	for i := 0; i < 50; i++ {
		v, err := ri.Evaluate(ctx)
		if err != nil {
			t.Fatal(err)
		}
		s, _ := v.Single()
		if s.Int < 2 || s.Int > 10 || (s.Int-2)%2 != 0 {
			t.Fatalf("random integer %d out of range", s.Int)
		}
	}
}

func TestVariableLookup(t *testing.T) {
	ctx := newCtx()
	ctx.DefineResponse(&decls.Declaration{
		Identifier: "RESPONSE", Kind: decls.ResponseVar,
		BaseType: value.Identifier, Cardinality: value.Single,
		Value: value.NewSingle(value.NewIdentifier("choiceA")),
	})
	v, err := (&expr.Variable{Identifier: "RESPONSE"}).Evaluate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	s, _ := v.Single()
	if s.Str != "choiceA" {
		t.Errorf("variable = %+v", s)
	}

	// Unknown identifiers evaluate to null rather than erroring.
	v, err = (&expr.Variable{Identifier: "MISSING"}).Evaluate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	wantNull(t, v)
}

func TestFieldValue(t *testing.T) {
	ctx := newCtx()
	ctx.DefineResponse(&decls.Declaration{
		Identifier: "REC", Kind: decls.ResponseVar, Cardinality: value.Record,
		Value: value.NewRecord(map[string]value.Field{
			"x": value.NewField("x", value.NewInteger(7)),
		}),
	})
	fv := &expr.FieldValue{FieldIdentifier: "x", Expr: &expr.Variable{Identifier: "REC"}}
	v, err := fv.Evaluate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	s, _ := v.Single()
	if s.Int != 7 {
		t.Errorf("field value = %+v", s)
	}

	missing := &expr.FieldValue{FieldIdentifier: "y", Expr: &expr.Variable{Identifier: "REC"}}
	v, _ = missing.Evaluate(ctx)
	wantNull(t, v)
}

func TestParametersFromDefinition(t *testing.T) {
	params := expr.ParametersFromDefinition("a=1|||b=x&equals;y|||flag=")
	if params["a"] != "1" {
		t.Errorf("a = %q", params["a"])
	}
	if params["b"] != "x=y" {
		t.Errorf("b = %q, want x=y", params["b"])
	}
	if v, ok := params["flag"]; !ok || v != "" {
		t.Errorf("flag = %q, %v", v, ok)
	}
	if len(expr.ParametersFromDefinition("")) != 0 {
		t.Error("empty definition should have no parameters")
	}
}
