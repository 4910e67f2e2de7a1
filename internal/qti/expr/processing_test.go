package expr_test

import (
	"testing"

	"github.com/open-assess/qtiproc/internal/qti/decls"
	"github.com/open-assess/qtiproc/internal/qti/expr"
	"github.com/open-assess/qtiproc/internal/qti/mapping"
	"github.com/open-assess/qtiproc/internal/qti/numeric"
	"github.com/open-assess/qtiproc/internal/qti/value"
)

func ctxWithResponse(v value.Value) *decls.Context {
	ctx := newCtx()
	ctx.DefineResponse(&decls.Declaration{
		Identifier: "RESPONSE", Kind: decls.ResponseVar,
		BaseType: value.Identifier, Cardinality: value.Single,
		Value:           v,
		CorrectResponse: value.NewSingle(value.NewIdentifier("choiceA")),
	})
	return ctx
}

func score(t *testing.T, ctx *decls.Context) float64 {
	t.Helper()
	d := ctx.OutcomeDeclaration("SCORE")
	s, ok := d.Value.Single()
	if !ok {
		t.Fatalf("SCORE is not single: %+v", d.Value)
	}
	if s.Type == value.Integer {
		return float64(s.Int)
	}
	return s.Float
}

// if match(RESPONSE, correct) then SCORE = 1 else SCORE = 0
func matchCorrectCondition(t *testing.T) *expr.ResponseCondition {
	t.Helper()
	one, err := expr.NewBaseValue(value.Float, "1")
	if err != nil {
		t.Fatal(err)
	}
	zero, err := expr.NewBaseValue(value.Float, "0")
	if err != nil {
		t.Fatal(err)
	}
	return &expr.ResponseCondition{
		If: &expr.ConditionClause{
			Expr: &expr.MatchExpr{
				First:  &expr.Variable{Identifier: "RESPONSE"},
				Second: &expr.Correct{Identifier: "RESPONSE"},
			},
			Rules: []expr.Rule{&expr.SetOutcomeValue{Identifier: "SCORE", Expr: one}},
		},
		Else: []expr.Rule{&expr.SetOutcomeValue{Identifier: "SCORE", Expr: zero}},
	}
}

func TestResponseConditionSetsScore(t *testing.T) {
	rp := &expr.ResponseProcessing{Rules: []expr.Rule{matchCorrectCondition(t)}}

	ctx := ctxWithResponse(value.NewSingle(value.NewIdentifier("choiceA")))
	if err := rp.Execute(ctx); err != nil {
		t.Fatal(err)
	}
	if got := score(t, ctx); got != 1 {
		t.Errorf("SCORE = %v, want 1", got)
	}

	ctx = ctxWithResponse(value.NewSingle(value.NewIdentifier("choiceB")))
	if err := rp.Execute(ctx); err != nil {
		t.Fatal(err)
	}
	if got := score(t, ctx); got != 0 {
		t.Errorf("SCORE = %v, want 0", got)
	}
}

func TestNullConditionTakesElse(t *testing.T) {
	rp := &expr.ResponseProcessing{Rules: []expr.Rule{matchCorrectCondition(t)}}
	ctx := ctxWithResponse(value.NewNull(value.Identifier, value.Single))
	if err := rp.Execute(ctx); err != nil {
		t.Fatal(err)
	}
	if got := score(t, ctx); got != 0 {
		t.Errorf("SCORE with null response = %v, want 0", got)
	}
}

func TestMatchCorrectTemplate(t *testing.T) {
	rp := expr.MatchCorrectTemplate("RESPONSE")
	ctx := ctxWithResponse(value.NewSingle(value.NewIdentifier("choiceA")))
	if err := rp.Execute(ctx); err != nil {
		t.Fatal(err)
	}
	if got := score(t, ctx); got != 1 {
		t.Errorf("SCORE = %v, want 1", got)
	}
}

func TestMapResponseTemplate(t *testing.T) {
	rp := expr.MapResponseTemplate("RESPONSE")
	ctx := newCtx()
	ctx.DefineResponse(&decls.Declaration{
		Identifier: "RESPONSE", Kind: decls.ResponseVar,
		BaseType: value.Identifier, Cardinality: value.Multiple,
		Value: value.NewContainer(value.Multiple, value.Identifier, []value.Scalar{
			value.NewIdentifier("a"), value.NewIdentifier("b"),
		}),
		Mapping: &mapping.Table{Entries: []mapping.Entry{
			{MapKey: "a", MappedValue: numeric.FromInt(1), CaseSensitive: true},
			{MapKey: "b", MappedValue: numeric.MustParse("0.5"), CaseSensitive: true},
		}},
	})
	if err := rp.Execute(ctx); err != nil {
		t.Fatal(err)
	}
	if got := score(t, ctx); got != 1.5 {
		t.Errorf("SCORE = %v, want 1.5", got)
	}
}

func TestExitResponseStopsProcessing(t *testing.T) {
	one, err := expr.NewBaseValue(value.Float, "1")
	if err != nil {
		t.Fatal(err)
	}
	rp := &expr.ResponseProcessing{Rules: []expr.Rule{
		expr.ExitResponse{},
		&expr.SetOutcomeValue{Identifier: "SCORE", Expr: one},
	}}
	ctx := newCtx()
	if err := rp.Execute(ctx); err != nil {
		t.Fatal(err)
	}
	if got := score(t, ctx); got != 0 {
		t.Errorf("SCORE = %v, want 0 (rule after exit must not run)", got)
	}
}

func TestLookupOutcomeValue(t *testing.T) {
	ctx := newCtx()
	ctx.DefineOutcome(&decls.Declaration{
		Identifier: "GRADE", Kind: decls.OutcomeVar,
		BaseType: value.Identifier, Cardinality: value.Single,
		Value: value.NewNull(value.Identifier, value.Single),
		LookupTable: &mapping.LookupTable{
			Kind: mapping.Interpolation,
			Entries: []mapping.LookupEntry{
				{SourceValue: numeric.FromInt(5), TargetValue: value.NewIdentifier("fail"), IncludeBoundary: false},
				{SourceValue: numeric.FromInt(10), TargetValue: value.NewIdentifier("pass"), IncludeBoundary: true},
			},
			DefaultValue: value.NewSingle(value.NewIdentifier("perfect")),
		},
	})
	seven, err := expr.NewBaseValue(value.Float, "7")
	if err != nil {
		t.Fatal(err)
	}
	rule := &expr.LookupOutcomeValue{Identifier: "GRADE", Expr: seven}
	if err := rule.Execute(ctx); err != nil {
		t.Fatal(err)
	}
	s, _ := ctx.OutcomeDeclaration("GRADE").Value.Single()
	if s.Str != "pass" {
		t.Errorf("GRADE = %+v, want pass", s)
	}
}

func TestTemplateProcessingConstraintRetries(t *testing.T) {
	// X := randomInteger(1, 6); constraint: X > 4. Must finish with X in {5, 6}.
	ctx := newCtx()
	ctx.DefineTemplate(&decls.Declaration{
		Identifier: "X", Kind: decls.TemplateVar,
		BaseType: value.Integer, Cardinality: value.Single,
		Value: value.NewNull(value.Integer, value.Single),
	})
	four, err := expr.NewBaseValue(value.Integer, "4")
	if err != nil {
		t.Fatal(err)
	}
	tp := &expr.TemplateProcessing{Rules: []expr.Rule{
		&expr.SetTemplateValue{Identifier: "X", Expr: &expr.RandomInteger{
			Min: expr.IntRef{Literal: 1}, Max: expr.IntRef{Literal: 6}, Step: expr.IntRef{Literal: 1},
		}},
		&expr.TemplateConstraint{Expr: expr.NewGt(&expr.Variable{Identifier: "X"}, four)},
	}}
	if err := tp.Execute(ctx); err != nil {
		t.Fatal(err)
	}
	s, _ := ctx.TemplateDeclaration("X").Value.Single()
	if s.Int <= 4 {
		t.Errorf("X = %d, constraint X > 4 not honored", s.Int)
	}
}

func TestTemplateConstraintGivesUp(t *testing.T) {
	ctx := newCtx()
	never, err := expr.NewBaseValue(value.Boolean, "false")
	if err != nil {
		t.Fatal(err)
	}
	tp := &expr.TemplateProcessing{Rules: []expr.Rule{
		&expr.TemplateConstraint{Expr: never},
	}}
	if err := tp.Execute(ctx); err == nil {
		t.Error("unsatisfiable constraint should surface an error")
	}
}

func TestSetDefaultAndCorrect(t *testing.T) {
	ctx := ctxWithResponse(value.NewNull(value.Identifier, value.Single))
	choiceC, err := expr.NewBaseValue(value.Identifier, "choiceC")
	if err != nil {
		t.Fatal(err)
	}
	rules := []expr.Rule{
		&expr.SetCorrectResponse{Identifier: "RESPONSE", Expr: choiceC},
		&expr.SetDefaultValue{Identifier: "RESPONSE", Expr: choiceC},
	}
	for _, r := range rules {
		if err := r.Execute(ctx); err != nil {
			t.Fatal(err)
		}
	}
	d := ctx.ResponseDeclaration("RESPONSE")
	if s, _ := d.CorrectResponse.Single(); s.Str != "choiceC" {
		t.Errorf("correct = %+v", d.CorrectResponse)
	}
	if s, _ := d.DefaultValue.Single(); s.Str != "choiceC" {
		t.Errorf("default = %+v", d.DefaultValue)
	}
}

func TestIncrementNumAttempts(t *testing.T) {
	ctx := newCtx()
	ctx.IncrementNumAttempts()
	ctx.IncrementNumAttempts()
	v, err := (&expr.Variable{Identifier: "numAttempts"}).Evaluate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	s, _ := v.Single()
	if s.Int != 2 {
		t.Errorf("numAttempts = %d, want 2", s.Int)
	}
}
