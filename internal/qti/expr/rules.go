package expr

import (
	"github.com/open-assess/qtiproc/internal/qti/decls"
	"github.com/open-assess/qtiproc/internal/qti/mapping"
)

// ConditionClause is one if/else-if branch: a boolean expression guarding a
// rule list.
type ConditionClause struct {
	Expr  Expression
	Rules []Rule
}

func executeRules(ctx *decls.Context, rules []Rule) error {
	for _, r := range rules {
		if err := r.Execute(ctx); err != nil {
			return err
		}
	}
	return nil
}

// evalCondition treats null and non-boolean guards as false.
func evalCondition(ctx *decls.Context, e Expression) (bool, error) {
	b, ok, err := evalBool(ctx, e)
	if err != nil {
		return false, err
	}
	return ok && b, nil
}

// ResponseCondition is qti-response-condition.
type ResponseCondition struct {
	If     *ConditionClause
	ElseIf []*ConditionClause
	Else   []Rule
}

func (r *ResponseCondition) Execute(ctx *decls.Context) error {
	return executeCondition(ctx, r.If, r.ElseIf, r.Else)
}

func executeCondition(ctx *decls.Context, ifClause *ConditionClause, elseIf []*ConditionClause, elseRules []Rule) error {
	branches := append([]*ConditionClause{ifClause}, elseIf...)
	for _, clause := range branches {
		ok, err := evalCondition(ctx, clause.Expr)
		if err != nil {
			return err
		}
		if ok {
			return executeRules(ctx, clause.Rules)
		}
	}
	return executeRules(ctx, elseRules)
}

// SetOutcomeValue is qti-set-outcome-value.
type SetOutcomeValue struct {
	Identifier string
	Expr       Expression
}

func (r *SetOutcomeValue) Execute(ctx *decls.Context) error {
	v, err := r.Expr.Evaluate(ctx)
	if err != nil {
		return err
	}
	ctx.SetOutcomeValue(r.Identifier, v)
	return nil
}

// LookupOutcomeValue is qti-lookup-outcome-value: the expression result is
// mapped through the outcome's lookup table before assignment.
type LookupOutcomeValue struct {
	Identifier string
	Expr       Expression
}

func (r *LookupOutcomeValue) Execute(ctx *decls.Context) error {
	v, err := r.Expr.Evaluate(ctx)
	if err != nil {
		return err
	}
	d := ctx.OutcomeDeclaration(r.Identifier)
	if d == nil {
		return nil
	}
	ctx.SetOutcomeValue(r.Identifier, mapping.MapValueFromLookupTable(d.LookupTable, v))
	return nil
}

// ExitResponse is qti-exit-response.
type ExitResponse struct{}

func (ExitResponse) Execute(*decls.Context) error { return ErrExitResponse }

// ResponseProcessingFragment is qti-response-processing-fragment.
type ResponseProcessingFragment struct {
	Rules []Rule
}

func (r *ResponseProcessingFragment) Execute(ctx *decls.Context) error {
	return executeRules(ctx, r.Rules)
}

// TemplateCondition is qti-template-condition.
type TemplateCondition struct {
	If     *ConditionClause
	ElseIf []*ConditionClause
	Else   []Rule
}

func (r *TemplateCondition) Execute(ctx *decls.Context) error {
	return executeCondition(ctx, r.If, r.ElseIf, r.Else)
}

// SetTemplateValue is qti-set-template-value.
type SetTemplateValue struct {
	Identifier string
	Expr       Expression
}

func (r *SetTemplateValue) Execute(ctx *decls.Context) error {
	v, err := r.Expr.Evaluate(ctx)
	if err != nil {
		return err
	}
	ctx.SetTemplateValue(r.Identifier, v)
	return nil
}

// SetDefaultValue is qti-set-default-value.
type SetDefaultValue struct {
	Identifier string
	Expr       Expression
}

func (r *SetDefaultValue) Execute(ctx *decls.Context) error {
	v, err := r.Expr.Evaluate(ctx)
	if err != nil {
		return err
	}
	ctx.SetVariableDefault(r.Identifier, v)
	return nil
}

// SetCorrectResponse is qti-set-correct-response.
type SetCorrectResponse struct {
	Identifier string
	Expr       Expression
}

func (r *SetCorrectResponse) Execute(ctx *decls.Context) error {
	v, err := r.Expr.Evaluate(ctx)
	if err != nil {
		return err
	}
	ctx.SetCorrectResponse(r.Identifier, v)
	return nil
}

// TemplateConstraint is qti-template-constraint: a false or null guard
// signals the host to re-run template processing with fresh random values.
type TemplateConstraint struct {
	Expr Expression
}

func (r *TemplateConstraint) Execute(ctx *decls.Context) error {
	ok, err := evalCondition(ctx, r.Expr)
	if err != nil {
		return err
	}
	if !ok {
		return ErrTemplateConstraint
	}
	return nil
}

// ExitTemplate is qti-exit-template.
type ExitTemplate struct{}

func (ExitTemplate) Execute(*decls.Context) error { return ErrExitTemplate }
