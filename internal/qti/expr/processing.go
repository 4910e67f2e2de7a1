package expr

import (
	"errors"

	"github.com/open-assess/qtiproc/internal/qti/decls"
	"github.com/open-assess/qtiproc/internal/qti/value"
)

// ResponseProcessing is the top of a response rule tree.
type ResponseProcessing struct {
	Rules []Rule
}

// Execute runs the rule tree. qti-exit-response unwinds cleanly; any other
// error aborts with the store left in its best-effort state, so outcomes
// already written (and SCORE at its prior or default value) survive.
func (p *ResponseProcessing) Execute(ctx *decls.Context) error {
	err := executeRules(ctx, p.Rules)
	if errors.Is(err, ErrExitResponse) {
		return nil
	}
	return err
}

// TemplateProcessing is the top of a template rule tree.
type TemplateProcessing struct {
	Rules []Rule
}

// maxConstraintRetries bounds re-instantiation when a template constraint
// keeps failing.
const maxConstraintRetries = 100

// Execute runs the template rules, retrying the whole tree when a
// qti-template-constraint fails. qti-exit-template unwinds cleanly.
func (p *TemplateProcessing) Execute(ctx *decls.Context) error {
	var err error
	for attempt := 0; attempt < maxConstraintRetries; attempt++ {
		err = executeRules(ctx, p.Rules)
		switch {
		case err == nil, errors.Is(err, ErrExitTemplate):
			return nil
		case errors.Is(err, ErrTemplateConstraint):
			continue
		default:
			return err
		}
	}
	return err
}

// MatchCorrectTemplate builds the standard match_correct response
// processing: SCORE becomes 1 when the response matches the correct
// response, 0 otherwise.
func MatchCorrectTemplate(responseID string) *ResponseProcessing {
	one, _ := NewBaseValue(value.Float, "1")
	zero, _ := NewBaseValue(value.Float, "0")
	return &ResponseProcessing{Rules: []Rule{
		&ResponseCondition{
			If: &ConditionClause{
				Expr:  &MatchExpr{First: &Variable{Identifier: responseID}, Second: &Correct{Identifier: responseID}},
				Rules: []Rule{&SetOutcomeValue{Identifier: "SCORE", Expr: one}},
			},
			Else: []Rule{&SetOutcomeValue{Identifier: "SCORE", Expr: zero}},
		},
	}}
}

// MapResponseTemplate builds the standard map_response processing: SCORE
// becomes the mapped response value, or 0 when the response is null.
func MapResponseTemplate(responseID string) *ResponseProcessing {
	zero, _ := NewBaseValue(value.Float, "0")
	return &ResponseProcessing{Rules: []Rule{
		&ResponseCondition{
			If: &ConditionClause{
				Expr:  &IsNull{Expr: &Variable{Identifier: responseID}},
				Rules: []Rule{&SetOutcomeValue{Identifier: "SCORE", Expr: zero}},
			},
			Else: []Rule{&SetOutcomeValue{Identifier: "SCORE", Expr: &MapResponse{Identifier: responseID}}},
		},
	}}
}
