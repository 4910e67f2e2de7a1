package parser

import (
	"strconv"
	"strings"

	"github.com/open-assess/qtiproc/internal/qti/expr"
	"github.com/open-assess/qtiproc/internal/qti/geometry"
	"github.com/open-assess/qtiproc/internal/qti/value"
)

func compileResponseRules(nodes []node) ([]expr.Rule, error) {
	rules := make([]expr.Rule, 0, len(nodes))
	for i := range nodes {
		r, err := compileResponseRule(&nodes[i])
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func compileResponseRule(n *node) (expr.Rule, error) {
	switch n.name() {
	case "qti-response-condition":
		ifClause, elseIf, elseRules, err := compileCondition(n, "qti-response-if", "qti-response-else-if", "qti-response-else", compileResponseRules)
		if err != nil {
			return nil, err
		}
		return &expr.ResponseCondition{If: ifClause, ElseIf: elseIf, Else: elseRules}, nil
	case "qti-set-outcome-value":
		identifier, e, err := identifierRule(n)
		if err != nil {
			return nil, err
		}
		return &expr.SetOutcomeValue{Identifier: identifier, Expr: e}, nil
	case "qti-lookup-outcome-value":
		identifier, e, err := identifierRule(n)
		if err != nil {
			return nil, err
		}
		return &expr.LookupOutcomeValue{Identifier: identifier, Expr: e}, nil
	case "qti-exit-response":
		return expr.ExitResponse{}, nil
	case "qti-response-processing-fragment":
		inner, err := compileResponseRules(n.Children)
		if err != nil {
			return nil, err
		}
		return &expr.ResponseProcessingFragment{Rules: inner}, nil
	}
	if expr.IsExpressionName(n.name()) {
		return nil, validationErrorf("<%s> is an expression, not a response rule", n.name())
	}
	if expr.IsTemplateRuleName(n.name()) {
		return nil, validationErrorf("<%s> is a template rule, not a response rule", n.name())
	}
	return nil, validationErrorf("<%s> is not a response rule", n.name())
}

func compileTemplateRules(nodes []node) ([]expr.Rule, error) {
	rules := make([]expr.Rule, 0, len(nodes))
	for i := range nodes {
		r, err := compileTemplateRule(&nodes[i])
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func compileTemplateRule(n *node) (expr.Rule, error) {
	switch n.name() {
	case "qti-template-condition":
		ifClause, elseIf, elseRules, err := compileCondition(n, "qti-template-if", "qti-template-else-if", "qti-template-else", compileTemplateRules)
		if err != nil {
			return nil, err
		}
		return &expr.TemplateCondition{If: ifClause, ElseIf: elseIf, Else: elseRules}, nil
	case "qti-set-template-value":
		identifier, e, err := identifierRule(n)
		if err != nil {
			return nil, err
		}
		return &expr.SetTemplateValue{Identifier: identifier, Expr: e}, nil
	case "qti-set-default-value":
		identifier, e, err := identifierRule(n)
		if err != nil {
			return nil, err
		}
		return &expr.SetDefaultValue{Identifier: identifier, Expr: e}, nil
	case "qti-set-correct-response":
		identifier, e, err := identifierRule(n)
		if err != nil {
			return nil, err
		}
		return &expr.SetCorrectResponse{Identifier: identifier, Expr: e}, nil
	case "qti-template-constraint":
		e, err := singleChildExpr(n)
		if err != nil {
			return nil, err
		}
		return &expr.TemplateConstraint{Expr: e}, nil
	case "qti-exit-template":
		return expr.ExitTemplate{}, nil
	}
	if expr.IsExpressionName(n.name()) {
		return nil, validationErrorf("<%s> is an expression, not a template rule", n.name())
	}
	if expr.IsResponseRuleName(n.name()) {
		return nil, validationErrorf("<%s> is a response rule, not a template rule", n.name())
	}
	return nil, validationErrorf("<%s> is not a template rule", n.name())
}

// identifierRule reads the shared shape of set/lookup rules: an identifier
// attribute and exactly one child expression.
func identifierRule(n *node) (string, expr.Expression, error) {
	identifier, err := n.requireAttr("identifier")
	if err != nil {
		return "", nil, err
	}
	e, err := singleChildExpr(n)
	if err != nil {
		return "", nil, err
	}
	return identifier, e, nil
}

type rulesCompiler func([]node) ([]expr.Rule, error)

// compileCondition reads the if / else-if* / else? structure shared by
// response and template conditions. The first child of each branch is the
// test expression, the rest are rules.
func compileCondition(n *node, ifName, elseIfName, elseName string, compile rulesCompiler) (*expr.ConditionClause, []*expr.ConditionClause, []expr.Rule, error) {
	var (
		ifClause  *expr.ConditionClause
		elseIf    []*expr.ConditionClause
		elseRules []expr.Rule
	)
	for i := range n.Children {
		branch := &n.Children[i]
		switch branch.name() {
		case ifName:
			clause, err := compileClause(branch, compile)
			if err != nil {
				return nil, nil, nil, err
			}
			ifClause = clause
		case elseIfName:
			clause, err := compileClause(branch, compile)
			if err != nil {
				return nil, nil, nil, err
			}
			elseIf = append(elseIf, clause)
		case elseName:
			rules, err := compile(branch.Children)
			if err != nil {
				return nil, nil, nil, err
			}
			elseRules = rules
		default:
			return nil, nil, nil, validationErrorf("<%s>: unexpected child <%s>", n.name(), branch.name())
		}
	}
	if ifClause == nil {
		return nil, nil, nil, validationErrorf("<%s> is missing its <%s> branch", n.name(), ifName)
	}
	return ifClause, elseIf, elseRules, nil
}

func compileClause(n *node, compile rulesCompiler) (*expr.ConditionClause, error) {
	if len(n.Children) == 0 {
		return nil, validationErrorf("<%s> needs a test expression", n.name())
	}
	test, err := compileExpression(&n.Children[0])
	if err != nil {
		return nil, err
	}
	rules, err := compile(n.Children[1:])
	if err != nil {
		return nil, err
	}
	return &expr.ConditionClause{Expr: test, Rules: rules}, nil
}

func childExprs(n *node) ([]expr.Expression, error) {
	exprs := make([]expr.Expression, 0, len(n.Children))
	for i := range n.Children {
		e, err := compileExpression(&n.Children[i])
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

func singleChildExpr(n *node) (expr.Expression, error) {
	if len(n.Children) != 1 {
		return nil, validationErrorf("<%s> wants exactly one child expression, has %d", n.name(), len(n.Children))
	}
	return compileExpression(&n.Children[0])
}

func twoChildExprs(n *node) (expr.Expression, expr.Expression, error) {
	if len(n.Children) != 2 {
		return nil, nil, validationErrorf("<%s> wants exactly two child expressions, has %d", n.name(), len(n.Children))
	}
	first, err := compileExpression(&n.Children[0])
	if err != nil {
		return nil, nil, err
	}
	second, err := compileExpression(&n.Children[1])
	if err != nil {
		return nil, nil, err
	}
	return first, second, nil
}

// parseIntRef reads an integer-or-variable-ref attribute: a literal integer
// or a template variable identifier.
func parseIntRef(n *node, name string, fallback int) (expr.IntRef, error) {
	raw, ok := n.attr(name)
	if !ok {
		return expr.IntRef{Literal: fallback}, nil
	}
	raw = strings.TrimSpace(raw)
	if i, err := strconv.Atoi(raw); err == nil {
		return expr.IntRef{Literal: i}, nil
	}
	if _, err := value.ParseIdentifier(raw); err != nil {
		return expr.IntRef{}, validationErrorf("<%s>: invalid %s attribute %q", n.name(), name, raw)
	}
	return expr.IntRef{Identifier: raw}, nil
}

func requireIntRef(n *node, name string) (expr.IntRef, error) {
	if _, ok := n.attr(name); !ok {
		return expr.IntRef{}, validationErrorf("<%s>: attribute %q is required", n.name(), name)
	}
	return parseIntRef(n, name, 0)
}

func parseFloatRef(n *node, name string, fallback float64) (expr.FloatRef, error) {
	raw, ok := n.attr(name)
	if !ok {
		return expr.FloatRef{Literal: fallback}, nil
	}
	raw = strings.TrimSpace(raw)
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return expr.FloatRef{Literal: f}, nil
	}
	if _, err := value.ParseIdentifier(raw); err != nil {
		return expr.FloatRef{}, validationErrorf("<%s>: invalid %s attribute %q", n.name(), name, raw)
	}
	return expr.FloatRef{Identifier: raw}, nil
}

func compileExpression(n *node) (expr.Expression, error) {
	switch n.name() {
	case "qti-base-value":
		rawBase, err := n.requireAttr("base-type")
		if err != nil {
			return nil, err
		}
		baseType, err := value.ParseBaseType(rawBase)
		if err != nil {
			return nil, validationErrorf("<qti-base-value>: %v", err)
		}
		bv, err := expr.NewBaseValue(baseType, n.text())
		if err != nil {
			return nil, validationErrorf("<qti-base-value>: %v", err)
		}
		return bv, nil

	case "qti-variable", "qti-correct", "qti-default", "qti-map-response", "qti-map-response-point":
		identifier, err := n.requireAttr("identifier")
		if err != nil {
			return nil, err
		}
		switch n.name() {
		case "qti-variable":
			return &expr.Variable{Identifier: identifier}, nil
		case "qti-correct":
			return &expr.Correct{Identifier: identifier}, nil
		case "qti-default":
			return &expr.Default{Identifier: identifier}, nil
		case "qti-map-response":
			return &expr.MapResponse{Identifier: identifier}, nil
		default:
			return &expr.MapResponsePoint{Identifier: identifier}, nil
		}

	case "qti-null":
		return expr.Null{}, nil

	case "qti-is-null":
		e, err := singleChildExpr(n)
		if err != nil {
			return nil, err
		}
		return &expr.IsNull{Expr: e}, nil

	case "qti-field-value":
		fieldID, err := n.requireAttr("field-identifier")
		if err != nil {
			return nil, err
		}
		e, err := singleChildExpr(n)
		if err != nil {
			return nil, err
		}
		return &expr.FieldValue{FieldIdentifier: fieldID, Expr: e}, nil

	case "qti-multiple":
		exprs, err := childExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.MultipleOf{Exprs: exprs}, nil

	case "qti-ordered":
		exprs, err := childExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.OrderedOf{Exprs: exprs}, nil

	case "qti-container-size":
		e, err := singleChildExpr(n)
		if err != nil {
			return nil, err
		}
		return &expr.ContainerSize{Expr: e}, nil

	case "qti-contains":
		haystack, needle, err := twoChildExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.Contains{Haystack: haystack, Needle: needle}, nil

	case "qti-member":
		needle, container, err := twoChildExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.Member{Needle: needle, Container: container}, nil

	case "qti-index":
		ref, err := requireIntRef(n, "n")
		if err != nil {
			return nil, err
		}
		e, err := singleChildExpr(n)
		if err != nil {
			return nil, err
		}
		return &expr.Index{N: ref, Expr: e}, nil

	case "qti-delete":
		needle, container, err := twoChildExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.Delete{Needle: needle, Container: container}, nil

	case "qti-repeat":
		ref, err := requireIntRef(n, "number-repeats")
		if err != nil {
			return nil, err
		}
		exprs, err := childExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.Repeat{NumberRepeats: ref, Exprs: exprs}, nil

	case "qti-and":
		exprs, err := childExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.And{Exprs: exprs}, nil

	case "qti-or":
		exprs, err := childExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.Or{Exprs: exprs}, nil

	case "qti-not":
		e, err := singleChildExpr(n)
		if err != nil {
			return nil, err
		}
		return &expr.Not{Expr: e}, nil

	case "qti-match":
		first, second, err := twoChildExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.MatchExpr{First: first, Second: second}, nil

	case "qti-any-n":
		min, err := requireIntRef(n, "min")
		if err != nil {
			return nil, err
		}
		max, err := requireIntRef(n, "max")
		if err != nil {
			return nil, err
		}
		exprs, err := childExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.AnyN{Min: min, Max: max, Exprs: exprs}, nil

	case "qti-sum":
		exprs, err := childExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.Sum{Exprs: exprs}, nil

	case "qti-product":
		exprs, err := childExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.Product{Exprs: exprs}, nil

	case "qti-subtract":
		first, second, err := twoChildExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.Subtract{First: first, Second: second}, nil

	case "qti-divide":
		first, second, err := twoChildExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.Divide{First: first, Second: second}, nil

	case "qti-integer-divide":
		first, second, err := twoChildExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.IntegerDivide{First: first, Second: second}, nil

	case "qti-integer-modulus":
		first, second, err := twoChildExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.IntegerModulus{First: first, Second: second}, nil

	case "qti-integer-to-float":
		e, err := singleChildExpr(n)
		if err != nil {
			return nil, err
		}
		return &expr.IntegerToFloat{Expr: e}, nil

	case "qti-round":
		e, err := singleChildExpr(n)
		if err != nil {
			return nil, err
		}
		return &expr.Round{Expr: e}, nil

	case "qti-truncate":
		e, err := singleChildExpr(n)
		if err != nil {
			return nil, err
		}
		return &expr.Truncate{Expr: e}, nil

	case "qti-round-to":
		mode, err := parseRoundingMode(n)
		if err != nil {
			return nil, err
		}
		figures, err := requireIntRef(n, "figures")
		if err != nil {
			return nil, err
		}
		e, err := singleChildExpr(n)
		if err != nil {
			return nil, err
		}
		return &expr.RoundTo{Mode: mode, Figures: figures, Expr: e}, nil

	case "qti-power":
		base, exponent, err := twoChildExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.Power{Base: base, Exponent: exponent}, nil

	case "qti-gt", "qti-gte", "qti-lt", "qti-lte":
		first, second, err := twoChildExprs(n)
		if err != nil {
			return nil, err
		}
		switch n.name() {
		case "qti-gt":
			return expr.NewGt(first, second), nil
		case "qti-gte":
			return expr.NewGte(first, second), nil
		case "qti-lt":
			return expr.NewLt(first, second), nil
		default:
			return expr.NewLte(first, second), nil
		}

	case "qti-equal":
		return compileEqual(n)

	case "qti-equal-rounded":
		mode, err := parseRoundingMode(n)
		if err != nil {
			return nil, err
		}
		figures, err := requireIntRef(n, "figures")
		if err != nil {
			return nil, err
		}
		first, second, err := twoChildExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.EqualRounded{Mode: mode, Figures: figures, First: first, Second: second}, nil

	case "qti-max":
		exprs, err := childExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.Max{Exprs: exprs}, nil

	case "qti-min":
		exprs, err := childExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.Min{Exprs: exprs}, nil

	case "qti-gcd":
		exprs, err := childExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.Gcd{Exprs: exprs}, nil

	case "qti-lcm":
		exprs, err := childExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.Lcm{Exprs: exprs}, nil

	case "qti-math-operator":
		name, err := n.requireAttr("name")
		if err != nil {
			return nil, err
		}
		if !expr.IsMathOperatorName(name) {
			return nil, validationErrorf("<qti-math-operator>: unknown operator %q", name)
		}
		exprs, err := childExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.MathOperator{Name: name, Exprs: exprs}, nil

	case "qti-math-constant":
		name, err := n.requireAttr("name")
		if err != nil {
			return nil, err
		}
		return &expr.MathConstant{Name: name}, nil

	case "qti-stats-operator":
		name, err := n.requireAttr("name")
		if err != nil {
			return nil, err
		}
		if !expr.IsStatsOperatorName(name) {
			return nil, validationErrorf("<qti-stats-operator>: unknown operator %q", name)
		}
		e, err := singleChildExpr(n)
		if err != nil {
			return nil, err
		}
		return &expr.StatsOperator{Name: name, Expr: e}, nil

	case "qti-string-match":
		caseSensitive, err := boolAttr(n, "case-sensitive", true)
		if err != nil {
			return nil, err
		}
		first, second, err := twoChildExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.StringMatch{CaseSensitive: caseSensitive, First: first, Second: second}, nil

	case "qti-substring":
		caseSensitive, err := boolAttr(n, "case-sensitive", true)
		if err != nil {
			return nil, err
		}
		first, second, err := twoChildExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.Substring{CaseSensitive: caseSensitive, First: first, Second: second}, nil

	case "qti-pattern-match":
		pattern, err := n.requireAttr("pattern")
		if err != nil {
			return nil, err
		}
		e, err := singleChildExpr(n)
		if err != nil {
			return nil, err
		}
		return &expr.PatternMatch{Pattern: pattern, Expr: e}, nil

	case "qti-random":
		e, err := singleChildExpr(n)
		if err != nil {
			return nil, err
		}
		return &expr.Random{Expr: e}, nil

	case "qti-random-integer":
		min, err := requireIntRef(n, "min")
		if err != nil {
			return nil, err
		}
		max, err := requireIntRef(n, "max")
		if err != nil {
			return nil, err
		}
		step, err := parseIntRef(n, "step", 1)
		if err != nil {
			return nil, err
		}
		return &expr.RandomInteger{Min: min, Max: max, Step: step}, nil

	case "qti-random-float":
		min, err := parseFloatRef(n, "min", 0)
		if err != nil {
			return nil, err
		}
		max, err := parseFloatRef(n, "max", 0)
		if err != nil {
			return nil, err
		}
		return &expr.RandomFloat{Min: min, Max: max}, nil

	case "qti-inside":
		rawShape, err := n.requireAttr("shape")
		if err != nil {
			return nil, err
		}
		shape, err := geometry.ParseShape(rawShape)
		if err != nil {
			return nil, validationErrorf("<qti-inside>: %v", err)
		}
		rawCoords, err := n.requireAttr("coords")
		if err != nil {
			return nil, err
		}
		coords, err := parseCoords(rawCoords)
		if err != nil {
			return nil, err
		}
		if err := geometry.CoordsForShape(shape, coords); err != nil {
			return nil, validationErrorf("<qti-inside>: %v", err)
		}
		e, err := singleChildExpr(n)
		if err != nil {
			return nil, err
		}
		return &expr.Inside{Shape: shape, Coords: coords, Expr: e}, nil

	case "qti-custom-operator":
		class, err := n.requireAttr("class")
		if err != nil {
			return nil, err
		}
		exprs, err := childExprs(n)
		if err != nil {
			return nil, err
		}
		return &expr.CustomOperator{
			Class:      class,
			Definition: n.attrOr("definition", ""),
			Exprs:      exprs,
		}, nil
	}
	if expr.IsResponseRuleName(n.name()) || expr.IsTemplateRuleName(n.name()) {
		return nil, validationErrorf("<%s> is a rule, not an expression", n.name())
	}
	return nil, validationErrorf("<%s> is not an expression", n.name())
}

func parseRoundingMode(n *node) (expr.RoundingMode, error) {
	raw := n.attrOr("rounding-mode", string(expr.SignificantFigures))
	switch expr.RoundingMode(raw) {
	case expr.SignificantFigures, expr.DecimalPlaces:
		return expr.RoundingMode(raw), nil
	}
	return "", validationErrorf("<%s>: invalid rounding-mode %q", n.name(), raw)
}

func compileEqual(n *node) (expr.Expression, error) {
	mode := expr.ToleranceMode(n.attrOr("tolerance-mode", string(expr.Exact)))
	switch mode {
	case expr.Exact, expr.Absolute, expr.Relative:
	default:
		return nil, validationErrorf("<qti-equal>: invalid tolerance-mode %q", n.attrOr("tolerance-mode", ""))
	}

	var tolerance []expr.FloatRef
	if raw, ok := n.attr("tolerance"); ok {
		for _, part := range strings.Fields(raw) {
			if f, err := strconv.ParseFloat(part, 64); err == nil {
				tolerance = append(tolerance, expr.FloatRef{Literal: f})
				continue
			}
			if _, err := value.ParseIdentifier(part); err != nil {
				return nil, validationErrorf("<qti-equal>: invalid tolerance component %q", part)
			}
			tolerance = append(tolerance, expr.FloatRef{Identifier: part})
		}
		if len(tolerance) == 0 || len(tolerance) > 2 {
			return nil, validationErrorf("<qti-equal>: tolerance wants one or two components")
		}
	}
	if mode != expr.Exact && len(tolerance) == 0 {
		return nil, validationErrorf("<qti-equal>: tolerance-mode %q needs a tolerance", mode)
	}

	includeLower, err := boolAttr(n, "include-lower-bound", true)
	if err != nil {
		return nil, err
	}
	includeUpper, err := boolAttr(n, "include-upper-bound", true)
	if err != nil {
		return nil, err
	}
	first, second, err := twoChildExprs(n)
	if err != nil {
		return nil, err
	}
	return &expr.Equal{
		Mode:         mode,
		Tolerance:    tolerance,
		IncludeLower: includeLower,
		IncludeUpper: includeUpper,
		First:        first,
		Second:       second,
	}, nil
}
