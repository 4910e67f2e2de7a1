package expr

import (
	"strings"

	"github.com/open-assess/qtiproc/internal/qti/decls"
	"github.com/open-assess/qtiproc/internal/qti/value"
)

// ParametersFromDefinition parses a custom-operator definition string:
// key=value pairs delimited by a triple bar, with "=" inside a value
// escaped as "&equals;". Unknown or empty definitions yield an empty map,
// never an error.
func ParametersFromDefinition(definition string) map[string]string {
	params := map[string]string{}
	definition = strings.TrimSpace(definition)
	if definition == "" {
		return params
	}
	for _, pair := range strings.Split(definition, "|||") {
		key, rest, found := strings.Cut(pair, "=")
		if !found {
			params[key] = ""
			continue
		}
		params[key] = strings.ReplaceAll(rest, "&equals;", "=")
	}
	return params
}

// CustomOperatorFunc implements one vendor operator. args are the evaluated
// child values; params come from the definition attribute.
type CustomOperatorFunc func(ctx *decls.Context, params map[string]string, args []value.Value) value.Value

// customOperators is the operator registry, keyed by the class tokens the
// operator is published under.
var customOperators = map[string]CustomOperatorFunc{
	"math.stringToFloat":     stringToFloat,
	"amp:math.stringToFloat": stringToFloat,
}

// RegisterCustomOperator installs a vendor operator. Intended for host setup
// before any evaluation begins.
func RegisterCustomOperator(name string, fn CustomOperatorFunc) {
	customOperators[name] = fn
}

// resolveCustomOperator returns the first supported operator named in a
// space-separated class attribute.
func resolveCustomOperator(class string) (CustomOperatorFunc, bool) {
	for _, token := range strings.Fields(class) {
		if fn, ok := customOperators[token]; ok {
			return fn, true
		}
	}
	return nil, false
}

// stringToFloat coerces a single string argument into a float value.
func stringToFloat(_ *decls.Context, _ map[string]string, args []value.Value) value.Value {
	if len(args) != 1 {
		return nullValue()
	}
	s, ok := args[0].Single()
	if !ok || s.Type != value.String {
		return nullValue()
	}
	f, err := value.ParseFloat(s.Str)
	if err != nil {
		return nullValue()
	}
	return floatValue(f)
}

// CustomOperator is qti-custom-operator: dispatch on a vendor class name
// with a parsed definition string. An unsupported operator yields null.
type CustomOperator struct {
	Class      string
	Definition string
	Exprs      []Expression
}

func (e *CustomOperator) Evaluate(ctx *decls.Context) (value.Value, error) {
	fn, ok := resolveCustomOperator(e.Class)
	if !ok {
		return nullValue(), nil
	}
	args := make([]value.Value, len(e.Exprs))
	for i, child := range e.Exprs {
		v, err := child.Evaluate(ctx)
		if err != nil {
			return nullValue(), err
		}
		args[i] = v
	}
	return fn(ctx, ParametersFromDefinition(e.Definition), args), nil
}
