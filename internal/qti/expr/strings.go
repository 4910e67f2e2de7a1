package expr

import (
	"regexp"
	"strings"
	"sync"

	"github.com/open-assess/qtiproc/internal/qti/decls"
	"github.com/open-assess/qtiproc/internal/qti/value"
)

// evalString evaluates a child expected to be a single string-ish value.
func evalString(ctx *decls.Context, e Expression) (string, bool, error) {
	v, err := e.Evaluate(ctx)
	if err != nil {
		return "", false, err
	}
	s, isSingle := v.Single()
	if v.IsNull() || !isSingle {
		return "", false, nil
	}
	switch s.Type {
	case value.String, value.Identifier, value.URI:
		return s.Str, true, nil
	}
	return "", false, nil
}

// StringMatch is qti-string-match.
type StringMatch struct {
	CaseSensitive bool
	First         Expression
	Second        Expression
}

func (e *StringMatch) Evaluate(ctx *decls.Context) (value.Value, error) {
	a, okA, err := evalString(ctx, e.First)
	if err != nil {
		return nullValue(), err
	}
	b, okB, err := evalString(ctx, e.Second)
	if err != nil {
		return nullValue(), err
	}
	if !okA || !okB {
		return nullValue(), nil
	}
	if e.CaseSensitive {
		return boolValue(a == b), nil
	}
	return boolValue(strings.EqualFold(a, b)), nil
}

// Substring is qti-substring: whether the first string occurs anywhere in
// the second.
type Substring struct {
	CaseSensitive bool
	First         Expression
	Second        Expression
}

func (e *Substring) Evaluate(ctx *decls.Context) (value.Value, error) {
	a, okA, err := evalString(ctx, e.First)
	if err != nil {
		return nullValue(), err
	}
	b, okB, err := evalString(ctx, e.Second)
	if err != nil {
		return nullValue(), err
	}
	if !okA || !okB {
		return nullValue(), nil
	}
	if !e.CaseSensitive {
		a = strings.ToLower(a)
		b = strings.ToLower(b)
	}
	return boolValue(strings.Contains(b, a)), nil
}

// patternCache keeps compiled patterns for the evaluation path. Values are
// *regexp.Regexp.
var patternCache sync.Map

// PatternMatch is qti-pattern-match: full-string regular expression match.
// An uncompilable pattern yields null.
type PatternMatch struct {
	Pattern string
	Expr    Expression
}

func (e *PatternMatch) Evaluate(ctx *decls.Context) (value.Value, error) {
	s, ok, err := evalString(ctx, e.Expr)
	if err != nil {
		return nullValue(), err
	}
	if !ok {
		return nullValue(), nil
	}

	var re *regexp.Regexp
	if cached, hit := patternCache.Load(e.Pattern); hit {
		re = cached.(*regexp.Regexp)
	} else {
		compiled, compileErr := regexp.Compile("^(?:" + e.Pattern + ")$")
		if compileErr != nil {
			return nullValue(), nil
		}
		patternCache.Store(e.Pattern, compiled)
		re = compiled
	}
	return boolValue(re.MatchString(s)), nil
}
