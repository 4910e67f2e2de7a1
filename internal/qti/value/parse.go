package value

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/open-assess/qtiproc/internal/qti/numeric"
)

// ParseError reports a string literal that failed to coerce to its declared
// base type. It is surfaced immediately at the point of coercion.
type ParseError struct {
	msg string
}

func (e *ParseError) Error() string { return e.msg }

func parseErrorf(format string, args ...any) error {
	return &ParseError{msg: fmt.Sprintf(format, args...)}
}

// ParseInteger coerces an integer literal.
func ParseInteger(s string) (int, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, parseErrorf("invalid integer %q: length is not valid", s)
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, parseErrorf("invalid integer %q", s)
	}
	return n, nil
}

// ParseFloat coerces a float literal.
func ParseFloat(s string) (float64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, parseErrorf("invalid float %q: length is not valid", s)
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, parseErrorf("invalid float %q", s)
	}
	return f, nil
}

// ParseBoolean coerces "true"/"false" (case-insensitive) or "1"/"0".
func ParseBoolean(s string) (bool, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return false, parseErrorf("invalid boolean %q: length is not valid", s)
	}
	switch {
	case strings.EqualFold(trimmed, "true"), trimmed == "1":
		return true, nil
	case strings.EqualFold(trimmed, "false"), trimmed == "0":
		return false, nil
	}
	return false, parseErrorf("invalid boolean %q", s)
}

// ParseIdentifier validates the QTI identifier lexical rules: first character
// a letter, digit or underscore, the rest letters, digits, underscores,
// hyphens or periods. Leading digits are tolerated for vendor content.
func ParseIdentifier(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", parseErrorf("invalid identifier %q: length is not valid", s)
	}
	for i, r := range trimmed {
		if isLetterOrDigit(r) || r == '_' {
			continue
		}
		if i > 0 && (r == '-' || r == '.') {
			continue
		}
		return "", parseErrorf("invalid identifier %q: character %q at position %d is not valid", s, r, i+1)
	}
	return trimmed, nil
}

func isLetterOrDigit(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// ParseScalar coerces a lexical value into a scalar of the given base type.
// Point, pair and directedPair literals are two space-separated components.
func ParseScalar(baseType BaseType, lexical string) (Scalar, error) {
	switch baseType {
	case Boolean:
		b, err := ParseBoolean(lexical)
		if err != nil {
			return Scalar{}, err
		}
		return NewBoolean(b), nil
	case Integer:
		n, err := ParseInteger(lexical)
		if err != nil {
			return Scalar{}, err
		}
		return NewInteger(n), nil
	case Float:
		f, err := ParseFloat(lexical)
		if err != nil {
			return Scalar{}, err
		}
		return NewFloat(f), nil
	case Duration:
		f, err := ParseFloat(lexical)
		if err != nil {
			return Scalar{}, err
		}
		if f < 0 {
			return Scalar{}, parseErrorf("invalid duration %q: must not be negative", lexical)
		}
		return NewDuration(f), nil
	case String:
		if lexical == "" {
			return Scalar{}, parseErrorf("invalid string %q: length is not valid", lexical)
		}
		return NewString(lexical), nil
	case Identifier:
		id, err := ParseIdentifier(lexical)
		if err != nil {
			return Scalar{}, err
		}
		return NewIdentifier(id), nil
	case URI:
		trimmed := strings.TrimSpace(lexical)
		if trimmed == "" {
			return Scalar{}, parseErrorf("invalid uri %q: length is not valid", lexical)
		}
		return NewURI(trimmed), nil
	case Point:
		x, y, err := splitComponents(lexical)
		if err != nil {
			return Scalar{}, parseErrorf("invalid point %q", lexical)
		}
		px, errX := ParseInteger(x)
		py, errY := ParseInteger(y)
		if errX != nil || errY != nil {
			return Scalar{}, parseErrorf("invalid point %q", lexical)
		}
		return NewPoint(px, py), nil
	case Pair:
		a, b, err := splitComponents(lexical)
		if err != nil {
			return Scalar{}, parseErrorf("invalid pair %q", lexical)
		}
		return NewPair(a, b), nil
	case DirectedPair:
		a, b, err := splitComponents(lexical)
		if err != nil {
			return Scalar{}, parseErrorf("invalid directedPair %q", lexical)
		}
		return NewDirectedPair(a, b), nil
	case File:
		return NewFile([]byte(lexical)), nil
	}
	return Scalar{}, parseErrorf("unsupported base-type %q", baseType)
}

func splitComponents(s string) (string, string, error) {
	parts := strings.Fields(strings.TrimSpace(s))
	if len(parts) != 2 {
		return "", "", fmt.Errorf("expected two components")
	}
	return parts[0], parts[1], nil
}

// CanonicalNumber returns the canonical string form of a numeric lexical
// value, as used for mapping keys.
func CanonicalNumber(s string) (string, error) {
	n, err := numeric.Parse(s)
	if err != nil {
		return "", err
	}
	return n.String(), nil
}
