package parser

import (
	"encoding/xml"
	"strings"

	"github.com/open-assess/qtiproc/internal/qti/decls"
	"github.com/open-assess/qtiproc/internal/qti/expr"
	"github.com/open-assess/qtiproc/internal/qti/geometry"
	"github.com/open-assess/qtiproc/internal/qti/mapping"
	"github.com/open-assess/qtiproc/internal/qti/numeric"
	"github.com/open-assess/qtiproc/internal/qti/value"
)

// Item is a parsed qti-assessment-item: the declaration prototypes plus the
// compiled processing trees. An Item is immutable once parsed; each delivery
// gets its own Context via NewContext.
type Item struct {
	Identifier    string
	Title         string
	Adaptive      bool
	TimeDependent bool

	ResponseProcessing *expr.ResponseProcessing
	TemplateProcessing *expr.TemplateProcessing

	responses []decls.Declaration
	outcomes  []decls.Declaration
	templates []decls.Declaration
	contexts  []decls.Declaration
}

// NewContext builds a fresh declaration store for one delivery of the item.
// Declarations are copied so that template processing and attempts on one
// session never leak into another.
func (it *Item) NewContext() *decls.Context {
	ctx := decls.NewContext()
	for i := range it.responses {
		d := it.responses[i]
		ctx.DefineResponse(&d)
	}
	for i := range it.outcomes {
		d := it.outcomes[i]
		ctx.DefineOutcome(&d)
	}
	for i := range it.templates {
		d := it.templates[i]
		ctx.DefineTemplate(&d)
	}
	for i := range it.contexts {
		d := it.contexts[i]
		ctx.DefineContext(&d)
	}
	return ctx
}

// ParseItem reads a qti-assessment-item document.
func ParseItem(data []byte) (*Item, error) {
	var root node
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, validationErrorf("invalid item XML: %v", err)
	}
	if root.name() != "qti-assessment-item" {
		return nil, validationErrorf("root element is <%s>, want <qti-assessment-item>", root.name())
	}

	identifier, err := root.requireAttr("identifier")
	if err != nil {
		return nil, err
	}
	if _, err := value.ParseIdentifier(identifier); err != nil {
		return nil, validationErrorf("invalid item identifier %q: %v", identifier, err)
	}

	it := &Item{
		Identifier: identifier,
		Title:      root.attrOr("title", ""),
	}
	if it.Adaptive, err = boolAttr(&root, "adaptive", false); err != nil {
		return nil, err
	}
	if it.TimeDependent, err = boolAttr(&root, "time-dependent", false); err != nil {
		return nil, err
	}

	for i := range root.Children {
		child := &root.Children[i]
		switch child.name() {
		case "qti-response-declaration":
			d, err := parseResponseDeclaration(child)
			if err != nil {
				return nil, err
			}
			it.responses = append(it.responses, *d)
		case "qti-outcome-declaration":
			d, err := parseOutcomeDeclaration(child)
			if err != nil {
				return nil, err
			}
			it.outcomes = append(it.outcomes, *d)
		case "qti-template-declaration":
			d, err := parseTemplateDeclaration(child)
			if err != nil {
				return nil, err
			}
			it.templates = append(it.templates, *d)
		case "qti-context-declaration":
			d, err := parseContextDeclaration(child)
			if err != nil {
				return nil, err
			}
			it.contexts = append(it.contexts, *d)
		case "qti-response-processing":
			rp, err := parseResponseProcessing(child)
			if err != nil {
				return nil, err
			}
			it.ResponseProcessing = rp
		case "qti-template-processing":
			rules, err := compileTemplateRules(child.Children)
			if err != nil {
				return nil, err
			}
			it.TemplateProcessing = &expr.TemplateProcessing{Rules: rules}
		}
	}
	return it, nil
}

func parseDeclHeader(n *node) (identifier string, baseType value.BaseType, card value.Cardinality, err error) {
	identifier, err = n.requireAttr("identifier")
	if err != nil {
		return "", "", "", err
	}
	if _, err = value.ParseIdentifier(identifier); err != nil {
		return "", "", "", validationErrorf("<%s>: invalid identifier %q", n.name(), identifier)
	}
	rawCard, err := n.requireAttr("cardinality")
	if err != nil {
		return "", "", "", err
	}
	card, err = value.ParseCardinality(rawCard)
	if err != nil {
		return "", "", "", validationErrorf("<%s identifier=%q>: %v", n.name(), identifier, err)
	}
	rawBase := n.attrOr("base-type", "")
	if err = value.ValidateBaseTypeCardinality(rawBase, card); err != nil {
		return "", "", "", validationErrorf("<%s identifier=%q>: %v", n.name(), identifier, err)
	}
	if rawBase != "" {
		if baseType, err = value.ParseBaseType(rawBase); err != nil {
			return "", "", "", validationErrorf("<%s identifier=%q>: %v", n.name(), identifier, err)
		}
	}
	return identifier, baseType, card, nil
}

func parseResponseDeclaration(n *node) (*decls.Declaration, error) {
	identifier, baseType, card, err := parseDeclHeader(n)
	if err != nil {
		return nil, err
	}
	d := &decls.Declaration{
		Identifier:   identifier,
		Kind:         decls.ResponseVar,
		BaseType:     baseType,
		Cardinality:  card,
		Value:        value.NewNull(baseType, card),
		DefaultValue: value.NewNull(baseType, card),
	}
	if correct := n.find("qti-correct-response"); correct != nil {
		if d.CorrectResponse, err = parseValues(correct, baseType, card); err != nil {
			return nil, err
		}
	} else {
		d.CorrectResponse = value.NewNull(baseType, card)
	}
	if def := n.find("qti-default-value"); def != nil {
		if d.DefaultValue, err = parseValues(def, baseType, card); err != nil {
			return nil, err
		}
		d.Value = d.DefaultValue
	}
	if m := n.find("qti-mapping"); m != nil {
		if d.Mapping, err = parseMapping(m); err != nil {
			return nil, err
		}
	}
	if am := n.find("qti-area-mapping"); am != nil {
		if d.AreaMapping, err = parseAreaMapping(am); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func parseOutcomeDeclaration(n *node) (*decls.Declaration, error) {
	identifier, baseType, card, err := parseDeclHeader(n)
	if err != nil {
		return nil, err
	}
	d := &decls.Declaration{
		Identifier:   identifier,
		Kind:         decls.OutcomeVar,
		BaseType:     baseType,
		Cardinality:  card,
		Value:        value.NewNull(baseType, card),
		DefaultValue: value.NewNull(baseType, card),
	}
	if def := n.find("qti-default-value"); def != nil {
		if d.DefaultValue, err = parseValues(def, baseType, card); err != nil {
			return nil, err
		}
		d.Value = d.DefaultValue
	} else if card == value.Single && baseType.IsNumeric() {
		// Numeric outcomes without a declared default start at zero.
		if baseType == value.Integer {
			d.Value = value.NewSingle(value.NewInteger(0))
		} else {
			d.Value = value.NewSingle(value.NewFloat(0))
		}
	}
	if tbl := n.find("qti-interpolation-table"); tbl != nil {
		if d.LookupTable, err = parseInterpolationTable(tbl, baseType); err != nil {
			return nil, err
		}
	}
	if tbl := n.find("qti-match-table"); tbl != nil {
		if d.LookupTable != nil {
			return nil, validationErrorf("outcome %q declares both lookup table forms", identifier)
		}
		if d.LookupTable, err = parseMatchTable(tbl, baseType); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func parseTemplateDeclaration(n *node) (*decls.Declaration, error) {
	identifier, baseType, card, err := parseDeclHeader(n)
	if err != nil {
		return nil, err
	}
	d := &decls.Declaration{
		Identifier:   identifier,
		Kind:         decls.TemplateVar,
		BaseType:     baseType,
		Cardinality:  card,
		Value:        value.NewNull(baseType, card),
		DefaultValue: value.NewNull(baseType, card),
	}
	if d.MathVariable, err = boolAttr(n, "math-variable", false); err != nil {
		return nil, err
	}
	if d.ParamVariable, err = boolAttr(n, "param-variable", false); err != nil {
		return nil, err
	}
	if def := n.find("qti-default-value"); def != nil {
		if d.DefaultValue, err = parseValues(def, baseType, card); err != nil {
			return nil, err
		}
		d.Value = d.DefaultValue
	}
	return d, nil
}

func parseContextDeclaration(n *node) (*decls.Declaration, error) {
	identifier, baseType, card, err := parseDeclHeader(n)
	if err != nil {
		return nil, err
	}
	d := &decls.Declaration{
		Identifier:   identifier,
		Kind:         decls.ContextVar,
		BaseType:     baseType,
		Cardinality:  card,
		Value:        value.NewNull(baseType, card),
		DefaultValue: value.NewNull(baseType, card),
	}
	if def := n.find("qti-default-value"); def != nil {
		if d.DefaultValue, err = parseValues(def, baseType, card); err != nil {
			return nil, err
		}
		d.Value = d.DefaultValue
	}
	return d, nil
}

// parseValues reads the qti-value children of a qti-correct-response or
// qti-default-value wrapper into a typed Value.
func parseValues(n *node, baseType value.BaseType, card value.Cardinality) (value.Value, error) {
	valueNodes := n.findAll("qti-value")
	if len(valueNodes) == 0 {
		return value.NewNull(baseType, card), nil
	}

	if card == value.Record {
		fields := make(map[string]value.Field, len(valueNodes))
		for _, vn := range valueNodes {
			fieldID, err := vn.requireAttr("field-identifier")
			if err != nil {
				return value.Value{}, err
			}
			rawBase, err := vn.requireAttr("base-type")
			if err != nil {
				return value.Value{}, err
			}
			fieldType, err := value.ParseBaseType(rawBase)
			if err != nil {
				return value.Value{}, validationErrorf("record field %q: %v", fieldID, err)
			}
			s, err := value.ParseScalar(fieldType, vn.text())
			if err != nil {
				return value.Value{}, validationErrorf("record field %q: %v", fieldID, err)
			}
			fields[fieldID] = value.NewField(fieldID, s)
		}
		return value.NewRecord(fields), nil
	}

	if card == value.Single {
		s, err := value.ParseScalar(baseType, valueNodes[0].text())
		if err != nil {
			return value.Value{}, validationErrorf("<%s>: %v", n.name(), err)
		}
		return value.NewSingle(s), nil
	}

	scalars := make([]value.Scalar, 0, len(valueNodes))
	for _, vn := range valueNodes {
		s, err := value.ParseScalar(baseType, vn.text())
		if err != nil {
			return value.Value{}, validationErrorf("<%s>: %v", n.name(), err)
		}
		scalars = append(scalars, s)
	}
	return value.NewContainer(card, baseType, scalars), nil
}

func parseBound(n *node, name string) (*numeric.Number, error) {
	raw, ok := n.attr(name)
	if !ok {
		return nil, nil
	}
	num, err := numeric.Parse(raw)
	if err != nil {
		return nil, validationErrorf("<%s>: invalid %s %q", n.name(), name, raw)
	}
	return &num, nil
}

func parseMapping(n *node) (*mapping.Table, error) {
	t := &mapping.Table{}
	var err error
	if raw, ok := n.attr("default-value"); ok {
		if t.DefaultValue, err = numeric.Parse(raw); err != nil {
			return nil, validationErrorf("<qti-mapping>: invalid default-value %q", raw)
		}
	}
	if t.LowerBound, err = parseBound(n, "lower-bound"); err != nil {
		return nil, err
	}
	if t.UpperBound, err = parseBound(n, "upper-bound"); err != nil {
		return nil, err
	}
	for _, en := range n.findAll("qti-map-entry") {
		key, err := en.requireAttr("map-key")
		if err != nil {
			return nil, err
		}
		rawMapped, err := en.requireAttr("mapped-value")
		if err != nil {
			return nil, err
		}
		mapped, err := numeric.Parse(rawMapped)
		if err != nil {
			return nil, validationErrorf("<qti-map-entry map-key=%q>: invalid mapped-value %q", key, rawMapped)
		}
		caseSensitive, err := boolAttr(en, "case-sensitive", true)
		if err != nil {
			return nil, err
		}
		t.Entries = append(t.Entries, mapping.Entry{
			MapKey:        strings.TrimSpace(key),
			MappedValue:   mapped,
			CaseSensitive: caseSensitive,
		})
	}
	if len(t.Entries) == 0 {
		return nil, validationErrorf("<qti-mapping> has no entries")
	}
	return t, nil
}

func parseAreaMapping(n *node) (*mapping.AreaTable, error) {
	t := &mapping.AreaTable{}
	var err error
	if raw, ok := n.attr("default-value"); ok {
		if t.DefaultValue, err = numeric.Parse(raw); err != nil {
			return nil, validationErrorf("<qti-area-mapping>: invalid default-value %q", raw)
		}
	}
	if t.LowerBound, err = parseBound(n, "lower-bound"); err != nil {
		return nil, err
	}
	if t.UpperBound, err = parseBound(n, "upper-bound"); err != nil {
		return nil, err
	}
	for _, en := range n.findAll("qti-area-map-entry") {
		rawShape, err := en.requireAttr("shape")
		if err != nil {
			return nil, err
		}
		shape, err := geometry.ParseShape(rawShape)
		if err != nil {
			return nil, validationErrorf("<qti-area-map-entry>: %v", err)
		}
		rawCoords, err := en.requireAttr("coords")
		if err != nil {
			return nil, err
		}
		coords, err := parseCoords(rawCoords)
		if err != nil {
			return nil, err
		}
		if err := geometry.CoordsForShape(shape, coords); err != nil {
			return nil, validationErrorf("<qti-area-map-entry>: %v", err)
		}
		rawMapped, err := en.requireAttr("mapped-value")
		if err != nil {
			return nil, err
		}
		mapped, err := numeric.Parse(rawMapped)
		if err != nil {
			return nil, validationErrorf("<qti-area-map-entry>: invalid mapped-value %q", rawMapped)
		}
		t.Entries = append(t.Entries, mapping.AreaEntry{
			Shape:       shape,
			Coords:      coords,
			MappedValue: mapped,
		})
	}
	if len(t.Entries) == 0 {
		return nil, validationErrorf("<qti-area-mapping> has no entries")
	}
	return t, nil
}

// parseLookupDefault coerces an optional table-level default-value attribute
// to the outcome's base type.
func parseLookupDefault(n *node, baseType value.BaseType) (value.Value, error) {
	raw, ok := n.attr("default-value")
	if !ok {
		return value.NewNull(baseType, value.Single), nil
	}
	s, err := value.ParseScalar(baseType, raw)
	if err != nil {
		return value.Value{}, validationErrorf("<%s>: invalid default-value %q", n.name(), raw)
	}
	return value.NewSingle(s), nil
}

func parseInterpolationTable(n *node, baseType value.BaseType) (*mapping.LookupTable, error) {
	t := &mapping.LookupTable{Kind: mapping.Interpolation}
	var err error
	if t.DefaultValue, err = parseLookupDefault(n, baseType); err != nil {
		return nil, err
	}
	for _, en := range n.findAll("qti-interpolation-table-entry") {
		rawSource, err := en.requireAttr("source-value")
		if err != nil {
			return nil, err
		}
		source, err := numeric.Parse(rawSource)
		if err != nil {
			return nil, validationErrorf("<qti-interpolation-table-entry>: invalid source-value %q", rawSource)
		}
		rawTarget, err := en.requireAttr("target-value")
		if err != nil {
			return nil, err
		}
		target, err := value.ParseScalar(baseType, rawTarget)
		if err != nil {
			return nil, validationErrorf("<qti-interpolation-table-entry>: %v", err)
		}
		includeBoundary, err := boolAttr(en, "include-boundary", true)
		if err != nil {
			return nil, err
		}
		t.Entries = append(t.Entries, mapping.LookupEntry{
			SourceValue:     source,
			TargetValue:     target,
			IncludeBoundary: includeBoundary,
		})
	}
	if len(t.Entries) == 0 {
		return nil, validationErrorf("<qti-interpolation-table> has no entries")
	}
	return t, nil
}

func parseMatchTable(n *node, baseType value.BaseType) (*mapping.LookupTable, error) {
	t := &mapping.LookupTable{Kind: mapping.Match}
	var err error
	if t.DefaultValue, err = parseLookupDefault(n, baseType); err != nil {
		return nil, err
	}
	for _, en := range n.findAll("qti-match-table-entry") {
		rawSource, err := en.requireAttr("source-value")
		if err != nil {
			return nil, err
		}
		source, err := numeric.Parse(rawSource)
		if err != nil || !source.IsInteger() {
			return nil, validationErrorf("<qti-match-table-entry>: invalid source-value %q", rawSource)
		}
		rawTarget, err := en.requireAttr("target-value")
		if err != nil {
			return nil, err
		}
		target, err := value.ParseScalar(baseType, rawTarget)
		if err != nil {
			return nil, validationErrorf("<qti-match-table-entry>: %v", err)
		}
		t.Entries = append(t.Entries, mapping.LookupEntry{SourceValue: source, TargetValue: target})
	}
	if len(t.Entries) == 0 {
		return nil, validationErrorf("<qti-match-table> has no entries")
	}
	return t, nil
}

// parseResponseProcessing compiles inline rules, or resolves the standard
// template referenced by the template attribute when the element is empty.
func parseResponseProcessing(n *node) (*expr.ResponseProcessing, error) {
	if len(n.Children) > 0 {
		rules, err := compileResponseRules(n.Children)
		if err != nil {
			return nil, err
		}
		return &expr.ResponseProcessing{Rules: rules}, nil
	}
	tmpl, ok := n.attr("template")
	if !ok {
		return &expr.ResponseProcessing{}, nil
	}
	switch {
	case strings.HasSuffix(tmpl, "match_correct"), strings.HasSuffix(tmpl, "match_correct.xml"):
		return expr.MatchCorrectTemplate("RESPONSE"), nil
	case strings.HasSuffix(tmpl, "map_response"), strings.HasSuffix(tmpl, "map_response.xml"):
		return expr.MapResponseTemplate("RESPONSE"), nil
	}
	return nil, validationErrorf("unsupported response processing template %q", tmpl)
}
