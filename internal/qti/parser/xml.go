// Package parser reads QTI 3 assessment-item XML into variable declarations
// and compiled processing trees. Only value and type validation happens
// here; schema validation of document structure is out of scope.
package parser

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// ValidationError reports malformed identifiers, out-of-range attributes or
// invalid base-type/cardinality combinations found while loading a document.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// node is a generic XML element tree; processing markup has no fixed schema
// we want to hardcode struct types for.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []node     `xml:",any"`
	Text     string     `xml:",chardata"`
}

func (n *node) name() string { return n.XMLName.Local }

func (n *node) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (n *node) attrOr(name, fallback string) string {
	if v, ok := n.attr(name); ok {
		return v
	}
	return fallback
}

func (n *node) requireAttr(name string) (string, error) {
	v, ok := n.attr(name)
	if !ok {
		return "", validationErrorf("<%s>: attribute %q is required", n.name(), name)
	}
	return v, nil
}

func (n *node) find(name string) *node {
	for i := range n.Children {
		if n.Children[i].name() == name {
			return &n.Children[i]
		}
	}
	return nil
}

func (n *node) findAll(name string) []*node {
	var out []*node
	for i := range n.Children {
		if n.Children[i].name() == name {
			out = append(out, &n.Children[i])
		}
	}
	return out
}

func (n *node) text() string { return strings.TrimSpace(n.Text) }

func boolAttr(n *node, name string, fallback bool) (bool, error) {
	raw, ok := n.attr(name)
	if !ok {
		return fallback, nil
	}
	switch strings.TrimSpace(raw) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, validationErrorf("<%s>: invalid %s attribute %q", n.name(), name, raw)
}

// parseCoords reads a comma-separated coordinate list.
func parseCoords(raw string) ([]float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	coords := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, validationErrorf("invalid coords component %q", p)
		}
		coords = append(coords, f)
	}
	return coords, nil
}
