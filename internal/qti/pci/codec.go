// Package pci converts native values to and from the JSON interchange
// format used to exchange responses with portable custom interactions.
//
// Decoding is strict: any malformed payload surfaces as a DecodeError that
// the caller downgrades to a logged warning and a null value. A broken
// external payload degrades to "no response", never a crash.
package pci

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"

	"github.com/open-assess/qtiproc/internal/qti/decls"
	"github.com/open-assess/qtiproc/internal/qti/value"
)

// DecodeError reports a malformed interchange payload.
type DecodeError struct {
	msg string
}

func (e *DecodeError) Error() string { return "pci: " + e.msg }

func decodeErrorf(format string, args ...any) error {
	return &DecodeError{msg: fmt.Sprintf(format, args...)}
}

// Encode wraps a value in its interchange envelope: single cardinality
// under "base", multiple/ordered under "list", record under "record".
// Point, pair and directedPair scalars serialize as 2-element arrays.
func Encode(v value.Value) map[string]any {
	switch v.Cardinality() {
	case value.Single:
		s, ok := v.Single()
		if !ok {
			return map[string]any{"base": nil}
		}
		return map[string]any{"base": encodeBase(s)}

	case value.Multiple, value.Ordered:
		list, ok := v.List()
		if !ok {
			return map[string]any{"list": nil}
		}
		items := make([]any, len(list))
		for i, s := range list {
			items[i] = scalarWire(s)
		}
		return map[string]any{"list": map[string]any{string(v.BaseType()): items}}

	case value.Record:
		fields, ok := v.Fields()
		if !ok {
			return map[string]any{"record": nil}
		}
		entries := make([]any, 0, len(fields))
		for _, f := range fields {
			if f.Null {
				continue
			}
			entries = append(entries, map[string]any{
				"name": f.Identifier,
				"base": encodeBase(f.Value),
			})
		}
		return map[string]any{"record": entries}
	}
	return map[string]any{"base": nil}
}

// EncodeJSON is Encode marshalled to raw JSON.
func EncodeJSON(v value.Value) (json.RawMessage, error) {
	return json.Marshal(Encode(v))
}

func encodeBase(s value.Scalar) map[string]any {
	return map[string]any{string(s.Type): scalarWire(s)}
}

// scalarWire maps a scalar to its wire representation.
func scalarWire(s value.Scalar) any {
	switch s.Type {
	case value.Boolean:
		return s.Bool
	case value.Integer:
		return s.Int
	case value.Float, value.Duration:
		return s.Float
	case value.String, value.Identifier, value.URI:
		return s.Str
	case value.Point:
		return []any{s.Point.X, s.Point.Y}
	case value.Pair, value.DirectedPair:
		return []any{s.Pair.First, s.Pair.Second}
	case value.File:
		return EncodeBytes(s.Data)
	}
	return nil
}

// Decode converts an interchange payload into a value matching the
// declaration's base type and cardinality. The payload must be a JSON
// object carrying exactly the envelope key the declared cardinality
// requires.
func Decode(raw json.RawMessage, d *decls.Declaration) (value.Value, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return value.Value{}, decodeErrorf("payload is not an object: %v", err)
	}
	keys := 0
	for _, k := range []string{"base", "list", "record"} {
		if _, ok := envelope[k]; ok {
			keys++
		}
	}
	if keys != 1 {
		return value.Value{}, decodeErrorf("payload must carry exactly one of base/list/record, got %d", keys)
	}

	switch d.Cardinality {
	case value.Single:
		body, ok := envelope["base"]
		if !ok {
			return value.Value{}, decodeErrorf("missing %q for single cardinality", "base")
		}
		return decodeBase(body, d.BaseType)

	case value.Multiple, value.Ordered:
		body, ok := envelope["list"]
		if !ok {
			return value.Value{}, decodeErrorf("missing %q for %s cardinality", "list", d.Cardinality)
		}
		return decodeList(body, d.BaseType, d.Cardinality)

	case value.Record:
		body, ok := envelope["record"]
		if !ok {
			return value.Value{}, decodeErrorf("missing %q for record cardinality", "record")
		}
		return decodeRecord(body, d)
	}
	return value.Value{}, decodeErrorf("unsupported cardinality %q", d.Cardinality)
}

func decodeBase(raw json.RawMessage, baseType value.BaseType) (value.Value, error) {
	if isJSONNull(raw) {
		return value.NewNull(baseType, value.Single), nil
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return value.Value{}, decodeErrorf("base is not an object: %v", err)
	}
	inner, ok := body[string(baseType)]
	if !ok {
		return value.Value{}, decodeErrorf("base does not carry declared base-type %q", baseType)
	}
	s, err := decodeScalar(inner, baseType)
	if err != nil {
		return value.Value{}, err
	}
	return value.NewSingle(s), nil
}

func decodeList(raw json.RawMessage, baseType value.BaseType, card value.Cardinality) (value.Value, error) {
	if isJSONNull(raw) {
		return value.NewNull(baseType, card), nil
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return value.Value{}, decodeErrorf("list is not an object: %v", err)
	}
	inner, ok := body[string(baseType)]
	if !ok {
		return value.Value{}, decodeErrorf("list does not carry declared base-type %q", baseType)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(inner, &items); err != nil {
		return value.Value{}, decodeErrorf("list body is not an array: %v", err)
	}
	scalars := make([]value.Scalar, 0, len(items))
	for _, item := range items {
		s, err := decodeScalar(item, baseType)
		if err != nil {
			return value.Value{}, err
		}
		scalars = append(scalars, s)
	}
	return value.NewContainer(card, baseType, scalars), nil
}

// decodeRecord needs a field-definition template to know each incoming
// field's base type; it is drawn from the declaration's default value or
// correct response. Fields absent from the template are dropped silently;
// fields absent from the payload stay missing, not defaulted.
func decodeRecord(raw json.RawMessage, d *decls.Declaration) (value.Value, error) {
	if isJSONNull(raw) {
		return value.NewNull("", value.Record), nil
	}
	template, ok := recordTemplate(d)
	if !ok {
		return value.Value{}, decodeErrorf("record variable %q has no field template", d.Identifier)
	}
	var entries []struct {
		Name string          `json:"name"`
		Base json.RawMessage `json:"base"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return value.Value{}, decodeErrorf("record body is not an array: %v", err)
	}
	fields := map[string]value.Field{}
	for _, entry := range entries {
		def, known := template[entry.Name]
		if !known {
			continue
		}
		v, err := decodeBase(entry.Base, def.Type)
		if err != nil {
			return value.Value{}, err
		}
		if s, isSet := v.Single(); isSet {
			fields[entry.Name] = value.NewField(entry.Name, s)
		}
	}
	return value.NewRecord(fields), nil
}

func recordTemplate(d *decls.Declaration) (map[string]value.Field, bool) {
	if fields, ok := d.DefaultValue.Fields(); ok {
		return fields, true
	}
	if fields, ok := d.CorrectResponse.Fields(); ok {
		return fields, true
	}
	return nil, false
}

func decodeScalar(raw json.RawMessage, baseType value.BaseType) (value.Scalar, error) {
	switch baseType {
	case value.Boolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return value.Scalar{}, decodeErrorf("expected boolean: %v", err)
		}
		return value.NewBoolean(b), nil

	case value.Integer:
		var n int
		if err := json.Unmarshal(raw, &n); err != nil {
			return value.Scalar{}, decodeErrorf("expected integer: %v", err)
		}
		return value.NewInteger(n), nil

	case value.Float:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return value.Scalar{}, decodeErrorf("expected float: %v", err)
		}
		return value.NewFloat(f), nil

	case value.Duration:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return value.Scalar{}, decodeErrorf("expected duration: %v", err)
		}
		return value.NewDuration(f), nil

	case value.String, value.Identifier, value.URI:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return value.Scalar{}, decodeErrorf("expected string: %v", err)
		}
		switch baseType {
		case value.Identifier:
			return value.NewIdentifier(s), nil
		case value.URI:
			return value.NewURI(s), nil
		}
		return value.NewString(s), nil

	case value.Point:
		var xy [2]int
		if err := strictPairArray(raw, func(items []json.RawMessage) error {
			if err := json.Unmarshal(items[0], &xy[0]); err != nil {
				return err
			}
			return json.Unmarshal(items[1], &xy[1])
		}); err != nil {
			return value.Scalar{}, decodeErrorf("expected 2-element point array: %v", err)
		}
		return value.NewPoint(xy[0], xy[1]), nil

	case value.Pair, value.DirectedPair:
		var ab [2]string
		if err := strictPairArray(raw, func(items []json.RawMessage) error {
			if err := json.Unmarshal(items[0], &ab[0]); err != nil {
				return err
			}
			return json.Unmarshal(items[1], &ab[1])
		}); err != nil {
			return value.Scalar{}, decodeErrorf("expected 2-element pair array: %v", err)
		}
		if baseType == value.DirectedPair {
			return value.NewDirectedPair(ab[0], ab[1]), nil
		}
		return value.NewPair(ab[0], ab[1]), nil

	case value.File:
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return value.Scalar{}, decodeErrorf("expected base64 file payload: %v", err)
		}
		data, err := DecodeBytes(encoded)
		if err != nil {
			return value.Scalar{}, decodeErrorf("invalid base64 file payload: %v", err)
		}
		return value.NewFile(data), nil
	}
	return value.Scalar{}, decodeErrorf("unsupported base-type %q", baseType)
}

func strictPairArray(raw json.RawMessage, read func([]json.RawMessage) error) error {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return err
	}
	if len(items) != 2 {
		return fmt.Errorf("got %d elements", len(items))
	}
	return read(items)
}

func isJSONNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// DecodeLenient is Decode with the boundary policy applied: a decode fault
// is logged and downgraded to a typed null, so a malformed external payload
// reads as "no response".
func DecodeLenient(raw json.RawMessage, d *decls.Declaration) value.Value {
	v, err := Decode(raw, d)
	if err != nil {
		log.Printf("pci: dropping malformed payload for %q: %v", d.Identifier, err)
		return value.NewNull(d.BaseType, d.Cardinality)
	}
	return v
}

// EncodeBytes transcodes an opaque binary payload to base64.
func EncodeBytes(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBytes transcodes a base64 string back to bytes.
func DecodeBytes(encoded string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(encoded)
}
