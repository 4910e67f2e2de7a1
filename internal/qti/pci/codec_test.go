package pci_test

import (
	"encoding/json"
	"testing"

	"github.com/open-assess/qtiproc/internal/qti/decls"
	"github.com/open-assess/qtiproc/internal/qti/pci"
	"github.com/open-assess/qtiproc/internal/qti/value"
)

func decl(baseType value.BaseType, card value.Cardinality) *decls.Declaration {
	return &decls.Declaration{
		Identifier:  "RESPONSE",
		Kind:        decls.ResponseVar,
		BaseType:    baseType,
		Cardinality: card,
	}
}

func roundTrip(t *testing.T, v value.Value, d *decls.Declaration) value.Value {
	t.Helper()
	raw, err := pci.EncodeJSON(v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := pci.Decode(raw, d)
	if err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return got
}

func TestRoundTripSingleIdentifier(t *testing.T) {
	d := decl(value.Identifier, value.Single)
	got := roundTrip(t, value.NewSingle(value.NewIdentifier("choiceA")), d)
	s, ok := got.Single()
	if !ok || s.Str != "choiceA" {
		t.Errorf("round trip = %+v", got)
	}
}

func TestRoundTripPointList(t *testing.T) {
	d := decl(value.Point, value.Multiple)
	in := value.NewContainer(value.Multiple, value.Point, []value.Scalar{
		value.NewPoint(1, 2), value.NewPoint(3, 4),
	})
	got := roundTrip(t, in, d)
	list, ok := got.List()
	if !ok || len(list) != 2 {
		t.Fatalf("round trip = %+v", got)
	}
	if list[1].Point.X != 3 || list[1].Point.Y != 4 {
		t.Errorf("second point = %+v", list[1].Point)
	}
}

func TestRoundTripDirectedPair(t *testing.T) {
	d := decl(value.DirectedPair, value.Single)
	got := roundTrip(t, value.NewSingle(value.NewDirectedPair("A", "B")), d)
	s, _ := got.Single()
	if s.Pair.First != "A" || s.Pair.Second != "B" {
		t.Errorf("pair = %+v", s.Pair)
	}
}

func TestRoundTripNull(t *testing.T) {
	d := decl(value.Float, value.Single)
	got := roundTrip(t, value.NewNull(value.Float, value.Single), d)
	if !got.IsNull() {
		t.Errorf("null round trip = %+v", got)
	}
}

func TestPointWireFormat(t *testing.T) {
	raw, err := pci.EncodeJSON(value.NewSingle(value.NewPoint(10, 20)))
	if err != nil {
		t.Fatal(err)
	}
	var envelope struct {
		Base struct {
			Point []int `json:"point"`
		} `json:"base"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	if len(envelope.Base.Point) != 2 || envelope.Base.Point[0] != 10 || envelope.Base.Point[1] != 20 {
		t.Errorf("point wire = %s", raw)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		d    *decls.Declaration
		raw  string
	}{
		{"not an object", decl(value.String, value.Single), `"hello"`},
		{"no envelope key", decl(value.String, value.Single), `{}`},
		{"two envelope keys", decl(value.String, value.Single), `{"base": null, "list": null}`},
		{"cardinality mismatch", decl(value.String, value.Multiple), `{"base": {"string": "x"}}`},
		{"base type mismatch", decl(value.Point, value.Single), `{"base": {"string": "x"}}`},
		{"point not an array", decl(value.Point, value.Single), `{"base": {"point": 5}}`},
		{"point wrong arity", decl(value.Point, value.Single), `{"base": {"point": [1, 2, 3]}}`},
		{"integer is float", decl(value.Integer, value.Single), `{"base": {"integer": 1.5}}`},
	}
	for _, tc := range cases {
		if _, err := pci.Decode(json.RawMessage(tc.raw), tc.d); err == nil {
			t.Errorf("%s: Decode(%s) should fail", tc.name, tc.raw)
		}
	}
}

func TestDecodeLenientReturnsTypedNull(t *testing.T) {
	d := decl(value.Point, value.Single)
	got := pci.DecodeLenient(json.RawMessage(`{"base": {"point": 5}}`), d)
	if !got.IsNull() {
		t.Fatalf("lenient decode = %+v, want null", got)
	}
	if got.BaseType() != value.Point || got.Cardinality() != value.Single {
		t.Errorf("lenient null lost its declared type: %+v", got)
	}
}

func TestDecodeRecordUsesDeclaredFieldTypes(t *testing.T) {
	d := decl("", value.Record)
	d.CorrectResponse = value.NewRecord(map[string]value.Field{
		"answer": value.NewField("answer", value.NewInteger(0)),
		"shown":  value.NewField("shown", value.NewBoolean(false)),
	})
	raw := json.RawMessage(`{"record": [
		{"name": "answer", "base": {"integer": 42}},
		{"name": "shown", "base": {"boolean": true}},
		{"name": "mystery", "base": {"string": "dropped"}}
	]}`)
	got, err := pci.Decode(raw, d)
	if err != nil {
		t.Fatal(err)
	}
	fields, ok := got.Fields()
	if !ok {
		t.Fatalf("decode = %+v", got)
	}
	if f := fields["answer"]; f.Value.Int != 42 {
		t.Errorf("answer = %+v", f)
	}
	if _, ok := fields["mystery"]; ok {
		t.Error("undeclared field should be dropped")
	}
}
