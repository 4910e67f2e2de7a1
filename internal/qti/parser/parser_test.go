package parser_test

import (
	"strings"
	"testing"

	"github.com/open-assess/qtiproc/internal/qti/parser"
	"github.com/open-assess/qtiproc/internal/qti/value"
)

const choiceItem = `<?xml version="1.0" encoding="UTF-8"?>
<qti-assessment-item identifier="choice-1" title="Unattended Luggage" adaptive="false" time-dependent="false">
  <qti-response-declaration identifier="RESPONSE" cardinality="single" base-type="identifier">
    <qti-correct-response>
      <qti-value>ChoiceA</qti-value>
    </qti-correct-response>
  </qti-response-declaration>
  <qti-outcome-declaration identifier="SCORE" cardinality="single" base-type="float"/>
  <qti-response-processing>
    <qti-response-condition>
      <qti-response-if>
        <qti-match>
          <qti-variable identifier="RESPONSE"/>
          <qti-correct identifier="RESPONSE"/>
        </qti-match>
        <qti-set-outcome-value identifier="SCORE">
          <qti-base-value base-type="float">1</qti-base-value>
        </qti-set-outcome-value>
      </qti-response-if>
      <qti-response-else>
        <qti-set-outcome-value identifier="SCORE">
          <qti-base-value base-type="float">0</qti-base-value>
        </qti-set-outcome-value>
      </qti-response-else>
    </qti-response-condition>
  </qti-response-processing>
</qti-assessment-item>`

func TestParseAndScoreChoiceItem(t *testing.T) {
	it, err := parser.ParseItem([]byte(choiceItem))
	if err != nil {
		t.Fatal(err)
	}
	if it.Identifier != "choice-1" || it.Title != "Unattended Luggage" {
		t.Errorf("item header = %q / %q", it.Identifier, it.Title)
	}
	if it.ResponseProcessing == nil {
		t.Fatal("response processing missing")
	}

	ctx := it.NewContext()
	ctx.SetResponseValue("RESPONSE", value.NewSingle(value.NewIdentifier("ChoiceA")), nil)
	if err := it.ResponseProcessing.Execute(ctx); err != nil {
		t.Fatal(err)
	}
	s, _ := ctx.OutcomeDeclaration("SCORE").Value.Single()
	if s.Float != 1 {
		t.Errorf("SCORE = %v, want 1", s.Float)
	}

	// Fresh context per delivery: the first run must not leak.
	ctx2 := it.NewContext()
	ctx2.SetResponseValue("RESPONSE", value.NewSingle(value.NewIdentifier("ChoiceB")), nil)
	if err := it.ResponseProcessing.Execute(ctx2); err != nil {
		t.Fatal(err)
	}
	s, _ = ctx2.OutcomeDeclaration("SCORE").Value.Single()
	if s.Float != 0 {
		t.Errorf("SCORE = %v, want 0", s.Float)
	}
}

const mappedItem = `<qti-assessment-item identifier="map-1" title="Mapped">
  <qti-response-declaration identifier="RESPONSE" cardinality="multiple" base-type="identifier">
    <qti-correct-response>
      <qti-value>H</qti-value>
      <qti-value>O</qti-value>
    </qti-correct-response>
    <qti-mapping lower-bound="0" upper-bound="2" default-value="0">
      <qti-map-entry map-key="H" mapped-value="1"/>
      <qti-map-entry map-key="O" mapped-value="1"/>
      <qti-map-entry map-key="Cl" mapped-value="-1"/>
    </qti-mapping>
  </qti-response-declaration>
  <qti-response-processing template="https://purl.imsglobal.org/spec/qti/v3p0/rptemplates/map_response"/>
</qti-assessment-item>`

func TestParseMappingAndTemplateAttribute(t *testing.T) {
	it, err := parser.ParseItem([]byte(mappedItem))
	if err != nil {
		t.Fatal(err)
	}
	ctx := it.NewContext()
	ctx.SetResponseValue("RESPONSE", value.NewContainer(value.Multiple, value.Identifier, []value.Scalar{
		value.NewIdentifier("H"), value.NewIdentifier("O"), value.NewIdentifier("Cl"),
	}), nil)
	if err := it.ResponseProcessing.Execute(ctx); err != nil {
		t.Fatal(err)
	}
	s, _ := ctx.OutcomeDeclaration("SCORE").Value.Single()
	if s.Float != 1 {
		t.Errorf("SCORE = %v, want 1", s.Float)
	}
}

const templateItem = `<qti-assessment-item identifier="tmpl-1" title="Addition">
  <qti-template-declaration identifier="A" cardinality="single" base-type="integer" math-variable="true"/>
  <qti-template-declaration identifier="B" cardinality="single" base-type="integer"/>
  <qti-response-declaration identifier="RESPONSE" cardinality="single" base-type="integer"/>
  <qti-outcome-declaration identifier="SCORE" cardinality="single" base-type="float"/>
  <qti-template-processing>
    <qti-set-template-value identifier="A">
      <qti-random-integer min="1" max="9"/>
    </qti-set-template-value>
    <qti-set-template-value identifier="B">
      <qti-random-integer min="1" max="9"/>
    </qti-set-template-value>
    <qti-set-correct-response identifier="RESPONSE">
      <qti-sum>
        <qti-variable identifier="A"/>
        <qti-variable identifier="B"/>
      </qti-sum>
    </qti-set-correct-response>
  </qti-template-processing>
  <qti-response-processing template="https://purl.imsglobal.org/spec/qti/v3p0/rptemplates/match_correct"/>
</qti-assessment-item>`

func TestTemplateProcessingInstantiation(t *testing.T) {
	it, err := parser.ParseItem([]byte(templateItem))
	if err != nil {
		t.Fatal(err)
	}
	ctx := it.NewContext()
	if err := it.TemplateProcessing.Execute(ctx); err != nil {
		t.Fatal(err)
	}
	a, _ := ctx.TemplateDeclaration("A").Value.Single()
	b, _ := ctx.TemplateDeclaration("B").Value.Single()
	correct, ok := ctx.ResponseDeclaration("RESPONSE").CorrectResponse.Single()
	if !ok {
		t.Fatal("correct response not set")
	}
	if correct.Int != a.Int+b.Int {
		t.Errorf("correct = %d, want %d + %d", correct.Int, a.Int, b.Int)
	}
	if !ctx.TemplateDeclaration("A").MathVariable {
		t.Error("math-variable attribute lost")
	}
}

const recordItem = `<qti-assessment-item identifier="rec-1" title="Record">
  <qti-response-declaration identifier="REC" cardinality="record">
    <qti-default-value>
      <qti-value field-identifier="count" base-type="integer">3</qti-value>
      <qti-value field-identifier="label" base-type="string">three</qti-value>
    </qti-default-value>
  </qti-response-declaration>
</qti-assessment-item>`

func TestRecordDeclaration(t *testing.T) {
	it, err := parser.ParseItem([]byte(recordItem))
	if err != nil {
		t.Fatal(err)
	}
	ctx := it.NewContext()
	fields, ok := ctx.ResponseDeclaration("REC").DefaultValue.Fields()
	if !ok {
		t.Fatal("record default missing")
	}
	if fields["count"].Value.Int != 3 || fields["label"].Value.Str != "three" {
		t.Errorf("record fields = %+v", fields)
	}
}

func TestParseRejects(t *testing.T) {
	cases := []struct {
		name string
		xml  string
	}{
		{"wrong root", `<assessment identifier="x"/>`},
		{"missing identifier", `<qti-assessment-item title="x"/>`},
		{"record with base type", `<qti-assessment-item identifier="x">
			<qti-response-declaration identifier="R" cardinality="record" base-type="string"/>
		</qti-assessment-item>`},
		{"missing base type", `<qti-assessment-item identifier="x">
			<qti-response-declaration identifier="R" cardinality="single"/>
		</qti-assessment-item>`},
		{"bad correct value", `<qti-assessment-item identifier="x">
			<qti-response-declaration identifier="R" cardinality="single" base-type="integer">
				<qti-correct-response><qti-value>abc</qti-value></qti-correct-response>
			</qti-response-declaration>
		</qti-assessment-item>`},
		{"ellipse area", `<qti-assessment-item identifier="x">
			<qti-response-declaration identifier="R" cardinality="single" base-type="point">
				<qti-area-mapping>
					<qti-area-map-entry shape="ellipse" coords="0,0,4,2" mapped-value="1"/>
				</qti-area-mapping>
			</qti-response-declaration>
		</qti-assessment-item>`},
		{"unknown rp template", `<qti-assessment-item identifier="x">
			<qti-response-processing template="https://example.com/custom"/>
		</qti-assessment-item>`},
	}
	for _, tc := range cases {
		if _, err := parser.ParseItem([]byte(tc.xml)); err == nil {
			t.Errorf("%s: want parse error", tc.name)
		}
	}
}

func TestRuleAndExpressionMixupsAreNamed(t *testing.T) {
	cases := []struct {
		name string
		xml  string
		want string
	}{
		{"expression as response rule", `<qti-assessment-item identifier="x">
			<qti-response-processing><qti-null/></qti-response-processing>
		</qti-assessment-item>`, "expression, not a response rule"},
		{"rule as expression", `<qti-assessment-item identifier="x">
			<qti-response-processing>
				<qti-set-outcome-value identifier="SCORE"><qti-exit-response/></qti-set-outcome-value>
			</qti-response-processing>
		</qti-assessment-item>`, "rule, not an expression"},
		{"template rule as response rule", `<qti-assessment-item identifier="x">
			<qti-response-processing><qti-template-constraint/></qti-response-processing>
		</qti-assessment-item>`, "template rule, not a response rule"},
		{"response rule as template rule", `<qti-assessment-item identifier="x">
			<qti-template-processing><qti-exit-response/></qti-template-processing>
		</qti-assessment-item>`, "response rule, not a template rule"},
	}
	for _, tc := range cases {
		_, err := parser.ParseItem([]byte(tc.xml))
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: err = %v, want %q", tc.name, err, tc.want)
		}
	}
}

func TestInterpolationTableParsing(t *testing.T) {
	xml := `<qti-assessment-item identifier="x">
		<qti-outcome-declaration identifier="GRADE" cardinality="single" base-type="identifier">
			<qti-interpolation-table default-value="high">
				<qti-interpolation-table-entry source-value="3" target-value="low"/>
				<qti-interpolation-table-entry source-value="6" target-value="mid" include-boundary="false"/>
			</qti-interpolation-table>
		</qti-outcome-declaration>
	</qti-assessment-item>`
	it, err := parser.ParseItem([]byte(xml))
	if err != nil {
		t.Fatal(err)
	}
	ctx := it.NewContext()
	tbl := ctx.OutcomeDeclaration("GRADE").LookupTable
	if tbl == nil {
		t.Fatal("lookup table missing")
	}
	if len(tbl.Entries) != 2 {
		t.Fatalf("entries = %d", len(tbl.Entries))
	}
	if !tbl.Entries[0].IncludeBoundary || tbl.Entries[1].IncludeBoundary {
		t.Error("include-boundary defaults/overrides wrong")
	}
	s, ok := tbl.DefaultValue.Single()
	if !ok || s.Str != "high" {
		t.Errorf("default = %+v", tbl.DefaultValue)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	_, err := parser.ParseItem([]byte(`<qti-assessment-item identifier="bad id"/>`))
	if err == nil || !strings.Contains(err.Error(), "identifier") {
		t.Errorf("err = %v", err)
	}
}
