package decls

import (
	"encoding/json"
	"math/rand"
	"time"

	"github.com/open-assess/qtiproc/internal/qti/value"
)

// Context is the declaration store for one item instance. Access is
// single-threaded by contract; a host sharing a Context across goroutines
// must serialize access itself.
type Context struct {
	Responses []*Declaration
	Outcomes  []*Declaration
	Templates []*Declaration
	Contexts  []*Declaration

	// Rand drives the random expressions. Seed it for reproducible tests.
	Rand *rand.Rand
}

// NewContext builds an empty store with the built-in declarations
// (QTI_CONTEXT, SCORE, completionStatus, numAttempts, duration) installed.
func NewContext() *Context {
	c := &Context{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
	c.initializeBuiltIns()
	return c
}

func (c *Context) initializeBuiltIns() {
	qtiContext := map[string]value.Field{
		"candidateIdentifier":   value.NullField("candidateIdentifier", value.String),
		"testIdentifier":        value.NullField("testIdentifier", value.String),
		"environmentIdentifier": value.NullField("environmentIdentifier", value.String),
	}
	c.DefineContext(&Declaration{
		Identifier:   "QTI_CONTEXT",
		Kind:         ContextVar,
		Cardinality:  value.Record,
		Value:        value.NewRecord(qtiContext),
		DefaultValue: value.NewRecord(qtiContext),
	})

	zero := value.NewSingle(value.NewFloat(0))
	c.DefineOutcome(&Declaration{
		Identifier: "SCORE", Kind: OutcomeVar,
		BaseType: value.Float, Cardinality: value.Single,
		Value: zero, DefaultValue: zero,
	})

	notAttempted := value.NewSingle(value.NewIdentifier("not_attempted"))
	c.DefineOutcome(&Declaration{
		Identifier: "completionStatus", Kind: OutcomeVar,
		BaseType: value.Identifier, Cardinality: value.Single,
		Value: notAttempted, DefaultValue: notAttempted,
	})

	zeroInt := value.NewSingle(value.NewInteger(0))
	c.DefineResponse(&Declaration{
		Identifier: "numAttempts", Kind: ResponseVar,
		BaseType: value.Integer, Cardinality: value.Single,
		Value: zeroInt, DefaultValue: zeroInt,
	})

	zeroDur := value.NewSingle(value.NewDuration(0))
	c.DefineResponse(&Declaration{
		Identifier: "duration", Kind: ResponseVar,
		BaseType: value.Duration, Cardinality: value.Single,
		Value: zeroDur, DefaultValue: zeroDur,
	})
}

func find(list []*Declaration, identifier string) *Declaration {
	for _, d := range list {
		if d.Identifier == identifier {
			return d
		}
	}
	return nil
}

func upsert(list []*Declaration, d *Declaration) []*Declaration {
	for i, existing := range list {
		if existing.Identifier == d.Identifier {
			list[i] = d
			return list
		}
	}
	return append(list, d)
}

func (c *Context) ResponseDeclaration(identifier string) *Declaration {
	return find(c.Responses, identifier)
}

func (c *Context) OutcomeDeclaration(identifier string) *Declaration {
	return find(c.Outcomes, identifier)
}

func (c *Context) TemplateDeclaration(identifier string) *Declaration {
	return find(c.Templates, identifier)
}

func (c *Context) ContextDeclaration(identifier string) *Declaration {
	return find(c.Contexts, identifier)
}

// Variable searches all namespaces: outcomes, then responses, then
// templates, then context declarations.
func (c *Context) Variable(identifier string) *Declaration {
	if d := find(c.Outcomes, identifier); d != nil {
		return d
	}
	if d := find(c.Responses, identifier); d != nil {
		return d
	}
	if d := find(c.Templates, identifier); d != nil {
		return d
	}
	return find(c.Contexts, identifier)
}

func (c *Context) DefineResponse(d *Declaration) { c.Responses = upsert(c.Responses, d) }
func (c *Context) DefineOutcome(d *Declaration)  { c.Outcomes = upsert(c.Outcomes, d) }
func (c *Context) DefineTemplate(d *Declaration) { c.Templates = upsert(c.Templates, d) }
func (c *Context) DefineContext(d *Declaration)  { c.Contexts = upsert(c.Contexts, d) }

// SetOutcomeValue updates an outcome variable; unknown identifiers are
// ignored (the engine assumes validated identifiers).
func (c *Context) SetOutcomeValue(identifier string, v value.Value) {
	if d := find(c.Outcomes, identifier); d != nil {
		d.Value = v
	}
}

// ResetOutcomeValue restores an outcome to its default. Without a default,
// containers and records reset to null and numeric singles to zero.
func (c *Context) ResetOutcomeValue(identifier string) {
	d := find(c.Outcomes, identifier)
	if d == nil {
		return
	}
	if !d.DefaultValue.IsNull() {
		d.Value = d.DefaultValue
		return
	}
	if d.Cardinality != value.Single {
		d.Value = value.NewNull(d.BaseType, d.Cardinality)
		return
	}
	if d.BaseType.IsNumeric() {
		if d.BaseType == value.Integer {
			d.Value = value.NewSingle(value.NewInteger(0))
		} else {
			d.Value = value.NewSingle(value.NewFloat(0))
		}
		return
	}
	d.Value = value.NewNull(d.BaseType, d.Cardinality)
}

// SetResponseValue updates a response variable's value and interaction state.
func (c *Context) SetResponseValue(identifier string, v value.Value, state json.RawMessage) {
	if d := find(c.Responses, identifier); d != nil {
		d.Value = v
		d.State = state
	}
}

// ResetResponseValue restores a response to its default, or null.
func (c *Context) ResetResponseValue(identifier string) {
	if d := find(c.Responses, identifier); d != nil {
		if !d.DefaultValue.IsNull() {
			d.Value = d.DefaultValue
		} else {
			d.Value = value.NewNull(d.BaseType, d.Cardinality)
		}
	}
}

// SetTemplateValue updates a template variable.
func (c *Context) SetTemplateValue(identifier string, v value.Value) {
	if d := find(c.Templates, identifier); d != nil {
		d.Value = v
	}
}

// SetVariableDefault sets the default value of a response or outcome
// variable (qti-set-default-value).
func (c *Context) SetVariableDefault(identifier string, v value.Value) {
	if d := find(c.Responses, identifier); d != nil {
		d.DefaultValue = v
		return
	}
	if d := find(c.Outcomes, identifier); d != nil {
		d.DefaultValue = v
	}
}

// SetCorrectResponse sets the correct response of a response variable
// (qti-set-correct-response).
func (c *Context) SetCorrectResponse(identifier string, v value.Value) {
	if d := find(c.Responses, identifier); d != nil {
		d.CorrectResponse = v
	}
}

// IncrementNumAttempts bumps the built-in numAttempts response variable.
func (c *Context) IncrementNumAttempts() {
	d := find(c.Responses, "numAttempts")
	if d == nil {
		return
	}
	s, _ := d.Value.Single()
	d.Value = value.NewSingle(value.NewInteger(s.Int + 1))
}
