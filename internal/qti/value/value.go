package value

// Field is one named single-cardinality entry in a record value.
type Field struct {
	Identifier string
	Type       BaseType
	Null       bool
	Value      Scalar
}

// NewField builds a populated record field.
func NewField(identifier string, v Scalar) Field {
	return Field{Identifier: identifier, Type: v.Type, Value: v}
}

// NullField builds a record field with a declared type but no value.
func NullField(identifier string, baseType BaseType) Field {
	return Field{Identifier: identifier, Type: baseType, Null: true}
}

// Value is the tagged union over null, a single scalar, an ordered or
// unordered container of scalars, or a record of named fields. The zero
// Value is null with no base type.
type Value struct {
	baseType BaseType
	card     Cardinality
	null     bool
	single   Scalar
	list     []Scalar
	record   map[string]Field
}

// NewNull builds a typed null. Base type may be empty for the untyped null
// produced by qti-null and by evaluation mismatches.
func NewNull(baseType BaseType, card Cardinality) Value {
	if card == "" {
		card = Single
	}
	return Value{baseType: baseType, card: card, null: true}
}

// NewSingle wraps one scalar.
func NewSingle(s Scalar) Value {
	return Value{baseType: s.Type, card: Single, single: s}
}

// NewContainer wraps scalars under multiple or ordered cardinality. An empty
// container is null, matching the QTI convention that an empty container and
// null are the same value.
func NewContainer(card Cardinality, baseType BaseType, scalars []Scalar) Value {
	if len(scalars) == 0 {
		return NewNull(baseType, card)
	}
	return Value{baseType: baseType, card: card, list: scalars}
}

// NewRecord wraps named fields. A record has no base type.
func NewRecord(fields map[string]Field) Value {
	if len(fields) == 0 {
		return NewNull("", Record)
	}
	return Value{card: Record, record: fields}
}

func (v Value) BaseType() BaseType       { return v.baseType }
func (v Value) Cardinality() Cardinality { return v.card }
func (v Value) IsNull() bool             { return v.null }

// Single returns the scalar of a non-null single-cardinality value.
func (v Value) Single() (Scalar, bool) {
	if v.null || v.card != Single {
		return Scalar{}, false
	}
	return v.single, true
}

// List returns the scalars of a non-null multiple/ordered value.
func (v Value) List() ([]Scalar, bool) {
	if v.null || (v.card != Multiple && v.card != Ordered) {
		return nil, false
	}
	return v.list, true
}

// Fields returns the fields of a non-null record value.
func (v Value) Fields() (map[string]Field, bool) {
	if v.null || v.card != Record {
		return nil, false
	}
	return v.record, true
}
