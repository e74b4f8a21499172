package bril

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Taint labels attached to types by the taint analysis.
const (
	TaintPublic  = "public"
	TaintPrivate = "private"
)

// Primitive type names recognized by the toolkit.
const (
	TypeInt   = "int"
	TypeBool  = "bool"
	TypeFloat = "float"
)

// Type is either a bare primitive name or a structured record carrying any of
// a primitive base, a pointee type, and a taint attribute. The wire form that
// appeared on input (string vs object) is preserved on output; a primitive is
// upgraded to a record only when an attribute has to be added.
type Type struct {
	Prim  string
	Ptr   *Type
	Taint string

	structured bool
}

// NewPrim returns a bare primitive type.
func NewPrim(name string) *Type {
	return &Type{Prim: name}
}

// NewPointer returns a pointer type with the given pointee.
func NewPointer(elem *Type) *Type {
	return &Type{Ptr: elem, structured: true}
}

// IsPtr reports whether t is a pointer type.
func (t *Type) IsPtr() bool {
	return t != nil && t.Ptr != nil
}

// IsFloat reports whether t is the float primitive.
func (t *Type) IsFloat() bool {
	return t != nil && t.Prim == TypeFloat && t.Ptr == nil
}

// SetTaint attaches a taint attribute in place, upgrading a bare primitive to
// a record form.
func (t *Type) SetTaint(taint string) {
	t.Taint = taint
	t.structured = true
}

// Clone returns a deep copy of t.
func (t *Type) Clone() *Type {
	if t == nil {
		return nil
	}
	c := *t
	c.Ptr = t.Ptr.Clone()
	return &c
}

// Equal reports structural equality, ignoring the input wire shape.
func (t *Type) Equal(o *Type) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Prim != o.Prim || t.Taint != o.Taint {
		return false
	}
	if (t.Ptr == nil) != (o.Ptr == nil) {
		return false
	}
	if t.Ptr != nil {
		return t.Ptr.Equal(o.Ptr)
	}
	return true
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	var b strings.Builder
	if t.Taint != "" {
		b.WriteString(t.Taint)
		b.WriteByte(' ')
	}
	if t.Ptr != nil {
		fmt.Fprintf(&b, "ptr<%s>", t.Ptr)
	} else {
		b.WriteString(t.Prim)
	}
	return b.String()
}

type typeRecord struct {
	Prim  string          `json:"prim,omitempty"`
	Taint string          `json:"taint,omitempty"`
	Ptr   json.RawMessage `json:"ptr,omitempty"`
}

// UnmarshalJSON accepts both the primitive-name and the record wire forms.
func (t *Type) UnmarshalJSON(data []byte) error {
	var prim string
	if err := json.Unmarshal(data, &prim); err == nil {
		*t = Type{Prim: prim}
		return nil
	}
	var rec typeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("type must be a primitive name or a record: %w", err)
	}
	*t = Type{Prim: rec.Prim, Taint: rec.Taint, structured: true}
	if rec.Ptr != nil {
		elem := new(Type)
		if err := json.Unmarshal(rec.Ptr, elem); err != nil {
			return err
		}
		t.Ptr = elem
	}
	return nil
}

// MarshalJSON emits the primitive-name form unless the type carries an
// attribute or arrived as a record.
func (t *Type) MarshalJSON() ([]byte, error) {
	if !t.structured && t.Taint == "" && t.Ptr == nil {
		return json.Marshal(t.Prim)
	}
	var rec typeRecord
	rec.Prim = t.Prim
	rec.Taint = t.Taint
	if t.Ptr != nil {
		raw, err := json.Marshal(t.Ptr)
		if err != nil {
			return nil, err
		}
		rec.Ptr = raw
	}
	return json.Marshal(rec)
}

// ValueKind tags a literal payload.
type ValueKind int

const (
	IntValue ValueKind = iota
	BoolValue
	FloatValue
	StrValue
)

// Value is the literal payload of a const instruction. The JSON form is a
// bare scalar; integers and floats are distinguished by the presence of a
// fraction or exponent in the input text.
type Value struct {
	Kind  ValueKind
	Int   int64
	Bool  bool
	Float float64
	Str   string
}

// IntVal returns an integer literal.
func IntVal(v int64) *Value { return &Value{Kind: IntValue, Int: v} }

// BoolVal returns a boolean literal.
func BoolVal(v bool) *Value { return &Value{Kind: BoolValue, Bool: v} }

// FloatVal returns a float literal.
func FloatVal(v float64) *Value { return &Value{Kind: FloatValue, Float: v} }

// Equal reports literal equality; kinds must match.
func (v *Value) Equal(o *Value) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case IntValue:
		return v.Int == o.Int
	case BoolValue:
		return v.Bool == o.Bool
	case FloatValue:
		return v.Float == o.Float
	default:
		return v.Str == o.Str
	}
}

func (v *Value) String() string {
	switch v.Kind {
	case IntValue:
		return fmt.Sprintf("%d", v.Int)
	case BoolValue:
		return fmt.Sprintf("%t", v.Bool)
	case FloatValue:
		return fmt.Sprintf("%g", v.Float)
	default:
		return v.Str
	}
}

// UnmarshalJSON decodes a scalar literal, keeping ints and floats apart.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case json.Number:
		s := x.String()
		if strings.ContainsAny(s, ".eE") {
			f, err := x.Float64()
			if err != nil {
				return err
			}
			*v = Value{Kind: FloatValue, Float: f}
			return nil
		}
		i, err := x.Int64()
		if err != nil {
			return err
		}
		*v = Value{Kind: IntValue, Int: i}
		return nil
	case bool:
		*v = Value{Kind: BoolValue, Bool: x}
		return nil
	case string:
		*v = Value{Kind: StrValue, Str: x}
		return nil
	default:
		return fmt.Errorf("unsupported literal %s", string(data))
	}
}

// MarshalJSON emits the bare scalar.
func (v *Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case IntValue:
		return json.Marshal(v.Int)
	case BoolValue:
		return json.Marshal(v.Bool)
	case FloatValue:
		return json.Marshal(v.Float)
	default:
		return json.Marshal(v.Str)
	}
}
