package api

import "strconv"

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	ValueNone ValueKind = iota
	ValueNumber
	ValueString
	ValueBool
)

// Value is a dialogue variable: a number, a string or a bool.
type Value struct {
	Kind   ValueKind `codec:"kind" json:"kind"`
	Number float64   `codec:"number,omitempty" json:"number,omitempty"`
	Str    string    `codec:"str,omitempty" json:"str,omitempty"`
	Bool   bool      `codec:"bool,omitempty" json:"bool,omitempty"`
}

func NumberValue(f float64) Value { return Value{Kind: ValueNumber, Number: f} }
func StringValue(s string) Value  { return Value{Kind: ValueString, Str: s} }
func BoolValue(b bool) Value      { return Value{Kind: ValueBool, Bool: b} }

func (v Value) String() string {
	switch v.Kind {
	case ValueNumber:
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	case ValueString:
		return v.Str
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}
