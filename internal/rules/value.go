package rules

import (
	"math"
	"strconv"
)

// Context is the record a predicate is evaluated against.
type Context map[string]any

// Kind identifies the dynamic type of a Value.
type Kind int

const (
	Undefined Kind = iota
	Number
	String
	Bool
)

// Value is a dynamically typed operand.
type Value struct {
	Kind Kind
	Num  float64
	Str  string
	Bool bool
}

var undefined = Value{}

func numberValue(f float64) Value { return Value{Kind: Number, Num: f} }
func stringValue(s string) Value  { return Value{Kind: String, Str: s} }
func boolValue(b bool) Value      { return Value{Kind: Bool, Bool: b} }

// valueOf converts a context entry into a Value. Unsupported types and nil
// resolve to Undefined.
func valueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return undefined
	case float64:
		return numberValue(x)
	case float32:
		return numberValue(float64(x))
	case int:
		return numberValue(float64(x))
	case int32:
		return numberValue(float64(x))
	case int64:
		return numberValue(float64(x))
	case uint:
		return numberValue(float64(x))
	case uint64:
		return numberValue(float64(x))
	case string:
		return stringValue(x)
	case bool:
		return boolValue(x)
	case Value:
		return x
	}
	return undefined
}

// truthy follows the usual scripting rules: false, 0, NaN, "" and undefined
// are false.
func (v Value) truthy() bool {
	switch v.Kind {
	case Number:
		return v.Num != 0 && !math.IsNaN(v.Num)
	case String:
		return v.Str != ""
	case Bool:
		return v.Bool
	}
	return false
}

// text renders the value the way membership tests see it.
func (v Value) text() (string, bool) {
	switch v.Kind {
	case String:
		return v.Str, true
	}
	return "", false
}

func (v Value) String() string {
	switch v.Kind {
	case Number:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case String:
		return strconv.Quote(v.Str)
	case Bool:
		return strconv.FormatBool(v.Bool)
	}
	return "undefined"
}

// compare applies op to a and b. Any undefined side, or operands of
// different kinds, yields false. Strings order lexically; booleans only
// support equality.
func compare(op string, a, b Value) bool {
	if a.Kind == Undefined || b.Kind == Undefined || a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case Number:
		switch op {
		case ">":
			return a.Num > b.Num
		case "<":
			return a.Num < b.Num
		case ">=":
			return a.Num >= b.Num
		case "<=":
			return a.Num <= b.Num
		case "==":
			return a.Num == b.Num
		case "!=":
			return a.Num != b.Num
		}
	case String:
		switch op {
		case ">":
			return a.Str > b.Str
		case "<":
			return a.Str < b.Str
		case ">=":
			return a.Str >= b.Str
		case "<=":
			return a.Str <= b.Str
		case "==":
			return a.Str == b.Str
		case "!=":
			return a.Str != b.Str
		}
	case Bool:
		switch op {
		case "==":
			return a.Bool == b.Bool
		case "!=":
			return a.Bool != b.Bool
		}
	}
	return false
}
