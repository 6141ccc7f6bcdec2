package value

import (
	"math"
	"reflect"
	"strconv"
)

// Kind identifies which member of the value model a Value belongs to.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindFunc
	KindArray
	KindObject
	KindDate
	KindRegExp
	KindTypedArray
	KindArrayBuffer
	KindBoxed
	KindBlob
	KindHost
	KindWindow
)

var kindNames = [...]string{
	KindUndefined:   "undefined",
	KindNull:        "null",
	KindBool:        "boolean",
	KindNumber:      "number",
	KindString:      "string",
	KindFunc:        "function",
	KindArray:       "array",
	KindObject:      "object",
	KindDate:        "date",
	KindRegExp:      "regexp",
	KindTypedArray:  "typedarray",
	KindArrayBuffer: "arraybuffer",
	KindBoxed:       "boxed",
	KindBlob:        "blob",
	KindHost:        "host",
	KindWindow:      "window",
}

// String returns the lower-case kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is any member of the value model.
//
// The built-in kinds are implemented by this package. Hosts may add their own
// node types by implementing Value with Kind() == KindHost together with
// Cloner. A nil Value is treated as Undefined everywhere.
type Value interface {
	Kind() Kind
}

// Keyed is implemented by values whose properties can be read by name.
// Objects and arrays are keyed; watches are registered against a Keyed holder.
type Keyed interface {
	Value
	Get(key string) Value
}

// Undefined is the absent value.
type Undefined struct{}

// Kind implements Value.
func (Undefined) Kind() Kind { return KindUndefined }

// Null is the explicit empty value.
type Null struct{}

// Kind implements Value.
func (Null) Kind() Kind { return KindNull }

// Bool is a boolean primitive.
type Bool bool

// Kind implements Value.
func (Bool) Kind() Kind { return KindBool }

// Number is a numeric primitive. NaN and the infinities are valid numbers.
type Number float64

// Kind implements Value.
func (Number) Kind() Kind { return KindNumber }

// IsNaN reports whether n is NaN.
func (n Number) IsNaN() bool { return math.IsNaN(float64(n)) }

// String is a string primitive.
type String string

// Kind implements Value.
func (String) Kind() Kind { return KindString }

// NaN returns the NaN number.
func NaN() Number { return Number(math.NaN()) }

// Norm maps a nil Value to Undefined and returns every other value unchanged.
func Norm(v Value) Value {
	if v == nil {
		return Undefined{}
	}
	return v
}

// Same reports strict identity: equal primitives, or the same reference for
// object-like values. NaN is never the same as anything, itself included.
func Same(a, b Value) bool {
	a, b = Norm(a), Norm(b)
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	// Host values of non-comparable types have no usable identity.
	if !ta.Comparable() {
		return false
	}
	return a == b
}

// IsUndefined reports whether v is undefined (or nil).
func IsUndefined(v Value) bool {
	return Norm(v).Kind() == KindUndefined
}

// IsDefined reports whether v is anything other than undefined.
func IsDefined(v Value) bool {
	return !IsUndefined(v)
}
