package value

import (
	"math"
	"strconv"
)

// Classify returns the kind of v, treating nil as undefined.
func Classify(v Value) Kind {
	return Norm(v).Kind()
}

// IsObject reports whether v is object-like: anything with reference identity
// except functions. Null is not an object.
func IsObject(v Value) bool {
	switch Classify(v) {
	case KindUndefined, KindNull, KindBool, KindNumber, KindString, KindFunc:
		return false
	}
	return true
}

// IsFunc reports whether v is callable.
func IsFunc(v Value) bool {
	return Classify(v) == KindFunc
}

// IsArray reports whether v is an Array.
func IsArray(v Value) bool {
	return Classify(v) == KindArray
}

// IsPlainObject reports whether v is an Object (with or without prototype).
func IsPlainObject(v Value) bool {
	return Classify(v) == KindObject
}

// IsBlankObject reports whether v is an Object created without a prototype.
func IsBlankObject(v Value) bool {
	o, ok := Norm(v).(*Object)
	return ok && o.Blank()
}

// IsDate reports whether v is a Date.
func IsDate(v Value) bool {
	return Classify(v) == KindDate
}

// IsRegExp reports whether v is a RegExp.
func IsRegExp(v Value) bool {
	return Classify(v) == KindRegExp
}

// IsTypedArray reports whether v is one of the nine typed array kinds.
func IsTypedArray(v Value) bool {
	return Classify(v) == KindTypedArray
}

// IsArrayBuffer reports whether v is an ArrayBuffer.
func IsArrayBuffer(v Value) bool {
	return Classify(v) == KindArrayBuffer
}

// IsWindow reports whether v is a host global object.
func IsWindow(v Value) bool {
	return Classify(v) == KindWindow
}

// IsString reports whether v is a string primitive.
func IsString(v Value) bool {
	return Classify(v) == KindString
}

// IsNaN reports whether v is the number NaN. Non-numbers are never NaN.
func IsNaN(v Value) bool {
	n, ok := Norm(v).(Number)
	return ok && math.IsNaN(float64(n))
}

// SimpleCompare is identity, except that two NaNs compare equal.
func SimpleCompare(a, b Value) bool {
	return Same(a, b) || (IsNaN(a) && IsNaN(b))
}

// IsArrayLike reports whether v can be indexed by position: arrays, strings,
// typed arrays, and objects with a non-negative numeric length whose last
// index is present (or which expose an item function).
func IsArrayLike(v Value) bool {
	switch x := Norm(v).(type) {
	case *Array, String, *TypedArray:
		return true
	case *Object:
		if !x.Has("length") {
			return false
		}
		n, ok := x.Get("length").(Number)
		if !ok {
			return false
		}
		// A fractional length names a key like "0.5", never an index.
		f := float64(n)
		if f >= 0 && f == math.Trunc(f) && !math.IsInf(f, 0) && x.Has(formatIndex(int(n)-1)) {
			return true
		}
		return IsFunc(x.Get("item"))
	}
	return false
}

// Length returns the positional length of an array-like value, or 0.
func Length(v Value) int {
	switch x := Norm(v).(type) {
	case *Array:
		return x.Len()
	case String:
		return len([]rune(string(x)))
	case *TypedArray:
		return x.Len()
	case *Object:
		if n, ok := x.Get("length").(Number); ok && n > 0 && !math.IsInf(float64(n), 0) {
			return int(n)
		}
	}
	return 0
}

// Index reads position i of an array-like value. Strings yield one-character
// strings. Out of range reads are Undefined.
func Index(v Value, i int) Value {
	switch x := Norm(v).(type) {
	case *Array:
		return x.At(i)
	case String:
		r := []rune(string(x))
		if i < 0 || i >= len(r) {
			return Undefined{}
		}
		return String(r[i])
	case *TypedArray:
		return x.At(i)
	case *Object:
		return x.Get(formatIndex(i))
	}
	return Undefined{}
}

func formatIndex(i int) string {
	return strconv.Itoa(i)
}
