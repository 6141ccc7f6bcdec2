package value

import (
	"bytes"
	"strings"
)

// Equals reports deep structural equality.
//
// Rules, in order:
//   - identical values are equal
//   - null is equal only to itself
//   - two NaNs are equal
//   - values of different kinds, and non-object values, are unequal
//   - arrays compare length then elements pairwise
//   - dates compare epoch milliseconds (two invalid dates are equal)
//   - regular expressions compare their literal form
//   - objects compare every enumerable key of a (own and inherited) against
//     b, then require b to have no extra defined keys. Keys starting with '$'
//     and function-valued keys are ignored on both sides.
//   - windows are only equal to themselves
//
// Typed arrays, array buffers, boxed primitives and blobs compare by content.
// Host nodes and functions compare by identity only.
//
// Equals never panics. Comparing two distinct but isomorphic cyclic graphs does
// not terminate.
func Equals(a, b Value) bool {
	a, b = Norm(a), Norm(b)
	if Same(a, b) {
		return true
	}
	if a.Kind() == KindNull || b.Kind() == KindNull {
		return false
	}
	if IsNaN(a) && IsNaN(b) {
		return true
	}
	if !IsObject(a) || a.Kind() != b.Kind() {
		return false
	}

	// Kinds match, but b may be a host type reporting a built-in kind.
	switch x := a.(type) {
	case *Array:
		y, ok := b.(*Array)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for i := range x.Elems {
			if !Equals(x.Elems[i], y.Elems[i]) {
				return false
			}
		}
		return true
	case *Date:
		y, ok := b.(*Date)
		return ok && SimpleCompare(Number(x.Millis()), Number(y.Millis()))
	case *RegExp:
		y, ok := b.(*RegExp)
		return ok && x.String() == y.String()
	case *Object:
		y, ok := b.(*Object)
		return ok && equalObjects(x, y)
	case *TypedArray:
		y, ok := b.(*TypedArray)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for i := 0; i < x.Len(); i++ {
			if !Equals(x.At(i), y.At(i)) {
				return false
			}
		}
		return true
	case *ArrayBuffer:
		y, ok := b.(*ArrayBuffer)
		return ok && bytes.Equal(x.Data, y.Data)
	case *Boxed:
		y, ok := b.(*Boxed)
		return ok && SimpleCompare(x.Prim, y.Prim)
	case *Blob:
		y, ok := b.(*Blob)
		return ok && x.Type == y.Type && bytes.Equal(x.Data, y.Data)
	}
	// Windows and host nodes: identity was already checked.
	return false
}

func equalObjects(a, b *Object) bool {
	compared := make(map[string]bool)
	for _, key := range a.AllKeys() {
		av := a.Get(key)
		if strings.HasPrefix(key, "$") || IsFunc(av) {
			continue
		}
		if !Equals(av, b.Get(key)) {
			return false
		}
		compared[key] = true
	}
	for _, key := range b.AllKeys() {
		if compared[key] || strings.HasPrefix(key, "$") {
			continue
		}
		bv := b.Get(key)
		if IsDefined(bv) && !IsFunc(bv) {
			return false
		}
	}
	return true
}
