package value

import (
	"fmt"
	"math"
	"reflect"
)

// Truncated is the placeholder Copy substitutes for subtrees below maxDepth.
const Truncated = String("...")

const hashKey = "$$hashKey"

// Copy returns a deep copy of source.
//
// When destination is nil, undefined or null, a fresh clone is returned.
// Otherwise destination (an *Array or *Object) is emptied, refilled from
// source and returned. An object destination keeps its own "$$hashKey".
//
// maxDepth > 0 limits recursion: containers nested deeper than maxDepth are
// replaced by Truncated. maxDepth <= 0 means unlimited.
//
// Cycles and shared references in source are reproduced in the copy.
func Copy(source, destination Value, maxDepth int) (Value, error) {
	source = Norm(source)
	c := &copier{seen: make(map[Value]Value), limited: maxDepth > 0}

	if destination == nil || destination.Kind() == KindUndefined || destination.Kind() == KindNull {
		return c.element(source, maxDepth)
	}

	switch destination.Kind() {
	case KindTypedArray, KindArrayBuffer:
		return nil, newCopyError(ErrCodeImmutableDestination,
			"Can't copy! TypedArray destination cannot be mutated.")
	}
	if Same(source, destination) {
		return nil, newCopyError(ErrCodeIdenticalSource,
			"Can't copy! Source and destination are identical.")
	}
	if IsWindow(source) {
		return nil, errWindow()
	}

	switch dst := destination.(type) {
	case *Array:
		if _, ok := source.(*Array); !ok {
			return nil, newCopyError(ErrCodeKindMismatch,
				fmt.Sprintf("cannot copy %s into array destination", source.Kind()))
		}
		dst.Truncate(0)
	case *Object:
		if _, ok := source.(*Object); !ok {
			return nil, newCopyError(ErrCodeKindMismatch,
				fmt.Sprintf("cannot copy %s into object destination", source.Kind()))
		}
		for _, k := range dst.Keys() {
			if k != hashKey {
				dst.Delete(k)
			}
		}
	default:
		return nil, newCopyError(ErrCodeKindMismatch,
			fmt.Sprintf("destination must be an array or object, got %s", destination.Kind()))
	}

	c.remember(source, destination)
	return c.recurse(source, destination, maxDepth)
}

// MustCopy is Copy without a destination for values known to be copyable.
// It panics on error.
func MustCopy(source Value) Value {
	v, err := Copy(source, nil, 0)
	if err != nil {
		panic(err)
	}
	return v
}

type copier struct {
	seen    map[Value]Value
	limited bool
}

func (c *copier) remember(src, dst Value) {
	if hasIdentity(src) {
		c.seen[src] = dst
	}
}

func (c *copier) lookup(src Value) (Value, bool) {
	if !hasIdentity(src) {
		return nil, false
	}
	dst, ok := c.seen[src]
	return dst, ok
}

func hasIdentity(v Value) bool {
	return reflect.TypeOf(v).Comparable()
}

// recurse fills dst (an *Array or *Object) from src.
func (c *copier) recurse(src, dst Value, depth int) (Value, error) {
	if c.limited {
		depth--
		if depth < 0 {
			return Truncated, nil
		}
	}

	switch s := src.(type) {
	case *Array:
		d := dst.(*Array)
		for _, e := range s.Elems {
			cp, err := c.element(Norm(e), depth)
			if err != nil {
				return nil, err
			}
			d.Push(cp)
		}
		return d, nil
	case *Object:
		d := dst.(*Object)
		h, _ := d.GetOwn(hashKey)
		for _, k := range s.Keys() {
			v, _ := s.GetOwn(k)
			cp, err := c.element(v, depth)
			if err != nil {
				return nil, err
			}
			d.Set(k, cp)
		}
		setHashKey(d, h)
		return d, nil
	}
	return dst, nil
}

func (c *copier) element(src Value, depth int) (Value, error) {
	if !IsObject(src) {
		return src, nil
	}
	if dst, ok := c.lookup(src); ok {
		return dst, nil
	}
	if IsWindow(src) {
		return nil, errWindow()
	}

	dst, err := c.copyType(src)
	if err != nil {
		return nil, err
	}
	if dst != nil {
		c.remember(src, dst)
		return dst, nil
	}

	// Containers: truncated subtrees are not memoized.
	if c.limited && depth-1 < 0 {
		return Truncated, nil
	}
	switch s := src.(type) {
	case *Array:
		dst = &Array{Elems: make([]Value, 0, s.Len())}
	case *Object:
		if s.Blank() {
			dst = NewBlankObject()
		} else {
			dst = &Object{vals: make(map[string]Value, s.Len()), proto: s.Proto()}
		}
	default:
		return nil, newCopyError(ErrCodeUnclonable,
			fmt.Sprintf("cannot copy %s value of type %T", src.Kind(), src))
	}
	c.remember(src, dst)
	return c.recurse(src, dst, depth)
}

// copyType clones the leaf object kinds. It returns nil for containers.
func (c *copier) copyType(src Value) (Value, error) {
	switch s := src.(type) {
	case *TypedArray:
		if s.Buffer == nil {
			return &TypedArray{Type: s.Type}, nil
		}
		buf, err := c.element(s.Buffer, 0)
		if err != nil {
			return nil, err
		}
		return &TypedArray{Type: s.Type, Buffer: buf.(*ArrayBuffer), ByteOffset: s.ByteOffset, length: s.length}, nil
	case *ArrayBuffer:
		return s.Slice(), nil
	case *Boxed:
		return NewBoxed(s.Prim), nil
	case *Date:
		return DateFromMillis(s.Millis()), nil
	case *RegExp:
		return &RegExp{Source: s.Source, Flags: s.Flags, LastIndex: s.LastIndex}, nil
	case *Blob:
		return NewBlob(s.Data, s.Type), nil
	case *Array, *Object:
		return nil, nil
	}
	if cl, ok := src.(Cloner); ok {
		return Norm(cl.CloneNode(true)), nil
	}
	return nil, nil
}

func setHashKey(o *Object, h Value) {
	if truthy(h) {
		o.Set(hashKey, h)
		return
	}
	o.Delete(hashKey)
}

func truthy(v Value) bool {
	switch x := Norm(v).(type) {
	case Undefined, Null:
		return false
	case Bool:
		return bool(x)
	case Number:
		return x != 0 && !math.IsNaN(float64(x))
	case String:
		return x != ""
	}
	return true
}

func errWindow() *CopyError {
	return newCopyError(ErrCodeWindowSource,
		"Can't copy! Making copies of Window or Scope instances is not supported.")
}

// ShallowCopy returns a one-level snapshot of v. Primitives are returned as
// is, array-likes become a new *Array of the same elements, and any other
// object becomes a new *Object holding its own properties.
func ShallowCopy(v Value) Value {
	v = Norm(v)
	if !IsObject(v) {
		return v
	}
	if IsArrayLike(v) {
		n := Length(v)
		out := &Array{Elems: make([]Value, n)}
		for i := 0; i < n; i++ {
			out.Elems[i] = Index(v, i)
		}
		return out
	}
	out := NewObject()
	if o, ok := v.(*Object); ok {
		for _, k := range o.keys {
			out.Set(k, o.vals[k])
		}
	}
	return out
}
