package value

import (
	"slices"
	"strconv"
)

// Object is a plain object: ordered own properties plus an optional prototype.
//
// Get and AllKeys follow the prototype chain. Set, Delete, Keys and HasOwn
// only touch own properties.
type Object struct {
	keys  []string
	vals  map[string]Value
	proto *Object
	blank bool
}

// Pair is a key/value pair for ordered Object construction.
type Pair struct {
	Key   string
	Value Value
}

// P is shorthand for Pair.
// Example: NewObject(P("name", String("x")), P("count", Number(2)))
func P(key string, v Value) Pair {
	return Pair{Key: key, Value: v}
}

// NewObject creates an object whose own properties are the pairs, in order.
func NewObject(pairs ...Pair) *Object {
	o := &Object{vals: make(map[string]Value, len(pairs))}
	for _, p := range pairs {
		o.Set(p.Key, p.Value)
	}
	return o
}

// NewObjectWithProto creates an empty object inheriting from proto.
// A nil proto yields a blank object.
func NewObjectWithProto(proto *Object) *Object {
	if proto == nil {
		return NewBlankObject()
	}
	return &Object{vals: map[string]Value{}, proto: proto}
}

// NewBlankObject creates an object with no prototype at all.
func NewBlankObject() *Object {
	return &Object{vals: map[string]Value{}, blank: true}
}

// Kind implements Value.
func (o *Object) Kind() Kind { return KindObject }

// Proto returns the prototype, or nil.
func (o *Object) Proto() *Object { return o.proto }

// Blank reports whether the object was created without a prototype.
func (o *Object) Blank() bool { return o.blank }

// Len returns the number of own properties.
func (o *Object) Len() int { return len(o.keys) }

// Keys returns the own property names in insertion order.
func (o *Object) Keys() []string {
	return slices.Clone(o.keys)
}

// AllKeys returns own then inherited property names, without duplicates.
func (o *Object) AllKeys() []string {
	if o.proto == nil {
		return o.Keys()
	}
	seen := make(map[string]bool)
	var out []string
	for cur := o; cur != nil; cur = cur.proto {
		for _, k := range cur.keys {
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// HasOwn reports whether key is an own property.
func (o *Object) HasOwn(key string) bool {
	_, ok := o.vals[key]
	return ok
}

// Has reports whether key is an own or inherited property.
func (o *Object) Has(key string) bool {
	for cur := o; cur != nil; cur = cur.proto {
		if cur.HasOwn(key) {
			return true
		}
	}
	return false
}

// GetOwn returns an own property and whether it exists.
func (o *Object) GetOwn(key string) (Value, bool) {
	v, ok := o.vals[key]
	return v, ok
}

// Get returns the property value, searching the prototype chain.
// Missing properties read as Undefined.
func (o *Object) Get(key string) Value {
	for cur := o; cur != nil; cur = cur.proto {
		if v, ok := cur.vals[key]; ok {
			return v
		}
	}
	return Undefined{}
}

// Set creates or replaces an own property. New keys are appended to the
// enumeration order; existing keys keep their position.
func (o *Object) Set(key string, v Value) {
	if o.vals == nil {
		o.vals = make(map[string]Value)
	}
	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = Norm(v)
}

// Delete removes an own property and reports whether it existed.
func (o *Object) Delete(key string) bool {
	if _, ok := o.vals[key]; !ok {
		return false
	}
	delete(o.vals, key)
	o.keys = slices.DeleteFunc(o.keys, func(k string) bool { return k == key })
	return true
}

// Array is an ordered list of values.
type Array struct {
	Elems []Value
}

// NewArray creates an array holding elems.
func NewArray(elems ...Value) *Array {
	a := &Array{Elems: make([]Value, len(elems))}
	for i, e := range elems {
		a.Elems[i] = Norm(e)
	}
	return a
}

// Kind implements Value.
func (a *Array) Kind() Kind { return KindArray }

// Len returns the number of elements.
func (a *Array) Len() int { return len(a.Elems) }

// At returns the element at i, or Undefined when i is out of range.
func (a *Array) At(i int) Value {
	if i < 0 || i >= len(a.Elems) {
		return Undefined{}
	}
	return Norm(a.Elems[i])
}

// SetAt stores v at i, growing the array with Undefined holes as needed.
func (a *Array) SetAt(i int, v Value) {
	if i < 0 {
		return
	}
	for len(a.Elems) <= i {
		a.Elems = append(a.Elems, Undefined{})
	}
	a.Elems[i] = Norm(v)
}

// Push appends values to the end of the array.
func (a *Array) Push(vs ...Value) {
	for _, v := range vs {
		a.Elems = append(a.Elems, Norm(v))
	}
}

// Truncate sets the length to n, dropping or padding elements.
func (a *Array) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n <= len(a.Elems) {
		clear(a.Elems[n:])
		a.Elems = a.Elems[:n]
		return
	}
	for len(a.Elems) < n {
		a.Elems = append(a.Elems, Undefined{})
	}
}

// Get reads an index property or "length".
func (a *Array) Get(key string) Value {
	if key == "length" {
		return Number(len(a.Elems))
	}
	i, err := strconv.Atoi(key)
	if err != nil {
		return Undefined{}
	}
	return a.At(i)
}

// Set writes an index property or "length". Other keys are ignored.
func (a *Array) Set(key string, v Value) {
	if key == "length" {
		if n, ok := Norm(v).(Number); ok {
			a.Truncate(int(n))
		}
		return
	}
	if i, err := strconv.Atoi(key); err == nil {
		a.SetAt(i, v)
	}
}

// Delete clears an index to Undefined without shifting the remaining elements.
func (a *Array) Delete(key string) bool {
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 || i >= len(a.Elems) {
		return false
	}
	a.Elems[i] = Undefined{}
	return true
}
