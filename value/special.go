package value

import (
	"encoding/binary"
	"math"
	"time"
)

// Date is a point in time stored as epoch milliseconds. NaN marks an
// invalid date.
type Date struct {
	ms float64
}

// NewDate creates a date from a time.Time.
func NewDate(t time.Time) *Date {
	return &Date{ms: float64(t.UnixMilli())}
}

// DateFromMillis creates a date from epoch milliseconds.
func DateFromMillis(ms float64) *Date {
	return &Date{ms: ms}
}

// InvalidDate creates a date whose time value is NaN.
func InvalidDate() *Date {
	return &Date{ms: math.NaN()}
}

// Kind implements Value.
func (d *Date) Kind() Kind { return KindDate }

// Millis returns the epoch milliseconds (NaN when invalid).
func (d *Date) Millis() float64 { return d.ms }

// SetMillis changes the time value in place.
func (d *Date) SetMillis(ms float64) { d.ms = ms }

// Valid reports whether the date has a real time value.
func (d *Date) Valid() bool { return !math.IsNaN(d.ms) }

// Time converts the date to UTC time. ok is false for invalid dates.
func (d *Date) Time() (t time.Time, ok bool) {
	if !d.Valid() {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(d.ms)).UTC(), true
}

// RegExp is a regular expression value. Only its textual form matters to the
// engine; matching is left to the host.
type RegExp struct {
	Source    string
	Flags     string
	LastIndex int
}

// NewRegExp creates a regular expression value.
func NewRegExp(source, flags string) *RegExp {
	return &RegExp{Source: source, Flags: flags}
}

// Kind implements Value.
func (r *RegExp) Kind() Kind { return KindRegExp }

// String returns the literal form, e.g. "/ab+c/gi".
func (r *RegExp) String() string {
	return "/" + r.Source + "/" + r.Flags
}

// ArrayBuffer is a raw byte buffer.
type ArrayBuffer struct {
	Data []byte
}

// NewArrayBuffer allocates a zeroed buffer of n bytes.
func NewArrayBuffer(n int) *ArrayBuffer {
	return &ArrayBuffer{Data: make([]byte, n)}
}

// Kind implements Value.
func (b *ArrayBuffer) Kind() Kind { return KindArrayBuffer }

// ByteLength returns the buffer size.
func (b *ArrayBuffer) ByteLength() int { return len(b.Data) }

// Slice returns an independent copy of the whole buffer.
func (b *ArrayBuffer) Slice() *ArrayBuffer {
	data := make([]byte, len(b.Data))
	copy(data, b.Data)
	return &ArrayBuffer{Data: data}
}

// ElementType is the element type of a typed array.
type ElementType uint8

const (
	Int8 ElementType = iota
	Uint8
	Uint8Clamped
	Int16
	Uint16
	Int32
	Uint32
	Float32
	Float64
)

var elementTypeNames = [...]string{
	Int8:         "Int8Array",
	Uint8:        "Uint8Array",
	Uint8Clamped: "Uint8ClampedArray",
	Int16:        "Int16Array",
	Uint16:       "Uint16Array",
	Int32:        "Int32Array",
	Uint32:       "Uint32Array",
	Float32:      "Float32Array",
	Float64:      "Float64Array",
}

// String returns the constructor name, e.g. "Float32Array".
func (t ElementType) String() string {
	if int(t) < len(elementTypeNames) {
		return elementTypeNames[t]
	}
	return "UnknownArray"
}

// Size returns the element width in bytes.
func (t ElementType) Size() int {
	switch t {
	case Int8, Uint8, Uint8Clamped:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Float64:
		return 8
	}
	return 1
}

// ParseElementType maps a constructor name back to its ElementType.
func ParseElementType(name string) (ElementType, bool) {
	for i, n := range elementTypeNames {
		if n == name {
			return ElementType(i), true
		}
	}
	return 0, false
}

// TypedArray is a fixed-width numeric view over an ArrayBuffer. Elements are
// little-endian.
type TypedArray struct {
	Type       ElementType
	Buffer     *ArrayBuffer
	ByteOffset int
	length     int
}

// NewTypedArray allocates a fresh buffer holding n zeroed elements.
func NewTypedArray(t ElementType, n int) *TypedArray {
	return &TypedArray{Type: t, Buffer: NewArrayBuffer(n * t.Size()), length: n}
}

// NewTypedArrayOf allocates a typed array holding the given numbers.
func NewTypedArrayOf(t ElementType, nums ...float64) *TypedArray {
	ta := NewTypedArray(t, len(nums))
	for i, n := range nums {
		ta.SetAt(i, n)
	}
	return ta
}

// NewTypedArrayView creates a view of length elements over buf starting at
// byteOffset. The view is clamped to the buffer bounds.
func NewTypedArrayView(t ElementType, buf *ArrayBuffer, byteOffset, length int) *TypedArray {
	if byteOffset < 0 {
		byteOffset = 0
	}
	if limit := (len(buf.Data) - byteOffset) / t.Size(); length > limit {
		length = limit
	}
	if length < 0 {
		length = 0
	}
	return &TypedArray{Type: t, Buffer: buf, ByteOffset: byteOffset, length: length}
}

// Kind implements Value.
func (a *TypedArray) Kind() Kind { return KindTypedArray }

// Len returns the number of elements.
func (a *TypedArray) Len() int { return a.length }

// At reads element i, or Undefined when out of range.
func (a *TypedArray) At(i int) Value {
	if i < 0 || i >= a.length {
		return Undefined{}
	}
	return Number(a.read(i))
}

// SetAt writes element i with the conversion rules of the element type.
func (a *TypedArray) SetAt(i int, n float64) {
	if i < 0 || i >= a.length {
		return
	}
	b := a.Buffer.Data[a.ByteOffset+i*a.Type.Size():]
	switch a.Type {
	case Int8:
		b[0] = byte(int8(toInt(n)))
	case Uint8:
		b[0] = byte(toInt(n))
	case Uint8Clamped:
		b[0] = clamp8(n)
	case Int16:
		binary.LittleEndian.PutUint16(b, uint16(int16(toInt(n))))
	case Uint16:
		binary.LittleEndian.PutUint16(b, uint16(toInt(n)))
	case Int32:
		binary.LittleEndian.PutUint32(b, uint32(int32(toInt(n))))
	case Uint32:
		binary.LittleEndian.PutUint32(b, uint32(toInt(n)))
	case Float32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(n)))
	case Float64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(n))
	}
}

func (a *TypedArray) read(i int) float64 {
	b := a.Buffer.Data[a.ByteOffset+i*a.Type.Size():]
	switch a.Type {
	case Int8:
		return float64(int8(b[0]))
	case Uint8, Uint8Clamped:
		return float64(b[0])
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case Uint16:
		return float64(binary.LittleEndian.Uint16(b))
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case Uint32:
		return float64(binary.LittleEndian.Uint32(b))
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return 0
}

// toInt truncates toward zero with modular wrap; NaN and infinities become 0.
func toInt(n float64) int64 {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return int64(math.Mod(math.Trunc(n), 1<<32))
}

func clamp8(n float64) byte {
	switch {
	case math.IsNaN(n) || n <= 0:
		return 0
	case n >= 255:
		return 255
	}
	return byte(math.RoundToEven(n))
}

// Boxed is a primitive wrapped in an object (new Number(1) and friends).
type Boxed struct {
	Prim Value
}

// NewBoxed wraps a boolean, number or string primitive.
func NewBoxed(prim Value) *Boxed {
	return &Boxed{Prim: Norm(prim)}
}

// Kind implements Value.
func (b *Boxed) Kind() Kind { return KindBoxed }

// Blob is an immutable chunk of bytes with a MIME type.
type Blob struct {
	Data []byte
	Type string
}

// NewBlob creates a blob holding a copy of data.
func NewBlob(data []byte, mimeType string) *Blob {
	return &Blob{Data: append([]byte(nil), data...), Type: mimeType}
}

// Kind implements Value.
func (b *Blob) Kind() Kind { return KindBlob }

// Size returns the number of bytes.
func (b *Blob) Size() int { return len(b.Data) }

// Func is a callable value. Functions compare by reference only.
type Func struct {
	Name string
	Call func(args ...Value) Value
}

// NewFunc creates a named function value.
func NewFunc(name string, call func(args ...Value) Value) *Func {
	return &Func{Name: name, Call: call}
}

// Kind implements Value.
func (f *Func) Kind() Kind { return KindFunc }

// Window is the global object of a host environment. Windows are never equal
// to anything but themselves and cannot be copied.
type Window struct {
	Name string
}

// Kind implements Value.
func (w *Window) Kind() Kind { return KindWindow }

// Cloner is implemented by host-provided nodes that know how to clone
// themselves (DOM-like elements). Copy delegates to CloneNode(true).
type Cloner interface {
	Value
	CloneNode(deep bool) Value
}
