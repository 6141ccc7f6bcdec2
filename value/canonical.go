package value

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical renders v as canonical JSON (RFC 8785 layout): object keys
// sorted by UTF-16 code units, strings NFC-normalized, no HTML escaping and
// ECMAScript number formatting.
//
// Kinds without a JSON form use single-key tagged objects:
//
//	undefined        {"$undefined":true}
//	NaN, ±Infinity   {"$number":"NaN"}
//	date             {"$date":"2024-01-02T03:04:05.000Z"}
//	regexp           {"$regexp":"/a+/g"}
//	function         {"$func":"name"}
//	typed array      {"$typed":"Uint8Array","values":[1,2]}
//	array buffer     {"$buffer":"<base64>"}
//	boxed primitive  {"$boxed":1}
//	blob             {"$blob":"<base64>","type":"text/plain"}
//	host node        {"$host":"<go type>"}
//	window           {"$window":"name"}
//
// A reference back to a container that is still being written renders as
// {"$ref":"cycle"}. Only own object properties are written.
func MarshalCanonical(v Value) ([]byte, error) {
	w := &canonicalWriter{open: make(map[Value]bool)}
	if err := w.value(Norm(v)); err != nil {
		return nil, err
	}
	return w.buf.Bytes(), nil
}

// MarshalCanonicalString is MarshalCanonical returning a string, with errors
// rendered inline. Intended for logs and traces.
func MarshalCanonicalString(v Value) string {
	b, err := MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<unrenderable: %v>", err)
	}
	return string(b)
}

type canonicalWriter struct {
	buf  bytes.Buffer
	open map[Value]bool
}

func (w *canonicalWriter) value(v Value) error {
	switch x := v.(type) {
	case Undefined:
		w.buf.WriteString(`{"$undefined":true}`)
	case Null:
		w.buf.WriteString("null")
	case Bool:
		if x {
			w.buf.WriteString("true")
		} else {
			w.buf.WriteString("false")
		}
	case Number:
		w.number(float64(x))
	case String:
		w.str(string(x))
	case *Array:
		return w.container(x, func() error {
			w.buf.WriteByte('[')
			for i, e := range x.Elems {
				if i > 0 {
					w.buf.WriteByte(',')
				}
				if err := w.value(Norm(e)); err != nil {
					return fmt.Errorf("array[%d]: %w", i, err)
				}
			}
			w.buf.WriteByte(']')
			return nil
		})
	case *Object:
		return w.container(x, func() error {
			keys := x.Keys()
			slices.SortFunc(keys, compareKeysUTF16)
			w.buf.WriteByte('{')
			for i, k := range keys {
				if i > 0 {
					w.buf.WriteByte(',')
				}
				w.str(k)
				w.buf.WriteByte(':')
				v, _ := x.GetOwn(k)
				if err := w.value(v); err != nil {
					return fmt.Errorf("object[%q]: %w", k, err)
				}
			}
			w.buf.WriteByte('}')
			return nil
		})
	case *Date:
		w.buf.WriteString(`{"$date":`)
		if t, ok := x.Time(); ok {
			w.str(t.Format("2006-01-02T15:04:05.000Z07:00"))
		} else {
			w.str("Invalid Date")
		}
		w.buf.WriteByte('}')
	case *RegExp:
		w.buf.WriteString(`{"$regexp":`)
		w.str(x.String())
		w.buf.WriteByte('}')
	case *Func:
		w.buf.WriteString(`{"$func":`)
		w.str(x.Name)
		w.buf.WriteByte('}')
	case *TypedArray:
		w.buf.WriteString(`{"$typed":`)
		w.str(x.Type.String())
		w.buf.WriteString(`,"values":[`)
		for i := 0; i < x.Len(); i++ {
			if i > 0 {
				w.buf.WriteByte(',')
			}
			w.number(float64(x.At(i).(Number)))
		}
		w.buf.WriteString("]}")
	case *ArrayBuffer:
		w.buf.WriteString(`{"$buffer":`)
		w.str(base64.StdEncoding.EncodeToString(x.Data))
		w.buf.WriteByte('}')
	case *Boxed:
		w.buf.WriteString(`{"$boxed":`)
		if err := w.value(x.Prim); err != nil {
			return err
		}
		w.buf.WriteByte('}')
	case *Blob:
		w.buf.WriteString(`{"$blob":`)
		w.str(base64.StdEncoding.EncodeToString(x.Data))
		w.buf.WriteString(`,"type":`)
		w.str(x.Type)
		w.buf.WriteByte('}')
	case *Window:
		w.buf.WriteString(`{"$window":`)
		w.str(x.Name)
		w.buf.WriteByte('}')
	default:
		if v.Kind() != KindHost {
			return fmt.Errorf("unsupported value %T of kind %s", v, v.Kind())
		}
		w.buf.WriteString(`{"$host":`)
		w.str(fmt.Sprintf("%T", v))
		w.buf.WriteByte('}')
	}
	return nil
}

func (w *canonicalWriter) container(v Value, body func() error) error {
	if w.open[v] {
		w.buf.WriteString(`{"$ref":"cycle"}`)
		return nil
	}
	w.open[v] = true
	defer delete(w.open, v)
	return body()
}

// number writes f the way ECMAScript Number.prototype.toString does.
func (w *canonicalWriter) number(f float64) {
	switch {
	case math.IsNaN(f):
		w.buf.WriteString(`{"$number":"NaN"}`)
		return
	case math.IsInf(f, 1):
		w.buf.WriteString(`{"$number":"Infinity"}`)
		return
	case math.IsInf(f, -1):
		w.buf.WriteString(`{"$number":"-Infinity"}`)
		return
	case f == 0:
		w.buf.WriteByte('0')
		return
	}
	w.buf.WriteString(FormatNumber(f))
}

// FormatNumber formats a finite number like ECMAScript: plain decimal for
// magnitudes in [1e-6, 1e21), exponent form otherwise.
func FormatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mant, exp, _ := strings.Cut(s, "e")
	sign := exp[:1]
	digits := strings.TrimLeft(exp[1:], "0")
	return mant + "e" + sign + digits
}

// str writes a JSON string per RFC 8785: only the quote, the backslash and
// control characters are escaped.
func (w *canonicalWriter) str(s string) {
	s = norm.NFC.String(s)
	w.buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			w.buf.WriteString(`\"`)
		case '\\':
			w.buf.WriteString(`\\`)
		case '\b':
			w.buf.WriteString(`\b`)
		case '\f':
			w.buf.WriteString(`\f`)
		case '\n':
			w.buf.WriteString(`\n`)
		case '\r':
			w.buf.WriteString(`\r`)
		case '\t':
			w.buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&w.buf, `\u%04x`, r)
				continue
			}
			w.buf.WriteRune(r)
		}
	}
	w.buf.WriteByte('"')
}

// compareKeysUTF16 orders strings by UTF-16 code units, which differs from
// Go's byte order for characters outside the BMP.
func compareKeysUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// SortedKeys returns the own keys of o in canonical (UTF-16) order.
func SortedKeys(o *Object) []string {
	keys := o.Keys()
	slices.SortFunc(keys, compareKeysUTF16)
	return keys
}

// dateLayout is accepted by FromGo for "$date" strings in addition to RFC 3339.
const dateLayout = "2006-01-02"

func parseDate(s string) (*Date, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return NewDate(t), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return NewDate(t), nil
}
