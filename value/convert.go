package value

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// FuncResolver maps a "$func" name found in decoded data to a function value.
// Returning nil makes FromGo create an inert function with that name.
type FuncResolver func(name string) *Func

// Decoder converts generic Go data (as produced by YAML, JSON or CUE decoding)
// into values. Maps with a single "$tag" key use the tagged forms written by
// MarshalCanonical, so canonical output decodes back to an equal value.
type Decoder struct {
	Funcs FuncResolver
}

// FromGo converts generic Go data with the default Decoder.
func FromGo(v any) (Value, error) {
	return Decoder{}.FromGo(v)
}

// FromGo converts v. Plain map keys are inserted in UTF-16 order because Go
// maps carry no order of their own.
func (d Decoder) FromGo(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case int:
		return Number(x), nil
	case int8:
		return Number(x), nil
	case int16:
		return Number(x), nil
	case int32:
		return Number(x), nil
	case int64:
		return Number(x), nil
	case uint:
		return Number(x), nil
	case uint8:
		return Number(x), nil
	case uint16:
		return Number(x), nil
	case uint32:
		return Number(x), nil
	case uint64:
		return Number(x), nil
	case float32:
		return Number(x), nil
	case float64:
		return Number(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", x, err)
		}
		return Number(f), nil
	case time.Time:
		return NewDate(x), nil
	case []byte:
		return &ArrayBuffer{Data: append([]byte(nil), x...)}, nil
	case []any:
		arr := &Array{Elems: make([]Value, len(x))}
		for i, e := range x {
			ev, err := d.FromGo(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr.Elems[i] = ev
		}
		return arr, nil
	case map[string]any:
		return d.fromMap(x)
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[fmt.Sprint(k)] = e
		}
		return d.fromMap(m)
	}
	return nil, fmt.Errorf("unsupported type %T", v)
}

func (d Decoder) fromMap(m map[string]any) (Value, error) {
	if tagged, ok, err := d.fromTagged(m); ok || err != nil {
		return tagged, err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysUTF16)

	obj := NewObject()
	for _, k := range keys {
		ev, err := d.FromGo(m[k])
		if err != nil {
			return nil, fmt.Errorf("[%q]: %w", k, err)
		}
		obj.Set(k, ev)
	}
	return obj, nil
}

var valueTags = []string{
	"$undefined", "$null", "$number", "$date", "$regexp", "$func",
	"$typed", "$buffer", "$boxed", "$blob", "$window",
}

// fromTagged decodes the tagged object forms. ok is false for ordinary maps.
func (d Decoder) fromTagged(m map[string]any) (Value, bool, error) {
	tag := ""
	for _, t := range valueTags {
		if _, ok := m[t]; ok {
			tag = t
			break
		}
	}
	if tag == "" {
		return nil, false, nil
	}
	raw := m[tag]

	switch tag {
	case "$undefined":
		return Undefined{}, true, nil
	case "$null":
		return Null{}, true, nil
	case "$number":
		switch fmt.Sprint(raw) {
		case "NaN":
			return NaN(), true, nil
		case "Infinity", "+Infinity":
			return Number(math.Inf(1)), true, nil
		case "-Infinity":
			return Number(math.Inf(-1)), true, nil
		}
		return nil, true, fmt.Errorf("$number: unknown special number %v", raw)
	case "$date":
		switch x := raw.(type) {
		case string:
			if x == "Invalid Date" {
				return InvalidDate(), true, nil
			}
			dt, err := parseDate(x)
			return dt, true, err
		case time.Time:
			return NewDate(x), true, nil
		default:
			n, err := d.FromGo(raw)
			if err != nil {
				return nil, true, fmt.Errorf("$date: %w", err)
			}
			if ms, ok := n.(Number); ok {
				return DateFromMillis(float64(ms)), true, nil
			}
			return nil, true, fmt.Errorf("$date: expected string or number, got %T", raw)
		}
	case "$regexp":
		s, ok := raw.(string)
		if !ok {
			return nil, true, fmt.Errorf("$regexp: expected string, got %T", raw)
		}
		return parseRegExp(s), true, nil
	case "$func":
		name := fmt.Sprint(raw)
		if d.Funcs != nil {
			if f := d.Funcs(name); f != nil {
				return f, true, nil
			}
		}
		return NewFunc(name, nil), true, nil
	case "$typed":
		t, ok := ParseElementType(fmt.Sprint(raw))
		if !ok {
			return nil, true, fmt.Errorf("$typed: unknown element type %v", raw)
		}
		vals, _ := m["values"].([]any)
		ta := NewTypedArray(t, len(vals))
		for i, e := range vals {
			n, err := d.FromGo(e)
			if err != nil {
				return nil, true, fmt.Errorf("$typed[%d]: %w", i, err)
			}
			num, ok := n.(Number)
			if !ok {
				return nil, true, fmt.Errorf("$typed[%d]: expected number", i)
			}
			ta.SetAt(i, float64(num))
		}
		return ta, true, nil
	case "$buffer":
		data, err := decodeBytes(raw)
		if err != nil {
			return nil, true, fmt.Errorf("$buffer: %w", err)
		}
		return &ArrayBuffer{Data: data}, true, nil
	case "$boxed":
		p, err := d.FromGo(raw)
		if err != nil {
			return nil, true, fmt.Errorf("$boxed: %w", err)
		}
		return NewBoxed(p), true, nil
	case "$blob":
		data, err := decodeBytes(raw)
		if err != nil {
			return nil, true, fmt.Errorf("$blob: %w", err)
		}
		mime, _ := m["type"].(string)
		return &Blob{Data: data, Type: mime}, true, nil
	case "$window":
		return &Window{Name: fmt.Sprint(raw)}, true, nil
	}
	return nil, false, nil
}

func parseRegExp(s string) *RegExp {
	if strings.HasPrefix(s, "/") {
		if i := strings.LastIndex(s, "/"); i > 0 {
			return NewRegExp(s[1:i], s[i+1:])
		}
	}
	return NewRegExp(s, "")
}

// decodeBytes accepts base64 text or a list of byte values.
func decodeBytes(raw any) ([]byte, error) {
	switch x := raw.(type) {
	case string:
		return base64.StdEncoding.DecodeString(x)
	case []any:
		out := make([]byte, len(x))
		for i, e := range x {
			n, err := FromGo(e)
			if err != nil {
				return nil, err
			}
			num, ok := n.(Number)
			if !ok {
				return nil, fmt.Errorf("[%d]: expected number", i)
			}
			out[i] = byte(toInt(float64(num)))
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected base64 string or byte list, got %T", raw)
}
