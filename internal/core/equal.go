package core

import (
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Kind classifies a snapshot value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
	KindOther
)

// KindOf returns the snapshot kind of v.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case string:
		return KindString
	case map[string]any:
		return KindObject
	case []any:
		return KindArray
	}
	if _, ok := ToFloat(v); ok {
		return KindNumber
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			return KindObject
		}
	case reflect.Slice, reflect.Array:
		return KindArray
	case reflect.Bool:
		return KindBool
	case reflect.String:
		return KindString
	}
	return KindOther
}

// AsObject returns v as a map keyed by field name. Maps with string keys of
// any named type are converted.
func AsObject(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	if rv.IsNil() {
		return nil, true
	}
	m := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		m[iter.Key().String()] = iter.Value().Interface()
	}
	return m, true
}

// AsArray returns v as a []any. Typed slices are converted.
func AsArray(v any) ([]any, bool) {
	if a, ok := v.([]any); ok {
		return a, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		return nil, true
	}
	a := make([]any, rv.Len())
	for i := range a {
		a[i] = rv.Index(i).Interface()
	}
	return a, true
}

// ToFloat converts any Go numeric value (and json.Number) to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case nil:
		return 0, false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// Equal reports whether a and b are structurally equal snapshot values.
// Numbers compare by value regardless of their Go type.
func Equal(a, b any) bool {
	ka, kb := KindOf(a), KindOf(b)
	if ka != kb {
		return false
	}

	switch ka {
	case KindNull:
		return true
	case KindNumber:
		fa, _ := ToFloat(a)
		fb, _ := ToFloat(b)
		return fa == fb || (math.IsNaN(fa) && math.IsNaN(fb))
	case KindBool:
		return reflect.ValueOf(a).Bool() == reflect.ValueOf(b).Bool()
	case KindString:
		return reflect.ValueOf(a).String() == reflect.ValueOf(b).String()
	case KindArray:
		aa, _ := AsArray(a)
		ab, _ := AsArray(b)
		if len(aa) != len(ab) {
			return false
		}
		for i := range aa {
			if !Equal(aa[i], ab[i]) {
				return false
			}
		}
		return true
	case KindObject:
		ma, _ := AsObject(a)
		mb, _ := AsObject(b)
		if len(ma) != len(mb) {
			return false
		}
		for k, va := range ma {
			vb, ok := mb[k]
			if !ok || !Equal(va, vb) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders two snapshot values: null < bool < number < string < other.
// Values of the same kind compare naturally; arrays and objects compare by
// their canonical encoding.
func Compare(a, b any) int {
	ka, kb := KindOf(a), KindOf(b)
	if ka != kb {
		if ka < kb {
			return -1
		}
		return 1
	}

	switch ka {
	case KindNull:
		return 0
	case KindBool:
		ba, bb := reflect.ValueOf(a).Bool(), reflect.ValueOf(b).Bool()
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	case KindNumber:
		fa, _ := ToFloat(a)
		fb, _ := ToFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case KindString:
		sa, sb := reflect.ValueOf(a).String(), reflect.ValueOf(b).String()
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		}
		return 0
	}

	ca, cb := Canonical(a), Canonical(b)
	switch {
	case ca < cb:
		return -1
	case ca > cb:
		return 1
	}
	return 0
}

// Canonical returns a deterministic string encoding of v: object keys are
// sorted and numbers are printed in their shortest float64 form, so values
// that are Equal encode identically.
func Canonical(v any) string {
	var b []byte
	b = appendCanonical(b, v)
	return string(b)
}

func appendCanonical(b []byte, v any) []byte {
	switch KindOf(v) {
	case KindNull:
		return append(b, "null"...)
	case KindBool:
		return strconv.AppendBool(b, reflect.ValueOf(v).Bool())
	case KindNumber:
		f, _ := ToFloat(v)
		return strconv.AppendFloat(b, f, 'g', -1, 64)
	case KindString:
		return strconv.AppendQuote(b, reflect.ValueOf(v).String())
	case KindArray:
		a, _ := AsArray(v)
		b = append(b, '[')
		for i, e := range a {
			if i > 0 {
				b = append(b, ',')
			}
			b = appendCanonical(b, e)
		}
		return append(b, ']')
	case KindObject:
		m, _ := AsObject(v)
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b = append(b, '{')
		for i, k := range keys {
			if i > 0 {
				b = append(b, ',')
			}
			b = strconv.AppendQuote(b, k)
			b = append(b, ':')
			b = appendCanonical(b, m[k])
		}
		return append(b, '}')
	}
	data, err := json.Marshal(v)
	if err != nil {
		return append(b, strconv.Quote(reflect.TypeOf(v).String())...)
	}
	return append(b, data...)
}

// Hash returns the structural hash of v. Values that are Equal hash equally.
func Hash(v any) uint64 {
	return xxhash.Sum64String(Canonical(v))
}
