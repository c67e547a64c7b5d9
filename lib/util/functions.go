package util

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Value Normalisation
// --------------------------------------------------------------------------

// ToFloat converts any numeric value to float64.
// The boolean indicates whether v was numeric.
func ToFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
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
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// IsIntegral reports whether v is an integer type or a float without fractional part
func IsIntegral(v interface{}) bool {
	switch n := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return !math.IsInf(float64(n), 0) && float64(n) == math.Trunc(float64(n))
	case float64:
		return !math.IsInf(n, 0) && n == math.Trunc(n)
	default:
		return false
	}
}

// OrderKey returns the ordered numeric key of a value: numbers as float64 and
// dates as epoch milliseconds. The boolean is false for values without an order key.
func OrderKey(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case time.Time:
		return float64(t.UnixMilli()), true
	case *time.Time:
		if t == nil {
			return 0, false
		}
		return float64(t.UnixMilli()), true
	default:
		return ToFloat(v)
	}
}

// nanKey is the single key shared by all NaN values
type nanKey struct{}

// encodedKey is used as map key for values that are not comparable
type encodedKey struct {
	kind string
	repr string
}

// dateKey separates dates from numbers with the same epoch value
type dateKey int64

// NumberKey normalizes a number so that equal values share one comparable key.
// Integers (and floats without fractional part in the int64 range) map to int64,
// unsigned values above math.MaxInt64 stay uint64 and the remaining floats stay
// float64. All NaN values share one key. The boolean is false for non numeric values.
func NumberKey(v interface{}) (interface{}, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u <= math.MaxInt64 {
			return int64(u), true
		}
		return u, true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		switch {
		case math.IsNaN(f):
			return nanKey{}, true
		case f == math.Trunc(f) && f >= -(1<<63) && f < 1<<63:
			return int64(f), true
		case f == math.Trunc(f) && f >= 1<<63 && f < 1<<64:
			return uint64(f), true
		}
		return f, true
	default:
		return nil, false
	}
}

// HashKey normalizes a value so that it can be used as a map key.
// Numbers of different types with the same value map to the same key (see NumberKey),
// dates map to their epoch milliseconds and values that are not comparable (slices, maps)
// map to an unambiguous encoding of their contents.
func HashKey(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	if k, ok := NumberKey(v); ok {
		return k
	}
	switch t := v.(type) {
	case time.Time:
		return dateKey(t.UnixMilli())
	case *time.Time:
		if t == nil {
			return nil
		}
		return dateKey(t.UnixMilli())
	}
	rt := reflect.TypeOf(v)
	if rt.Comparable() {
		return v
	}
	var b strings.Builder
	encodeKey(&b, reflect.ValueOf(v))
	return encodedKey{kind: rt.String(), repr: b.String()}
}

// encodeKey writes a type tagged representation of v. Strings are quoted, so
// separators inside elements cannot be confused with element boundaries.
func encodeKey(b *strings.Builder, rv reflect.Value) {
	for rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			b.WriteString("nil")
			return
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		b.WriteString("nil")
		return
	}
	if rv.CanInterface() {
		if k, ok := NumberKey(rv.Interface()); ok {
			fmt.Fprintf(b, "n:%v", k)
			return
		}
		if t, ok := rv.Interface().(time.Time); ok {
			fmt.Fprintf(b, "d:%d", t.UnixMilli())
			return
		}
	}
	switch rv.Kind() {
	case reflect.String:
		b.WriteString("s:")
		b.WriteString(strconv.Quote(rv.String()))
	case reflect.Bool:
		fmt.Fprintf(b, "b:%t", rv.Bool())
	case reflect.Slice, reflect.Array:
		b.WriteByte('[')
		for i := 0; i < rv.Len(); i++ {
			if i > 0 {
				b.WriteByte(',')
			}
			encodeKey(b, rv.Index(i))
		}
		b.WriteByte(']')
	case reflect.Map:
		entries := make([]string, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			var e strings.Builder
			encodeKey(&e, iter.Key())
			e.WriteByte(':')
			encodeKey(&e, iter.Value())
			entries = append(entries, e.String())
		}
		sort.Strings(entries)
		b.WriteByte('{')
		b.WriteString(strings.Join(entries, ","))
		b.WriteByte('}')
	case reflect.Struct:
		b.WriteString(rv.Type().String())
		b.WriteByte('{')
		for i := 0; i < rv.NumField(); i++ {
			if i > 0 {
				b.WriteByte(',')
			}
			encodeKey(b, rv.Field(i))
		}
		b.WriteByte('}')
	default:
		fmt.Fprintf(b, "%s:%#v", rv.Type(), rv)
	}
}

// Comparable reports whether v can be used as a map key without panicking
func Comparable(v interface{}) bool {
	if v == nil {
		return false
	}
	return reflect.TypeOf(v).Comparable()
}

// DeepCopy copies nested []interface{} and map[string]interface{} values as well as
// other slices and maps (via reflection). Scalar values are returned unchanged.
func DeepCopy(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = DeepCopy(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = DeepCopy(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(out, rv)
		return out.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), iter.Value())
		}
		return out.Interface()
	default:
		return v
	}
}

// Equal compares two field values. Numbers are compared by value (NaN equals NaN),
// dates with time.Equal, slices and maps by their HashKey and everything else with
// reflect.DeepEqual.
func Equal(a, b interface{}) bool {
	if ka, ok := NumberKey(a); ok {
		kb, ok := NumberKey(b)
		return ok && ka == kb
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	if !Comparable(a) || !Comparable(b) {
		return HashKey(a) == HashKey(b)
	}
	return reflect.DeepEqual(a, b)
}
