package field

import (
	"github.com/ValentinKolb/recstore/lib/common"
	"github.com/ValentinKolb/recstore/lib/util"
	"reflect"
)

// ManagedValue gives controlled access to compound field values (slices, maps, dates).
//
// The wrapped value is never mutated in place: every method works on a copy and stores
// the result through Field.Set, so the new value is validated, logged and reported
// like any other assignment.
type ManagedValue struct {
	f *Field
}

// Field returns the wrapped field
func (m *ManagedValue) Field() *Field { return m.f }

// Get returns a deep copy of the current value
func (m *ManagedValue) Get() interface{} {
	return util.DeepCopy(m.f.Value())
}

// Set assigns v to the wrapped field
func (m *ManagedValue) Set(v interface{}) error {
	return m.f.Set(v)
}

// Mutate passes a copy of the current value to fn and assigns the result
func (m *ManagedValue) Mutate(fn func(v interface{}) interface{}) error {
	return m.f.Set(fn(m.Get()))
}

// Len returns the length of a slice or map value (0 for other values)
func (m *ManagedValue) Len() int {
	rv := reflect.ValueOf(m.f.Value())
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len()
	}
	return 0
}

// Append adds items to the end of a slice value. An unset value becomes a []interface{}.
func (m *ManagedValue) Append(items ...interface{}) error {
	cur := m.Get()
	if cur == nil {
		return m.f.Set(append([]interface{}{}, items...))
	}
	if s, ok := cur.([]interface{}); ok {
		return m.f.Set(append(s, items...))
	}

	rv := reflect.ValueOf(cur)
	if rv.Kind() != reflect.Slice {
		return common.Errorf(common.ErrCValidation, m.f.Name(), "append requires a slice value, got %T", cur)
	}
	elem := rv.Type().Elem()
	for _, item := range items {
		iv := reflect.ValueOf(item)
		if !iv.IsValid() || !iv.Type().AssignableTo(elem) {
			return common.Errorf(common.ErrCValidation, m.f.Name(), "cannot append %T to %s", item, rv.Type())
		}
		rv = reflect.Append(rv, iv)
	}
	return m.f.Set(rv.Interface())
}

// Shift removes the first element of a slice value and returns it
func (m *ManagedValue) Shift() (interface{}, error) {
	rv := reflect.ValueOf(m.Get())
	if rv.Kind() != reflect.Slice {
		return nil, common.Errorf(common.ErrCValidation, m.f.Name(), "shift requires a slice value, got %s", rv.Kind())
	}
	if rv.Len() == 0 {
		return nil, nil
	}
	first := rv.Index(0).Interface()
	if err := m.f.Set(rv.Slice(1, rv.Len()).Interface()); err != nil {
		return nil, err
	}
	return first, nil
}

// Put sets key to v in a map value. An unset value becomes a map[string]interface{}.
func (m *ManagedValue) Put(key string, v interface{}) error {
	cur := m.Get()
	if cur == nil {
		return m.f.Set(map[string]interface{}{key: v})
	}
	if mp, ok := cur.(map[string]interface{}); ok {
		mp[key] = v
		return m.f.Set(mp)
	}

	rv := reflect.ValueOf(cur)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return common.Errorf(common.ErrCValidation, m.f.Name(), "put requires a map with string keys, got %T", cur)
	}
	if rv.IsNil() {
		rv = reflect.MakeMap(rv.Type())
	}
	vv := reflect.ValueOf(v)
	if !vv.IsValid() || !vv.Type().AssignableTo(rv.Type().Elem()) {
		return common.Errorf(common.ErrCValidation, m.f.Name(), "cannot put %T into %s", v, rv.Type())
	}
	rv.SetMapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()), vv)
	return m.f.Set(rv.Interface())
}

// Delete removes key from a map value. Deleting a missing key is a no-op without events.
func (m *ManagedValue) Delete(key string) error {
	cur := m.Get()
	rv := reflect.ValueOf(cur)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return common.Errorf(common.ErrCValidation, m.f.Name(), "delete requires a map with string keys, got %T", cur)
	}
	k := reflect.ValueOf(key).Convert(rv.Type().Key())
	if !rv.MapIndex(k).IsValid() {
		return nil
	}
	rv.SetMapIndex(k, reflect.Value{})
	return m.f.Set(rv.Interface())
}
