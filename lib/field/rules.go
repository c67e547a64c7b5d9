package field

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/recstore/lib/util"
	"reflect"
	"regexp"
)

// Rule is a single named check of a field value. Check returns nil if the value passes.
type Rule struct {
	Name  string
	Check func(v interface{}) error
}

// Predicate creates a custom rule from a boolean function
func Predicate(name string, fn func(v interface{}) bool) Rule {
	return Rule{
		Name: name,
		Check: func(v interface{}) error {
			if fn(v) {
				return nil
			}
			return fmt.Errorf("value %v does not satisfy %s", v, name)
		},
	}
}

// Limit returns a pointer to f, for Config.Min and Config.Max
func Limit(f float64) *float64 {
	return &f
}

// errRequired is returned by the required rule
var errRequired = errors.New("value is required")

// --------------------------------------------------------------------------
// Built-in rules
// --------------------------------------------------------------------------

// The built-in rules below (except requiredRule) accept nil, a missing value is only
// an error for required fields.

func requiredRule() Rule {
	return Rule{Name: "required", Check: func(v interface{}) error {
		if v == nil {
			return errRequired
		}
		if s, ok := v.(string); ok && s == "" {
			return errRequired
		}
		return nil
	}}
}

func typeRule(t Type) Rule {
	return Rule{Name: "type", Check: func(v interface{}) error {
		if !t.Check(v) {
			return fmt.Errorf("expected %s, got %T", t, v)
		}
		return nil
	}}
}

func patternRule(re *regexp.Regexp) Rule {
	return Rule{Name: "pattern", Check: func(v interface{}) error {
		if v == nil {
			return nil
		}
		s, ok := v.(string)
		if !ok || !re.MatchString(s) {
			return fmt.Errorf("value %v does not match %s", v, re)
		}
		return nil
	}}
}

// magnitude returns the value that min/max are compared with:
// numbers are compared by value, strings, slices and maps by length.
func magnitude(v interface{}) (float64, bool) {
	if f, ok := util.ToFloat(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		return float64(len([]rune(s))), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return float64(rv.Len()), true
	}
	return 0, false
}

func rangeRule(min, max *float64) Rule {
	return Rule{Name: "range", Check: func(v interface{}) error {
		if v == nil {
			return nil
		}
		m, ok := magnitude(v)
		if !ok {
			return fmt.Errorf("value %v has no magnitude", v)
		}
		if min != nil && m < *min {
			return fmt.Errorf("value %v is below minimum %v", v, *min)
		}
		if max != nil && m > *max {
			return fmt.Errorf("value %v is above maximum %v", v, *max)
		}
		return nil
	}}
}

func valueSet(values []interface{}) map[interface{}]struct{} {
	set := make(map[interface{}]struct{}, len(values))
	for _, v := range values {
		set[util.HashKey(v)] = struct{}{}
	}
	return set
}

func enumRule(values []interface{}) Rule {
	set := valueSet(values)
	return Rule{Name: "enum", Check: func(v interface{}) error {
		if v == nil {
			return nil
		}
		if _, ok := set[util.HashKey(v)]; !ok {
			return fmt.Errorf("value %v is not one of %v", v, values)
		}
		return nil
	}}
}

func rejectRule(values []interface{}) Rule {
	set := valueSet(values)
	return Rule{Name: "reject", Check: func(v interface{}) error {
		if v == nil {
			return nil
		}
		if _, ok := set[util.HashKey(v)]; ok {
			return fmt.Errorf("value %v is rejected", v)
		}
		return nil
	}}
}
