package field

import (
	"fmt"
	"github.com/ValentinKolb/recstore/lib/util"
	"reflect"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Field Types
// --------------------------------------------------------------------------

// Type is the declared type of a field
type Type int

const (
	TypeAny Type = iota
	TypeString
	TypeInt
	TypeFloat
	TypeBool
	TypeTime
	TypeSlice
	TypeMap
)

func (t Type) String() string {
	switch t {
	case TypeAny:
		return "any"
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeTime:
		return "time"
	case TypeSlice:
		return "slice"
	case TypeMap:
		return "map"
	default:
		return "unknown"
	}
}

// ParseType converts the name of a type (as used in definition files) to a Type
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "any":
		return TypeAny, nil
	case "string", "str":
		return TypeString, nil
	case "int", "integer":
		return TypeInt, nil
	case "float", "number":
		return TypeFloat, nil
	case "bool", "boolean":
		return TypeBool, nil
	case "time", "date", "datetime":
		return TypeTime, nil
	case "slice", "array", "list":
		return TypeSlice, nil
	case "map", "object":
		return TypeMap, nil
	default:
		return TypeAny, fmt.Errorf("unknown field type %q", name)
	}
}

// Ordered reports whether values of this type have a numeric order key
// and can therefore be used in a B-tree index.
func (t Type) Ordered() bool {
	return t == TypeAny || t == TypeInt || t == TypeFloat || t == TypeTime
}

// Check reports whether v is a valid value for the type.
// nil is accepted by every type, missing values are handled by the required rule.
func (t Type) Check(v interface{}) bool {
	if v == nil {
		return true
	}
	switch t {
	case TypeAny:
		return true
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeInt:
		return util.IsIntegral(v)
	case TypeFloat:
		_, ok := util.ToFloat(v)
		return ok
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeTime:
		switch v.(type) {
		case time.Time, *time.Time:
			return true
		}
		return false
	case TypeSlice:
		k := reflect.TypeOf(v).Kind()
		return k == reflect.Slice || k == reflect.Array
	case TypeMap:
		return reflect.TypeOf(v).Kind() == reflect.Map
	default:
		return false
	}
}
