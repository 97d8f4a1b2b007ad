package schema

import (
	"fmt"
	"reflect"
)

// ModuleRef names a registered module. It encodes as the module tag and is
// what a module passes when it registers itself as a callable singleton.
type ModuleRef string

var (
	moduleRefType = reflect.TypeOf(ModuleRef(""))
	valueType     = reflect.TypeOf(Value{})
	anyType       = reflect.TypeOf((*any)(nil)).Elem()
)

// EncodeError reports a Go type that has no boundary tag.
type EncodeError struct {
	Type   reflect.Type
	Reason string
}

func (e *EncodeError) Error() string {
	if e.Type == nil {
		return fmt.Sprintf("cannot encode type: %s", e.Reason)
	}
	return fmt.Sprintf("cannot encode type %s: %s", e.Type, e.Reason)
}

// Encode returns the tag for a Go type. It is deterministic: the same type
// always yields the same tag.
func Encode(t reflect.Type) (Tag, error) {
	if t == nil {
		return "", &EncodeError{Reason: "nil type"}
	}

	switch t {
	case moduleRefType:
		return TagModule, nil
	case valueType:
		return "", &EncodeError{Type: t, Reason: "a bare Value has no static tag; use it inside a slice or map"}
	}

	switch t.Kind() {
	case reflect.Bool:
		return TagBool, nil
	case reflect.Int32:
		return TagInt32, nil
	case reflect.Int, reflect.Int64:
		return TagInt64, nil
	case reflect.Float32:
		return TagFloat32, nil
	case reflect.Float64:
		return TagFloat64, nil
	case reflect.String:
		return TagString, nil

	case reflect.Slice:
		elem := t.Elem()
		if elem.Kind() == reflect.Uint8 {
			return TagBytes, nil
		}
		if elem == anyType || elem == valueType {
			return TagObjects, nil
		}
		et, err := Encode(elem)
		if err != nil {
			return "", &EncodeError{Type: t, Reason: fmt.Sprintf("element: %v", err)}
		}
		return ArrayOf(et), nil

	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return "", &EncodeError{Type: t, Reason: "map keys must be strings"}
		}
		elem := t.Elem()
		if elem != anyType && elem != valueType {
			if _, err := Encode(elem); err != nil {
				return "", &EncodeError{Type: t, Reason: fmt.Sprintf("map value: %v", err)}
			}
		}
		return TagMap, nil

	case reflect.Pointer:
		et, err := Encode(t.Elem())
		if err != nil {
			return "", &EncodeError{Type: t, Reason: fmt.Sprintf("pointee: %v", err)}
		}
		if et.IsNullable() {
			return "", &EncodeError{Type: t, Reason: "nested pointers are not supported"}
		}
		return NullableOf(et), nil
	}

	return "", &EncodeError{Type: t, Reason: fmt.Sprintf("unsupported kind %s", t.Kind())}
}

// EncodeOf returns the tag for the dynamic type of sample.
func EncodeOf(sample any) (Tag, error) {
	if v, ok := sample.(Value); ok {
		return v.Tag(), nil
	}
	return Encode(reflect.TypeOf(sample))
}
