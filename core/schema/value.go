package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Value is a tagged argument or return value crossing the boundary.
// The zero Value is invalid and assignable to nothing.
type Value struct {
	tag  Tag
	v    any
	null bool
}

func Bool(b bool) Value       { return Value{tag: TagBool, v: b} }
func Int32(i int32) Value     { return Value{tag: TagInt32, v: i} }
func Int64(i int64) Value     { return Value{tag: TagInt64, v: i} }
func Float32(f float32) Value { return Value{tag: TagFloat32, v: f} }
func Float64(f float64) Value { return Value{tag: TagFloat64, v: f} }
func String(s string) Value   { return Value{tag: TagString, v: s} }

// Bytes copies b.
func Bytes(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{tag: TagBytes, v: cp}
}

// ModuleRefValue references a registered module by name.
func ModuleRefValue(name string) Value {
	return Value{tag: TagModule, v: ModuleRef(name)}
}

// Array builds a homogeneous array of elem. Element conformance is checked
// by AssignableTo, not here.
func Array(elem Tag, items ...Value) Value {
	return Value{tag: ArrayOf(elem), v: cloneValues(items)}
}

// Objects builds a heterogeneous object array.
func Objects(items ...Value) Value {
	return Value{tag: TagObjects, v: cloneValues(items)}
}

// Map builds a string-keyed map. The map is copied.
func Map(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{tag: TagMap, v: cp}
}

// Null returns the null value of the nullable form of elem.
func Null(elem Tag) Value {
	return Value{tag: NullableOf(elem), null: true}
}

// Tag returns the dynamic tag of v.
func (v Value) Tag() Tag {
	return v.tag
}

// IsNull reports whether v is a null.
func (v Value) IsNull() bool {
	return v.null
}

// IsZero reports whether v is the invalid zero Value.
func (v Value) IsZero() bool {
	return v.tag == ""
}

// AssignableTo reports whether v may be passed for a parameter tagged p.
func (v Value) AssignableTo(p Tag) bool {
	if v.IsZero() || p == TagVoid || !p.Valid() {
		return false
	}
	if v.null {
		return p.IsNullable() && v.tag == p
	}

	switch p.Kind() {
	case KindNullable:
		return v.AssignableTo(p.Elem())
	case KindObjects:
		_, ok := v.v.([]Value)
		return ok && v.wellFormed()
	case KindMap:
		return v.tag == TagMap && v.wellFormed()
	case KindArray:
		items, ok := v.v.([]Value)
		if !ok {
			return false
		}
		elem := p.Elem()
		for _, item := range items {
			if !item.AssignableTo(elem) {
				return false
			}
		}
		return true
	}
	return v.tag == p
}

// wellFormed reports whether v and every value nested in it are non-zero.
func (v Value) wellFormed() bool {
	if v.IsZero() {
		return false
	}
	switch x := v.v.(type) {
	case []Value:
		for _, item := range x {
			if !item.wellFormed() {
				return false
			}
		}
	case map[string]Value:
		for _, item := range x {
			if !item.wellFormed() {
				return false
			}
		}
	}
	return true
}

func (v Value) AsBool() (bool, bool) {
	b, ok := v.v.(bool)
	return b, ok
}

func (v Value) AsInt32() (int32, bool) {
	i, ok := v.v.(int32)
	return i, ok
}

// AsInt64 also widens int32 values.
func (v Value) AsInt64() (int64, bool) {
	switch i := v.v.(type) {
	case int64:
		return i, true
	case int32:
		return int64(i), true
	}
	return 0, false
}

// AsFloat64 also widens float32 values.
func (v Value) AsFloat64() (float64, bool) {
	switch f := v.v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	}
	return 0, false
}

func (v Value) AsString() (string, bool) {
	s, ok := v.v.(string)
	return s, ok
}

func (v Value) AsBytes() ([]byte, bool) {
	b, ok := v.v.([]byte)
	if !ok {
		return nil, false
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp, true
}

func (v Value) AsModuleRef() (ModuleRef, bool) {
	r, ok := v.v.(ModuleRef)
	return r, ok
}

// Items returns a copy of the elements of an array value.
func (v Value) Items() []Value {
	items, _ := v.v.([]Value)
	return cloneValues(items)
}

// Entries returns a copy of the entries of a map value.
func (v Value) Entries() map[string]Value {
	m, ok := v.v.(map[string]Value)
	if !ok {
		return nil
	}
	cp := make(map[string]Value, len(m))
	for k, e := range m {
		cp[k] = e
	}
	return cp
}

// Interface returns v as a plain Go value. Arrays become []any and maps
// become map[string]any.
func (v Value) Interface() any {
	if v.null || v.IsZero() {
		return nil
	}
	switch x := v.v.(type) {
	case []Value:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = item.Interface()
		}
		return out
	case map[string]Value:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = item.Interface()
		}
		return out
	case []byte:
		cp := make([]byte, len(x))
		copy(cp, x)
		return cp
	}
	return v.v
}

func (v Value) String() string {
	switch {
	case v.IsZero():
		return "<invalid>"
	case v.null:
		return v.tag.String() + "(null)"
	}
	switch x := v.v.(type) {
	case []Value:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = item.String()
		}
		return fmt.Sprintf("%s[%s]", v.tag, strings.Join(parts, ", "))
	case map[string]Value:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + x[k].String()
		}
		return fmt.Sprintf("map{%s}", strings.Join(parts, ", "))
	case string:
		return fmt.Sprintf("%s(%q)", v.tag, x)
	}
	return fmt.Sprintf("%s(%v)", v.tag, v.v)
}

// FromGo converts a native Go value to a Value using the encoder's type
// mapping. A nil pointer becomes a typed null.
func FromGo(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Value{}, fmt.Errorf("cannot convert untyped nil")
	case Value:
		return t, nil
	case ModuleRef:
		return ModuleRefValue(string(t)), nil
	case bool:
		return Bool(t), nil
	case int32:
		return Int32(t), nil
	case int64:
		return Int64(t), nil
	case int:
		return Int64(int64(t)), nil
	case float32:
		return Float32(t), nil
	case float64:
		return Float64(t), nil
	case string:
		return String(t), nil
	case []byte:
		return Bytes(t), nil
	}
	return fromReflect(reflect.ValueOf(x))
}

func fromReflect(rv reflect.Value) (Value, error) {
	tag, err := Encode(rv.Type())
	if err != nil {
		return Value{}, err
	}

	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int32:
		return Int32(int32(rv.Int())), nil
	case reflect.Int, reflect.Int64:
		return Int64(rv.Int()), nil
	case reflect.Float32:
		return Float32(float32(rv.Float())), nil
	case reflect.Float64:
		return Float64(rv.Float()), nil
	case reflect.String:
		if tag == TagModule {
			return ModuleRefValue(rv.String()), nil
		}
		return String(rv.String()), nil

	case reflect.Slice:
		if tag == TagBytes {
			return Bytes(rv.Bytes()), nil
		}
		items := make([]Value, rv.Len())
		for i := range items {
			item, err := fromElem(rv.Index(i))
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = item
		}
		if tag == TagObjects {
			return Objects(items...), nil
		}
		return Array(tag.Elem(), items...), nil

	case reflect.Map:
		m := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			item, err := fromElem(iter.Value())
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", iter.Key().String(), err)
			}
			m[iter.Key().String()] = item
		}
		return Map(m), nil

	case reflect.Pointer:
		if rv.IsNil() {
			return Null(tag.Elem()), nil
		}
		return fromReflect(rv.Elem())
	}
	return Value{}, &EncodeError{Type: rv.Type(), Reason: "no value conversion"}
}

// fromElem unwraps interface elements before converting.
func fromElem(rv reflect.Value) (Value, error) {
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return Value{}, fmt.Errorf("nil element has no type")
		}
		return FromGo(rv.Interface())
	}
	if rv.Type() == valueType {
		return rv.Interface().(Value), nil
	}
	return fromReflect(rv)
}

// toReflect converts v into a Go value of type rt.
func toReflect(v Value, rt reflect.Type) (reflect.Value, error) {
	if rt == valueType {
		return reflect.ValueOf(v), nil
	}
	mismatch := func() (reflect.Value, error) {
		return reflect.Value{}, fmt.Errorf("cannot use %s as %s", v.tag, rt)
	}
	if v.IsZero() {
		return reflect.Value{}, fmt.Errorf("cannot use the zero Value as %s", rt)
	}

	if rt == anyType {
		if v.null {
			return reflect.Zero(rt), nil
		}
		x := v.Interface()
		if x == nil {
			return mismatch()
		}
		return reflect.ValueOf(x), nil
	}

	switch rt.Kind() {
	case reflect.Pointer:
		if v.null {
			return reflect.Zero(rt), nil
		}
		inner, err := toReflect(v, rt.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(rt.Elem())
		p.Elem().Set(inner)
		return p, nil

	case reflect.Bool:
		b, ok := v.AsBool()
		if !ok {
			return mismatch()
		}
		return reflect.ValueOf(b).Convert(rt), nil

	case reflect.Int32:
		i, ok := v.AsInt32()
		if !ok {
			return mismatch()
		}
		return reflect.ValueOf(i).Convert(rt), nil

	case reflect.Int, reflect.Int64:
		i, ok := v.AsInt64()
		if !ok {
			return mismatch()
		}
		return reflect.ValueOf(i).Convert(rt), nil

	case reflect.Float32:
		f, ok := v.v.(float32)
		if !ok {
			return mismatch()
		}
		return reflect.ValueOf(f).Convert(rt), nil

	case reflect.Float64:
		f, ok := v.AsFloat64()
		if !ok {
			return mismatch()
		}
		return reflect.ValueOf(f).Convert(rt), nil

	case reflect.String:
		if rt == moduleRefType {
			r, ok := v.AsModuleRef()
			if !ok {
				return mismatch()
			}
			return reflect.ValueOf(r), nil
		}
		s, ok := v.AsString()
		if !ok {
			return mismatch()
		}
		return reflect.ValueOf(s).Convert(rt), nil

	case reflect.Slice:
		if rt.Elem().Kind() == reflect.Uint8 {
			b, ok := v.AsBytes()
			if !ok {
				return mismatch()
			}
			return reflect.ValueOf(b).Convert(rt), nil
		}
		items, ok := v.v.([]Value)
		if !ok {
			return mismatch()
		}
		out := reflect.MakeSlice(rt, len(items), len(items))
		for i, item := range items {
			ev, err := toReflect(item, rt.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			out.Index(i).Set(ev)
		}
		return out, nil

	case reflect.Map:
		entries, ok := v.v.(map[string]Value)
		if !ok {
			return mismatch()
		}
		out := reflect.MakeMapWithSize(rt, len(entries))
		for k, item := range entries {
			ev, err := toReflect(item, rt.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(rt.Key()), ev)
		}
		return out, nil
	}
	return mismatch()
}

func cloneValues(items []Value) []Value {
	out := make([]Value, len(items))
	copy(out, items)
	return out
}
