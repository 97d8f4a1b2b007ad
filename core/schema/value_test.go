package schema

import (
	"reflect"
	"testing"
)

func TestValueAssignableTo(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		param Tag
		want  bool
	}{
		{"int32 to int32", Int32(42), TagInt32, true},
		{"int32 to int64", Int32(42), TagInt64, false},
		{"string to int32", String("42"), TagInt32, false},
		{"string to string", String("gold"), TagString, true},
		{"bytes to bytes", Bytes([]byte{1}), TagBytes, true},
		{"module ref", ModuleRefValue("Foo"), TagModule, true},
		{"string to nullable string", String("x"), "?string", true},
		{"null to nullable string", Null(TagString), "?string", true},
		{"null to string", Null(TagString), TagString, false},
		{"null int32 to nullable string", Null(TagInt32), "?string", false},
		{"typed array", Array(TagInt32, Int32(1), Int32(2)), "[]int32", true},
		{"typed array wrong elem", Array(TagInt32, Int32(1), String("2")), "[]int32", false},
		{"empty array", Array(TagString), "[]string", true},
		{"array to objects", Array(TagInt32, Int32(1)), TagObjects, true},
		{"objects to objects", Objects(Int32(1), String("a")), TagObjects, true},
		{"homogeneous objects to array", Objects(String("a")), "[]string", true},
		{"mixed objects to array", Objects(String("a"), Int32(1)), "[]string", false},
		{"scalar to array", Int32(1), "[]int32", false},
		{"map to map", Map(map[string]Value{"k": Int32(1)}), TagMap, true},
		{"map to objects", Map(nil), TagObjects, false},
		{"zero value", Value{}, TagInt32, false},
		{"objects with zero item", Objects(Value{}), TagObjects, false},
		{"objects with nested zero item", Objects(Objects(Int32(1), Value{})), TagObjects, false},
		{"map with zero entry", Map(map[string]Value{"k": {}}), TagMap, false},
		{"map with nested zero entry", Map(map[string]Value{"k": Objects(Value{})}), TagMap, false},
		{"array to map", Array(TagInt32), TagMap, false},
		{"anything to void", Int32(1), TagVoid, false},
		{"invalid param", Int32(1), "uint8", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.value.AssignableTo(tt.param); got != tt.want {
				t.Errorf("%s.AssignableTo(%q) = %v, want %v", tt.value, tt.param, got, tt.want)
			}
		})
	}
}

func TestBytesCopies(t *testing.T) {
	src := []byte{1, 2, 3}
	v := Bytes(src)
	src[0] = 9

	got, ok := v.AsBytes()
	if !ok || got[0] != 1 {
		t.Errorf("AsBytes() = %v, want a copy starting with 1", got)
	}
	got[1] = 9
	again, _ := v.AsBytes()
	if again[1] != 2 {
		t.Error("AsBytes() should return a fresh copy")
	}
}

func TestFromGo(t *testing.T) {
	var nilStr *string
	name := "gold"

	tests := []struct {
		name  string
		input any
		want  Tag
	}{
		{"int32", int32(5), TagInt32},
		{"int", 5, TagInt64},
		{"float64", 1.5, TagFloat64},
		{"string", "x", TagString},
		{"bytes", []byte("x"), TagBytes},
		{"module ref", ModuleRef("Foo"), TagModule},
		{"named int32", score(3), TagInt32},
		{"string slice", []string{"a", "b"}, "[]string"},
		{"any slice", []any{int32(1), "a"}, TagObjects},
		{"map", map[string]any{"a": int32(1)}, TagMap},
		{"nil pointer", nilStr, "?string"},
		{"pointer", &name, TagString},
		{"value passthrough", Int32(9), TagInt32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := FromGo(tt.input)
			if err != nil {
				t.Fatalf("FromGo() error = %v", err)
			}
			if v.Tag() != tt.want {
				t.Errorf("FromGo().Tag() = %q, want %q", v.Tag(), tt.want)
			}
		})
	}

	if _, err := FromGo(nil); err == nil {
		t.Error("FromGo(nil) should fail")
	}
	if _, err := FromGo(struct{}{}); err == nil {
		t.Error("FromGo(struct) should fail")
	}
	if _, err := FromGo([]any{nil}); err == nil {
		t.Error("FromGo([]any{nil}) should fail")
	}
}

func TestValueInterface(t *testing.T) {
	v := Map(map[string]Value{
		"scores": Array(TagInt32, Int32(1), Int32(2)),
		"name":   String("gold"),
		"none":   Null(TagString),
	})

	want := map[string]any{
		"scores": []any{int32(1), int32(2)},
		"name":   "gold",
		"none":   nil,
	}
	if got := v.Interface(); !reflect.DeepEqual(got, want) {
		t.Errorf("Interface() = %#v, want %#v", got, want)
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		value Value
		want  string
	}{
		{Int32(42), "int32(42)"},
		{String("gold"), `string("gold")`},
		{Null(TagString), "?string(null)"},
		{Array(TagInt32, Int32(1)), "[]int32[int32(1)]"},
		{Map(map[string]Value{"b": Bool(true), "a": Int64(1)}), "map{a: int64(1), b: bool(true)}"},
		{Value{}, "<invalid>"},
	}

	for _, tt := range tests {
		if got := tt.value.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestNumericWidening(t *testing.T) {
	if i, ok := Int32(7).AsInt64(); !ok || i != 7 {
		t.Errorf("Int32.AsInt64() = %d, %v", i, ok)
	}
	if f, ok := Float32(1.5).AsFloat64(); !ok || f != 1.5 {
		t.Errorf("Float32.AsFloat64() = %v, %v", f, ok)
	}
	if _, ok := Int64(7).AsInt32(); ok {
		t.Error("Int64.AsInt32() should not narrow")
	}
}
