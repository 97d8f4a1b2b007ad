package schema

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestExposeDerivesSignature(t *testing.T) {
	tests := []struct {
		name    string
		fn      any
		params  []Tag
		returns Tag
	}{
		{"no args no result", func() {}, []Tag{}, TagVoid},
		{"scalar", func(a int32, b string) bool { return true }, []Tag{TagInt32, TagString}, TagBool},
		{"context first", func(ctx context.Context, n int) (string, error) { return "", nil }, []Tag{TagInt64}, TagString},
		{"error only", func(b []byte) error { return nil }, []Tag{TagBytes}, TagVoid},
		{"composite", func(m map[string]any, p *string) []int32 { return nil }, []Tag{TagMap, "?string"}, "[]int32"},
		{"module ref", func(r ModuleRef) {}, []Tag{TagModule}, TagVoid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := Expose("op", tt.fn)
			if err != nil {
				t.Fatalf("Expose() error = %v", err)
			}
			if !reflect.DeepEqual(op.Params, tt.params) {
				t.Errorf("Params = %v, want %v", op.Params, tt.params)
			}
			if op.Returns != tt.returns {
				t.Errorf("Returns = %q, want %q", op.Returns, tt.returns)
			}
		})
	}
}

func TestExposeRejects(t *testing.T) {
	tests := []struct {
		name string
		fn   any
	}{
		{"not a function", 42},
		{"nil function", (func())(nil)},
		{"variadic", func(xs ...int32) {}},
		{"unencodable param", func(c chan int) {}},
		{"unencodable result", func() uint { return 0 }},
		{"second result not error", func() (int32, int32) { return 0, 0 }},
		{"three results", func() (int32, string, error) { return 0, "", nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Expose("op", tt.fn); err == nil {
				t.Error("Expose() should fail")
			}
		})
	}
}

func TestOperationInvoke(t *testing.T) {
	op := MustExpose("greet", func(ctx context.Context, name string, times int32) (string, error) {
		if times < 0 {
			return "", errors.New("negative")
		}
		return strings.Repeat("hi "+name+" ", int(times)), nil
	})

	got, err := op.Invoke(context.Background(), []Value{String("ana"), Int32(2)})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if s, _ := got.AsString(); s != "hi ana hi ana " {
		t.Errorf("Invoke() = %q", s)
	}

	if _, err := op.Invoke(context.Background(), []Value{String("ana"), Int32(-1)}); err == nil || err.Error() != "negative" {
		t.Errorf("Invoke() error = %v, want negative", err)
	}
}

func TestOperationInvokeChecksArgs(t *testing.T) {
	called := false
	op := MustExpose("set", func(v int32) { called = true })

	_, err := op.Invoke(context.Background(), nil)
	var arity *ArityError
	if !errors.As(err, &arity) || arity.Want != 1 || arity.Got != 0 {
		t.Errorf("Invoke() error = %v, want *ArityError{1, 0}", err)
	}

	_, err = op.Invoke(context.Background(), []Value{String("x")})
	var argErr *ArgTypeError
	if !errors.As(err, &argErr) || argErr.Index != 0 || argErr.Want != TagInt32 || argErr.Got != TagString {
		t.Errorf("Invoke() error = %v, want *ArgTypeError", err)
	}

	if called {
		t.Error("function should not run when arguments are rejected")
	}

	out, err := op.Invoke(context.Background(), []Value{Int32(1)})
	if err != nil || !out.IsZero() || !called {
		t.Errorf("void Invoke() = %v, %v (called=%v)", out, err, called)
	}
}

func TestOperationNullableAndComposite(t *testing.T) {
	op := MustExpose("sum", func(xs []int32, label *string) map[string]any {
		total := int32(0)
		for _, x := range xs {
			total += x
		}
		name := "none"
		if label != nil {
			name = *label
		}
		return map[string]any{"total": total, "label": name}
	})

	got, err := op.Invoke(context.Background(), []Value{
		Array(TagInt32, Int32(1), Int32(2), Int32(3)),
		Null(TagString),
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	entries := got.Entries()
	if total, _ := entries["total"].AsInt32(); total != 6 {
		t.Errorf("total = %d, want 6", total)
	}
	if label, _ := entries["label"].AsString(); label != "none" {
		t.Errorf("label = %q, want none", label)
	}
}

func TestOperationValidate(t *testing.T) {
	noop := func(context.Context, []Value) (Value, error) { return Value{}, nil }

	tests := []struct {
		name    string
		op      Operation
		wantErr bool
	}{
		{"valid", Operation{Name: "ok", Params: []Tag{TagInt32}, Returns: TagBool, Call: noop}, false},
		{"defaults to void", Operation{Name: "ok", Call: noop}, false},
		{"no name", Operation{Call: noop}, true},
		{"void param", Operation{Name: "x", Params: []Tag{TagVoid}, Call: noop}, true},
		{"bad return", Operation{Name: "x", Returns: "uint", Call: noop}, true},
		{"no invoker", Operation{Name: "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.op.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOperationSignature(t *testing.T) {
	op := MustExpose("f", func(a int32, b []string) *bool { return nil })
	if got := op.Signature(); got != "(int32,[]string)?bool" {
		t.Errorf("Signature() = %q", got)
	}
}

func TestInvokeRejectsWrongReturn(t *testing.T) {
	op := Operation{
		Name:    "lie",
		Returns: TagInt32,
		Call: func(context.Context, []Value) (Value, error) {
			return String("nope"), nil
		},
	}
	if _, err := op.Invoke(context.Background(), nil); err == nil {
		t.Error("Invoke() should reject a result that does not match the declared return")
	}
}

func TestOperationRejectsZeroValues(t *testing.T) {
	called := false
	objects := MustExpose("take", func(xs []any) int64 { called = true; return int64(len(xs)) })
	entries := MustExpose("keys", func(m map[string]any) int64 { called = true; return int64(len(m)) })

	tests := []struct {
		name string
		op   Operation
		arg  Value
	}{
		{"zero object item", objects, Objects(Value{})},
		{"nested zero object item", objects, Objects(Objects(Value{}))},
		{"zero map entry", entries, Map(map[string]Value{"k": {}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.op.Invoke(context.Background(), []Value{tt.arg})
			var argErr *ArgTypeError
			if !errors.As(err, &argErr) || argErr.Index != 0 {
				t.Errorf("Invoke() error = %v, want *ArgTypeError at index 0", err)
			}
		})
	}
	if called {
		t.Error("function should not run when arguments are rejected")
	}

	got, err := objects.Invoke(context.Background(), []Value{Objects(Int32(1), String("a"))})
	if n, _ := got.AsInt64(); err != nil || n != 2 {
		t.Errorf("Invoke() = %v, %v; want 2", got, err)
	}
}

func TestToReflectRejectsZeroValue(t *testing.T) {
	if _, err := toReflect(Value{}, anyType); err == nil {
		t.Error("toReflect(zero, any) should fail")
	}
	sliceOfAny := reflect.TypeOf([]any(nil))
	if _, err := toReflect(Objects(Int32(1), Value{}), sliceOfAny); err == nil || !strings.Contains(err.Error(), "index 1") {
		t.Errorf("toReflect(objects with zero item) error = %v, want index 1 failure", err)
	}
}
