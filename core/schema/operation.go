package schema

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// Invoker runs an operation with already checked arguments.
type Invoker func(ctx context.Context, args []Value) (Value, error)

// Operation is a named callable a module exposes to the host core.
// A void operation returns the zero Value.
type Operation struct {
	Name    string
	Params  []Tag
	Returns Tag
	Call    Invoker
}

// ArityError reports a wrong number of arguments.
type ArityError struct {
	Want int
	Got  int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("expected %d argument(s), got %d", e.Want, e.Got)
}

// ArgTypeError reports an argument whose tag does not fit its parameter.
type ArgTypeError struct {
	Index int
	Want  Tag
	Got   Tag
}

func (e *ArgTypeError) Error() string {
	return fmt.Sprintf("argument #%d: expected %s, got %s", e.Index, e.Want, e.Got)
}

// Validate checks the declaration itself.
func (o Operation) Validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return fmt.Errorf("operation name is required")
	}
	if err := validateParams(o.Params); err != nil {
		return fmt.Errorf("operation %q: %w", o.Name, err)
	}
	if !o.returns().Valid() {
		return fmt.Errorf("operation %q: invalid return tag %q", o.Name, o.Returns)
	}
	if o.Call == nil {
		return fmt.Errorf("operation %q: no invoker", o.Name)
	}
	return nil
}

func (o Operation) returns() Tag {
	if o.Returns == "" {
		return TagVoid
	}
	return o.Returns
}

// ReturnTag returns the declared return tag, void when unset.
func (o Operation) ReturnTag() Tag {
	return o.returns()
}

// Signature renders the operation type, e.g. "(int32,string)bool".
func (o Operation) Signature() string {
	return "(" + strings.Join(WireTags(o.Params), ",") + ")" + o.returns().String()
}

// CheckArgs validates args against the declared parameters. It returns an
// *ArityError or *ArgTypeError.
func (o Operation) CheckArgs(args []Value) error {
	return CheckArgs(o.Params, args)
}

// CheckArgs validates args against params: count first, then each
// argument in order.
func CheckArgs(params []Tag, args []Value) error {
	if len(args) != len(params) {
		return &ArityError{Want: len(params), Got: len(args)}
	}
	for i, p := range params {
		if !args[i].AssignableTo(p) {
			return &ArgTypeError{Index: i, Want: p, Got: args[i].Tag()}
		}
	}
	return nil
}

// Invoke checks args, calls the operation and checks the result.
func (o Operation) Invoke(ctx context.Context, args []Value) (Value, error) {
	if o.Call == nil {
		return Value{}, fmt.Errorf("operation %q: no invoker", o.Name)
	}
	if err := o.CheckArgs(args); err != nil {
		return Value{}, fmt.Errorf("operation %q: %w", o.Name, err)
	}
	out, err := o.Call(ctx, args)
	if err != nil {
		return Value{}, err
	}
	ret := o.returns()
	if ret == TagVoid {
		return Value{}, nil
	}
	if !out.AssignableTo(ret) {
		return Value{}, fmt.Errorf("operation %q: returned %s, declared %s", o.Name, out.Tag(), ret)
	}
	return out, nil
}

func (o Operation) clone() Operation {
	o.Params = cloneTags(o.Params)
	return o
}

// Clone returns a copy that shares nothing mutable with o.
func (o Operation) Clone() Operation {
	return o.clone()
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Expose derives an Operation from a Go function. The parameter and return
// tags come from the encoder, so a function whose signature has no tags
// fails here rather than at call time.
//
// Accepted shapes, with an optional leading context.Context:
//
//	func(args...)
//	func(args...) T
//	func(args...) error
//	func(args...) (T, error)
func Expose(name string, fn any) (Operation, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func || fv.IsNil() {
		return Operation{}, fmt.Errorf("operation %q: expected a function, got %T", name, fn)
	}
	ft := fv.Type()
	if ft.IsVariadic() {
		return Operation{}, fmt.Errorf("operation %q: variadic functions are not supported", name)
	}

	start := 0
	if ft.NumIn() > 0 && ft.In(0) == contextType {
		start = 1
	}

	params := make([]Tag, 0, ft.NumIn()-start)
	for i := start; i < ft.NumIn(); i++ {
		t, err := Encode(ft.In(i))
		if err != nil {
			return Operation{}, fmt.Errorf("operation %q param #%d: %w", name, i-start, err)
		}
		params = append(params, t)
	}

	ret := TagVoid
	hasErr := false
	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0) == errorType {
			hasErr = true
			break
		}
		t, err := Encode(ft.Out(0))
		if err != nil {
			return Operation{}, fmt.Errorf("operation %q return: %w", name, err)
		}
		ret = t
	case 2:
		if ft.Out(1) != errorType {
			return Operation{}, fmt.Errorf("operation %q: second result must be error", name)
		}
		t, err := Encode(ft.Out(0))
		if err != nil {
			return Operation{}, fmt.Errorf("operation %q return: %w", name, err)
		}
		ret = t
		hasErr = true
	default:
		return Operation{}, fmt.Errorf("operation %q: too many results", name)
	}

	call := func(ctx context.Context, args []Value) (Value, error) {
		in := make([]reflect.Value, 0, ft.NumIn())
		if start == 1 {
			if ctx == nil {
				ctx = context.Background()
			}
			in = append(in, reflect.ValueOf(&ctx).Elem())
		}
		for i, a := range args {
			rv, err := toReflect(a, ft.In(start+i))
			if err != nil {
				return Value{}, fmt.Errorf("argument #%d: %w", i, err)
			}
			in = append(in, rv)
		}

		outs := fv.Call(in)
		if hasErr {
			if e := outs[len(outs)-1]; !e.IsNil() {
				return Value{}, e.Interface().(error)
			}
		}
		if ret == TagVoid {
			return Value{}, nil
		}
		return fromReflect(outs[0])
	}

	op := Operation{Name: name, Params: params, Returns: ret, Call: call}
	if err := op.Validate(); err != nil {
		return Operation{}, err
	}
	return op, nil
}

// MustExpose is Expose for static declarations. It panics on error.
func MustExpose(name string, fn any) Operation {
	op, err := Expose(name, fn)
	if err != nil {
		panic(err)
	}
	return op
}
