/*
Package schema defines the boundary-safe type system shared by modules and the
host core.

A module talks to the host through two kinds of declarations:

  - operations: named callables the host may invoke on the module
  - signals:    named events the module may emit toward the host

Both are described with type tags. A tag is a short canonical string that is
stable across processes and builds, so it can be handed to a separately
compiled host core and compared there.

# Tags

Scalar tags:

  - void:    no value (operation return only)
  - bool:    boolean
  - int32:   32-bit signed integer
  - int64:   64-bit signed integer
  - float32: 32-bit float
  - float64: 64-bit float
  - string:  UTF-8 text
  - bytes:   raw byte sequence
  - module:  reference to a registered module (self-registration)
  - map:     string-keyed map of arbitrary values

Composite tags:

  - []T:   homogeneous array of T, e.g. []int32, []string
  - []any: heterogeneous object array
  - ?T:    nullable T, e.g. ?string

# Encoding Go types

Encode maps a Go type to its tag:

	schema.Encode(reflect.TypeOf(int32(0)))          // int32
	schema.Encode(reflect.TypeOf([]string(nil)))     // []string
	schema.Encode(reflect.TypeOf((*string)(nil)))    // ?string
	schema.Encode(reflect.TypeOf(map[string]any{}))  // map

Types without a tag (channels, functions, structs, unsigned integers, ...)
return an *EncodeError. Encoding runs while a module is being registered, so a
bad declaration is reported at startup and never at emission time.

# Values

Arguments crossing the boundary are Values, a tagged union:

	args := []schema.Value{schema.Int32(42), schema.String("gold")}

Each Value knows its own tag and can be checked against a declared parameter
with AssignableTo before anything is forwarded to the host.
*/
package schema
