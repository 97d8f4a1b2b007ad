package schema

import (
	"fmt"
	"strings"
)

// Tag is the canonical type descriptor transmitted to the host core.
type Tag string

const (
	TagVoid    Tag = "void"
	TagBool    Tag = "bool"
	TagInt32   Tag = "int32"
	TagInt64   Tag = "int64"
	TagFloat32 Tag = "float32"
	TagFloat64 Tag = "float64"
	TagString  Tag = "string"
	TagBytes   Tag = "bytes"
	TagModule  Tag = "module"
	TagMap     Tag = "map"

	// TagObjects is a heterogeneous object array.
	TagObjects Tag = "[]any"
)

const (
	arrayPrefix    = "[]"
	nullablePrefix = "?"
)

// Kind classifies a tag.
type Kind int

const (
	KindInvalid Kind = iota
	KindVoid
	KindBool
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindString
	KindBytes
	KindModule
	KindMap
	KindArray
	KindObjects
	KindNullable
)

var kindNames = map[Kind]string{
	KindInvalid:  "invalid",
	KindVoid:     "void",
	KindBool:     "bool",
	KindInt32:    "int32",
	KindInt64:    "int64",
	KindFloat32:  "float32",
	KindFloat64:  "float64",
	KindString:   "string",
	KindBytes:    "bytes",
	KindModule:   "module",
	KindMap:      "map",
	KindArray:    "array",
	KindObjects:  "objects",
	KindNullable: "nullable",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

var scalarKinds = map[Tag]Kind{
	TagVoid:    KindVoid,
	TagBool:    KindBool,
	TagInt32:   KindInt32,
	TagInt64:   KindInt64,
	TagFloat32: KindFloat32,
	TagFloat64: KindFloat64,
	TagString:  KindString,
	TagBytes:   KindBytes,
	TagModule:  KindModule,
	TagMap:     KindMap,
}

// ArrayOf returns the homogeneous array tag for elem.
// ArrayOf of an invalid element is invalid.
func ArrayOf(elem Tag) Tag {
	return Tag(arrayPrefix + string(elem))
}

// NullableOf returns the nullable form of t. It is idempotent.
func NullableOf(t Tag) Tag {
	if strings.HasPrefix(string(t), nullablePrefix) {
		return t
	}
	return Tag(nullablePrefix + string(t))
}

// String returns the wire spelling of the tag.
func (t Tag) String() string {
	return string(t)
}

// Kind reports the kind of the tag, or KindInvalid for a malformed tag.
func (t Tag) Kind() Kind {
	s := string(t)
	switch {
	case t == TagObjects:
		return KindObjects
	case strings.HasPrefix(s, nullablePrefix):
		elem := Tag(s[len(nullablePrefix):])
		// void and nested nullables have no nullable form
		if elem == TagVoid || strings.HasPrefix(string(elem), nullablePrefix) || !elem.Valid() {
			return KindInvalid
		}
		return KindNullable
	case strings.HasPrefix(s, arrayPrefix):
		elem := Tag(s[len(arrayPrefix):])
		if elem == TagVoid || !elem.Valid() {
			return KindInvalid
		}
		return KindArray
	}
	if k, ok := scalarKinds[t]; ok {
		return k
	}
	return KindInvalid
}

// Valid reports whether t is a well-formed tag.
func (t Tag) Valid() bool {
	return t.Kind() != KindInvalid
}

// Elem returns the element tag of an array or nullable tag and "" otherwise.
func (t Tag) Elem() Tag {
	switch t.Kind() {
	case KindArray:
		return Tag(strings.TrimPrefix(string(t), arrayPrefix))
	case KindNullable:
		return Tag(strings.TrimPrefix(string(t), nullablePrefix))
	case KindObjects:
		return ""
	}
	return ""
}

// IsNullable reports whether t accepts null values.
func (t Tag) IsNullable() bool {
	return t.Kind() == KindNullable
}

// ParseTag validates a wire spelling and returns the tag.
func ParseTag(s string) (Tag, error) {
	t := Tag(strings.TrimSpace(s))
	if !t.Valid() {
		return "", fmt.Errorf("invalid type tag %q", s)
	}
	return t, nil
}

// WireTags converts tags to their wire spellings.
func WireTags(tags []Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.String()
	}
	return out
}

func cloneTags(tags []Tag) []Tag {
	if len(tags) == 0 {
		return nil
	}
	out := make([]Tag, len(tags))
	copy(out, tags)
	return out
}

func validateParams(params []Tag) error {
	for i, p := range params {
		if p == TagVoid {
			return fmt.Errorf("param #%d: void is only valid as a return type", i)
		}
		if !p.Valid() {
			return fmt.Errorf("param #%d: invalid type tag %q", i, p)
		}
	}
	return nil
}
