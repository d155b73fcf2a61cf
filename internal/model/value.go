package model

import "github.com/mapgrid/tileservice/internal/stringpool"

// ValueKind tags the polymorphic scalar/compound variant a Node carries,
// matching the capability set of spec.md §4.2 / Design Notes §9:
// {type, size, at, get, keyAt, iterate} plus scalar accessors.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindBool
	KindInt64
	KindFloat64
	KindString
	KindArray
	KindObject
	KindTransientObject
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindTransientObject:
		return "transient-object"
	default:
		return "unknown"
	}
}

// Value is a single scalar column row: exactly one of the typed fields
// is meaningful, selected by Kind.
type Value struct {
	Kind ValueKind
	B    bool
	I64  int64
	F64  float64
	Str  stringpool.ID
}

// ObjectEntry is one key/value pair inside an Object column row.
// Fields are stored in insertion order and never reordered.
type ObjectEntry struct {
	Key stringpool.ID
	Val Address
}
