package grid

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// CellType determines which variant of Value a cell holds.
type CellType int

const (
	TypeText CellType = iota
	TypeDecimal
	TypeBool
	TypeSelect
	TypeReference
	TypeMultiReference
	TypeStringList
	TypeReadOnly
)

func (t CellType) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeDecimal:
		return "decimal"
	case TypeBool:
		return "boolean"
	case TypeSelect:
		return "single-select"
	case TypeReference:
		return "single-reference"
	case TypeMultiReference:
		return "multi-reference"
	case TypeStringList:
		return "string-list"
	case TypeReadOnly:
		return "read-only"
	default:
		return fmt.Sprintf("CellType(%d)", int(t))
	}
}

// IsList reports whether the type's empty representation is an empty
// collection rather than null.
func (t CellType) IsList() bool {
	return t == TypeMultiReference || t == TypeStringList
}

// Ref is an id+label pair held by reference-typed cells. A Ref whose ID is
// empty is unresolved: the label carries the raw text the operator supplied
// and a lookup is still required.
type Ref struct {
	ID    string
	Label string
}

// Resolved reports whether the reference points at a known record.
func (r Ref) Resolved() bool { return r.ID != "" }

// Value is the tagged union behind every cell. Exactly one variant is
// meaningful for a given type; constructors are the only way to build one, so
// a multi-reference value can never hold a bare string.
type Value struct {
	typ CellType

	text    string
	num     float64
	boolean bool
	ref     *Ref
	refs    []Ref
	list    []string

	// null marks scalar variants with no payload.
	null bool
}

// Text builds a text value. Empty string is the empty representation.
func Text(s string) Value { return Value{typ: TypeText, text: s} }

// ReadOnlyText builds a value for a read-only column.
func ReadOnlyText(s string) Value { return Value{typ: TypeReadOnly, text: s} }

// Select builds a single-select value.
func Select(s string) Value { return Value{typ: TypeSelect, text: s} }

// Decimal builds a decimal value.
func Decimal(f float64) Value { return Value{typ: TypeDecimal, num: f} }

// Bool builds a boolean value.
func Bool(b bool) Value { return Value{typ: TypeBool, boolean: b} }

// Reference builds a single-reference value.
func Reference(r Ref) Value { return Value{typ: TypeReference, ref: &r} }

// References builds a multi-reference value. The slice is copied.
func References(rs []Ref) Value {
	cp := make([]Ref, len(rs))
	copy(cp, rs)
	return Value{typ: TypeMultiReference, refs: cp}
}

// StringList builds a string-list value. The slice is copied.
func StringList(ss []string) Value {
	cp := make([]string, len(ss))
	copy(cp, ss)
	return Value{typ: TypeStringList, list: cp}
}

// Null returns the empty representation for a type: null for scalar and
// reference types, the empty collection for list types.
func Null(t CellType) Value {
	switch t {
	case TypeMultiReference:
		return Value{typ: t, refs: []Ref{}}
	case TypeStringList:
		return Value{typ: t, list: []string{}}
	default:
		return Value{typ: t, null: true}
	}
}

// Type returns the variant tag.
func (v Value) Type() CellType { return v.typ }

// IsEmpty reports whether the value is its type's empty representation:
// null, empty string, or an empty collection.
func (v Value) IsEmpty() bool {
	if v.null {
		return true
	}
	switch v.typ {
	case TypeText, TypeSelect, TypeReadOnly:
		return v.text == ""
	case TypeReference:
		return v.ref == nil
	case TypeMultiReference:
		return len(v.refs) == 0
	case TypeStringList:
		return len(v.list) == 0
	}
	return false
}

// TextValue returns the string payload of text-like variants.
func (v Value) TextValue() string { return v.text }

// DecimalValue returns the numeric payload and whether it is set.
func (v Value) DecimalValue() (float64, bool) {
	return v.num, v.typ == TypeDecimal && !v.null
}

// BoolValue returns the boolean payload and whether it is set.
func (v Value) BoolValue() (bool, bool) {
	return v.boolean, v.typ == TypeBool && !v.null
}

// ReferenceValue returns the single reference, or false when null.
func (v Value) ReferenceValue() (Ref, bool) {
	if v.typ != TypeReference || v.ref == nil {
		return Ref{}, false
	}
	return *v.ref, true
}

// ReferencesValue returns a copy of the reference list.
func (v Value) ReferencesValue() []Ref {
	cp := make([]Ref, len(v.refs))
	copy(cp, v.refs)
	return cp
}

// StringListValue returns a copy of the string list.
func (v Value) StringListValue() []string {
	cp := make([]string, len(v.list))
	copy(cp, v.list)
	return cp
}

// Equal is strict equality: same type, same payload, list order preserved.
// Change tracking against a cell's baseline uses this.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ || v.null != o.null {
		return false
	}
	switch v.typ {
	case TypeText, TypeSelect, TypeReadOnly:
		return v.text == o.text
	case TypeDecimal:
		return v.null || v.num == o.num
	case TypeBool:
		return v.null || v.boolean == o.boolean
	case TypeReference:
		if v.ref == nil || o.ref == nil {
			return v.ref == o.ref
		}
		return *v.ref == *o.ref
	case TypeMultiReference:
		if len(v.refs) != len(o.refs) {
			return false
		}
		for i := range v.refs {
			if v.refs[i] != o.refs[i] {
				return false
			}
		}
		return true
	case TypeStringList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != o.list[i] {
				return false
			}
		}
		return true
	}
	return false
}

// Equivalent is the looser equality used when diffing imported values against
// loaded rows: scalars compare case- and whitespace-normalized, list types
// compare as sets, reference lists compare by identifier set.
func (v Value) Equivalent(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	if v.IsEmpty() || o.IsEmpty() {
		return v.IsEmpty() == o.IsEmpty()
	}
	switch v.typ {
	case TypeText, TypeSelect, TypeReadOnly:
		return normalize(v.text) == normalize(o.text)
	case TypeDecimal:
		return v.num == o.num
	case TypeBool:
		return v.boolean == o.boolean
	case TypeReference:
		return v.ref.key() == o.ref.key()
	case TypeMultiReference:
		return equalSets(refKeys(v.refs), refKeys(o.refs))
	case TypeStringList:
		return equalSets(normalizeAll(v.list), normalizeAll(o.list))
	}
	return false
}

// String renders the value for display and for serialization of list types.
func (v Value) String() string {
	if v.null {
		return ""
	}
	switch v.typ {
	case TypeText, TypeSelect, TypeReadOnly:
		return v.text
	case TypeDecimal:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case TypeBool:
		if v.boolean {
			return "true"
		}
		return "false"
	case TypeReference:
		if v.ref == nil {
			return ""
		}
		return v.ref.Label
	case TypeMultiReference:
		labels := make([]string, len(v.refs))
		for i, r := range v.refs {
			labels[i] = r.Label
		}
		return strings.Join(labels, ", ")
	case TypeStringList:
		return strings.Join(v.list, ", ")
	}
	return ""
}

// key prefers the identifier for resolved references and falls back to the
// normalized label for unresolved ones.
func (r *Ref) key() string {
	if r.ID != "" {
		return "#" + r.ID
	}
	return normalize(r.Label)
}

func refKeys(rs []Ref) []string {
	keys := make([]string, len(rs))
	for i := range rs {
		keys[i] = rs[i].key()
	}
	return keys
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func normalizeAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = normalize(s)
	}
	return out
}

func equalSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
