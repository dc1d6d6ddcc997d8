// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package jsonval implements the JSON value model, parser, and serializer
// used by the forge wire protocol.
package jsonval

import "strconv"

// =============================================================================
// VALUE MODEL
// =============================================================================

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the kind name for error messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "invalid"
	}
}

// Member is a single (key, value) pair of an object. Objects are stored as
// ordered member slices, not maps: member order is preserved exactly as
// encountered, and duplicate keys are retained in source order.
type Member struct {
	Key   string
	Value Value
}

// Value is a tagged union over the six JSON variants.
//
// Numbers are stored as their decimal source text rather than float64 so
// that re-encoding never loses precision and integers survive round trips
// lexically intact.
//
// The zero Value is null.
type Value struct {
	kind    Kind
	boolVal bool
	text    string // number text or string content
	arr     []Value
	members []Member
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

// Null returns the null value.
func Null() Value {
	return Value{kind: KindNull}
}

// Bool returns a boolean value.
func Bool(b bool) Value {
	return Value{kind: KindBool, boolVal: b}
}

// String returns a string value. The content is the resolved text, with
// escapes already applied.
func String(s string) Value {
	return Value{kind: KindString, text: s}
}

// Number returns a number value holding the given decimal text verbatim.
// The text is not validated; use the parser for untrusted input.
func Number(text string) Value {
	return Value{kind: KindNumber, text: text}
}

// Int returns a number value for an integer.
func Int(n int64) Value {
	return Value{kind: KindNumber, text: strconv.FormatInt(n, 10)}
}

// Float returns a number value for a float, using the shortest decimal
// text that round-trips.
func Float(f float64) Value {
	return Value{kind: KindNumber, text: strconv.FormatFloat(f, 'g', -1, 64)}
}

// Array returns an array value over the given elements.
func Array(elems ...Value) Value {
	return Value{kind: KindArray, arr: elems}
}

// Object returns an object value over the given members, preserving order.
func Object(members ...Member) Value {
	return Value{kind: KindObject, members: members}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Kind returns the variant tag.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether the value is null.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Bool returns the boolean content. ok is false if the value is not a bool.
func (v Value) Bool() (b, ok bool) {
	return v.boolVal, v.kind == KindBool
}

// Str returns the string content. ok is false if the value is not a string.
func (v Value) Str() (s string, ok bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.text, true
}

// NumberText returns the stored decimal text of a number.
func (v Value) NumberText() (s string, ok bool) {
	if v.kind != KindNumber {
		return "", false
	}
	return v.text, true
}

// Int64 interprets a number value as an integer.
func (v Value) Int64() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	n, err := strconv.ParseInt(v.text, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Float64 interprets a number value as a float.
func (v Value) Float64() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.text, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Elems returns the elements of an array value. The returned slice is the
// value's backing storage and must not be mutated.
func (v Value) Elems() []Value {
	return v.arr
}

// Members returns the ordered members of an object value. The returned
// slice is the value's backing storage and must not be mutated.
func (v Value) Members() []Member {
	return v.members
}

// Get looks up an object member by key. When duplicate keys are present
// the FIRST occurrence wins; later duplicates remain visible via Members.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	for _, m := range v.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// GetString is a convenience for Get followed by Str.
func (v Value) GetString(key string) (string, bool) {
	m, ok := v.Get(key)
	if !ok {
		return "", false
	}
	return m.Str()
}

// GetBool is a convenience for Get followed by Bool.
func (v Value) GetBool(key string) (b, ok bool) {
	m, found := v.Get(key)
	if !found {
		return false, false
	}
	return m.Bool()
}

// =============================================================================
// STRUCTURAL EQUALITY
// =============================================================================

// Equal reports structural equality: same kind, same content, same element
// and member order. Number comparison is lexical over the stored text.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.boolVal == other.boolVal
	case KindNumber, KindString:
		return v.text == other.text
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.members) != len(other.members) {
			return false
		}
		for i := range v.members {
			if v.members[i].Key != other.members[i].Key {
				return false
			}
			if !v.members[i].Value.Equal(other.members[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
