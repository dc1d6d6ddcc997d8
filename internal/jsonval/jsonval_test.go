// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package jsonval

import (
	"errors"
	"strings"
	"testing"
)

// =============================================================================
// PARSE TESTS
// =============================================================================

func TestParseOne_Scalars(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Value
	}{
		{"null", "null", Null()},
		{"true", "true", Bool(true)},
		{"false", "false", Bool(false)},
		{"zero", "0", Number("0")},
		{"int", "42", Number("42")},
		{"negative", "-17", Number("-17")},
		{"float", "3.14", Number("3.14")},
		{"exponent", "1.5e-3", Number("1.5e-3")},
		{"big exponent", "-2E+10", Number("-2E+10")},
		{"string", `"hello"`, String("hello")},
		{"empty string", `""`, String("")},
		{"leading space", "  \t\r\n true", Bool(true)},
		{"trailing space", "null \n", Null()},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseOne([]byte(tc.input))
			if err != nil {
				t.Fatalf("ParseOne(%q) error: %v", tc.input, err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("ParseOne(%q) = %s, want %s", tc.input, SerializeString(got), SerializeString(tc.want))
			}
		})
	}
}

func TestParseOne_Escapes(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"a\nb"`, "a\nb"},
		{`"a\tb"`, "a\tb"},
		{`"a\rb"`, "a\rb"},
		{`"a\"b"`, `a"b`},
		{`"a\\b"`, `a\b`},
		{`"a\/b"`, "a/b"},
		{`"\b\f"`, "\b\f"},
		{`"A"`, "A"},
		{`"é"`, "é"},
		{`"☃"`, "☃"},
		{`"😀"`, "😀"}, // surrogate pair
		{`"mixed A\n\t"`, "mixed A\n\t"},
	}

	for _, tc := range tests {
		got, err := ParseOne([]byte(tc.input))
		if err != nil {
			t.Fatalf("ParseOne(%s) error: %v", tc.input, err)
		}
		s, ok := got.Str()
		if !ok || s != tc.want {
			t.Errorf("ParseOne(%s) = %q, want %q", tc.input, s, tc.want)
		}
	}
}

func TestParseOne_Structures(t *testing.T) {
	input := `{"model":"llama3","count":2,"tags":["a","b"],"opts":{"stream":true},"x":null}`
	v, err := ParseOne([]byte(input))
	if err != nil {
		t.Fatalf("ParseOne error: %v", err)
	}
	if v.Kind() != KindObject {
		t.Fatalf("Kind = %v, want object", v.Kind())
	}
	if got, _ := v.GetString("model"); got != "llama3" {
		t.Errorf("model = %q, want llama3", got)
	}
	count, _ := v.Get("count")
	if n, ok := count.Int64(); !ok || n != 2 {
		t.Errorf("count = %v, want 2", count)
	}
	tags, _ := v.Get("tags")
	if len(tags.Elems()) != 2 {
		t.Errorf("tags length = %d, want 2", len(tags.Elems()))
	}
	opts, _ := v.Get("opts")
	if b, ok := opts.GetBool("stream"); !ok || !b {
		t.Error("opts.stream should be true")
	}
	x, _ := v.Get("x")
	if !x.IsNull() {
		t.Error("x should be null")
	}
}

func TestParseOne_MemberOrderPreserved(t *testing.T) {
	v, err := ParseOne([]byte(`{"z":1,"a":2,"m":3}`))
	if err != nil {
		t.Fatalf("ParseOne error: %v", err)
	}
	members := v.Members()
	wantKeys := []string{"z", "a", "m"}
	for i, key := range wantKeys {
		if members[i].Key != key {
			t.Errorf("member %d = %q, want %q", i, members[i].Key, key)
		}
	}
}

func TestParseOne_DuplicateKeysFirstWins(t *testing.T) {
	v, err := ParseOne([]byte(`{"a":1,"a":2}`))
	if err != nil {
		t.Fatalf("ParseOne error: %v", err)
	}
	if len(v.Members()) != 2 {
		t.Fatalf("members = %d, want 2 (duplicates retained)", len(v.Members()))
	}
	got, _ := v.Get("a")
	if n, _ := got.Int64(); n != 1 {
		t.Errorf("Get(a) = %v, want first occurrence 1", got)
	}
}

func TestParseOne_TrailingData(t *testing.T) {
	_, err := ParseOne([]byte(`{"a":1} garbage`))
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Kind != ErrTrailingData {
		t.Fatalf("ParseOne trailing garbage: err = %v, want ErrTrailingData", err)
	}
}

func TestParseOne_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  ErrKind
	}{
		{"unterminated string", `"abc`, ErrUnterminatedString},
		{"invalid escape", `"a\qb"`, ErrInvalidEscape},
		{"bad hex escape", `"\u12g4"`, ErrInvalidEscape},
		{"unpaired surrogate", `"\ud83d x"`, ErrInvalidEscape},
		{"leading zero", `01`, ErrTrailingData},
		{"bare minus", `-`, ErrInvalidNumber},
		{"dot without digits", `1.`, ErrInvalidNumber},
		{"empty exponent", `1e`, ErrInvalidNumber},
		{"bad token", `@`, ErrUnexpectedToken},
		{"truncated keyword", `tru`, ErrUnexpectedToken},
		{"wrong keyword", `nulL`, ErrUnexpectedToken},
		{"missing colon", `{"a" 1}`, ErrUnexpectedToken},
		{"missing comma", `[1 2]`, ErrUnexpectedToken},
		{"unterminated object", `{"a":1`, ErrUnexpectedToken},
		{"empty input", ``, ErrUnexpectedToken},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseOne([]byte(tc.input))
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("ParseOne(%q): expected ParseError, got %v", tc.input, err)
			}
			if pe.Kind != tc.kind {
				t.Errorf("ParseOne(%q) kind = %v, want %v", tc.input, pe.Kind, tc.kind)
			}
		})
	}
}

func TestParseOne_ErrorOffset(t *testing.T) {
	_, err := ParseOne([]byte(`{"a": @}`))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if pe.Offset != 6 {
		t.Errorf("Offset = %d, want 6", pe.Offset)
	}
}

func TestParseOne_DepthBound(t *testing.T) {
	// Depth 3 is allowed at limit 3, depth 4 is not.
	ok := []byte(`[[[1]]]`)
	if _, err := ParseOneLimit(ok, 3); err != nil {
		t.Errorf("depth 3 at limit 3: unexpected error %v", err)
	}

	tooDeep := []byte(`[[[[1]]]]`)
	_, err := ParseOneLimit(tooDeep, 3)
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Kind != ErrDepthExceeded {
		t.Fatalf("depth 4 at limit 3: err = %v, want ErrDepthExceeded", err)
	}

	// Pathological nesting must fail cleanly under the default bound.
	deep := strings.Repeat("[", DefaultMaxDepth+1) + strings.Repeat("]", DefaultMaxDepth+1)
	_, err = ParseOne([]byte(deep))
	if !errors.As(err, &pe) || pe.Kind != ErrDepthExceeded {
		t.Fatalf("pathological nesting: err = %v, want ErrDepthExceeded", err)
	}
}

// =============================================================================
// PREFIX PARSE TESTS
// =============================================================================

func TestParseValuePrefix_ConsumedBytes(t *testing.T) {
	v, n, err := ParseValuePrefix([]byte(`{"a":1} garbage`))
	if err != nil {
		t.Fatalf("ParseValuePrefix error: %v", err)
	}
	if n != 7 {
		t.Errorf("consumed = %d, want 7", n)
	}
	if got, _ := v.Get("a"); !got.Equal(Number("1")) {
		t.Errorf("value = %s, want {\"a\":1}", SerializeString(v))
	}
}

func TestParseValuePrefix_Incomplete(t *testing.T) {
	incomplete := []string{
		`{"a":`,
		`{"a":1`,
		`{"resp`,
		`["x",`,
		`"unterminated`,
		`tr`,
		`-12`, // a bare number at EOF may still grow
		`12.5`,
		``,
		`   `,
	}
	for _, input := range incomplete {
		_, _, err := ParseValuePrefix([]byte(input))
		if !IsIncomplete(err) {
			t.Errorf("ParseValuePrefix(%q): err = %v, want incomplete", input, err)
		}
	}
}

func TestParseValuePrefix_MalformedIsNotIncomplete(t *testing.T) {
	malformed := []string{`{"a"=1}`, `[1,]`, `"bad\q"`, `@`}
	for _, input := range malformed {
		_, _, err := ParseValuePrefix([]byte(input))
		if err == nil || IsIncomplete(err) {
			t.Errorf("ParseValuePrefix(%q): err = %v, want hard parse error", input, err)
		}
	}
}

func TestParseValuePrefix_NewlineDelimited(t *testing.T) {
	buf := []byte("{\"response\":\"Hel\",\"done\":false}\n{\"response\":\"lo\",\"done\":true}\n")
	v1, n, err := ParseValuePrefix(buf)
	if err != nil {
		t.Fatalf("first value: %v", err)
	}
	if got, _ := v1.GetString("response"); got != "Hel" {
		t.Errorf("first response = %q, want Hel", got)
	}
	v2, _, err := ParseValuePrefix(buf[n:])
	if err != nil {
		t.Fatalf("second value: %v", err)
	}
	if done, _ := v2.GetBool("done"); !done {
		t.Error("second value should have done=true")
	}
}

// =============================================================================
// SERIALIZE TESTS
// =============================================================================

func TestSerialize_Compact(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Null(), "null"},
		{Bool(true), "true"},
		{Int(-7), "-7"},
		{Number("1.5e-3"), "1.5e-3"},
		{String("hi"), `"hi"`},
		{String("a\"b\\c\nd\te\r"), `"a\"b\\c\nd\te\r"`},
		{String("ctrl\x01end"), `"ctrlend"`},
		{String("héllo ☃"), `"héllo ☃"`},
		{Array(), "[]"},
		{Array(Int(1), String("x"), Null()), `[1,"x",null]`},
		{Object(), "{}"},
		{
			Object(Member{"b", Int(2)}, Member{"a", Int(1)}),
			`{"b":2,"a":1}`,
		},
	}

	for _, tc := range tests {
		if got := SerializeString(tc.v); got != tc.want {
			t.Errorf("Serialize = %s, want %s", got, tc.want)
		}
	}
}

func TestSerialize_RoundTrip(t *testing.T) {
	// parse(serialize(v)) must be structurally equal to v.
	values := []Value{
		Null(),
		Bool(false),
		Number("-12.75e2"),
		String("line\nbreak \"quoted\" \\slash 😀"),
		Array(Int(1), Array(Int(2), Array(Int(3)))),
		Object(
			Member{"model", String("llama3")},
			Member{"opts", Object(Member{"stream", Bool(true)})},
			Member{"history", Array(String("a"), Number("0.5"), Null())},
		),
	}

	for _, v := range values {
		encoded := Serialize(v)
		back, err := ParseOne(encoded)
		if err != nil {
			t.Fatalf("reparse of %s failed: %v", encoded, err)
		}
		if !back.Equal(v) {
			t.Errorf("round trip changed value: %s -> %s", SerializeString(v), SerializeString(back))
		}
	}
}

func TestSerialize_ValuePreservingReencode(t *testing.T) {
	// serialize(parse(x)) must be structurally equal to x for valid x,
	// whitespace aside.
	inputs := []string{
		`{ "a" : 1 , "b" : [ true , null ] }`,
		`[1,2.0,3e1,-0.5]`,
		`"plain"`,
		`{"nested":{"deep":{"deeper":[{}]}}}`,
	}
	for _, input := range inputs {
		v1, err := ParseOne([]byte(input))
		if err != nil {
			t.Fatalf("ParseOne(%q): %v", input, err)
		}
		v2, err := ParseOne(Serialize(v1))
		if err != nil {
			t.Fatalf("reparse of %q: %v", input, err)
		}
		if !v1.Equal(v2) {
			t.Errorf("re-encode of %q not value preserving", input)
		}
	}
}

func TestSerialize_NumberTextPreserved(t *testing.T) {
	// Integer vs float distinction survives lexically.
	v, err := ParseOne([]byte(`[1, 1.0, 100000000000000000001]`))
	if err != nil {
		t.Fatalf("ParseOne error: %v", err)
	}
	if got := SerializeString(v); got != `[1,1.0,100000000000000000001]` {
		t.Errorf("number text not preserved: %s", got)
	}
}
