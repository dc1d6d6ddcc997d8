// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package jsonval

import (
	"errors"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

// DefaultMaxDepth is the nesting bound applied when no explicit limit is
// given. The parser tracks depth with an explicit counter so pathological
// input cannot exhaust the call stack.
const DefaultMaxDepth = 128

// =============================================================================
// ERRORS
// =============================================================================

// ErrKind categorizes parse failures.
type ErrKind int

const (
	ErrUnexpectedToken ErrKind = iota
	ErrUnterminatedString
	ErrInvalidEscape
	ErrInvalidNumber
	ErrDepthExceeded
	ErrTrailingData
	ErrIncompleteValue
)

func (k ErrKind) String() string {
	switch k {
	case ErrUnexpectedToken:
		return "unexpected token"
	case ErrUnterminatedString:
		return "unterminated string"
	case ErrInvalidEscape:
		return "invalid escape"
	case ErrInvalidNumber:
		return "invalid number"
	case ErrDepthExceeded:
		return "depth exceeded"
	case ErrTrailingData:
		return "trailing data"
	case ErrIncompleteValue:
		return "incomplete value"
	default:
		return "parse error"
	}
}

// ParseError reports a malformed JSON document. Offset is the byte offset
// into the input at which the problem was detected.
type ParseError struct {
	Kind   ErrKind
	Offset int
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("json: %s at offset %d: %s", e.Kind, e.Offset, e.Detail)
	}
	return fmt.Sprintf("json: %s at offset %d", e.Kind, e.Offset)
}

// IsIncomplete reports whether err means the input ended in the middle of
// a value that more bytes could complete. The streaming decoder uses this
// to distinguish "keep buffering" from "malformed".
func IsIncomplete(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Kind == ErrIncompleteValue
}

// =============================================================================
// ENTRY POINTS
// =============================================================================

// ParseOne parses data as exactly one JSON value. Non-whitespace bytes
// after the value are rejected with ErrTrailingData.
func ParseOne(data []byte) (Value, error) {
	return ParseOneLimit(data, DefaultMaxDepth)
}

// ParseOneLimit is ParseOne with an explicit nesting bound.
func ParseOneLimit(data []byte, maxDepth int) (Value, error) {
	p := parser{data: data, maxDepth: maxDepth}
	v, err := p.parseValue()
	if err != nil {
		return Value{}, err
	}
	p.skipSpace()
	if p.pos < len(p.data) {
		return Value{}, &ParseError{Kind: ErrTrailingData, Offset: p.pos}
	}
	return v, nil
}

// ParseValuePrefix parses the first complete JSON value at the start of
// data and returns it along with the number of bytes consumed (including
// leading whitespace). Bytes after the value are left untouched. If data
// ends before the value is complete, the error satisfies IsIncomplete.
func ParseValuePrefix(data []byte) (Value, int, error) {
	return ParseValuePrefixLimit(data, DefaultMaxDepth)
}

// ParseValuePrefixLimit is ParseValuePrefix with an explicit nesting bound.
func ParseValuePrefixLimit(data []byte, maxDepth int) (Value, int, error) {
	p := parser{data: data, maxDepth: maxDepth, prefix: true}
	v, err := p.parseValue()
	if err != nil {
		return Value{}, 0, err
	}
	return v, p.pos, nil
}

// =============================================================================
// PARSER
// =============================================================================

type parser struct {
	data     []byte
	pos      int
	depth    int
	maxDepth int
	prefix   bool // prefix mode: EOF mid-value is incomplete, not malformed
}

// incomplete builds the error for input that ran out mid-value. In prefix
// mode this is the buffer-more signal; in whole-document mode the given
// kind names what was actually cut short.
func (p *parser) incomplete(kind ErrKind) error {
	if p.prefix {
		return &ParseError{Kind: ErrIncompleteValue, Offset: p.pos}
	}
	return &ParseError{Kind: kind, Offset: p.pos, Detail: "unexpected end of input"}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.data) {
		switch p.data[p.pos] {
		case ' ', '\t', '\r', '\n':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) parseValue() (Value, error) {
	p.skipSpace()
	if p.pos >= len(p.data) {
		return Value{}, p.incomplete(ErrUnexpectedToken)
	}
	switch c := p.data[p.pos]; {
	case c == '{':
		return p.parseObject()
	case c == '[':
		return p.parseArray()
	case c == '"':
		s, err := p.parseString()
		if err != nil {
			return Value{}, err
		}
		return String(s), nil
	case c == 't':
		return p.parseKeyword("true", Bool(true))
	case c == 'f':
		return p.parseKeyword("false", Bool(false))
	case c == 'n':
		return p.parseKeyword("null", Null())
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	default:
		return Value{}, &ParseError{Kind: ErrUnexpectedToken, Offset: p.pos,
			Detail: fmt.Sprintf("%q", c)}
	}
}

func (p *parser) parseKeyword(word string, v Value) (Value, error) {
	remain := len(p.data) - p.pos
	if remain < len(word) {
		// The available bytes must still be a prefix of the keyword.
		if string(p.data[p.pos:]) == word[:remain] {
			return Value{}, p.incomplete(ErrUnexpectedToken)
		}
		return Value{}, &ParseError{Kind: ErrUnexpectedToken, Offset: p.pos}
	}
	if string(p.data[p.pos:p.pos+len(word)]) != word {
		return Value{}, &ParseError{Kind: ErrUnexpectedToken, Offset: p.pos}
	}
	p.pos += len(word)
	return v, nil
}

func (p *parser) parseObject() (Value, error) {
	if err := p.enter(); err != nil {
		return Value{}, err
	}
	defer p.leave()
	p.pos++ // '{'

	var members []Member
	p.skipSpace()
	if p.pos >= len(p.data) {
		return Value{}, p.incomplete(ErrUnexpectedToken)
	}
	if p.data[p.pos] == '}' {
		p.pos++
		return Object(), nil
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.data) {
			return Value{}, p.incomplete(ErrUnexpectedToken)
		}
		if p.data[p.pos] != '"' {
			return Value{}, &ParseError{Kind: ErrUnexpectedToken, Offset: p.pos,
				Detail: "expected object key"}
		}
		key, err := p.parseString()
		if err != nil {
			return Value{}, err
		}
		p.skipSpace()
		if p.pos >= len(p.data) {
			return Value{}, p.incomplete(ErrUnexpectedToken)
		}
		if p.data[p.pos] != ':' {
			return Value{}, &ParseError{Kind: ErrUnexpectedToken, Offset: p.pos,
				Detail: "expected ':'"}
		}
		p.pos++
		val, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		members = append(members, Member{Key: key, Value: val})

		p.skipSpace()
		if p.pos >= len(p.data) {
			return Value{}, p.incomplete(ErrUnexpectedToken)
		}
		switch p.data[p.pos] {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return Object(members...), nil
		default:
			return Value{}, &ParseError{Kind: ErrUnexpectedToken, Offset: p.pos,
				Detail: "expected ',' or '}'"}
		}
	}
}

func (p *parser) parseArray() (Value, error) {
	if err := p.enter(); err != nil {
		return Value{}, err
	}
	defer p.leave()
	p.pos++ // '['

	var elems []Value
	p.skipSpace()
	if p.pos >= len(p.data) {
		return Value{}, p.incomplete(ErrUnexpectedToken)
	}
	if p.data[p.pos] == ']' {
		p.pos++
		return Array(), nil
	}
	for {
		v, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, v)

		p.skipSpace()
		if p.pos >= len(p.data) {
			return Value{}, p.incomplete(ErrUnexpectedToken)
		}
		switch p.data[p.pos] {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return Array(elems...), nil
		default:
			return Value{}, &ParseError{Kind: ErrUnexpectedToken, Offset: p.pos,
				Detail: "expected ',' or ']'"}
		}
	}
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > p.maxDepth {
		return &ParseError{Kind: ErrDepthExceeded, Offset: p.pos,
			Detail: fmt.Sprintf("nesting deeper than %d", p.maxDepth)}
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

// =============================================================================
// STRINGS
// =============================================================================

func (p *parser) parseString() (string, error) {
	p.pos++ // opening quote

	// Fast path: no escapes, no control characters.
	i := p.pos
	for i < len(p.data) {
		c := p.data[i]
		if c == '"' {
			s := string(p.data[p.pos:i])
			p.pos = i + 1
			return s, nil
		}
		if c == '\\' || c < 0x20 {
			break
		}
		i++
	}
	if i >= len(p.data) {
		return "", p.incomplete(ErrUnterminatedString)
	}

	// Slow path with escape resolution.
	buf := make([]byte, 0, i-p.pos+16)
	buf = append(buf, p.data[p.pos:i]...)
	p.pos = i
	for {
		if p.pos >= len(p.data) {
			return "", p.incomplete(ErrUnterminatedString)
		}
		c := p.data[p.pos]
		switch {
		case c == '"':
			p.pos++
			return string(buf), nil
		case c == '\\':
			var err error
			buf, err = p.parseEscape(buf)
			if err != nil {
				return "", err
			}
		case c < 0x20:
			return "", &ParseError{Kind: ErrUnterminatedString, Offset: p.pos,
				Detail: "raw control character in string"}
		default:
			buf = append(buf, c)
			p.pos++
		}
	}
}

func (p *parser) parseEscape(buf []byte) ([]byte, error) {
	escStart := p.pos
	p.pos++ // backslash
	if p.pos >= len(p.data) {
		return nil, p.incomplete(ErrUnterminatedString)
	}
	c := p.data[p.pos]
	p.pos++
	switch c {
	case '"':
		return append(buf, '"'), nil
	case '\\':
		return append(buf, '\\'), nil
	case '/':
		return append(buf, '/'), nil
	case 'b':
		return append(buf, '\b'), nil
	case 'f':
		return append(buf, '\f'), nil
	case 'n':
		return append(buf, '\n'), nil
	case 'r':
		return append(buf, '\r'), nil
	case 't':
		return append(buf, '\t'), nil
	case 'u':
		r, err := p.parseHexRune()
		if err != nil {
			return nil, err
		}
		if utf16.IsSurrogate(r) {
			// A high surrogate must be followed by an escaped low surrogate.
			if p.pos+1 < len(p.data) && p.data[p.pos] == '\\' && p.data[p.pos+1] == 'u' {
				p.pos += 2
				r2, err := p.parseHexRune()
				if err != nil {
					return nil, err
				}
				combined := utf16.DecodeRune(r, r2)
				if combined == utf8.RuneError {
					return nil, &ParseError{Kind: ErrInvalidEscape, Offset: escStart,
						Detail: "invalid surrogate pair"}
				}
				r = combined
			} else if p.pos >= len(p.data) || (p.pos+1 >= len(p.data) && p.data[p.pos] == '\\') {
				return nil, p.incomplete(ErrInvalidEscape)
			} else {
				return nil, &ParseError{Kind: ErrInvalidEscape, Offset: escStart,
					Detail: "unpaired surrogate"}
			}
		}
		return utf8.AppendRune(buf, r), nil
	default:
		return nil, &ParseError{Kind: ErrInvalidEscape, Offset: escStart,
			Detail: fmt.Sprintf("\\%c", c)}
	}
}

func (p *parser) parseHexRune() (rune, error) {
	if p.pos+4 > len(p.data) {
		return 0, p.incomplete(ErrInvalidEscape)
	}
	var r rune
	for i := 0; i < 4; i++ {
		c := p.data[p.pos+i]
		var d rune
		switch {
		case c >= '0' && c <= '9':
			d = rune(c - '0')
		case c >= 'a' && c <= 'f':
			d = rune(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = rune(c-'A') + 10
		default:
			return 0, &ParseError{Kind: ErrInvalidEscape, Offset: p.pos + i,
				Detail: "non-hex digit in \\u escape"}
		}
		r = r<<4 | d
	}
	p.pos += 4
	return r, nil
}

// =============================================================================
// NUMBERS
// =============================================================================

// parseNumber scans sign, integer part (no leading zeros), optional
// fraction, optional exponent. The matched text is stored verbatim.
func (p *parser) parseNumber() (Value, error) {
	start := p.pos
	if p.data[p.pos] == '-' {
		p.pos++
	}
	// Integer part.
	switch {
	case p.pos >= len(p.data):
		return Value{}, p.incomplete(ErrInvalidNumber)
	case p.data[p.pos] == '0':
		p.pos++
	case p.data[p.pos] >= '1' && p.data[p.pos] <= '9':
		for p.pos < len(p.data) && isDigit(p.data[p.pos]) {
			p.pos++
		}
	default:
		return Value{}, &ParseError{Kind: ErrInvalidNumber, Offset: p.pos,
			Detail: "expected digit"}
	}
	// Fraction.
	if p.pos < len(p.data) && p.data[p.pos] == '.' {
		p.pos++
		if p.pos >= len(p.data) {
			return Value{}, p.incomplete(ErrInvalidNumber)
		}
		if !isDigit(p.data[p.pos]) {
			return Value{}, &ParseError{Kind: ErrInvalidNumber, Offset: p.pos,
				Detail: "expected digit after '.'"}
		}
		for p.pos < len(p.data) && isDigit(p.data[p.pos]) {
			p.pos++
		}
	}
	// Exponent.
	if p.pos < len(p.data) && (p.data[p.pos] == 'e' || p.data[p.pos] == 'E') {
		p.pos++
		if p.pos < len(p.data) && (p.data[p.pos] == '+' || p.data[p.pos] == '-') {
			p.pos++
		}
		if p.pos >= len(p.data) {
			return Value{}, p.incomplete(ErrInvalidNumber)
		}
		if !isDigit(p.data[p.pos]) {
			return Value{}, &ParseError{Kind: ErrInvalidNumber, Offset: p.pos,
				Detail: "expected digit in exponent"}
		}
		for p.pos < len(p.data) && isDigit(p.data[p.pos]) {
			p.pos++
		}
	}
	// In prefix mode a number flush against the end of the buffer could
	// still grow when more bytes arrive; report it incomplete and let the
	// caller retry with a longer buffer or finish with ParseOne.
	if p.prefix && p.pos >= len(p.data) {
		return Value{}, p.incomplete(ErrInvalidNumber)
	}
	return Number(string(p.data[start:p.pos])), nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
