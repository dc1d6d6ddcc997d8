// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fsops

import "strings"

// =============================================================================
// GLOB MATCHING
// =============================================================================

// GlobMatch matches path against a glob pattern. Supported syntax:
//
//	*     any run of characters within one path segment
//	**    any run of segments, including none
//	?     one character, not '/'
//	[a-z] character set, '^' negates
//
// Paths are compared with forward slashes regardless of platform.
func GlobMatch(pattern, path string) bool {
	pattern = strings.ReplaceAll(pattern, "\\", "/")
	path = strings.ReplaceAll(path, "\\", "/")
	return globMatch([]rune(pattern), []rune(path), 0, 0)
}

func globMatch(pattern, text []rune, p, t int) bool {
	if p >= len(pattern) {
		return t >= len(text)
	}

	// ** matches zero or more whole segments
	if p+1 < len(pattern) && pattern[p] == '*' && pattern[p+1] == '*' {
		next := p + 2
		for next < len(pattern) && pattern[next] == '/' {
			next++
		}
		for i := t; i <= len(text); i++ {
			if i == len(text) || i == t || text[i-1] == '/' {
				if globMatch(pattern, text, next, i) {
					return true
				}
			}
		}
		return false
	}

	switch pattern[p] {
	case '*':
		// Zero characters
		if globMatch(pattern, text, p+1, t) {
			return true
		}
		// One or more, stopping at a segment boundary
		for i := t; i < len(text); i++ {
			if text[i] == '/' {
				break
			}
			if globMatch(pattern, text, p+1, i+1) {
				return true
			}
		}
		return false

	case '?':
		if t >= len(text) || text[t] == '/' {
			return false
		}
		return globMatch(pattern, text, p+1, t+1)

	case '[':
		end := -1
		for i := p + 1; i < len(pattern); i++ {
			if pattern[i] == ']' {
				end = i
				break
			}
		}
		if end < 0 {
			// Unterminated set matches a literal '['
			if t < len(text) && text[t] == '[' {
				return globMatch(pattern, text, p+1, t+1)
			}
			return false
		}
		if t >= len(text) {
			return false
		}
		if !matchCharSet(pattern[p+1:end], text[t]) {
			return false
		}
		return globMatch(pattern, text, end+1, t+1)

	default:
		if t >= len(text) || text[t] != pattern[p] {
			return false
		}
		return globMatch(pattern, text, p+1, t+1)
	}
}

func matchCharSet(set []rune, c rune) bool {
	negated := false
	i := 0
	if len(set) > 0 && set[0] == '^' {
		negated = true
		i = 1
	}
	matched := false
	for i < len(set) {
		if i+2 < len(set) && set[i+1] == '-' {
			if c >= set[i] && c <= set[i+2] {
				matched = true
				break
			}
			i += 3
		} else {
			if c == set[i] {
				matched = true
				break
			}
			i++
		}
	}
	return matched != negated
}

// Glob walks root and returns all files whose root-relative path matches
// pattern. Commonly ignored directories are skipped.
func Glob(root, pattern string) ([]string, error) {
	files, err := Walk(root, 0)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range files {
		rel := strings.TrimPrefix(strings.ReplaceAll(f, "\\", "/"),
			strings.ReplaceAll(root, "\\", "/")+"/")
		if GlobMatch(pattern, rel) {
			out = append(out, f)
		}
	}
	return out, nil
}
