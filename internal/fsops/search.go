// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fsops

import (
	"strings"
)

// =============================================================================
// TEXT SEARCH
// =============================================================================

// SearchMatch is one hit inside a file. Line and Column are 1-based.
type SearchMatch struct {
	Path   string
	Line   int
	Column int
	Text   string // the full matched line
}

// TextSearcher finds occurrences of a literal query in text.
type TextSearcher struct {
	CaseSensitive bool
	WholeWord     bool
}

// SearchInText returns the 1-based (line, column) of every match in content.
func (s *TextSearcher) SearchInText(content, query string) []SearchMatch {
	if query == "" {
		return nil
	}
	var matches []SearchMatch
	for i, line := range splitLines(content) {
		haystack := line
		needle := query
		if !s.CaseSensitive {
			haystack = strings.ToLower(line)
			needle = strings.ToLower(query)
		}
		start := 0
		for {
			idx := strings.Index(haystack[start:], needle)
			if idx < 0 {
				break
			}
			pos := start + idx
			if !s.WholeWord || isWholeWordAt(haystack, pos, len(needle)) {
				matches = append(matches, SearchMatch{
					Line:   i + 1,
					Column: pos + 1,
					Text:   line,
				})
			}
			start = pos + 1
		}
	}
	return matches
}

// SearchInFile searches one file and stamps its path on the matches.
func (s *TextSearcher) SearchInFile(path, query string) ([]SearchMatch, error) {
	content, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	matches := s.SearchInText(content, query)
	for i := range matches {
		matches[i].Path = path
	}
	return matches, nil
}

// SearchDir searches every file under root whose relative path matches
// pattern. An empty pattern searches all files. Files that cannot be
// read (binary junk, permissions) are skipped.
func (s *TextSearcher) SearchDir(root, pattern, query string) ([]SearchMatch, error) {
	var files []string
	var err error
	if pattern == "" {
		files, err = Walk(root, 0)
	} else {
		files, err = Glob(root, pattern)
	}
	if err != nil {
		return nil, err
	}

	var all []SearchMatch
	for _, f := range files {
		matches, err := s.SearchInFile(f, query)
		if err != nil {
			continue
		}
		all = append(all, matches...)
	}
	return all, nil
}

// isWholeWordAt reports whether the match at [pos, pos+length) is
// bounded by non-word characters. Word characters are alphanumerics
// and underscore.
func isWholeWordAt(s string, pos, length int) bool {
	if pos > 0 && isWordChar(s[pos-1]) {
		return false
	}
	end := pos + length
	if end < len(s) && isWordChar(s[end]) {
		return false
	}
	return true
}

func isWordChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}
