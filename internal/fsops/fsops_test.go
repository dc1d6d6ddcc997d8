// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fsops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// FILE OPERATIONS
// =============================================================================

func TestWriteAndReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")

	require.NoError(t, WriteFile(path, "hello\nworld\n"))

	content, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld\n", content)

	lines, err := ReadFileLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "world"}, lines)
}

func TestAppendToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.txt")

	require.NoError(t, AppendToFile(path, "one\n"))
	require.NoError(t, AppendToFile(path, "two\n"))

	content, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", content)
}

func TestCopyAndMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	require.NoError(t, WriteFile(src, "payload"))

	cp := filepath.Join(dir, "copy.txt")
	require.NoError(t, CopyFile(src, cp))
	content, err := ReadFile(cp)
	require.NoError(t, err)
	assert.Equal(t, "payload", content)
	assert.True(t, FileExists(src))

	moved := filepath.Join(dir, "moved.txt")
	require.NoError(t, MoveFile(src, moved))
	assert.False(t, FileExists(src))
	assert.True(t, FileExists(moved))
}

func TestBackupFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, WriteFile(path, "package main\n"))

	backup, err := BackupFile(path)
	require.NoError(t, err)
	assert.Equal(t, path+".backup", backup)

	content, err := ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "package main\n", content)
}

func TestFileSizeAndKinds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, WriteFile(path, "12345"))

	size, err := FileSize(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	assert.True(t, IsFile(path))
	assert.False(t, IsDirectory(path))
	assert.True(t, IsDirectory(dir))
}

// =============================================================================
// GLOB MATCHING
// =============================================================================

func TestGlobMatch(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"*.go", "main.go", true},
		{"*.go", "main.rs", false},
		{"*.go", "cmd/main.go", false}, // * does not cross segments
		{"**/*.go", "cmd/main.go", true},
		{"**/*.go", "a/b/c/deep.go", true},
		{"**/*.go", "main.go", true}, // ** matches zero segments
		{"src/**/test_*.py", "src/pkg/sub/test_util.py", true},
		{"src/**/test_*.py", "src/test_util.py", true},
		{"src/**/test_*.py", "lib/test_util.py", false},
		{"file?.txt", "file1.txt", true},
		{"file?.txt", "file12.txt", false},
		{"file?.txt", "file/.txt", false},
		{"[abc].txt", "a.txt", true},
		{"[abc].txt", "d.txt", false},
		{"[a-z].txt", "q.txt", true},
		{"[a-z].txt", "Q.txt", false},
		{"[^a-z].txt", "Q.txt", true},
		{"[^a-z].txt", "q.txt", false},
		{"exact.txt", "exact.txt", true},
		{"exact.txt", "exact.txt.bak", false},
		{"**", "anything/at/all.txt", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GlobMatch(tt.pattern, tt.path),
			"pattern %q against %q", tt.pattern, tt.path)
	}
}

// =============================================================================
// WALKING
// =============================================================================

func makeTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := []string{
		"main.go",
		"util.go",
		"README.md",
		"cmd/app/main.go",
		"internal/deep/nested/thing.go",
		".git/config",
		"node_modules/pkg/index.js",
		".hidden.txt",
	}
	for _, f := range files {
		full := filepath.Join(dir, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0644))
	}
	return dir
}

func TestWalkSkipsIgnoredAndHidden(t *testing.T) {
	dir := makeTree(t)

	files, err := Walk(dir, 0)
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		r, _ := filepath.Rel(dir, f)
		rel = append(rel, filepath.ToSlash(r))
	}

	assert.Contains(t, rel, "main.go")
	assert.Contains(t, rel, "cmd/app/main.go")
	assert.Contains(t, rel, "internal/deep/nested/thing.go")
	assert.NotContains(t, rel, ".git/config")
	assert.NotContains(t, rel, "node_modules/pkg/index.js")
	assert.NotContains(t, rel, ".hidden.txt")
}

func TestWalkMaxDepth(t *testing.T) {
	dir := makeTree(t)

	files, err := Walk(dir, 1)
	require.NoError(t, err)

	for _, f := range files {
		r, _ := filepath.Rel(dir, f)
		assert.NotContains(t, filepath.ToSlash(r), "/",
			"depth 1 should only return root files, got %s", r)
	}
	assert.Len(t, files, 3)
}

func TestWalkIncludeHidden(t *testing.T) {
	dir := makeTree(t)

	w := &Walker{IncludeHidden: true, IgnoreDirs: map[string]bool{}}
	files, err := w.Files(dir)
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		r, _ := filepath.Rel(dir, f)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.Contains(t, rel, ".hidden.txt")
	assert.Contains(t, rel, ".git/config")
}

func TestGlobOverTree(t *testing.T) {
	dir := makeTree(t)

	files, err := Glob(dir, "**/*.go")
	require.NoError(t, err)
	assert.Len(t, files, 4)

	files, err = Glob(dir, "*.md")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "README.md", filepath.Base(files[0]))
}

// =============================================================================
// SEARCHING
// =============================================================================

func TestSearchInTextBasic(t *testing.T) {
	s := &TextSearcher{CaseSensitive: true}
	matches := s.SearchInText("foo bar\nbar foo bar\n", "bar")

	require.Len(t, matches, 3)
	assert.Equal(t, 1, matches[0].Line)
	assert.Equal(t, 5, matches[0].Column)
	assert.Equal(t, 2, matches[1].Line)
	assert.Equal(t, 1, matches[1].Column)
	assert.Equal(t, 2, matches[2].Line)
	assert.Equal(t, 9, matches[2].Column)
}

func TestSearchCaseInsensitive(t *testing.T) {
	s := &TextSearcher{}
	matches := s.SearchInText("Error here\nno err\nERROR again", "error")
	require.Len(t, matches, 2)
	assert.Equal(t, 1, matches[0].Line)
	assert.Equal(t, 3, matches[1].Line)
}

func TestSearchWholeWord(t *testing.T) {
	s := &TextSearcher{CaseSensitive: true, WholeWord: true}

	matches := s.SearchInText("count counter count_x re count", "count")
	require.Len(t, matches, 2)
	assert.Equal(t, 1, matches[0].Column)
	assert.Equal(t, 26, matches[1].Column)
}

func TestSearchDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteFile(filepath.Join(dir, "a.go"), "package a\nfunc Hello() {}\n"))
	require.NoError(t, WriteFile(filepath.Join(dir, "b.go"), "package b\n// Hello there\n"))
	require.NoError(t, WriteFile(filepath.Join(dir, "c.txt"), "Hello\n"))

	s := &TextSearcher{CaseSensitive: true}
	matches, err := s.SearchDir(dir, "*.go", "Hello")
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	matches, err = s.SearchDir(dir, "", "Hello")
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}

// =============================================================================
// WATCHING
// =============================================================================

func waitForEvent(t *testing.T, w *Watcher, path string) FileEvent {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			if ev.Path == path {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event on %s", path)
		}
	}
}

func TestWatcherCreateModifyDelete(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir, 50*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	path := filepath.Join(dir, "watched.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))
	ev := waitForEvent(t, w, path)
	assert.Equal(t, EventCreated, ev.Kind)

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0644))
	ev = waitForEvent(t, w, path)
	assert.Equal(t, EventModified, ev.Kind)

	require.NoError(t, os.Remove(path))
	ev = waitForEvent(t, w, path)
	assert.Equal(t, EventDeleted, ev.Kind)
}

func TestWatcherCloseStopsEvents(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir, 50*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, ok := <-w.Events()
	assert.False(t, ok, "event channel should be closed")
}
