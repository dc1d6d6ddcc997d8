// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fsops

import (
	"os"
	"path/filepath"
	"sort"
)

// =============================================================================
// DIRECTORY WALKING
// =============================================================================

// Directories that are never worth descending into.
var ignoredDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	"node_modules": true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	".idea":        true,
	".vscode":      true,
	"target":       true,
	"dist":         true,
	"build":        true,
	".cache":       true,
}

// Walker walks a directory tree depth-first.
type Walker struct {
	// MaxDepth limits descent below the root. 0 means unlimited.
	// Depth 1 returns only the root's direct children.
	MaxDepth int

	// IncludeHidden includes dot-prefixed files and directories.
	IncludeHidden bool

	// IgnoreDirs overrides the default ignore list when non-nil.
	IgnoreDirs map[string]bool
}

type walkFrame struct {
	path  string
	depth int
}

// Files returns every regular file under root, sorted. Unreadable
// directories are skipped rather than aborting the walk.
func (w *Walker) Files(root string) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, err
	}

	ignore := w.IgnoreDirs
	if ignore == nil {
		ignore = ignoredDirs
	}

	var files []string
	stack := []walkFrame{{path: root, depth: 0}}

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(frame.path)
		if err != nil {
			// Permission problems on a subdirectory are not fatal.
			continue
		}

		for _, entry := range entries {
			name := entry.Name()
			if !w.IncludeHidden && name[0] == '.' {
				continue
			}
			full := filepath.Join(frame.path, name)
			if entry.IsDir() {
				if ignore[name] {
					continue
				}
				if w.MaxDepth > 0 && frame.depth+1 >= w.MaxDepth {
					continue
				}
				stack = append(stack, walkFrame{path: full, depth: frame.depth + 1})
			} else if entry.Type().IsRegular() {
				files = append(files, full)
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

// Walk returns every regular file under root using default walker
// settings. maxDepth of 0 means unlimited.
func Walk(root string, maxDepth int) ([]string, error) {
	w := &Walker{MaxDepth: maxDepth}
	return w.Files(root)
}
