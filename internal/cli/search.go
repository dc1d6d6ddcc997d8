// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// search.go - File content search for the forge CLI.
//
// Handles the "forge search" command: recursive literal text search
// over a directory tree with the usual ignore rules (.git, node_modules
// and friends).
//
// Examples:
//   forge search "TODO" ./src
//   forge search Walker --glob "**/*.go" --word
//   forge search error logs --case --max-depth 2

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/morganforge/forge/internal/fsops"
	"github.com/morganforge/forge/internal/util"
)

// HandleSearch handles the "search" command.
func HandleSearch(args Args) {
	if err := HandleSearchCommand(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(GetExitCode(err))
	}
}

// HandleSearchCommand runs the search and prints grouped results.
func HandleSearchCommand(args Args) error {
	parser := NewArgParser(args.Raw)

	query := parser.Positional(0)
	if query == "" {
		return ErrMissingArgument("query", `forge search <query> [path]`)
	}

	root := parser.Positional(1)
	if root == "" {
		root = "."
	}
	if !fsops.IsDirectory(root) {
		return ErrNotFound("directory", root)
	}

	searcher := &fsops.TextSearcher{
		CaseSensitive: parser.BoolFlag("case"),
		WholeWord:     parser.BoolFlag("word"),
	}

	files, err := searchFileList(root, parser)
	if err != nil {
		return err
	}

	var total int
	var lastPath string
	width := GetTerminalWidth()

	for _, f := range files {
		matches, err := searcher.SearchInFile(f, query)
		if err != nil {
			// Unreadable file, skip
			continue
		}
		for _, m := range matches {
			if m.Path != lastPath {
				if lastPath != "" {
					fmt.Println()
				}
				fmt.Println(HighlightStyle.Render(m.Path))
				lastPath = m.Path
			}
			line := util.TruncateWidth(strings.TrimSpace(m.Text), width-12)
			fmt.Printf("  %s %s\n",
				DimStyle.Render(fmt.Sprintf("%d:%d", m.Line, m.Column)),
				line)
			total++
		}
	}

	if !args.Quiet {
		fmt.Println()
		if total == 0 {
			fmt.Println(DimStyle.Render("No matches."))
		} else {
			fmt.Println(DimStyle.Render(fmt.Sprintf("%d match(es)", total)))
		}
	}

	return nil
}

// searchFileList resolves the set of files to search, honoring the
// --glob, --hidden and --max-depth flags.
func searchFileList(root string, parser *ArgParser) ([]string, error) {
	pattern := parser.Flag("glob")
	maxDepth := parser.FlagIntOrDefault("max-depth", 0)
	hidden := parser.BoolFlag("hidden")

	if pattern != "" && maxDepth == 0 && !hidden {
		return fsops.Glob(root, pattern)
	}

	walker := &fsops.Walker{
		MaxDepth:      maxDepth,
		IncludeHidden: hidden,
	}
	files, err := walker.Files(root)
	if err != nil {
		return nil, err
	}

	if pattern == "" {
		return files, nil
	}

	prefix := strings.TrimSuffix(root, "/") + "/"
	var filtered []string
	for _, f := range files {
		rel := strings.TrimPrefix(f, prefix)
		if fsops.GlobMatch(pattern, rel) {
			filtered = append(filtered, f)
		}
	}
	return filtered, nil
}
