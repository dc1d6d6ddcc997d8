// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package fsops implements the file system layer used by the edit,
// search, and workflow commands.
//
// # Key Types
//
//   - Walker: depth-first directory traversal with depth limits and a
//     built-in ignore list for dependency and VCS directories.
//   - TextSearcher: literal text search with case and whole-word
//     options, reporting 1-based line and column positions.
//   - Watcher: fsnotify-backed recursive watcher with debounced
//     created/modified/deleted events.
//
// # Glob Syntax
//
// GlobMatch supports '*' within one path segment, '**' across
// segments, '?' for a single character, and '[a-z]' character sets
// with '^' negation.
//
// Writes go through util.AtomicWriteFile so an interrupted write never
// leaves a half-written file behind.
package fsops
