// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fsops

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/morganforge/forge/internal/util"
)

// ReadFile reads a file as a UTF-8 string.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// ReadFileLines reads a file and splits it into lines.
func ReadFileLines(path string) ([]string, error) {
	content, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return splitLines(content), nil
}

// WriteFile writes content to path.
// RELIABILITY: Atomic write with fsync prevents data loss on crash.
func WriteFile(path string, content string) error {
	return util.AtomicWriteFile(path, []byte(content), 0644)
}

// AppendToFile appends content to path, creating it if needed.
func AppendToFile(path string, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s for append: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}
	return nil
}

// DeleteFile removes a file.
func DeleteFile(path string) error {
	return os.Remove(path)
}

// CreateDirectory creates a directory and any missing parents.
func CreateDirectory(path string) error {
	return os.MkdirAll(path, 0755)
}

// ListDirectory returns the sorted entry names of a directory.
func ListDirectory(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", path, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsFile reports whether path exists and is a regular file.
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// IsDirectory reports whether path exists and is a directory.
func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// FileSize returns the size of a file in bytes.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// CopyFile copies src to dest, preserving content but not metadata.
func CopyFile(src, dest string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	return util.AtomicWriteFile(dest, data, 0644)
}

// MoveFile renames src to dest, falling back to copy+delete across
// filesystems.
func MoveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := CopyFile(src, dest); err != nil {
		return err
	}
	return os.Remove(src)
}

// BackupFile copies path to path+".backup" and returns the backup path.
func BackupFile(path string) (string, error) {
	backup := path + ".backup"
	if err := CopyFile(path, backup); err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	return backup, nil
}

// AbsPath resolves path to an absolute, cleaned form.
func AbsPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// splitLines splits on \n, tolerating \r\n line endings. A trailing
// newline does not produce a final empty line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			line := s[start:i]
			if n := len(line); n > 0 && line[n-1] == '\r' {
				line = line[:n-1]
			}
			lines = append(lines, line)
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
