// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// WORKFLOW DEFINITIONS
// =============================================================================

// Workflow is a named sequence of shell commands loaded from a TOML file.
type Workflow struct {
	Name        string            `toml:"name"`
	Description string            `toml:"description"`
	Variables   map[string]string `toml:"variables"`
	OnFailure   string            `toml:"on_failure"` // "stop" or "continue"
	Steps       []Step            `toml:"steps"`
}

// Step is one command in a workflow.
type Step struct {
	Name              string      `toml:"name"`
	Command           string      `toml:"command"`
	Description       string      `toml:"description"`
	ContinueOnFailure bool        `toml:"continue_on_failure"`
	TimeoutSecs       int         `toml:"timeout_secs"`
	Retries           int         `toml:"retries"`
	Conditions        []Condition `toml:"conditions"`
}

// Condition gates a step. Unmet conditions skip the step rather than
// failing the workflow.
type Condition struct {
	// Type is one of: file_exists, file_not_exists, dir_exists,
	// dir_not_exists, env_set, step_succeeded, step_failed.
	Type  string `toml:"type"`
	Value string `toml:"value"`
}

// Timeout returns the step timeout, zero when unset.
func (s *Step) Timeout() time.Duration {
	return time.Duration(s.TimeoutSecs) * time.Second
}

// Validate checks a workflow for structural problems.
func (w *Workflow) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("workflow has no name")
	}
	if len(w.Steps) == 0 {
		return fmt.Errorf("workflow %q has no steps", w.Name)
	}
	if w.OnFailure != "" && w.OnFailure != "stop" && w.OnFailure != "continue" {
		return fmt.Errorf("workflow %q: on_failure must be stop or continue, got %q",
			w.Name, w.OnFailure)
	}
	for i, step := range w.Steps {
		if step.Command == "" {
			return fmt.Errorf("workflow %q: step %d has no command", w.Name, i+1)
		}
		for _, cond := range step.Conditions {
			if !validConditionTypes[cond.Type] {
				return fmt.Errorf("workflow %q: step %d has unknown condition type %q",
					w.Name, i+1, cond.Type)
			}
		}
	}
	return nil
}

var validConditionTypes = map[string]bool{
	"file_exists":     true,
	"file_not_exists": true,
	"dir_exists":      true,
	"dir_not_exists":  true,
	"env_set":         true,
	"step_succeeded":  true,
	"step_failed":     true,
}

// expandVariables substitutes ${var} references in a command.
func expandVariables(command string, vars map[string]string) string {
	for name, value := range vars {
		command = strings.ReplaceAll(command, "${"+name+"}", value)
	}
	return command
}

// =============================================================================
// LOADING
// =============================================================================

// Load parses one workflow file.
func Load(path string) (*Workflow, error) {
	var w Workflow
	if _, err := toml.DecodeFile(path, &w); err != nil {
		return nil, fmt.Errorf("failed to parse workflow %s: %w", path, err)
	}
	if w.Name == "" {
		base := filepath.Base(path)
		w.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

// LoadDir loads every .toml workflow in a directory, sorted by name.
// A missing directory yields an empty list.
func LoadDir(dir string) ([]*Workflow, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var workflows []*Workflow
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		w, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, w)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].Name < workflows[j].Name
	})
	return workflows, nil
}

// DefaultDir is where forge looks for workflow files.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".forge/workflows"
	}
	return filepath.Join(home, ".forge", "workflows")
}
