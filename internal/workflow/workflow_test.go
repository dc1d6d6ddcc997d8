// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package workflow

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func writeWorkflow(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// =============================================================================
// LOADING
// =============================================================================

func TestLoadWorkflow(t *testing.T) {
	path := writeWorkflow(t, "build.toml", `
name = "build-test"
description = "Build and test"
on_failure = "stop"

[variables]
target = "./..."

[[steps]]
name = "Build"
command = "go build ${target}"
timeout_secs = 300
retries = 1

[[steps]]
name = "Test"
command = "go test ${target}"
continue_on_failure = true
`)

	w, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "build-test", w.Name)
	assert.Equal(t, "stop", w.OnFailure)
	require.Len(t, w.Steps, 2)
	assert.Equal(t, "go build ${target}", w.Steps[0].Command)
	assert.Equal(t, 5*time.Minute, w.Steps[0].Timeout())
	assert.Equal(t, 1, w.Steps[0].Retries)
	assert.True(t, w.Steps[1].ContinueOnFailure)
	assert.Equal(t, "./...", w.Variables["target"])
}

func TestLoadNameDefaultsToFilename(t *testing.T) {
	path := writeWorkflow(t, "deploy.toml", `
[[steps]]
command = "echo deploy"
`)
	w, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "deploy", w.Name)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no steps", `name = "empty"`},
		{"step without command", "name = \"x\"\n[[steps]]\nname = \"step\""},
		{"bad on_failure", "name = \"x\"\non_failure = \"retry\"\n[[steps]]\ncommand = \"ls\""},
		{"bad condition type", "name = \"x\"\n[[steps]]\ncommand = \"ls\"\n[[steps.conditions]]\ntype = \"moon_phase\"\nvalue = \"full\""},
	}
	for _, tt := range tests {
		path := writeWorkflow(t, "bad.toml", tt.content)
		_, err := Load(path)
		assert.Error(t, err, tt.name)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	write("zeta.toml", "name = \"zeta\"\n[[steps]]\ncommand = \"ls\"")
	write("alpha.toml", "name = \"alpha\"\n[[steps]]\ncommand = \"ls\"")
	write("notes.txt", "not a workflow")

	workflows, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, workflows, 2)
	assert.Equal(t, "alpha", workflows[0].Name)
	assert.Equal(t, "zeta", workflows[1].Name)
}

func TestLoadDirMissing(t *testing.T) {
	workflows, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, workflows)
}

// =============================================================================
// VARIABLE EXPANSION
// =============================================================================

func TestExpandVariables(t *testing.T) {
	vars := map[string]string{"name": "forge", "dir": "/tmp"}
	assert.Equal(t, "echo forge > /tmp/out",
		expandVariables("echo ${name} > ${dir}/out", vars))
	assert.Equal(t, "echo ${missing}",
		expandVariables("echo ${missing}", vars))
}

// =============================================================================
// RUNNING
// =============================================================================

func TestRunSimpleWorkflow(t *testing.T) {
	skipOnWindows(t)
	w := &Workflow{
		Name:      "greet",
		Variables: map[string]string{"who": "world"},
		Steps: []Step{
			{Name: "hello", Command: "echo hello ${who}"},
			{Name: "bye", Command: "echo bye"},
		},
	}

	result, err := NewRunner(nil).Run(context.Background(), w)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.RunID)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, "echo hello world", result.Steps[0].Command)
	assert.Equal(t, "hello world\n", result.Steps[0].Output)
	assert.Equal(t, 2, result.SuccessfulSteps())
}

func TestRunStopsOnFailure(t *testing.T) {
	skipOnWindows(t)
	w := &Workflow{
		Name: "failing",
		Steps: []Step{
			{Name: "ok", Command: "true"},
			{Name: "boom", Command: "exit 7"},
			{Name: "never", Command: "echo unreachable"},
		},
	}

	result, err := NewRunner(nil).Run(context.Background(), w)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Len(t, result.Steps, 2)
}

func TestRunContinueOnFailure(t *testing.T) {
	skipOnWindows(t)
	w := &Workflow{
		Name: "tolerant",
		Steps: []Step{
			{Name: "boom", Command: "exit 1", ContinueOnFailure: true},
			{Name: "after", Command: "echo still here"},
		},
	}

	result, err := NewRunner(nil).Run(context.Background(), w)
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Steps, 2)
	assert.True(t, result.Steps[1].Success)
}

func TestRunWorkflowOnFailureContinue(t *testing.T) {
	skipOnWindows(t)
	w := &Workflow{
		Name:      "continue-all",
		OnFailure: "continue",
		Steps: []Step{
			{Name: "boom", Command: "exit 1"},
			{Name: "after", Command: "echo ran"},
		},
	}

	result, err := NewRunner(nil).Run(context.Background(), w)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Len(t, result.Steps, 2)
}

func TestRunRetries(t *testing.T) {
	skipOnWindows(t)
	old := retryDelay
	retryDelay = 10 * time.Millisecond
	defer func() { retryDelay = old }()

	dir := t.TempDir()
	marker := filepath.Join(dir, "ran-once")
	// Fails on the first attempt, succeeds on the second.
	cmd := "test -f " + marker + " || { touch " + marker + "; exit 1; }"

	w := &Workflow{
		Name:  "retry",
		Steps: []Step{{Name: "flaky", Command: cmd, Retries: 2}},
	}

	result, err := NewRunner(nil).Run(context.Background(), w)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Steps[0].Attempts)
}

func TestRunConditions(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	present := filepath.Join(dir, "present.txt")
	require.NoError(t, os.WriteFile(present, []byte("x"), 0644))

	w := &Workflow{
		Name: "conditional",
		Steps: []Step{
			{
				Name:       "runs",
				Command:    "echo yes",
				Conditions: []Condition{{Type: "file_exists", Value: present}},
			},
			{
				Name:       "skipped",
				Command:    "echo no",
				Conditions: []Condition{{Type: "file_exists", Value: filepath.Join(dir, "absent")}},
			},
			{
				Name:       "depends",
				Command:    "echo dep",
				Conditions: []Condition{{Type: "step_succeeded", Value: "runs"}},
			},
		},
	}

	result, err := NewRunner(nil).Run(context.Background(), w)
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, result.Steps, 3)
	assert.True(t, result.Steps[0].Success)
	assert.True(t, result.Steps[1].Skipped)
	assert.True(t, result.Steps[2].Success)
}

func TestRunStepFailedCondition(t *testing.T) {
	skipOnWindows(t)
	w := &Workflow{
		Name:      "cleanup-on-failure",
		OnFailure: "continue",
		Steps: []Step{
			{Name: "boom", Command: "exit 1"},
			{
				Name:       "cleanup",
				Command:    "echo cleaning",
				Conditions: []Condition{{Type: "step_failed", Value: "boom"}},
			},
		},
	}

	result, err := NewRunner(nil).Run(context.Background(), w)
	require.NoError(t, err)
	require.Len(t, result.Steps, 2)
	assert.True(t, result.Steps[1].Success)
}

func TestRunEnvCondition(t *testing.T) {
	skipOnWindows(t)
	t.Setenv("FORGE_WORKFLOW_TEST", "1")
	w := &Workflow{
		Name: "env",
		Steps: []Step{
			{
				Name:       "gated",
				Command:    "echo on",
				Conditions: []Condition{{Type: "env_set", Value: "FORGE_WORKFLOW_TEST"}},
			},
		},
	}

	result, err := NewRunner(nil).Run(context.Background(), w)
	require.NoError(t, err)
	assert.True(t, result.Steps[0].Success)
}
