// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	osexec "os/exec"
	"runtime"
	"time"
)

// =============================================================================
// COMMAND EXECUTION
// =============================================================================

// ErrBlocked is returned when a critical command is refused outright.
var ErrBlocked = errors.New("command blocked for safety")

// ErrTimedOut is returned when a command exceeds its time limit.
var ErrTimedOut = errors.New("command timed out")

// Result captures the outcome of one command.
type Result struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	TimedOut bool
}

// Success reports whether the command exited cleanly.
func (r *Result) Success() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// Options controls one execution.
type Options struct {
	// Timeout bounds the command. Zero means DefaultTimeout.
	Timeout time.Duration

	// WorkDir sets the working directory. Empty inherits the caller's.
	WorkDir string

	// SkipSafetyCheck runs the command without risk assessment.
	SkipSafetyCheck bool
}

// DefaultTimeout applies when Options.Timeout is zero.
const DefaultTimeout = 2 * time.Minute

// maxOutputBytes caps captured stdout and stderr each.
const maxOutputBytes = 1 << 20

// Executor runs shell commands with safety checks and timeouts.
type Executor struct {
	checker *SafetyChecker

	// BlockCritical refuses critical commands instead of deferring to
	// the confirmation hook.
	BlockCritical bool

	// Confirm is consulted before running medium and high risk
	// commands. A nil hook declines everything risky.
	Confirm func(risk CommandRisk, command string) bool
}

// NewExecutor creates an executor with the default safety checker.
func NewExecutor() *Executor {
	return &Executor{checker: NewSafetyChecker(), BlockCritical: true}
}

// WithAllowedCommands restricts execution to the given base commands.
func (e *Executor) WithAllowedCommands(commands []string) *Executor {
	e.checker.WithAllowedCommands(commands)
	return e
}

// Checker exposes the underlying safety checker.
func (e *Executor) Checker() *SafetyChecker {
	return e.checker
}

// Run executes one command through the platform shell.
func (e *Executor) Run(ctx context.Context, command string, opts Options) (*Result, error) {
	if !opts.SkipSafetyCheck {
		if err := e.gate(command); err != nil {
			return nil, err
		}
	}
	return e.run(ctx, command, opts)
}

// RunBatch executes commands in order, stopping at the first failure.
func (e *Executor) RunBatch(ctx context.Context, commands []string, opts Options) ([]*Result, error) {
	results := make([]*Result, 0, len(commands))
	for _, command := range commands {
		result, err := e.Run(ctx, command, opts)
		if err != nil {
			return results, err
		}
		results = append(results, result)
		if !result.Success() {
			return results, fmt.Errorf("command failed with exit code %d: %s",
				result.ExitCode, command)
		}
	}
	return results, nil
}

func (e *Executor) gate(command string) error {
	risk := e.checker.Assess(command)
	switch risk.Level {
	case RiskSafe, RiskLow:
		return nil
	case RiskCritical:
		if e.BlockCritical {
			return fmt.Errorf("%w: %s", ErrBlocked, risk.Reason)
		}
		fallthrough
	default:
		if e.Confirm != nil && e.Confirm(risk, command) {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrBlocked, risk.Reason)
	}
}

func (e *Executor) run(ctx context.Context, command string, opts Options) (*Result, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *osexec.Cmd
	if runtime.GOOS == "windows" {
		cmd = osexec.CommandContext(cmdCtx, "cmd", "/C", command)
	} else {
		cmd = osexec.CommandContext(cmdCtx, "sh", "-c", command)
	}
	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := &Result{
		Command:  command,
		Stdout:   clip(stdout.Bytes()),
		Stderr:   clip(stderr.Bytes()),
		Duration: duration,
	}

	if cmdCtx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
		return result, fmt.Errorf("%w after %s", ErrTimedOut, timeout)
	}

	if err != nil {
		var exitErr *osexec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	return result, nil
}

func clip(b []byte) string {
	if len(b) > maxOutputBytes {
		return string(b[:maxOutputBytes]) + "\n... output truncated"
	}
	return string(b)
}
