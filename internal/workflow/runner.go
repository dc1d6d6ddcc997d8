// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package workflow

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"

	forgeexec "github.com/morganforge/forge/internal/exec"
)

// =============================================================================
// WORKFLOW EXECUTION
// =============================================================================

// StepResult is the outcome of one step.
type StepResult struct {
	StepName string
	Command  string // after variable expansion
	Success  bool
	Skipped  bool
	Attempts int
	Duration time.Duration
	Output   string
	Error    string
}

// RunResult is the outcome of one workflow run.
type RunResult struct {
	RunID    string
	Workflow string
	Started  time.Time
	Duration time.Duration
	Steps    []StepResult
	Success  bool
}

// SuccessfulSteps counts steps that ran and succeeded.
func (r *RunResult) SuccessfulSteps() int {
	n := 0
	for _, s := range r.Steps {
		if s.Success && !s.Skipped {
			n++
		}
	}
	return n
}

// retryDelay separates retry attempts of a failed step.
var retryDelay = time.Second

// Runner executes workflows step by step.
type Runner struct {
	executor *forgeexec.Executor

	// OnStep is called before each step runs, for progress display.
	OnStep func(index, total int, step *Step)
}

// NewRunner creates a runner backed by the given executor. A nil
// executor gets the default safety configuration.
func NewRunner(executor *forgeexec.Executor) *Runner {
	if executor == nil {
		executor = forgeexec.NewExecutor()
	}
	return &Runner{executor: executor}
}

// Run executes every step of a workflow in order. Steps with unmet
// conditions are skipped. A failed step stops the run unless the step
// sets continue_on_failure or the workflow sets on_failure = "continue".
func (r *Runner) Run(ctx context.Context, w *Workflow) (*RunResult, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	result := &RunResult{
		RunID:    uuid.New().String(),
		Workflow: w.Name,
		Started:  time.Now(),
		Success:  true,
	}

	for i := range w.Steps {
		step := &w.Steps[i]
		if r.OnStep != nil {
			r.OnStep(i, len(w.Steps), step)
		}

		if !r.conditionsMet(step, result) {
			result.Steps = append(result.Steps, StepResult{
				StepName: step.Name,
				Command:  step.Command,
				Skipped:  true,
			})
			continue
		}

		stepResult := r.runStep(ctx, step, w.Variables)
		result.Steps = append(result.Steps, stepResult)

		if !stepResult.Success {
			result.Success = false
			if !step.ContinueOnFailure && w.OnFailure != "continue" {
				break
			}
		}

		select {
		case <-ctx.Done():
			result.Success = false
			result.Duration = time.Since(result.Started)
			return result, ctx.Err()
		default:
		}
	}

	result.Duration = time.Since(result.Started)
	return result, nil
}

func (r *Runner) runStep(ctx context.Context, step *Step, vars map[string]string) StepResult {
	command := expandVariables(step.Command, vars)
	start := time.Now()

	stepResult := StepResult{
		StepName: step.Name,
		Command:  command,
	}

	opts := forgeexec.Options{Timeout: step.Timeout()}

	for attempt := 0; attempt <= step.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				stepResult.Error = ctx.Err().Error()
				stepResult.Attempts = attempt
				stepResult.Duration = time.Since(start)
				return stepResult
			}
		}
		stepResult.Attempts = attempt + 1

		execResult, err := r.executor.Run(ctx, command, opts)
		if err != nil {
			stepResult.Error = err.Error()
			if execResult != nil {
				stepResult.Output = execResult.Stdout
			}
			continue
		}
		stepResult.Output = execResult.Stdout
		if execResult.Success() {
			stepResult.Success = true
			stepResult.Error = ""
			break
		}
		stepResult.Error = execResult.Stderr
	}

	stepResult.Duration = time.Since(start)
	return stepResult
}

func (r *Runner) conditionsMet(step *Step, result *RunResult) bool {
	for _, cond := range step.Conditions {
		if !conditionMet(cond, result) {
			return false
		}
	}
	return true
}

func conditionMet(cond Condition, result *RunResult) bool {
	switch cond.Type {
	case "file_exists":
		info, err := os.Stat(cond.Value)
		return err == nil && !info.IsDir()
	case "file_not_exists":
		_, err := os.Stat(cond.Value)
		return os.IsNotExist(err)
	case "dir_exists":
		info, err := os.Stat(cond.Value)
		return err == nil && info.IsDir()
	case "dir_not_exists":
		info, err := os.Stat(cond.Value)
		return err != nil || !info.IsDir()
	case "env_set":
		_, ok := os.LookupEnv(cond.Value)
		return ok
	case "step_succeeded":
		return stepOutcome(result, cond.Value, true)
	case "step_failed":
		return stepOutcome(result, cond.Value, false)
	default:
		return false
	}
}

func stepOutcome(result *RunResult, stepName string, wantSuccess bool) bool {
	for _, s := range result.Steps {
		if s.StepName == stepName && !s.Skipped {
			return s.Success == wantSuccess
		}
	}
	return false
}
