// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// workflow_cmd.go - Workflow management commands for the forge CLI.
//
// Handles the "forge workflow" command family:
//   forge workflow list           List workflows in ~/.forge/workflows
//   forge workflow show <name>    Show a workflow's steps
//   forge workflow run <file>     Run a workflow
//     --watch DIR                 Re-run when files under DIR change

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/morganforge/forge/internal/config"
	"github.com/morganforge/forge/internal/fsops"
	"github.com/morganforge/forge/internal/workflow"
)

// HandleWorkflow handles the "workflow" command.
func HandleWorkflow(args Args) {
	if err := HandleWorkflowCommand(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(GetExitCode(err))
	}
}

// HandleWorkflowCommand dispatches workflow subcommands.
func HandleWorkflowCommand(args Args) error {
	parser := NewArgParser(args.Raw)

	switch parser.Subcommand() {
	case "", "list", "ls":
		return workflowList()
	case "show":
		return workflowShow(parser.Positional(1))
	case "run":
		return workflowRun(parser, args)
	default:
		return &UsageError{
			Arg:    "subcommand",
			Reason: fmt.Sprintf("unknown workflow subcommand %q", parser.Subcommand()),
			Usage:  "forge workflow [list|show|run]",
		}
	}
}

// workflowList prints the workflows found in the default directory.
func workflowList() error {
	dir := workflow.DefaultDir()
	workflows, err := workflow.LoadDir(dir)
	if err != nil {
		return err
	}

	if len(workflows) == 0 {
		fmt.Println(DimStyle.Render("No workflows found in " + dir))
		return nil
	}

	fmt.Println()
	fmt.Println(TitleStyle.Render("Workflows"))
	for _, w := range workflows {
		desc := w.Description
		if desc == "" {
			desc = fmt.Sprintf("%d step(s)", len(w.Steps))
		}
		fmt.Printf("  %s  %s\n",
			HighlightStyle.Render(fmt.Sprintf("%-20s", w.Name)),
			DimStyle.Render(desc))
	}
	fmt.Println()
	return nil
}

// workflowShow prints the steps of a single workflow.
func workflowShow(name string) error {
	if name == "" {
		return ErrMissingArgument("workflow", "forge workflow show <name>")
	}

	w, err := resolveWorkflow(name)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(TitleStyle.Render(w.Name))
	if w.Description != "" {
		fmt.Println(DimStyle.Render(w.Description))
	}
	if len(w.Variables) > 0 {
		fmt.Println()
		fmt.Println(SectionStyle.Render("Variables"))
		for k, v := range w.Variables {
			fmt.Printf("  %s = %s\n", HighlightStyle.Render(k), v)
		}
	}

	fmt.Println()
	fmt.Println(SectionStyle.Render("Steps"))
	for i, step := range w.Steps {
		fmt.Printf("  %d. %s\n", i+1, HighlightStyle.Render(step.Name))
		fmt.Printf("     %s\n", step.Command)
		if step.Description != "" {
			fmt.Printf("     %s\n", DimStyle.Render(step.Description))
		}
		if len(step.Conditions) > 0 {
			for _, cond := range step.Conditions {
				fmt.Printf("     %s\n", DimStyle.Render("when "+cond.Type+" "+cond.Value))
			}
		}
	}
	fmt.Println()
	return nil
}

// workflowRun executes a workflow, optionally re-running on file changes.
func workflowRun(parser *ArgParser, args Args) error {
	name := parser.Positional(1)
	if name == "" {
		return ErrMissingArgument("workflow", "forge workflow run <name|file.toml>")
	}

	w, err := resolveWorkflow(name)
	if err != nil {
		return err
	}

	cfg := config.Global()
	runner := workflow.NewRunner(newExecutor(cfg, args))
	if !args.Quiet {
		runner.OnStep = func(index, total int, step *workflow.Step) {
			fmt.Printf("%s [%d/%d] %s\n",
				InfoStyle.Render("[Step]"), index+1, total, step.Name)
		}
	}

	watchDir := parser.Flag("watch")
	if watchDir == "" {
		result, err := runner.Run(context.Background(), w)
		if err != nil {
			return err
		}
		printRunResult(result, args.Quiet)
		if !result.Success {
			os.Exit(ExitGeneralError)
		}
		return nil
	}

	return workflowWatch(runner, w, watchDir, args)
}

// workflowWatch runs the workflow, then re-runs it whenever files under
// dir change, until interrupted.
func workflowWatch(runner *workflow.Runner, w *workflow.Workflow, dir string, args Args) error {
	if !fsops.IsDirectory(dir) {
		return ErrNotFound("directory", dir)
	}

	watcher, err := fsops.NewWatcher(dir, 500*time.Millisecond)
	if err != nil {
		return WrapError(err, "watch failed")
	}
	defer watcher.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	runOnce := func() {
		result, err := runner.Run(context.Background(), w)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			return
		}
		printRunResult(result, args.Quiet)
	}

	runOnce()
	fmt.Println(chatInfoStyle.Render("Watching " + dir + " for changes (Ctrl+C to stop)..."))

	for {
		select {
		case <-sigChan:
			fmt.Println()
			return nil
		case ev, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			if !args.Quiet {
				fmt.Printf("%s %s %s\n",
					InfoStyle.Render("[Change]"), ev.Kind.String(), ev.Path)
			}
			runOnce()
		}
	}
}

// resolveWorkflow loads a workflow from a path, or by name from the
// default workflow directory.
func resolveWorkflow(name string) (*workflow.Workflow, error) {
	if fsops.FileExists(name) {
		return workflow.Load(name)
	}

	candidate := filepath.Join(workflow.DefaultDir(), name)
	if !strings.HasSuffix(candidate, ".toml") {
		candidate += ".toml"
	}
	if fsops.FileExists(candidate) {
		return workflow.Load(candidate)
	}

	return nil, ErrNotFound("workflow", name)
}

// printRunResult prints per-step outcomes and a summary line.
func printRunResult(result *workflow.RunResult, quiet bool) {
	if !quiet {
		fmt.Println()
		for _, step := range result.Steps {
			switch {
			case step.Skipped:
				fmt.Printf("  %s %s\n", RenderStatus("skipped"), step.StepName)
			case step.Success:
				fmt.Printf("  %s %s %s\n", RenderStatus("ok"), step.StepName,
					DimStyle.Render(formatDurationShort(step.Duration)))
			default:
				fmt.Printf("  %s %s: %s\n", RenderStatus("fail"), step.StepName, step.Error)
			}
		}
		fmt.Println()
	}

	status := RenderStatus("ok")
	if !result.Success {
		status = RenderStatus("fail")
	}
	fmt.Printf("%s %s: %d/%d steps in %s %s\n",
		status,
		result.Workflow,
		result.SuccessfulSteps(),
		len(result.Steps),
		formatDurationShort(result.Duration),
		DimStyle.Render("run "+result.RunID))
}
