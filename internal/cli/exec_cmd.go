// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// exec_cmd.go - Guarded command execution for the forge CLI.
//
// Handles the "forge exec" command: assess the command's risk level,
// confirm when in doubt, then run it with a bounded timeout and
// captured output.
//
// Examples:
//   forge exec "go test ./..."
//   forge exec --timeout 600 "make release"
//   forge exec --no-confirm "systemctl restart nginx"

package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/morganforge/forge/internal/config"
	forgeexec "github.com/morganforge/forge/internal/exec"
)

// HandleExec handles the "exec" command.
func HandleExec(args Args) {
	result, err := HandleExecCommand(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(GetExitCode(err))
	}
	if result != nil && !result.Success() {
		os.Exit(result.ExitCode)
	}
}

// HandleExecCommand assesses and runs a single command.
func HandleExecCommand(args Args) (*forgeexec.Result, error) {
	parser := NewArgParser(args.Raw)

	command := strings.Join(parser.PositionalFrom(0), " ")
	if strings.TrimSpace(command) == "" {
		return nil, ErrMissingArgument("command", `forge exec "command to run"`)
	}

	cfg := config.Global()
	executor := newExecutor(cfg, args)

	opts := forgeexec.Options{}
	if secs := parser.FlagIntOrDefault("timeout", 0); secs > 0 {
		opts.Timeout = time.Duration(secs) * time.Second
	} else if cfg.Safety.ExecTimeoutSecs > 0 {
		opts.Timeout = time.Duration(cfg.Safety.ExecTimeoutSecs) * time.Second
	}

	result, err := executor.Run(context.Background(), command, opts)
	if err != nil {
		return nil, err
	}

	printExecResult(result, args.Quiet)
	return result, nil
}

// newExecutor builds an executor wired to the config's safety settings
// and the CLI confirmation prompt.
func newExecutor(cfg *config.Config, args Args) *forgeexec.Executor {
	executor := forgeexec.NewExecutor().WithAllowedCommands(cfg.Safety.AllowedCommands)
	executor.BlockCritical = cfg.Safety.BlockCritical

	executor.Confirm = func(risk forgeexec.CommandRisk, command string) bool {
		if args.NoConfirm || !cfg.Safety.ConfirmDestructive {
			return true
		}

		fmt.Fprintf(os.Stderr, "%s %s risk: %s\n",
			WarningStyle.Render("[Safety]"),
			strings.ToLower(risk.Level.String()),
			risk.Reason)
		for _, s := range risk.Suggestions {
			fmt.Fprintf(os.Stderr, "  %s\n", DimStyle.Render(s))
		}

		return PromptYesNo("Run \"" + command + "\" anyway?")
	}

	return executor
}

// printExecResult writes the captured output and a summary line.
func printExecResult(result *forgeexec.Result, quiet bool) {
	if result.Stdout != "" {
		fmt.Print(result.Stdout)
		if !strings.HasSuffix(result.Stdout, "\n") {
			fmt.Println()
		}
	}
	if result.Stderr != "" {
		fmt.Fprint(os.Stderr, result.Stderr)
		if !strings.HasSuffix(result.Stderr, "\n") {
			fmt.Fprintln(os.Stderr)
		}
	}

	if quiet {
		return
	}

	status := SuccessStyle.Render("[OK]")
	if result.TimedOut {
		status = ErrorStyle.Render("[TIMEOUT]")
	} else if !result.Success() {
		status = ErrorStyle.Render(fmt.Sprintf("[EXIT %d]", result.ExitCode))
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", status, DimStyle.Render(formatDurationShort(result.Duration)))
}
