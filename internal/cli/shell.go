// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// shell.go - Interactive guarded shell for the forge CLI.
//
// Handles the "forge shell" command: a REPL that runs each line through
// the same safety assessment and executor as "forge exec". Built-in
// commands cd and exit are handled in-process so directory changes
// persist across lines.

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

// HandleShell handles the "shell" command.
func HandleShell(args Args) {
	if err := HandleShellCommand(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(GetExitCode(err))
	}
}

// HandleShellCommand runs the guarded shell REPL.
func HandleShellCommand(args Args) error {
	if err := RequiresTTY("run a shell"); err != nil {
		return err
	}

	cfg := config.Global()
	executor := newExecutor(cfg, args)

	var timeout time.Duration
	if cfg.Safety.ExecTimeoutSecs > 0 {
		timeout = time.Duration(cfg.Safety.ExecTimeoutSecs) * time.Second
	}

	input := NewChatCLI("shell_history")
	defer input.Close()

	if !args.Quiet {
		fmt.Println()
		fmt.Println(welcomeStyle.Render("forge guarded shell"))
		fmt.Println(chatInfoStyle.Render("Commands are risk-assessed before running. Type exit to quit."))
		fmt.Println()
	}

	for {
		cwd, _ := os.Getwd()
		prompt := promptStyle.Render(shortPath(cwd) + " $ ")

		line, err := input.ReadInput(prompt)
		if err != nil {
			// Ctrl+C or Ctrl+D
			fmt.Println()
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case line == "exit" || line == "quit":
			return nil

		case line == "cd" || strings.HasPrefix(line, "cd "):
			if err := builtinCd(line); err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			continue
		}

		result, err := executor.Run(context.Background(), line, forgeexec.Options{Timeout: timeout})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			continue
		}

		printExecResult(result, args.Quiet)
	}
}

// builtinCd changes the shell's working directory. Bare "cd" goes home.
func builtinCd(line string) error {
	dir := strings.TrimSpace(strings.TrimPrefix(line, "cd"))
	if dir == "" || dir == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dir = home
	} else if strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dir = home + dir[1:]
	}
	return os.Chdir(dir)
}

// shortPath abbreviates the home directory to ~ for the prompt.
func shortPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if path == home {
		return "~"
	}
	if strings.HasPrefix(path, home+string(os.PathSeparator)) {
		return "~" + path[len(home):]
	}
	return path
}
