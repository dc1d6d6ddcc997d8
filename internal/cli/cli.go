// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command dispatch for forge.
package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdChat Command = iota
	CmdAsk
	CmdEdit
	CmdSearch
	CmdExec
	CmdShell
	CmdWorkflow
	CmdStatus
	CmdConfig
	CmdModels
	CmdHistory
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet     bool
	Verbose   bool
	Model     string
	NoConfirm bool // skip interactive confirmation prompts

	// Command-specific
	Query      string
	File       string
	Subcommand string
	ConfigKey  string
	ConfigVal  string

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `forge - local-first AI coding assistant

Forge talks to a local inference server and brings the model into
your shell: one-shot questions, interactive chat, AI-assisted file
edits, code search, guarded command execution and TOML workflows.

Usage:
  forge chat                    Interactive chat (default)
  forge ask "question"          Ask a single question
  forge edit <file> [prompt]    AI-assisted file editing
  forge search <query> [path]   Search file contents
  forge exec <command...>       Run a command with safety checks
  forge shell                   Interactive guarded shell
  forge workflow <subcommand>   TOML workflow management
  forge status                  Show server and config status
  forge config [show|get|set]   Configuration
  forge models                  List available models
  forge history [subcommand]    Saved conversation management

Ask / chat:
  forge ask "Explain this error" --file build.log
  forge chat --model qwen2.5-coder:14b
  forge ask -q "one two three"       Quiet output (answer only)

Edit:
  forge edit main.go "add error handling to ParseConfig"
    --no-confirm                Apply without prompting
  A .backup copy of the file is written before any change.

Search:
  forge search "TODO" ./src
    --glob PATTERN              Only files matching glob (e.g. "**/*.go")
    --case                      Case-sensitive match
    --word                      Whole-word match
    --hidden                    Include hidden files
    --max-depth N               Limit directory depth

Exec / shell:
  forge exec "go test ./..."
    --timeout SECS              Override execution timeout
    --no-confirm                Skip confirmation for risky commands
  Commands are risk-assessed before running; critical commands are
  blocked unless safety.block_critical is disabled in the config.

Workflow:
  forge workflow list           List workflows in ~/.forge/workflows
  forge workflow show <name>    Show a workflow's steps
  forge workflow run <file>     Run a workflow file
    --watch DIR                 Re-run when files under DIR change

History:
  forge history list            List saved conversations
  forge history show <id>       Print a conversation
  forge history search <text>   Search titles and messages
  forge history export <id>     Export a conversation as markdown
  forge history delete <id>     Delete a conversation
  forge history clear --confirm Delete all conversations

Config:
  forge config show             Show current configuration
  forge config get server.port  Read one key
  forge config set llm.default_model llama3.2
  forge config path             Print config file location

Global Flags:
  -m, --model NAME    Override default model
  -q, --quiet         Minimal output
  -v, --verbose       Debug output
  --no-confirm        Never prompt; assume yes for confirmations

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("forge version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
}

// Parse parses command-line arguments and returns the command and args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses the given argument list. Split out from Parse for
// testing.
func ParseArgs(argv []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(argv)

	// No arguments starts interactive chat
	if len(remaining) == 0 {
		return CmdChat, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsedArgs.Raw = remaining

	switch cmd {
	case "chat":
		return CmdChat, parsedArgs

	case "ask":
		parseAskArgs(&parsedArgs, remaining)
		return CmdAsk, parsedArgs

	case "edit":
		parseEditArgs(&parsedArgs, remaining)
		return CmdEdit, parsedArgs

	case "search", "grep":
		// Detailed flag parsing is done in search.go HandleSearch
		return CmdSearch, parsedArgs

	case "exec", "run":
		// Detailed flag parsing is done in exec_cmd.go HandleExec
		return CmdExec, parsedArgs

	case "shell", "sh":
		return CmdShell, parsedArgs

	case "workflow", "workflows", "wf":
		if len(remaining) > 0 {
			parsedArgs.Subcommand = remaining[0]
		}
		return CmdWorkflow, parsedArgs

	case "status", "s":
		return CmdStatus, parsedArgs

	case "config":
		parseConfigArgs(&parsedArgs, remaining)
		return CmdConfig, parsedArgs

	case "models", "model":
		return CmdModels, parsedArgs

	case "history", "conversations":
		if len(remaining) > 0 {
			parsedArgs.Subcommand = remaining[0]
		}
		return CmdHistory, parsedArgs

	case "version", "--version":
		return CmdVersion, parsedArgs

	case "help", "-h", "--help":
		return CmdHelp, parsedArgs

	default:
		// Unknown command: treat the whole line as a one-shot prompt,
		// so `forge what does errno 32 mean` just works.
		parsedArgs.Raw = append([]string{cmd}, remaining...)
		parseAskArgs(&parsedArgs, parsedArgs.Raw)
		return CmdAsk, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	i := 0
	for i < len(args) {
		arg := args[i]

		switch arg {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--no-confirm", "--yes", "-y":
			parsedArgs.NoConfirm = true
		case "-m", "--model":
			if i+1 < len(args) {
				i++
				parsedArgs.Model = args[i]
			}
		default:
			if strings.HasPrefix(arg, "--model=") {
				parsedArgs.Model = strings.TrimPrefix(arg, "--model=")
			} else {
				remaining = append(remaining, arg)
			}
		}
		i++
	}

	return remaining, parsedArgs
}

// parseAskArgs parses ask command specific arguments.
func parseAskArgs(args *Args, remaining []string) {
	var query []string

	i := 0
	for i < len(remaining) {
		arg := remaining[i]

		switch arg {
		case "-f", "--file":
			if i+1 < len(remaining) {
				i++
				args.File = remaining[i]
			}
		default:
			if strings.HasPrefix(arg, "--file=") {
				args.File = strings.TrimPrefix(arg, "--file=")
			} else if !strings.HasPrefix(arg, "-") {
				query = append(query, arg)
			}
		}
		i++
	}

	args.Query = strings.Join(query, " ")
}

// parseEditArgs parses edit command specific arguments. The first
// positional argument is the file, the rest is the instruction.
func parseEditArgs(args *Args, remaining []string) {
	var positional []string
	for _, arg := range remaining {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		positional = append(positional, arg)
	}
	if len(positional) > 0 {
		args.File = positional[0]
	}
	if len(positional) > 1 {
		args.Query = strings.Join(positional[1:], " ")
	}
}

// parseConfigArgs parses config command specific arguments.
func parseConfigArgs(args *Args, remaining []string) {
	if len(remaining) > 0 {
		args.Subcommand = remaining[0]
		if len(remaining) > 1 {
			args.ConfigKey = remaining[1]
		}
		if len(remaining) > 2 {
			args.ConfigVal = strings.Join(remaining[2:], " ")
		}
	}
}

// =============================================================================
// COMMAND HANDLERS
// =============================================================================

// HandleVersion handles the "version" command.
func HandleVersion() {
	PrintVersion()
}

// HandleHelp handles the "help" command.
func HandleHelp() {
	PrintUsage()
}
