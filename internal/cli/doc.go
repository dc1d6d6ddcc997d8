// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line interface parsing and execution for forge.
//
// # Key Types
//
//   - Command: Enumeration of all available CLI commands
//   - Args: Parsed command-line arguments with global and command-specific flags
//   - ArgParser: Unified flag/subcommand parsing for commands with subcommands
//
// # Usage
//
// Parse and execute commands:
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdAsk:
//	    cli.HandleAsk(args)
//	case cli.CmdChat:
//	    cli.HandleChat(args)
//	// ... other commands
//	}
//
// # Commands Overview
//
//   - chat: interactive chat session with streaming responses
//   - ask: single question query
//   - edit: AI-assisted file editing with preview and backup
//   - search: recursive file content search
//   - exec/shell: guarded command execution
//   - workflow: TOML workflow management
//   - status/config/models/history: inspection and management
package cli
