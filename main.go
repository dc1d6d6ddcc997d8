// forge - a local-first AI coding assistant for the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"github.com/morganforge/forge/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	switch cmd {
	case cli.CmdChat:
		cli.HandleChat(args)
	case cli.CmdAsk:
		cli.HandleAsk(args)
	case cli.CmdEdit:
		cli.HandleEdit(args)
	case cli.CmdSearch:
		cli.HandleSearch(args)
	case cli.CmdExec:
		cli.HandleExec(args)
	case cli.CmdShell:
		cli.HandleShell(args)
	case cli.CmdWorkflow:
		cli.HandleWorkflow(args)
	case cli.CmdStatus:
		cli.HandleStatus(args)
	case cli.CmdConfig:
		cli.HandleConfig(args)
	case cli.CmdModels:
		cli.HandleModels(args)
	case cli.CmdHistory:
		cli.HandleHistory(args)
	case cli.CmdVersion:
		cli.HandleVersion()
	case cli.CmdHelp:
		cli.HandleHelp()
	default:
		cli.HandleChat(args)
	}
}
