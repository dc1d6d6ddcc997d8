// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Status command implementation for forge.
//
// Command: status
// Short:   Display server and configuration status
// Aliases: s
//
// Status Sections:
//   Server:    Reachability of the inference server, model count
//   Model:     Default model and whether it is available
//   History:   Transcript persistence and database location
//   Safety:    Command execution guardrails

package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/morganforge/forge/internal/config"
)

// HandleStatus handles the "status" command.
func HandleStatus(args Args) {
	if err := HandleStatusCommand(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(GetExitCode(err))
	}
}

// HandleStatusCommand displays server and configuration status.
func HandleStatusCommand(args Args) error {
	cfg := config.Global()
	client := newClient(cfg)
	model := resolveModel(args, cfg, client)

	fmt.Println()
	fmt.Println(TitleStyle.Render("forge status"))
	fmt.Println(RenderSeparator(41))

	// Server section
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	fmt.Println(SectionStyle.Render("Server"))
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	if err := client.CheckRunning(ctx); err != nil {
		fmt.Printf("  %s%s %s\n", RenderLabel("Address:", 14), addr, RenderStatus("not running"))
		fmt.Printf("  %s\n", DimStyle.Render("Start the inference server and try again."))
	} else {
		fmt.Printf("  %s%s %s\n", RenderLabel("Address:", 14), addr, RenderStatus("running"))

		models, err := client.ListModels(ctx)
		if err == nil {
			fmt.Printf("  %s%d installed\n", RenderLabel("Models:", 14), len(models))
		}

		// Model section
		fmt.Println(SectionStyle.Render("Model"))
		fmt.Printf("  %s%s", RenderLabel("Default:", 14), model)
		if err == nil {
			available := false
			for _, m := range models {
				if m.Name == model || strings.HasPrefix(m.Name, model+":") {
					available = true
					break
				}
			}
			if available {
				fmt.Printf(" %s", RenderStatus("ok"))
			} else {
				fmt.Printf(" %s", RenderStatus("warn"))
			}
		}
		fmt.Println()
		if cfg.LLM.Temperature != 0 {
			fmt.Printf("  %s%.2f\n", RenderLabel("Temperature:", 14), cfg.LLM.Temperature)
		}
		if cfg.LLM.MaxTokens != 0 {
			fmt.Printf("  %s%d\n", RenderLabel("Max tokens:", 14), cfg.LLM.MaxTokens)
		}
	}

	// History section
	fmt.Println(SectionStyle.Render("History"))
	if cfg.History.Enabled {
		dbPath, err := cfg.HistoryDBPath()
		if err != nil {
			dbPath = "(unavailable)"
		}
		fmt.Printf("  %s%s\n", RenderLabel("Transcripts:", 14), SuccessStyle.Render("enabled"))
		fmt.Printf("  %s%s\n", RenderLabel("Database:", 14), dbPath)
		fmt.Printf("  %s%d\n", RenderLabel("Keep:", 14), cfg.History.MaxConversations)
	} else {
		fmt.Printf("  %s%s\n", RenderLabel("Transcripts:", 14), DimStyle.Render("disabled"))
	}

	// Safety section
	fmt.Println(SectionStyle.Render("Safety"))
	fmt.Printf("  %s%s\n", RenderLabel("Block critical:", 16), onOff(cfg.Safety.BlockCritical))
	fmt.Printf("  %s%s\n", RenderLabel("Confirm risky:", 16), onOff(cfg.Safety.ConfirmDestructive))
	if len(cfg.Safety.AllowedCommands) > 0 {
		fmt.Printf("  %s%s\n", RenderLabel("Allowlist:", 16), strings.Join(cfg.Safety.AllowedCommands, ", "))
	}
	fmt.Printf("  %s%ds\n", RenderLabel("Exec timeout:", 16), cfg.Safety.ExecTimeoutSecs)

	fmt.Println()
	return nil
}

func onOff(v bool) string {
	if v {
		return SuccessStyle.Render("on")
	}
	return WarningStyle.Render("off")
}
