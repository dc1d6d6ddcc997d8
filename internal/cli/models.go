// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// models.go - Models command implementation for forge.
//
// Command: models
// Lists the models available on the local inference server.

package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/morganforge/forge/internal/config"
	"github.com/morganforge/forge/internal/util"
)

// HandleModels handles the "models" command.
func HandleModels(args Args) {
	if err := HandleModelsCommand(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(GetExitCode(err))
	}
}

// HandleModelsCommand lists models installed on the server.
func HandleModelsCommand(args Args) error {
	cfg := config.Global()
	client := newClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	models, err := client.ListModels(ctx)
	if err != nil {
		return WrapError(err, "listing models")
	}

	if len(models) == 0 {
		fmt.Println("No models installed.")
		return nil
	}

	defaultModel := cfg.LLM.DefaultModel

	nameWidth := len("NAME")
	for _, m := range models {
		if len(m.Name) > nameWidth {
			nameWidth = len(m.Name)
		}
	}
	nameWidth += 2

	if !args.Quiet {
		fmt.Printf("%s%s  %s\n",
			DimStyle.Render(util.PadRight("NAME", nameWidth)),
			DimStyle.Render(util.PadRight("SIZE", 10)),
			DimStyle.Render("MODIFIED"))
	}

	for _, m := range models {
		name := util.PadRight(m.Name, nameWidth)
		if m.Name == defaultModel {
			name = HighlightStyle.Render(name)
		}
		fmt.Printf("%s%s  %s\n", name, util.PadRight(util.FormatBytes(m.Size), 10), m.ModifiedAt)
	}

	return nil
}
