// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single query command handler for the forge CLI.
//
// Handles the "forge ask" command which sends a single prompt to the
// model and streams the response to stdout.
//
// Examples:
//   forge ask "What does errno 32 mean?"
//   forge ask "Review this code:" --file main.go
//   forge ask -q "one-line answer only"
//
// Flags:
//   -f, --file FILE     Include file content with the question
//   -m, --model NAME    Use specific model (overrides config)
//   -q, --quiet         Minimal output (answer only)

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"

	"github.com/morganforge/forge/internal/config"
	"github.com/morganforge/forge/internal/llm"
)

// MaxFileSize is the maximum file size to include with --file (50KB).
const MaxFileSize = 50 * 1024

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// markdownRenderer is the shared glamour renderer for markdown output.
var markdownRenderer *glamour.TermRenderer

func init() {
	var err error
	markdownRenderer, err = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		// Fallback to plain text if renderer initialization fails
		markdownRenderer = nil
	}
}

// renderMarkdown renders markdown content for terminal display.
// Returns the original content if rendering fails or renderer is unavailable.
func renderMarkdown(content string) string {
	if markdownRenderer == nil {
		return content
	}

	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// displayResponse displays a response with markdown rendering when appropriate.
// Only renders markdown when stdout is a TTY to avoid corrupting piped output.
func displayResponse(response string) {
	if IsStdoutTTY() {
		fmt.Print(renderMarkdown(response))
	} else {
		fmt.Print(response)
	}
}

// =============================================================================
// FILE READING
// =============================================================================

// readFileForContext reads a file and formats it for inclusion in a prompt.
// Files larger than MaxFileSize are rejected.
func readFileForContext(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("cannot read file %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory, not a file", path)
	}
	if info.Size() > MaxFileSize {
		return "", fmt.Errorf("file %s is too large (%d bytes, max %d)", path, info.Size(), MaxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("cannot read file %s: %w", path, err)
	}

	return fmt.Sprintf("\n\nFile: %s\n```\n%s\n```", path, string(data)), nil
}

// =============================================================================
// ASK HANDLER
// =============================================================================

// HandleAsk handles the "ask" command.
func HandleAsk(args Args) {
	if err := HandleAskCommand(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(GetExitCode(err))
	}
}

// HandleAskCommand sends a single prompt and streams the response.
func HandleAskCommand(args Args) error {
	prompt := strings.TrimSpace(args.Query)
	if prompt == "" {
		return ErrMissingArgument("question", `forge ask "your question"`)
	}

	if args.File != "" {
		fileContent, err := readFileForContext(args.File)
		if err != nil {
			return err
		}
		prompt += fileContent
	}

	cfg := config.Global()
	client := newClient(cfg)
	model := resolveModel(args, cfg, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ctrl+C cancels the stream
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		cancel()
	}()

	stream, err := client.GenerateStream(ctx, model, prompt, generationOptions(cfg))
	if err != nil {
		return err
	}
	defer stream.Close()

	useMarkdown := cfg.UI.RenderMarkdown && IsStdoutTTY()

	acc := llm.NewAccumulator()
	stats := llm.NewStreamStats()

	for stream.Next() {
		v := stream.Value()

		if tok := llm.ChunkContent(v); tok != "" {
			stats.RecordFirstToken()
			if !useMarkdown {
				fmt.Print(tok)
			}
		}

		acc.Add(v)

		if llm.ChunkDone(v) {
			stats.Finalize(v)
		}
	}

	if err := stream.Err(); err != nil {
		if llm.IsCancelled(err) {
			fmt.Fprintln(os.Stderr, "\n"+chatWarnStyle.Render("[Cancelled]"))
			return nil
		}
		return err
	}

	if useMarkdown {
		displayResponse(acc.Content())
	}
	fmt.Println()

	if cfg.UI.ShowStats && !args.Quiet {
		fmt.Fprintf(os.Stderr, "%s %s\n", chatInfoStyle.Render("[Stats]"), stats.Format())
	}

	return nil
}
