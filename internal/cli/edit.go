// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// edit.go - AI-assisted file editing for the forge CLI.
//
// Handles the "forge edit" command: read a file, send it to the model
// with an editing instruction, preview the proposed content with syntax
// highlighting, and apply it after confirmation. A .backup copy of the
// original is written before any change.
//
// Examples:
//   forge edit main.go "add error handling to ParseConfig"
//   forge edit config.toml "bump read timeout to 300" --no-confirm

package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"

	"github.com/morganforge/forge/internal/config"
	"github.com/morganforge/forge/internal/fsops"
	"github.com/morganforge/forge/internal/util"
)

// editCodeBlockRegex extracts the first fenced code block from a model
// response. The language tag is optional.
var editCodeBlockRegex = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*\\n(.*?)\\n?```")

// HandleEdit handles the "edit" command.
func HandleEdit(args Args) {
	if err := HandleEditCommand(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(GetExitCode(err))
	}
}

// HandleEditCommand runs a single edit round trip.
func HandleEditCommand(args Args) error {
	if args.File == "" {
		return ErrMissingArgument("file", `forge edit <file> "instruction"`)
	}

	instruction := strings.TrimSpace(args.Query)
	if instruction == "" {
		if !CanPrompt() {
			return ErrMissingArgument("instruction", `forge edit <file> "instruction"`)
		}
		fmt.Print("Edit instruction: ")
		var err error
		instruction, err = readLine()
		if err != nil || strings.TrimSpace(instruction) == "" {
			return ErrMissingArgument("instruction", `forge edit <file> "instruction"`)
		}
	}

	original, err := fsops.ReadFile(args.File)
	if err != nil {
		return err
	}

	cfg := config.Global()
	client := newClient(cfg)
	model := resolveModel(args, cfg, client)

	if !args.Quiet {
		fmt.Fprintf(os.Stderr, "%s editing %s with %s...\n",
			chatInfoStyle.Render("[Edit]"), args.File, model)
	}

	prompt := buildEditPrompt(args.File, original, instruction)

	ctx := context.Background()
	response, err := client.Generate(ctx, model, prompt, generationOptions(cfg))
	if err != nil {
		return err
	}

	proposed := extractEditedContent(response)
	if strings.TrimSpace(proposed) == "" {
		return fmt.Errorf("model returned no usable content")
	}
	if !strings.HasSuffix(proposed, "\n") {
		proposed += "\n"
	}

	if proposed == original {
		fmt.Println(DimStyle.Render("No changes proposed."))
		return nil
	}

	// Preview
	fmt.Println()
	fmt.Println(TitleStyle.Render("Proposed content: " + args.File))
	fmt.Println(RenderSeparator(GetTerminalWidth() - 4))
	if cfg.UI.SyntaxHighlight && IsStdoutTTY() {
		fmt.Println(highlightForFile(args.File, proposed))
	} else {
		fmt.Println(proposed)
	}
	fmt.Println(RenderSeparator(GetTerminalWidth() - 4))

	confirmed, err := RequireConfirmation(args.NoConfirm, "overwrite "+args.File)
	if err != nil {
		return err
	}
	if !confirmed {
		ShowCancellationMessage()
		return nil
	}

	backup, err := fsops.BackupFile(args.File)
	if err != nil {
		return WrapError(err, "backup failed")
	}

	if err := util.AtomicWriteFile(args.File, []byte(proposed), 0644); err != nil {
		return WrapError(err, "write failed")
	}

	fmt.Printf("%s %s updated (backup at %s)\n",
		SuccessStyle.Render("[OK]"), args.File, backup)
	return nil
}

// buildEditPrompt assembles the editing prompt sent to the model.
func buildEditPrompt(path, content, instruction string) string {
	var b strings.Builder
	b.WriteString("You are a precise code editing assistant.\n")
	b.WriteString("Apply the following instruction to the file and return the COMPLETE modified file ")
	b.WriteString("in a single fenced code block. Do not add commentary.\n\n")
	b.WriteString("Instruction: ")
	b.WriteString(instruction)
	b.WriteString("\n\nFile: ")
	b.WriteString(path)
	b.WriteString("\n```\n")
	b.WriteString(content)
	b.WriteString("\n```\n")
	return b.String()
}

// extractEditedContent pulls the file content out of the model response.
// Falls back to the raw response when no fenced block is present.
func extractEditedContent(response string) string {
	if m := editCodeBlockRegex.FindStringSubmatch(response); m != nil {
		return m[1]
	}
	return strings.TrimSpace(response)
}

// highlightForFile applies syntax highlighting based on the filename.
// The chroma style follows the configured UI theme.
func highlightForFile(path, content string) string {
	lexer := lexers.Match(path)
	if lexer == nil {
		lexer = lexers.Analyse(content)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	styleName := "monokai"
	if strings.EqualFold(config.Global().UI.Theme, "light") {
		styleName = "github"
	}
	style := chromaStyles.Get(styleName)
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, content)
	if err != nil {
		return content
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return content
	}
	return buf.String()
}

// readLine reads one line from stdin.
func readLine() (string, error) {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line), err
}
