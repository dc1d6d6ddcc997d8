// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history.go - History command implementation for forge.
//
// Command: history
// Subcommands:
//   list              List saved conversations (default)
//   show <id>         Show a conversation's messages
//   search <text>     Search conversations by content
//   export <id>       Export a conversation as Markdown
//   delete <id>       Delete a conversation
//   clear             Delete all conversations

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/morganforge/forge/internal/config"
	"github.com/morganforge/forge/internal/storage"
	"github.com/morganforge/forge/internal/util"
)

// HandleHistory handles the "history" command.
func HandleHistory(args Args) {
	if err := HandleHistoryCommand(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(GetExitCode(err))
	}
}

// HandleHistoryCommand dispatches history subcommands.
func HandleHistoryCommand(args Args) error {
	cfg := config.Global()
	if !cfg.History.Enabled {
		fmt.Println("History is disabled. Enable it with: forge config set history.enabled true")
		return nil
	}

	dbPath, err := cfg.HistoryDBPath()
	if err != nil {
		return WrapError(err, "resolving history path")
	}
	store, err := storage.Open(dbPath)
	if err != nil {
		return WrapError(err, "opening history database")
	}
	defer store.Close()
	store.MaxConversations = cfg.History.MaxConversations

	parser := NewArgParser(args.Raw)

	switch args.Subcommand {
	case "", "list", "ls":
		return historyList(store, args.Quiet)
	case "show":
		return historyShow(store, parser.Positional(1))
	case "search":
		return historySearch(store, strings.Join(parser.PositionalFrom(1), " "))
	case "export":
		return historyExport(store, parser.Positional(1), parser.Flag("output"))
	case "delete", "rm":
		return historyDelete(store, parser.Positional(1), args.NoConfirm)
	case "clear":
		return historyClear(store, args.NoConfirm)
	default:
		return &UsageError{
			Arg:    "subcommand",
			Reason: fmt.Sprintf("unknown history subcommand %q", args.Subcommand),
			Usage:  "forge history [list|show|search|export|delete|clear]",
		}
	}
}

// historyList prints all stored conversations, newest first.
func historyList(store *storage.Store, quiet bool) error {
	metas, err := store.List()
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		fmt.Println("No conversations saved.")
		return nil
	}
	printConversationTable(metas, quiet)
	return nil
}

// historySearch lists conversations whose content matches the query.
func historySearch(store *storage.Store, query string) error {
	if query == "" {
		return ErrMissingArgument("query", "forge history search \"deploy script\"")
	}
	metas, err := store.Search(query)
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		fmt.Println("No matching conversations.")
		return nil
	}
	printConversationTable(metas, false)
	return nil
}

func printConversationTable(metas []storage.ConversationMeta, quiet bool) {
	if !quiet {
		fmt.Printf("%s%s%s  %s\n",
			DimStyle.Render(util.PadRight("ID", 38)),
			DimStyle.Render(util.PadRight("UPDATED", 18)),
			DimStyle.Render(util.PadRight("MSGS", 5)),
			DimStyle.Render("TITLE"))
	}
	for _, m := range metas {
		title := m.Title
		if title == "" {
			title = DimStyle.Render("(untitled)")
		} else {
			title = util.TruncateRunes(title, 50)
		}
		fmt.Printf("%s%s%s  %s\n",
			util.PadRight(m.ID, 38),
			util.PadRight(formatTimestamp(m.UpdatedAt), 18),
			util.PadRight(fmt.Sprintf("%d", m.MessageCount), 5),
			title)
	}
}

// historyShow prints every message in one conversation.
func historyShow(store *storage.Store, id string) error {
	if id == "" {
		return ErrMissingArgument("conversation id", "forge history show <id>")
	}
	conv, err := store.Load(id)
	if err != nil {
		return historyLoadError(err, id)
	}

	fmt.Println()
	fmt.Println(TitleStyle.Render("Conversation " + conv.ID))
	fmt.Printf("  %s%s\n", RenderLabel("Model:"), conv.Model)
	fmt.Printf("  %s%s\n", RenderLabel("Created:"), formatTimestamp(conv.CreatedAt))
	fmt.Printf("  %s%d\n", RenderLabel("Messages:"), len(conv.Messages))
	fmt.Println()

	for _, msg := range conv.Messages {
		var roleStyle = DimStyle
		switch msg.Role {
		case "user":
			roleStyle = InfoStyle
		case "assistant":
			roleStyle = HighlightStyle
		}
		fmt.Printf("%s %s\n", roleStyle.Render("["+msg.Role+"]"), formatTimestamp(msg.CreatedAt))
		fmt.Println(msg.Content)
		fmt.Println()
	}
	return nil
}

// historyExport writes a conversation as Markdown to stdout or --output.
func historyExport(store *storage.Store, id, output string) error {
	if id == "" {
		return ErrMissingArgument("conversation id", "forge history export <id> [--output FILE]")
	}
	conv, err := store.Load(id)
	if err != nil {
		return historyLoadError(err, id)
	}

	md := conv.ExportMarkdown()
	if output == "" {
		fmt.Print(md)
		return nil
	}
	if err := util.AtomicWriteFile(output, []byte(md), 0644); err != nil {
		return WrapError(err, "writing export")
	}
	fmt.Printf("%s exported to %s\n", SuccessStyle.Render("[OK]"), output)
	return nil
}

// historyDelete removes one conversation after confirmation.
func historyDelete(store *storage.Store, id string, noConfirm bool) error {
	if id == "" {
		return ErrMissingArgument("conversation id", "forge history delete <id>")
	}
	confirmed, err := RequireConfirmation(noConfirm, "delete conversation "+id)
	if err != nil {
		return err
	}
	if !confirmed {
		ShowCancellationMessage()
		return nil
	}
	if err := store.Delete(id); err != nil {
		return historyLoadError(err, id)
	}
	fmt.Println(SuccessStyle.Render("[OK]") + " conversation deleted")
	return nil
}

// historyClear removes every conversation after confirmation.
func historyClear(store *storage.Store, noConfirm bool) error {
	confirmed, err := RequireConfirmation(noConfirm, "delete ALL saved conversations")
	if err != nil {
		return err
	}
	if !confirmed {
		ShowCancellationMessage()
		return nil
	}
	if err := store.Clear(); err != nil {
		return err
	}
	fmt.Println(SuccessStyle.Render("[OK]") + " history cleared")
	return nil
}

func historyLoadError(err error, id string) error {
	if err == storage.ErrConversationNotFound {
		return ErrNotFound("conversation", id)
	}
	return err
}
