// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat command handler for the forge CLI.
//
// Handles the "forge chat" command which provides an interactive REPL
// for conversing with a local model.
//
// Examples:
//   forge chat                            Start interactive chat (default model)
//   forge chat --model qwen2.5-coder:14b  Use specific model
//
// Interactive Commands (during chat):
//   /help, /h           Show available commands
//   /clear, /c          Clear conversation history
//   /model [name]       Show or switch model
//   /history            Show conversation history
//   /quit, /q           Exit chat
//   Ctrl+C              Cancel current generation
//   Ctrl+D              Exit chat

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/morganforge/forge/internal/config"
	"github.com/morganforge/forge/internal/llm"
	"github.com/morganforge/forge/internal/storage"
	"github.com/morganforge/forge/internal/util"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	welcomeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("141")).
			Bold(true)

	chatInfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	commandStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	chatWarnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	summaryHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true)
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
// Supports arrow keys for history navigation.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a new ChatCLI with input history support.
// historyName distinguishes chat and shell histories.
func NewChatCLI(historyName string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		// Fallback to temp directory if config dir unavailable
		configDir = os.TempDir()
	}

	cli := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, historyName),
	}
	cli.LoadHistory()

	return cli
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
// Supports history navigation with arrow keys.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}

	return input, nil
}

// SaveHistory persists command history to file with secure permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}

	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()

	c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION STATE
// =============================================================================

// ChatSession holds the state for an interactive chat session.
type ChatSession struct {
	// Conversation history sent to the model
	Messages []llm.Message

	// Configuration
	Config *config.Config
	Model  string
	Quiet  bool

	// Tracking
	StartTime   time.Time
	Queries     int
	TotalTokens int

	// Client
	Client *llm.Client

	// Transcript persistence; nil when history is disabled
	Store          *storage.Store
	ConversationID string

	// Cancel function for the current stream
	CancelFunc context.CancelFunc

	// Input history handler
	InputCLI *ChatCLI
}

// NewChatSession creates a new chat session.
func NewChatSession(args Args) *ChatSession {
	cfg := config.Global()
	client := newClient(cfg)

	session := &ChatSession{
		Messages:  make([]llm.Message, 0),
		Config:    cfg,
		Model:     resolveModel(args, cfg, client),
		Quiet:     args.Quiet,
		StartTime: time.Now(),
		Client:    client,
		InputCLI:  NewChatCLI("chat_history"),
	}

	if cfg.LLM.SystemPrompt != "" {
		session.Messages = append(session.Messages, llm.SystemMessage(cfg.LLM.SystemPrompt))
	}

	return session
}

// openTranscript opens the conversation store and starts a new
// conversation. Failures disable persistence rather than abort the chat.
func (s *ChatSession) openTranscript() {
	if !s.Config.History.Enabled {
		return
	}

	dbPath, err := s.Config.HistoryDBPath()
	if err != nil {
		return
	}

	store, err := storage.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s history disabled: %v\n", chatWarnStyle.Render("[Warning]"), err)
		return
	}
	store.MaxConversations = s.Config.History.MaxConversations

	id, err := store.Create("", s.Model)
	if err != nil {
		store.Close()
		return
	}

	s.Store = store
	s.ConversationID = id
}

// record appends a message to the persistent transcript.
func (s *ChatSession) record(msg storage.Message) {
	if s.Store == nil {
		return
	}
	if err := s.Store.Append(s.ConversationID, msg); err != nil {
		fmt.Fprintf(os.Stderr, "%s transcript write failed: %v\n", chatWarnStyle.Render("[Warning]"), err)
	}
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChat handles the "chat" command.
func HandleChat(args Args) {
	if err := HandleChatCommand(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(GetExitCode(err))
	}
}

// HandleChatCommand runs the interactive chat REPL.
func HandleChatCommand(args Args) error {
	session := NewChatSession(args)

	// Check the server is reachable before entering the REPL
	ctx := context.Background()
	if err := session.Client.CheckRunning(ctx); err != nil {
		return fmt.Errorf("inference server is not running at %s:%d: %w",
			session.Config.Server.Host, session.Config.Server.Port, err)
	}

	session.openTranscript()
	if session.Store != nil {
		defer session.Store.Close()
	}

	if !session.Quiet {
		printWelcome(session)
	}

	// Ensure input history is saved on exit
	defer session.InputCLI.Close()

	// First Ctrl+C during generation cancels the stream, not the REPL
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		for range sigChan {
			if session.CancelFunc != nil {
				session.CancelFunc()
				session.CancelFunc = nil
				fmt.Fprintln(os.Stderr, "\n"+chatWarnStyle.Render("[Cancelled]"))
			}
		}
	}()

	for {
		input, err := session.InputCLI.ReadInput(promptStyle.Render("forge> "))
		if err != nil {
			// liner.ErrPromptAborted is Ctrl+C, anything else is EOF
			fmt.Println()
			printExitSummary(session)
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldContinue, err := handleSlashCommand(input, session)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if !shouldContinue {
				printExitSummary(session)
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			printExitSummary(session)
			return nil
		}

		if err := processMessage(session, input); err != nil {
			if llm.IsCancelled(err) {
				continue
			}
			fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		}
	}
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

// processMessage sends a message to the model and streams the response.
func processMessage(session *ChatSession, input string) error {
	session.Messages = append(session.Messages, llm.UserMessage(input))

	ctx, cancel := context.WithCancel(context.Background())
	session.CancelFunc = cancel
	defer func() {
		session.CancelFunc = nil
		cancel()
	}()

	// Render markdown only when stdout is a TTY; when rendering, tokens
	// are collected and displayed once at the end for proper formatting.
	useMarkdown := session.Config.UI.RenderMarkdown && IsStdoutTTY()

	stream, err := session.Client.ChatStream(ctx, session.Model, session.Messages, generationOptions(session.Config))
	if err != nil {
		session.Messages = session.Messages[:len(session.Messages)-1]
		return err
	}
	defer stream.Close()

	fmt.Println()

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
		session.Messages = session.Messages[:len(session.Messages)-1]
		if llm.IsCancelled(err) {
			// Keep the partial exchange out of the history entirely
			fmt.Println()
			return err
		}
		return fmt.Errorf("streaming failed: %w", err)
	}

	content := acc.Content()
	if useMarkdown {
		displayResponse(content)
	}

	fmt.Println()
	fmt.Println()

	session.Messages = append(session.Messages, llm.AssistantMessage(content))
	session.Queries++
	session.TotalTokens += stats.PromptTokens + stats.CompletionTokens

	session.record(storage.Message{Role: "user", Content: input, CreatedAt: stats.StartTime})
	session.record(storage.Message{
		Role:       "assistant",
		Content:    content,
		CreatedAt:  time.Now(),
		TokenCount: stats.CompletionTokens,
		DurationMs: stats.TotalDuration.Milliseconds(),
	})

	if session.Config.UI.ShowStats && !session.Quiet {
		fmt.Fprintf(os.Stderr, "%s %s\n", chatInfoStyle.Render("[Stats]"), stats.Format())
	}

	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands.
// Returns (shouldContinue, error) where shouldContinue=false means exit.
func handleSlashCommand(cmd string, session *ChatSession) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true, nil
	}

	command := strings.ToLower(parts[0])
	cmdArgs := parts[1:]

	switch command {
	case "/help", "/h", "/?":
		printChatHelp()
		return true, nil

	case "/clear", "/c":
		session.Messages = session.Messages[:0]
		if session.Config.LLM.SystemPrompt != "" {
			session.Messages = append(session.Messages, llm.SystemMessage(session.Config.LLM.SystemPrompt))
		}
		fmt.Println(commandStyle.Render("[Conversation cleared]"))
		return true, nil

	case "/model", "/m":
		return handleModelCommand(session, cmdArgs)

	case "/history":
		printSessionHistory(session)
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	case "/":
		printChatHelp()
		return true, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
}

// handleModelCommand handles the /model command.
func handleModelCommand(session *ChatSession, args []string) (bool, error) {
	if len(args) == 0 {
		fmt.Printf("%s Current model: %s\n",
			chatInfoStyle.Render("[Model]"),
			commandStyle.Render(session.Model))
		return true, nil
	}

	newModel := args[0]

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if !session.Client.ModelExists(ctx, newModel) {
		// Just warn, don't fail - the server may pull it on demand
		fmt.Fprintf(os.Stderr, "%s Model '%s' not found on the server, will attempt to use anyway\n",
			chatWarnStyle.Render("[Warning]"),
			newModel)
	}

	session.Model = newModel
	fmt.Printf("%s Switched to model: %s\n", commandStyle.Render("[OK]"), newModel)

	return true, nil
}

// =============================================================================
// DISPLAY FUNCTIONS
// =============================================================================

// printWelcome prints the welcome banner.
func printWelcome(session *ChatSession) {
	fmt.Println()
	fmt.Println(welcomeStyle.Render("forge interactive chat"))
	fmt.Println(chatInfoStyle.Render(strings.Repeat("─", 30)))
	fmt.Printf("%s %s\n",
		chatInfoStyle.Render("Model:"),
		commandStyle.Render(session.Model))
	fmt.Printf("%s %s:%d\n",
		chatInfoStyle.Render("Server:"),
		session.Config.Server.Host, session.Config.Server.Port)

	if session.Store != nil {
		fmt.Printf("%s %s\n",
			chatInfoStyle.Render("Transcript:"),
			commandStyle.Render("saved"))
	} else {
		fmt.Printf("%s %s\n",
			chatInfoStyle.Render("Transcript:"),
			DimStyle.Render("off"))
	}

	fmt.Println()
	fmt.Println(chatInfoStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Println()
}

// printChatHelp prints available commands.
func printChatHelp() {
	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Available Commands"))
	fmt.Println(chatInfoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/clear, /c", "Clear conversation history"},
		{"/model [name]", "Show or switch model"},
		{"/history", "Show conversation history"},
		{"/quit, /q", "Exit chat"},
	}

	for _, c := range commands {
		fmt.Printf("  %s  %s\n",
			commandStyle.Render(fmt.Sprintf("%-15s", c.cmd)),
			chatInfoStyle.Render(c.desc))
	}

	fmt.Println()
	fmt.Println(chatInfoStyle.Render("Tip: Ctrl+C cancels current generation, Ctrl+D exits"))
	fmt.Println()
}

// printSessionHistory prints the in-memory conversation history.
func printSessionHistory(session *ChatSession) {
	if len(session.Messages) == 0 {
		fmt.Println(chatInfoStyle.Render("[No messages yet]"))
		return
	}

	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Conversation History"))
	fmt.Println(chatInfoStyle.Render(strings.Repeat("─", 25)))
	fmt.Println()

	for i, msg := range session.Messages {
		role := msg.Role
		switch role {
		case "user":
			role = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Render("You")
		case "assistant":
			role = lipgloss.NewStyle().Foreground(lipgloss.Color("141")).Render("AI")
		case "system":
			role = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render("System")
		}

		content := util.TruncateRunes(msg.Content, 100)
		content = strings.ReplaceAll(content, "\n", " ")

		fmt.Printf("  %d. %s: %s\n", i+1, role, content)
	}

	fmt.Println()
}

// printExitSummary prints the session summary on exit.
func printExitSummary(session *ChatSession) {
	if session.Queries == 0 {
		fmt.Println(chatInfoStyle.Render("Goodbye!"))
		return
	}

	elapsed := time.Since(session.StartTime).Round(time.Second)

	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Session Summary"))
	fmt.Println(chatInfoStyle.Render(strings.Repeat("─", 15)))

	fmt.Printf("  %s %d\n", chatInfoStyle.Render("Queries:"), session.Queries)
	fmt.Printf("  %s %s\n", chatInfoStyle.Render("Tokens:"), formatNumber(session.TotalTokens))
	fmt.Printf("  %s %s\n", chatInfoStyle.Render("Duration:"), elapsed.String())
	if session.Store != nil {
		fmt.Printf("  %s %s\n", chatInfoStyle.Render("Transcript:"), session.ConversationID)
	}

	fmt.Println()
	fmt.Println(chatInfoStyle.Render("Goodbye!"))
}
