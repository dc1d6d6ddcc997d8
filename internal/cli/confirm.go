// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Unified confirmation handling for forge CLI commands.
//
// Single pattern for every destructive or risky action:
//  1. If the --no-confirm flag is present, proceed without prompting
//  2. If stdin is not a TTY, require --no-confirm (can't prompt)
//  3. Otherwise, show an interactive prompt

package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// RequireConfirmation checks if the user has confirmed a destructive action.
//
// Parameters:
//
//	skipPrompt - true if --no-confirm / -y was passed
//	action     - description of the action (e.g., "delete all conversations")
//
// Returns (confirmed, error). The error is non-nil when confirmation is
// required but stdin is not a terminal.
func RequireConfirmation(skipPrompt bool, action string) (bool, error) {
	if skipPrompt {
		return true, nil
	}

	// Can't prompt if stdin is not a TTY (piped input, CI)
	if !IsTTY() {
		return false, fmt.Errorf("confirmation required but stdin is not a terminal; use --no-confirm")
	}

	fmt.Printf("Are you sure you want to %s? [y/N]: ", action)

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}

	response := strings.ToLower(strings.TrimSpace(input))
	return response == "y" || response == "yes", nil
}

// RequireConfirmationWithDetails is like RequireConfirmation but shows
// labeled details before prompting.
func RequireConfirmationWithDetails(skipPrompt bool, action string, details map[string]string) (bool, error) {
	if skipPrompt {
		return true, nil
	}

	if !IsTTY() {
		return false, fmt.Errorf("confirmation required but stdin is not a terminal; use --no-confirm")
	}

	fmt.Println()
	fmt.Println(WarningStyle.Render("WARNING: Destructive Action"))
	fmt.Println(RenderSeparator(50))
	fmt.Println()

	for label, value := range details {
		fmt.Printf("  %s%s\n", RenderLabel(label+":", 20), value)
	}

	fmt.Println()
	fmt.Printf("Are you sure you want to %s? [y/N]: ", action)

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}

	response := strings.ToLower(strings.TrimSpace(input))
	return response == "y" || response == "yes", nil
}

// ShowCancellationMessage displays a standard cancellation message.
// Use this after RequireConfirmation returns false.
func ShowCancellationMessage() {
	fmt.Println(DimStyle.Render("Cancelled."))
}

// PromptYesNo prompts the user with a yes/no question.
// Returns false if stdin is not a TTY (cannot prompt).
func PromptYesNo(question string) bool {
	if !IsTTY() {
		return false
	}

	fmt.Printf("%s [y/N]: ", question)

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response := strings.ToLower(strings.TrimSpace(input))
	return response == "y" || response == "yes"
}
