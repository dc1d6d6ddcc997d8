// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation for forge.
//
// Command: config
// Subcommands:
//   show            Show current configuration (default)
//   get <key>       Read one key (dot notation, e.g. server.port)
//   set <key> <val> Set a key and save
//   keys            List all available keys
//   path            Print config file location
//   reset           Reset configuration to defaults

package cli

import (
	"fmt"
	"os"

	"github.com/morganforge/forge/internal/config"
)

// HandleConfig handles the "config" command.
func HandleConfig(args Args) {
	if err := HandleConfigCommand(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(GetExitCode(err))
	}
}

// HandleConfigCommand dispatches config subcommands.
func HandleConfigCommand(args Args) error {
	switch args.Subcommand {
	case "", "show":
		return handleConfigShow()
	case "get":
		return handleConfigGet(args.ConfigKey)
	case "set":
		return handleConfigSet(args.ConfigKey, args.ConfigVal)
	case "keys":
		return handleConfigKeys()
	case "path":
		return handleConfigPath()
	case "reset":
		return handleConfigReset(args.NoConfirm)
	default:
		return &UsageError{
			Arg:    "subcommand",
			Reason: fmt.Sprintf("unknown config subcommand %q", args.Subcommand),
			Usage:  "forge config [show|get|set|keys|path|reset]",
		}
	}
}

// handleConfigShow prints every key with its current value.
func handleConfigShow() error {
	cfg := config.Global()

	fmt.Println()
	fmt.Println(TitleStyle.Render("forge configuration"))
	fmt.Println(RenderSeparator(41))

	for _, key := range config.GetAllKeys() {
		value, err := cfg.Get(key)
		if err != nil {
			continue
		}
		fmt.Printf("  %s%v\n", RenderLabel(key+":", 34), value)
	}

	fmt.Println()
	return nil
}

// handleConfigGet prints a single key's value.
func handleConfigGet(key string) error {
	if key == "" {
		return ErrMissingArgument("key", "forge config get server.port")
	}

	value, err := config.Global().Get(key)
	if err != nil {
		return err
	}

	fmt.Printf("%v\n", value)
	return nil
}

// handleConfigSet sets a key and persists the configuration.
func handleConfigSet(key, value string) error {
	if key == "" || value == "" {
		return ErrMissingArgument("key/value", "forge config set llm.default_model llama3.2")
	}

	cfg := config.Global().Clone()
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := config.Save(cfg); err != nil {
		return WrapError(err, "saving config")
	}
	config.SetGlobal(cfg)

	fmt.Printf("%s %s = %s\n", SuccessStyle.Render("[OK]"), key, value)
	return nil
}

// handleConfigKeys lists every settable key.
func handleConfigKeys() error {
	for _, key := range config.GetAllKeys() {
		fmt.Println(key)
	}
	return nil
}

// handleConfigPath prints the config file location.
func handleConfigPath() error {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

// handleConfigReset restores defaults after confirmation.
func handleConfigReset(noConfirm bool) error {
	confirmed, err := RequireConfirmation(noConfirm, "reset configuration to defaults")
	if err != nil {
		return err
	}
	if !confirmed {
		ShowCancellationMessage()
		return nil
	}

	cfg := config.Default()
	if err := config.Save(cfg); err != nil {
		return WrapError(err, "saving config")
	}
	config.SetGlobal(cfg)

	fmt.Println(SuccessStyle.Render("[OK]") + " configuration reset to defaults")
	return nil
}
