// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for forge.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ServerConfig: Inference server host, port, and timeout settings
//   - LLMConfig: Generation defaults (model, temperature, max tokens)
//   - SafetyConfig: Command execution guardrails
//   - HistoryConfig: Conversation persistence settings
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (FORGE_*)
//   - ~/.forge/config.toml
//   - ~/.forge/config.json
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	model := cfg.LLM.DefaultModel
//	host := cfg.Server.Host
package config
