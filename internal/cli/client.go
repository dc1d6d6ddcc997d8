// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// client.go - Shared inference client construction for CLI handlers.

package cli

import (
	"time"

	"github.com/morganforge/forge/internal/config"
	"github.com/morganforge/forge/internal/llm"
)

// newClient builds an inference client from the loaded configuration.
func newClient(cfg *config.Config) *llm.Client {
	return llm.NewClientWithConfig(&llm.ClientConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ConnectTimeout: time.Duration(cfg.Server.ConnectTimeoutSecs) * time.Second,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		DefaultModel:   cfg.LLM.DefaultModel,
	})
}

// resolveModel picks the model to use: CLI flag > config > client default.
func resolveModel(args Args, cfg *config.Config, client *llm.Client) string {
	if args.Model != "" {
		return args.Model
	}
	if cfg.LLM.DefaultModel != "" {
		return cfg.LLM.DefaultModel
	}
	return client.GetDefaultModel()
}

// generationOptions maps config generation defaults to request options.
// Returns nil when the config leaves everything at server defaults.
func generationOptions(cfg *config.Config) *llm.Options {
	if cfg.LLM.Temperature == 0 && cfg.LLM.MaxTokens == 0 {
		return nil
	}
	return &llm.Options{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}
}
