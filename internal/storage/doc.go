// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists chat transcripts in SQLite.
//
// # Key Types
//
//   - Store: database handle with conversation CRUD
//   - Conversation: full transcript with messages
//   - ConversationMeta: lightweight listing view
//
// # Usage
//
// Open the store and record a conversation:
//
//	store, err := storage.Open(cfg.HistoryDBPath())
//	id, err := store.Create("", "qwen2.5-coder:14b")
//	err = store.Append(id, storage.Message{Role: "user", Content: prompt})
//
// List and load:
//
//	metas, err := store.List()
//	conv, err := store.Load(metas[0].ID)
//
// The database lives at ~/.forge/history.db by default. Old
// conversations are pruned past Store.MaxConversations.
package storage
