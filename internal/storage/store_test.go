// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndLoad(t *testing.T) {
	store := openTestStore(t)

	id, err := store.Create("", "qwen2.5-coder:14b")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, store.Append(id, Message{Role: "user", Content: "explain goroutines"}))
	require.NoError(t, store.Append(id, Message{
		Role: "assistant", Content: "Goroutines are lightweight threads.",
		TokenCount: 8, DurationMs: 450,
	}))

	conv, err := store.Load(id)
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5-coder:14b", conv.Model)
	assert.Equal(t, "explain goroutines", conv.Title)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "user", conv.Messages[0].Role)
	assert.Equal(t, "assistant", conv.Messages[1].Role)
	assert.Equal(t, 8, conv.Messages[1].TokenCount)
	assert.Equal(t, int64(450), conv.Messages[1].DurationMs)
	assert.False(t, conv.CreatedAt.IsZero())
}

func TestTitleOnlySetOnce(t *testing.T) {
	store := openTestStore(t)

	id, err := store.Create("", "m")
	require.NoError(t, err)
	require.NoError(t, store.Append(id, Message{Role: "user", Content: "first question"}))
	require.NoError(t, store.Append(id, Message{Role: "user", Content: "second question"}))

	conv, err := store.Load(id)
	require.NoError(t, err)
	assert.Equal(t, "first question", conv.Title)
}

func TestTitleTruncation(t *testing.T) {
	store := openTestStore(t)

	long := "this prompt is deliberately much longer than fifty characters in total"
	id, err := store.Create("", "m")
	require.NoError(t, err)
	require.NoError(t, store.Append(id, Message{Role: "user", Content: long}))

	conv, err := store.Load(id)
	require.NoError(t, err)
	assert.Len(t, []rune(conv.Title), 50)
	assert.Contains(t, conv.Title, "...")
}

func TestLoadMissing(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Load("no-such-id")
	assert.True(t, errors.Is(err, ErrConversationNotFound))
}

func TestAppendToMissing(t *testing.T) {
	store := openTestStore(t)

	err := store.Append("no-such-id", Message{Role: "user", Content: "hi"})
	assert.True(t, errors.Is(err, ErrConversationNotFound))
}

func TestListOrder(t *testing.T) {
	store := openTestStore(t)

	first, err := store.Create("older", "m")
	require.NoError(t, err)
	second, err := store.Create("newer", "m")
	require.NoError(t, err)

	// Touch the first conversation so it becomes the most recent.
	require.NoError(t, store.Append(first, Message{Role: "user", Content: "bump"}))

	metas, err := store.List()
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, first, metas[0].ID)
	assert.Equal(t, second, metas[1].ID)
	assert.Equal(t, 1, metas[0].MessageCount)
	assert.Equal(t, 0, metas[1].MessageCount)
}

func TestDelete(t *testing.T) {
	store := openTestStore(t)

	id, err := store.Create("", "m")
	require.NoError(t, err)
	require.NoError(t, store.Append(id, Message{Role: "user", Content: "hi"}))

	require.NoError(t, store.Delete(id))
	_, err = store.Load(id)
	assert.True(t, errors.Is(err, ErrConversationNotFound))

	assert.True(t, errors.Is(store.Delete(id), ErrConversationNotFound))
}

func TestClear(t *testing.T) {
	store := openTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := store.Create("", "m")
		require.NoError(t, err)
	}
	require.NoError(t, store.Clear())

	metas, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func TestSearch(t *testing.T) {
	store := openTestStore(t)

	a, err := store.Create("", "m")
	require.NoError(t, err)
	require.NoError(t, store.Append(a, Message{Role: "user", Content: "how do channels work"}))

	b, err := store.Create("", "m")
	require.NoError(t, err)
	require.NoError(t, store.Append(b, Message{Role: "user", Content: "explain interfaces"}))
	require.NoError(t, store.Append(b, Message{Role: "assistant", Content: "An interface is a method set."}))

	results, err := store.Search("CHANNELS")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, a, results[0].ID)

	results, err = store.Search("method set")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, b, results[0].ID)

	results, err = store.Search("")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestPrune(t *testing.T) {
	store := openTestStore(t)
	store.MaxConversations = 3

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := store.Create("", "m")
		require.NoError(t, err)
		ids = append(ids, id)
	}

	metas, err := store.List()
	require.NoError(t, err)
	assert.Len(t, metas, 3)

	// The two oldest are gone.
	_, err = store.Load(ids[0])
	assert.True(t, errors.Is(err, ErrConversationNotFound))
	_, err = store.Load(ids[4])
	assert.NoError(t, err)
}

func TestExportMarkdown(t *testing.T) {
	store := openTestStore(t)

	id, err := store.Create("", "m")
	require.NoError(t, err)
	require.NoError(t, store.Append(id, Message{Role: "user", Content: "hello"}))
	require.NoError(t, store.Append(id, Message{Role: "assistant", Content: "hi there"}))

	conv, err := store.Load(id)
	require.NoError(t, err)

	md := conv.ExportMarkdown()
	assert.Contains(t, md, "# hello")
	assert.Contains(t, md, "**User**")
	assert.Contains(t, md, "**Assistant**")
	assert.Contains(t, md, "hi there")
}
