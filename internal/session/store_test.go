// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_MissingFileIsZero(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "nested", "session.json"))
	st, err := fs.Load()
	require.NoError(t, err)
	assert.True(t, st.IsZero())
}

func TestFileStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	fs := NewFileStore(path)

	require.NoError(t, fs.Save(State{
		UserID:         "user-42",
		ConversationID: "conv-1",
		MentorID:       "chess",
		Mode:           ModeManual,
		Model:          "openai/gpt-4o-mini",
	}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	st, err := NewFileStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "user-42", st.UserID)
	assert.Equal(t, "conv-1", st.ConversationID)
	assert.Equal(t, "chess", st.MentorID)
	assert.Equal(t, ModeManual, st.Mode)
	assert.False(t, st.SavedAt.IsZero())
}

func TestFileStore_Clear(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, fs.Save(State{UserID: "u", ConversationID: "c"}))

	require.NoError(t, fs.Clear(false))
	st, err := fs.Load()
	require.NoError(t, err)
	assert.Equal(t, "u", st.UserID)
	assert.Empty(t, st.ConversationID)

	require.NoError(t, fs.Clear(true))
	st, err = fs.Load()
	require.NoError(t, err)
	assert.Empty(t, st.UserID)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o600))
	fs := NewFileStore(path)

	_, err := fs.Load()
	assert.Error(t, err)

	require.NoError(t, fs.Clear(false))
	st, err := fs.Load()
	require.NoError(t, err)
	assert.True(t, st.IsZero())
}

func TestMemoryStore(t *testing.T) {
	ms := NewMemoryStore(State{UserID: "u"})
	require.NoError(t, ms.Save(State{UserID: "u", ConversationID: "c"}))
	assert.Equal(t, 1, ms.Saves())

	require.NoError(t, ms.Clear(false))
	st, _ := ms.Load()
	assert.Equal(t, "u", st.UserID)
	assert.Empty(t, st.ConversationID)

	require.NoError(t, ms.Clear(true))
	st, _ = ms.Load()
	assert.True(t, st.IsZero())
}
