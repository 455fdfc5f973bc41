// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mentor

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

// ============================================================================
// REGISTRY TESTS
// ============================================================================

func TestRegistry_BuiltIns(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, BuiltIn, r.IDs())
	for _, id := range BuiltIn {
		assert.NotEmpty(t, r.SystemPrompt(id), id)
		assert.NoError(t, r.Get(id).Validate(), id)
	}
}

func TestRegistry_UnknownFallsBackToGeneral(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, General, r.Normalize("astrology"))
	assert.Equal(t, General, r.Normalize(""))
	assert.Equal(t, Chess, r.Normalize(" CHESS "))
	assert.Equal(t, r.SystemPrompt(General), r.SystemPrompt("astrology"))
	assert.Equal(t, string(General), r.Get("astrology").ID)
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r := NewRegistry()

	cfg := r.Get(Bible)
	cfg.Persona.SystemPrompt = "mutated"

	assert.NotEqual(t, "mutated", r.SystemPrompt(Bible))
}

func TestRegistry_LoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, IndexFile, `{"mentors":[
		{"id":"bible","promptFile":"bible.json","keywords":["verse"]},
		{"id":"poetry","promptFile":"poetry.json","keywords":["poem","rhyme"]}
	]}`)
	writeFile(t, dir, "bible.json", `{"id":"bible","systemPrompt":"Custom bible prompt."}`)
	writeFile(t, dir, "poetry.json", `{"id":"poetry","persona":{"system_prompt":"You write poems."}}`)

	r := NewRegistry()
	require.NoError(t, r.LoadDir(dir))

	assert.Equal(t, "Custom bible prompt.", r.SystemPrompt(Bible))
	assert.True(t, r.Has("poetry"))
	assert.Equal(t, ID("poetry"), r.Normalize("Poetry"))
	assert.Equal(t, []string{"poem", "rhyme"}, r.Get("poetry").Metadata.Tags)
	assert.Equal(t, append(append([]ID{}, BuiltIn...), "poetry"), r.IDs())
}

func TestRegistry_LoadDirFailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, IndexFile, `{"mentors":[{"id":"bible","promptFile":"missing.json","keywords":[]}]}`)

	r := NewRegistry()
	before := r.SystemPrompt(Bible)

	require.Error(t, r.LoadDir(dir))
	assert.Equal(t, before, r.SystemPrompt(Bible))
}

func TestRegistry_Put(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Put(&Config{ID: " Tarot ", Persona: Persona{SystemPrompt: "Read cards."}}))
	assert.True(t, r.Has("tarot"))

	assert.Error(t, r.Put(&Config{ID: "empty"}))
	assert.Error(t, r.Put(nil))
}

// ============================================================================
// WATCHER TESTS
// ============================================================================

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, IndexFile, `{"mentors":[{"id":"chess","promptFile":"chess.json","keywords":[]}]}`)
	writeFile(t, dir, "chess.json", `{"id":"chess","persona":{"system_prompt":"v1"}}`)

	r := NewRegistry()
	require.NoError(t, r.LoadDir(dir))
	require.Equal(t, "v1", r.SystemPrompt(Chess))

	w, err := NewWatcher(r, dir, 50*time.Millisecond, nil)
	require.NoError(t, err)
	var reloads atomic.Int32
	w.OnReload = func(error) { reloads.Add(1) }
	require.NoError(t, w.Start())
	defer w.Close()

	writeFile(t, dir, "chess.json", `{"id":"chess","persona":{"system_prompt":"v2"}}`)

	require.Eventually(t, func() bool {
		return r.SystemPrompt(Chess) == "v2"
	}, 5*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, reloads.Load(), int32(1))
}
