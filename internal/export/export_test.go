// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/polychat/internal/model"
)

func sampleTranscript() *Transcript {
	at := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	return &Transcript{
		ConversationID: "conv-1",
		UserID:         "user-1",
		MentorID:       "chess",
		ExportedAt:     at.Add(time.Hour),
		Messages: []model.HistoryItem{
			{ID: "m1", Role: model.RoleUser, Content: "Best reply to 1.e4?", CreatedAt: at, Mentor: "chess", Model: "openai/gpt-4o-mini",
				Files: []model.FileMeta{{Name: "game.pgn", Type: "application/x-chess-pgn", Size: 12}}},
			{ID: "m2", Role: model.RoleAssistant, Content: "Try **1...c5**, the Sicilian.\n\n<script>alert(1)</script>", CreatedAt: at.Add(time.Second), Mentor: "chess"},
		},
	}
}

func TestForFormat(t *testing.T) {
	for _, tc := range []struct {
		format string
		ext    string
	}{
		{"md", ".md"},
		{"markdown", ".md"},
		{".json", ".json"},
		{"HTML", ".html"},
	} {
		exp, err := ForFormat(tc.format, nil)
		require.NoError(t, err, tc.format)
		assert.Equal(t, tc.ext, exp.FileExtension())
	}

	_, err := ForFormat("pdf", nil)
	require.Error(t, err)
	assert.Equal(t, model.KindValidation, model.KindOf(err))
}

func TestTranscript_DisplayTitle(t *testing.T) {
	tr := sampleTranscript()
	assert.Equal(t, "Best reply to 1.e4?", tr.DisplayTitle())
	tr.Title = "Opening ideas"
	assert.Equal(t, "Opening ideas", tr.DisplayTitle())
	assert.Equal(t, "Conversation", (&Transcript{}).DisplayTitle())
}

func TestExport_RejectsEmpty(t *testing.T) {
	for _, format := range Formats {
		exp, err := ForFormat(format, nil)
		require.NoError(t, err)
		_, err = exp.Export(&Transcript{ConversationID: "c"})
		assert.ErrorIs(t, err, ErrEmpty, format)
	}
}

func TestMarkdownExporter(t *testing.T) {
	out, err := NewMarkdownExporter(nil).Export(sampleTranscript())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "---\ntitle: Best reply to 1.e4?\n"), md)
	assert.Contains(t, md, "mentor: chess")
	assert.Contains(t, md, "### You <sub>09:30:00</sub>")
	assert.Contains(t, md, "### Chess Coach <sub>09:30:01</sub>")
	assert.Contains(t, md, "> attached: `game.pgn`")
	assert.Contains(t, md, "*model: openai/gpt-4o-mini*")

	bare, err := NewMarkdownExporter(&Options{}).Export(sampleTranscript())
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(string(bare), "---"))
	assert.NotContains(t, string(bare), "<sub>")
}

func TestJSONExporter(t *testing.T) {
	out, err := NewJSONExporter(nil).Export(sampleTranscript())
	require.NoError(t, err)

	var back Transcript
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, "conv-1", back.ConversationID)
	require.Len(t, back.Messages, 2)
	assert.Equal(t, "game.pgn", back.Messages[0].Files[0].Name)
}

func TestHTMLExporter(t *testing.T) {
	out, err := NewHTMLExporter(nil).Export(sampleTranscript())
	require.NoError(t, err)
	page := string(out)

	assert.Contains(t, page, "<title>Best reply to 1.e4?</title>")
	assert.Contains(t, page, "<strong>1...c5</strong>")
	assert.Contains(t, page, `class="msg user"`)
	assert.Contains(t, page, "Chess Coach")
	assert.NotContains(t, page, "<script>", "raw HTML from messages is dropped")
}

func TestToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	exp := NewMarkdownExporter(nil)

	path, err := ToFile(sampleTranscript(), exp, &Options{OutputDir: dir, IncludeMetadata: true})
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Equal(t, "conversation_Best_reply_to_1.e4-_20250601_103000.md", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Chess Coach")
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a-b-c_d", sanitizeFilename(`a/b:c d`))
	assert.Equal(t, "conversation", sanitizeFilename("   "))
	assert.Len(t, []rune(sanitizeFilename(strings.Repeat("x", 80))), 50)
}
