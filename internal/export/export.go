// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/jeranaias/polychat/internal/mentor"
	"github.com/jeranaias/polychat/internal/model"
)

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is the unit of export.
type Transcript struct {
	ConversationID string              `json:"conversationId"`
	UserID         string              `json:"userId"`
	MentorID       string              `json:"mentorId"`
	Title          string              `json:"title,omitempty"`
	Messages       []model.HistoryItem `json:"messages"`
	ExportedAt     time.Time           `json:"exportedAt"`
}

// ErrEmpty is returned for transcripts without messages.
var ErrEmpty = errors.New("conversation has no messages")

// validate rejects transcripts that would render to an empty document.
func (t *Transcript) validate() error {
	if t == nil {
		return errors.New("transcript is nil")
	}
	if len(t.Messages) == 0 {
		return ErrEmpty
	}
	return nil
}

// DisplayTitle falls back to the first user message, then a generic label.
func (t *Transcript) DisplayTitle() string {
	if s := strings.TrimSpace(t.Title); s != "" {
		return s
	}
	for _, m := range t.Messages {
		if m.Role == model.RoleUser && strings.TrimSpace(m.Content) != "" {
			return snippet(m.Content, 60)
		}
	}
	return "Conversation"
}

// speaker names the author of a history item.
func speaker(m model.HistoryItem) string {
	if m.Role == model.RoleUser {
		return "You"
	}
	return mentor.ID(m.Mentor).DisplayName()
}

// =============================================================================
// EXPORTER
// =============================================================================

// Exporter renders a transcript in one format.
type Exporter interface {
	Export(t *Transcript) ([]byte, error)
	FileExtension() string
	MimeType() string
}

// Options configures export.
type Options struct {
	// OutputDir receives exported files. Default: current directory.
	OutputDir string
	// IncludeMetadata adds a header with ids, mentor and counts.
	IncludeMetadata bool
	// IncludeTimestamps adds a time to every message.
	IncludeTimestamps bool
}

// DefaultOptions returns the options used when nil is passed.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
	}
}

// Formats lists the accepted format names.
var Formats = []string{"md", "json", "html"}

// ForFormat returns the exporter for a format name or file extension.
func ForFormat(format string, opts *Options) (Exporter, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "md", "markdown":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	case "html", "htm":
		return NewHTMLExporter(opts), nil
	default:
		return nil, model.NewValidation(fmt.Sprintf("Unknown export format %q; use one of %s.", format, strings.Join(Formats, ", ")), nil)
	}
}

// ToFile exports t into opts.OutputDir and returns the written path.
func ToFile(t *Transcript, exp Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	content, err := exp.Export(t)
	if err != nil {
		return "", errors.Wrap(err, "export failed")
	}

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create output directory")
	}

	name := fmt.Sprintf("conversation_%s_%s%s",
		sanitizeFilename(t.DisplayTitle()),
		t.ExportedAt.Format("20060102_150405"),
		exp.FileExtension())
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", errors.Wrap(err, "write file")
	}
	return path, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// sanitizeFilename replaces characters that are invalid in file names on
// common platforms.
func sanitizeFilename(s string) string {
	s = snippet(s, 50)
	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteRune('_')
		case r < 32 || r == 127:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "conversation"
	}
	return b.String()
}

func snippet(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
