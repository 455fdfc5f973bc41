// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/polychat/internal/mentor"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter writes YAML front matter followed by one section per
// message.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export implements Exporter.
func (e *MarkdownExporter) Export(t *Transcript) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	title := t.DisplayTitle()

	var sb strings.Builder
	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(title))
		fmt.Fprintf(&sb, "conversation: %s\n", t.ConversationID)
		fmt.Fprintf(&sb, "mentor: %s\n", t.MentorID)
		fmt.Fprintf(&sb, "messages: %d\n", len(t.Messages))
		fmt.Fprintf(&sb, "exported: %s\n", t.ExportedAt.Format(time.RFC3339))
		sb.WriteString("generator: polychat\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(title))
	if e.options.IncludeMetadata {
		fmt.Fprintf(&sb, "- **Mentor**: %s\n", mentor.ID(t.MentorID).DisplayName())
		fmt.Fprintf(&sb, "- **Started**: %s\n", formatTimestamp(t.Messages[0].CreatedAt))
		fmt.Fprintf(&sb, "- **Messages**: %d\n\n---\n\n", len(t.Messages))
	}

	for i, m := range t.Messages {
		label := speaker(m)
		if e.options.IncludeTimestamps && !m.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, formatShortTimestamp(m.CreatedAt))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}
		sb.WriteString(strings.TrimSpace(m.Content))
		sb.WriteString("\n\n")
		for _, f := range m.Files {
			fmt.Fprintf(&sb, "> attached: `%s`\n\n", f.Name)
		}
		if m.Model != "" && e.options.IncludeMetadata {
			fmt.Fprintf(&sb, "*model: %s*\n\n", m.Model)
		}
		if i < len(t.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}
	return []byte(sb.String()), nil
}

// FileExtension implements Exporter.
func (e *MarkdownExporter) FileExtension() string { return ".md" }

// MimeType implements Exporter.
func (e *MarkdownExporter) MimeType() string { return "text/markdown" }

// escapeYAML quotes values that YAML would otherwise misread.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#'\"{}[]|>&*!%@`") || strings.HasPrefix(s, "-") {
		return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
	}
	return s
}

// escapeMarkdown escapes characters with heading meaning.
func escapeMarkdown(s string) string {
	return strings.NewReplacer(`\`, `\\`, "#", `\#`, "*", `\*`, "_", `\_`, "`", "\\`").Replace(s)
}
