// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/polychat/internal/client"
	"github.com/jeranaias/polychat/internal/mentor"
	"github.com/jeranaias/polychat/internal/model"
	"github.com/jeranaias/polychat/internal/util"
)

// =============================================================================
// MARKDOWN
// =============================================================================

// markdownRenderer renders assistant replies. A nil renderer prints the raw
// text.
type markdownRenderer struct {
	r *glamour.TermRenderer
}

func newMarkdownRenderer(width int) *markdownRenderer {
	if width <= 0 {
		width = DefaultTerminalWidth
	}
	style := glamour.WithAutoStyle()
	if !ColorsEnabled() {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width-4))
	if err != nil {
		return &markdownRenderer{}
	}
	return &markdownRenderer{r: r}
}

// Render returns the formatted content, or content itself when rendering
// fails.
func (m *markdownRenderer) Render(content string) string {
	if m == nil || m.r == nil {
		return content
	}
	out, err := m.r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

// =============================================================================
// MESSAGES
// =============================================================================

func mentorName(id string) string {
	return mentor.ID(id).DisplayName()
}

// formatMessage renders one history item for the REPL transcript.
func formatMessage(item model.HistoryItem, md *markdownRenderer) string {
	var b strings.Builder
	stamp := ""
	if !item.CreatedAt.IsZero() {
		stamp = TimestampStyle.Render(item.CreatedAt.Local().Format("15:04"))
	}

	if item.Role == model.RoleUser {
		b.WriteString(UserLabelStyle.Render("You"))
		if stamp != "" {
			b.WriteString(" " + stamp)
		}
		if item.Model != "" {
			b.WriteString(" " + DimStyle.Render("("+item.Model+")"))
		}
		b.WriteString("\n")
		b.WriteString(item.Content)
		for _, f := range item.Files {
			b.WriteString("\n" + DimStyle.Render("  attached: "+f.Name))
		}
		return b.String()
	}

	b.WriteString(theme().MentorBadge(item.Mentor, mentorName(item.Mentor)))
	if stamp != "" {
		b.WriteString(" " + stamp)
	}
	b.WriteString("\n")
	b.WriteString(md.Render(item.Content))
	return b.String()
}

// =============================================================================
// TABLES
// =============================================================================

// formatModels lists the catalog, marking the selected model.
func formatModels(models []model.ChatModel, selected string) string {
	if len(models) == 0 {
		return DimStyle.Render("No chat models.")
	}
	labelWidth := 8
	for _, m := range models {
		if w := util.StringWidth(m.Label); w > labelWidth {
			labelWidth = min(w, 32)
		}
	}

	var b strings.Builder
	for i, m := range models {
		marker := "  "
		label := util.PadWidth(m.Label, labelWidth)
		if m.ID == selected {
			marker = "* "
			label = SelectedStyle.Render(label)
		}
		fmt.Fprintf(&b, "%s%2d. %s  %s\n", marker, i+1, label, DimStyle.Render(m.ID))
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatConversations lists conversations, freshest first, marking the
// active one.
func formatConversations(list []model.ConversationSummary, current string, width int) string {
	if len(list) == 0 {
		return DimStyle.Render("No conversations yet.")
	}
	if width <= 0 {
		width = DefaultTerminalWidth
	}
	titleWidth := max(width-48, 16)

	var b strings.Builder
	for i, c := range list {
		marker := "  "
		if c.ID == current {
			marker = "* "
		}
		when := c.CreatedAt
		if c.LastMessageAt != nil {
			when = *c.LastMessageAt
		}
		title := util.PadWidth(util.Snippet(c.DisplayTitle(), 80), titleWidth)
		fmt.Fprintf(&b, "%s%2d. %s  %s  %s\n",
			marker, i+1, title,
			util.PadWidth(mentorName(c.MentorID), 14),
			DimStyle.Render(relativeTime(when, time.Now())))
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatMentors lists the mentors known to the server.
func formatMentors(list []client.MentorInfo) string {
	if len(list) == 0 {
		return DimStyle.Render("No mentors.")
	}
	var b strings.Builder
	for _, m := range list {
		fmt.Fprintf(&b, "  %s  %s", util.PadWidth(m.ID, 12), theme().MentorBadge(m.ID, m.DisplayName))
		if m.Description != "" {
			b.WriteString("  " + DimStyle.Render(util.Snippet(m.Description, 60)))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatStatus is the one-line session summary shown by /status.
func formatStatus(v client.View) string {
	online := OfflineStyle.Render(v.APIOnline.String())
	if v.APIOnline == client.OnlineYes {
		online = OnlineStyle.Render(v.APIOnline.String())
	}
	mentorLabel := "auto"
	if v.Mode != "auto" {
		mentorLabel = string(v.Mentor)
	}
	conv := "new"
	if v.ConversationID != "" {
		conv = util.TruncateRunes(v.ConversationID, 12)
	}
	return fmt.Sprintf("%s  mentor=%s  model=%s  conversation=%s  user=%s",
		online, mentorLabel, orDash(v.Model), conv, orDash(util.TruncateRunes(v.UserID, 12)))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// relativeTime renders a coarse age such as "5m ago".
func relativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Local().Format("2006-01-02")
	}
}

// =============================================================================
// JSON OUTPUT
// =============================================================================

// JSONResponse is the envelope printed by --json.
type JSONResponse struct {
	Success   bool    `json:"success"`
	Data      any     `json:"data"`
	Error     *string `json:"error"`
	Timestamp string  `json:"timestamp"`
	Command   string  `json:"command,omitempty"`
}

func writeJSON(w io.Writer, command string, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	})
}

// highlightJSON pretty-prints raw JSON, with syntax colors when the terminal
// supports them.
func highlightJSON(raw []byte) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return string(raw)
	}
	if !ColorsEnabled() {
		return pretty.String()
	}
	var out bytes.Buffer
	if err := quick.Highlight(&out, pretty.String(), "json", "terminal256", "monokai"); err != nil {
		return pretty.String()
	}
	return out.String()
}
