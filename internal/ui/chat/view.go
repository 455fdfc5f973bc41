// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/polychat/internal/client"
	"github.com/jeranaias/polychat/internal/mentor"
	"github.com/jeranaias/polychat/internal/model"
	"github.com/jeranaias/polychat/internal/session"
	"github.com/jeranaias/polychat/internal/util"
)

// View renders the chat view.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderStatus(),
		m.input.View(),
	)
}

func (m Model) renderHeader() string {
	v := m.sess.Snapshot()
	who := m.theme.MentorBadge(string(v.Mentor), v.Mentor.DisplayName())
	if v.Mode == session.ModeAuto {
		who = "auto (" + who + ")"
	}
	title := m.theme.HeaderTitle.Render("polychat")
	line := fmt.Sprintf("%s  %s  %s", title, who, m.theme.Muted.Render(orDash(v.Model)))
	return m.theme.Header.Width(m.width).Render(line)
}

func (m Model) renderStatus() string {
	v := m.sess.Snapshot()
	online := m.theme.Offline.Render(v.APIOnline.String())
	if v.APIOnline == client.OnlineYes {
		online = m.theme.Online.Render(v.APIOnline.String())
	}

	parts := []string{online}
	switch {
	case m.sending:
		parts = append(parts, m.spinner.View()+" waiting for "+v.Mentor.DisplayName())
	case v.State == client.StateError && v.LastError != "":
		parts = append(parts, m.theme.Error.Render(v.LastError))
	}
	if v.ConversationID != "" {
		parts = append(parts, m.theme.Muted.Render(util.TruncateRunes(v.ConversationID, 12)))
	}
	parts = append(parts, m.theme.Muted.Render("idle "+session.FormatDuration(m.mgr.IdleTime())))

	help := make([]string, 0, 4)
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	left := strings.Join(parts, "  ")
	right := m.theme.Muted.Render(strings.Join(help, " · "))
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		return m.theme.StatusBar.Width(m.width).Render(left)
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

// renderTranscript draws the conversation followed by command output.
func (m Model) renderTranscript() string {
	v := m.sess.Snapshot()
	width := max(m.viewport.Width-2, 20)

	var b strings.Builder
	if len(v.Messages) == 0 {
		b.WriteString(m.theme.Muted.Render("Start typing. Messages are routed to the best mentor unless you lock one with /mentor."))
		b.WriteString("\n")
	}
	for _, msg := range v.Messages {
		b.WriteString(m.renderMessage(msg, width))
		b.WriteString("\n\n")
	}
	for _, note := range m.notes {
		b.WriteString(note)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderMessage(msg model.HistoryItem, width int) string {
	stamp := ""
	if !msg.CreatedAt.IsZero() {
		stamp = " " + m.theme.Timestamp.Render(msg.CreatedAt.Local().Format("15:04"))
	}
	if msg.Role == model.RoleUser {
		header := m.theme.UserLabel.Render("You") + stamp
		body := m.theme.UserMessage.Width(width).Render(msg.Content)
		return header + "\n" + body
	}
	id := mentor.ID(msg.Mentor)
	header := m.theme.MentorBadge(msg.Mentor, id.DisplayName()) + stamp
	body := m.theme.AssistantMessage.Width(width).Render(m.markdown(msg.Content))
	return header + "\n" + body
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
