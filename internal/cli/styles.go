// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/polychat/internal/ui/styles"
)

// =============================================================================
// SHARED STYLES FOR ALL CLI COMMANDS
// =============================================================================

var (
	// TitleStyle is used for command titles and the REPL banner.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(styles.Purple)

	// UserLabelStyle labels user messages in the transcript.
	UserLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(styles.Cyan)

	// CommandStyle highlights slash commands in help output.
	CommandStyle = lipgloss.NewStyle().Foreground(styles.Emerald)

	// SelectedStyle marks the active model or conversation.
	SelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(styles.Purple)

	// DimStyle is for hints, ids and timestamps.
	DimStyle = lipgloss.NewStyle().Foreground(styles.TextMuted)

	// TimestampStyle renders message times.
	TimestampStyle = lipgloss.NewStyle().Foreground(styles.TextMuted).Italic(true)

	// OnlineStyle and OfflineStyle render API health.
	OnlineStyle  = lipgloss.NewStyle().Foreground(styles.Emerald)
	OfflineStyle = lipgloss.NewStyle().Foreground(styles.Rose)
)

var (
	themeOnce   sync.Once
	sharedTheme *styles.Theme
)

// theme returns the lazily detected terminal theme.
func theme() *styles.Theme {
	themeOnce.Do(func() { sharedTheme = styles.NewTheme() })
	return sharedTheme
}
