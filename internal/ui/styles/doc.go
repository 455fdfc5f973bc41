// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the color palette and lipgloss styles shared by
// the polychat REPL and TUI. All colors are lipgloss AdaptiveColor values so
// light and dark terminals both render legibly.
//
// # Key Types
//
//   - Theme: message, header and status bar styles plus terminal capabilities
//   - MentorColor: per-mentor accent color
//   - StatusIndicators: ASCII markers rendered alongside color
//
// # Usage
//
//	theme := styles.NewTheme()
//	fmt.Println(theme.MentorBadge("math", "Math Mentor"))
//	fmt.Println(styles.RenderError("Unable to send message."))
package styles
