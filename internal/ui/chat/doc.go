// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the full-screen Bubble Tea chat view.
//
// The view renders a client.Session: the transcript in a scrolling viewport,
// a header with the active mentor and model, and a status bar with API
// health. Sends run as tea.Cmds so the UI stays responsive; the session's
// optimistic update makes the user message appear immediately and its
// rollback removes it again on failure. session.Manager ticks drive the
// periodic health probe.
//
// # Usage
//
//	m := chat.New(chat.Options{Session: sess, Command: handle})
//	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
package chat
