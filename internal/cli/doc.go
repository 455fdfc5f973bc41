// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the polychat command line.
//
// # Commands
//
//   - serve: wire the store, mentor registry, provider and HTTP API
//   - chat: interactive REPL or one-shot message
//   - tui: full-screen chat built on the same session
//   - models, conversations: catalog and history management
//   - mentors: list mentors, edit and publish mentor configs
//   - admin: generate the admin token hash and TOTP secret
//
// Every client command restores the persisted session (user, conversation,
// mentor mode and model) from client.session_file, so a conversation started
// in the REPL can be continued in the TUI.
//
// # Usage
//
//	os.Exit(cli.Execute())
package cli
