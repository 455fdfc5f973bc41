// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes mentor conversations to files.
//
// # Key Types
//
//   - Transcript: a conversation and its ordered history
//   - Exporter: renders a Transcript in one format
//   - Options: what to include and where to write
//
// # Supported Formats
//
//   - JSON: the transcript as returned by the API
//   - Markdown: front matter plus one section per message
//   - HTML: a standalone page, message bodies rendered from Markdown
//
// # Usage
//
//	exp, err := export.ForFormat("md", nil)
//	path, err := export.ToFile(transcript, exp, &export.Options{OutputDir: "."})
package export
