// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across polychat packages.
//
// # Key Functions
//
//   - Snippet: whitespace-collapsed, ellipsis-truncated preview text
//   - TruncateRunes, TruncateWidth, PadWidth: rune and column aware cutting
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	preview := util.Snippet(firstMessage, 80)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
