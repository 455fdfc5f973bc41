// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across polychat packages.
package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/unicode/norm"
)

// Ellipsis is appended by Snippet when text is cut.
const Ellipsis = "…"

// CollapseWhitespace NFC-normalizes s, replaces every run of whitespace with a
// single space and trims both ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// Snippet collapses whitespace and cuts the result to maxRunes characters,
// the last of which is an ellipsis when the text was longer.
func Snippet(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	collapsed := CollapseWhitespace(s)
	runes := []rune(collapsed)
	if len(runes) <= maxRunes {
		return collapsed
	}
	return strings.TrimRight(string(runes[:maxRunes-1]), " ") + Ellipsis
}

// TruncateRunes cuts s to maxRunes characters, appending "..." when cut.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}

// TruncateWidth cuts s to a display width, counting wide runes as two columns.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	return runewidth.Truncate(s, maxWidth, Ellipsis)
}

// PadWidth right-pads s with spaces to exactly width display columns.
func PadWidth(s string, width int) string {
	return runewidth.FillRight(TruncateWidth(s, width), width)
}

// StringWidth returns the display width of s.
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}
