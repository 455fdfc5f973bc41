// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mentor

import (
	"strings"
)

// ============================================================================
// MENTOR IDS
// ============================================================================

// ID is a mentor tag. The set is open: unknown tags resolve to General.
type ID string

const (
	General ID = "general"
	Bible   ID = "bible"
	Chess   ID = "chess"
	Stock   ID = "stock"
	Math    ID = "math"
)

// Auto requests automatic routing instead of a locked mentor.
const Auto = "auto"

// BuiltIn lists the built-in mentors in display order.
var BuiltIn = []ID{General, Bible, Chess, Stock, Math}

// String returns the tag.
func (id ID) String() string {
	return string(id)
}

// DisplayName returns a human-readable mentor name.
func (id ID) DisplayName() string {
	switch id {
	case General:
		return "General Mentor"
	case Bible:
		return "Bible Mentor"
	case Chess:
		return "Chess Coach"
	case Stock:
		return "Market Analyst"
	case Math:
		return "Math Tutor"
	default:
		if id == "" {
			return "General Mentor"
		}
		return strings.ToUpper(string(id[:1])) + string(id[1:])
	}
}

// IsBuiltIn reports whether id is one of the built-in mentors.
func IsBuiltIn(id ID) bool {
	for _, b := range BuiltIn {
		if b == id {
			return true
		}
	}
	return false
}

// Clean lowercases and trims a raw tag.
func Clean(raw string) ID {
	return ID(strings.ToLower(strings.TrimSpace(raw)))
}

// IsAuto reports whether raw asks for automatic routing.
func IsAuto(raw string) bool {
	c := Clean(raw)
	return c == "" || c == Auto
}
