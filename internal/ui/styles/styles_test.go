// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
)

func TestMentorColor(t *testing.T) {
	if MentorColor("bible") != Amber {
		t.Errorf("bible accent = %v, want Amber", MentorColor("bible"))
	}
	if MentorColor("poetry") != Purple {
		t.Errorf("unassigned mentor should fall back to Purple")
	}
}

func TestRenderHelpersIncludeIndicators(t *testing.T) {
	tests := []struct {
		name      string
		render    func(string) string
		indicator string
	}{
		{"success", RenderSuccess, StatusIndicators.Success},
		{"error", RenderError, StatusIndicators.Error},
		{"warning", RenderWarning, StatusIndicators.Warning},
		{"info", RenderInfo, StatusIndicators.Info},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.render("hello")
			if !strings.Contains(out, tt.indicator) || !strings.Contains(out, "hello") {
				t.Errorf("render = %q, want indicator %q and message", out, tt.indicator)
			}
		})
	}
}

func TestLayoutMode(t *testing.T) {
	theme := NewTheme()
	tests := []struct {
		width int
		want  LayoutMode
	}{
		{40, LayoutNarrow},
		{80, LayoutMedium},
		{120, LayoutWide},
	}
	for _, tt := range tests {
		theme.SetSize(tt.width, 24)
		if got := theme.GetLayoutMode(); got != tt.want {
			t.Errorf("width %d: got %v, want %v", tt.width, got, tt.want)
		}
	}
}

func TestMentorBadge(t *testing.T) {
	theme := NewTheme()
	if out := theme.MentorBadge("math", "Math Mentor"); !strings.Contains(out, "Math Mentor") {
		t.Errorf("badge = %q", out)
	}
}
