// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/polychat/internal/model"
)

// =============================================================================
// COMMAND PARSING
// =============================================================================

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantOK   bool
		wantName string
		wantArgs []string
	}{
		{name: "plain message", line: "hello there", wantOK: false},
		{name: "bare slash", line: "/", wantOK: false},
		{name: "simple", line: "/status", wantOK: true, wantName: "status"},
		{name: "case folded", line: "/HELP", wantOK: true, wantName: "help"},
		{name: "alias", line: "/q", wantOK: true, wantName: "quit"},
		{name: "exit alias", line: "/exit", wantOK: true, wantName: "quit"},
		{name: "question alias", line: "/?", wantOK: true, wantName: "help"},
		{name: "with args", line: "  /add openai/gpt-4o GPT 4o  ", wantOK: true, wantName: "add", wantArgs: []string{"openai/gpt-4o", "GPT", "4o"}},
		{name: "mentor alias", line: "/m chess", wantOK: true, wantName: "mentor", wantArgs: []string{"chess"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, ok := ParseCommand(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("ParseCommand(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if cmd.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", cmd.Name, tt.wantName)
			}
			if strings.Join(cmd.Args, "|") != strings.Join(tt.wantArgs, "|") {
				t.Errorf("Args = %v, want %v", cmd.Args, tt.wantArgs)
			}
		})
	}
}

func TestCommand_Rest(t *testing.T) {
	cmd, _ := ParseCommand("/rename  Opening   theory ")
	if got := cmd.Rest(); got != "Opening theory" {
		t.Errorf("Rest() = %q", got)
	}
}

func TestCommandHelp_UsesCanonicalNames(t *testing.T) {
	for _, h := range commandHelp {
		token := strings.Fields(h[0])[0]
		cmd, ok := ParseCommand(token)
		if !ok {
			t.Errorf("help entry %q does not parse", h[0])
			continue
		}
		if "/"+cmd.Name != token {
			t.Errorf("help entry %q resolves to /%s", h[0], cmd.Name)
		}
	}
}

// =============================================================================
// RESOLUTION
// =============================================================================

func TestResolveModel(t *testing.T) {
	models := []model.ChatModel{
		{ID: "openai/gpt-4o-mini", Label: "GPT-4o mini"},
		{ID: "anthropic/claude-3.5-sonnet", Label: "Claude 3.5 Sonnet"},
	}

	tests := []struct {
		arg    string
		wantID string
		wantOK bool
	}{
		{"1", "openai/gpt-4o-mini", true},
		{"2", "anthropic/claude-3.5-sonnet", true},
		{"0", "", false},
		{"3", "", false},
		{"anthropic/claude-3.5-sonnet", "anthropic/claude-3.5-sonnet", true},
		{"unknown/model", "unknown/model", false},
	}
	for _, tt := range tests {
		id, ok := resolveModel(models, tt.arg)
		if id != tt.wantID || ok != tt.wantOK {
			t.Errorf("resolveModel(%q) = (%q, %v), want (%q, %v)", tt.arg, id, ok, tt.wantID, tt.wantOK)
		}
	}
}

func TestResolveConversation(t *testing.T) {
	list := []model.ConversationSummary{{ID: "c-1"}, {ID: "c-2"}}
	if got := resolveConversation(list, "2"); got != "c-2" {
		t.Errorf("index 2 = %q", got)
	}
	if got := resolveConversation(list, "9"); got != "9" {
		t.Errorf("out of range index should pass through, got %q", got)
	}
	if got := resolveConversation(list, "c-abc"); got != "c-abc" {
		t.Errorf("id = %q", got)
	}
}

// =============================================================================
// FORMATTING
// =============================================================================

func TestRelativeTime(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{2 * 24 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		if got := relativeTime(now.Add(-tt.ago), now); got != tt.want {
			t.Errorf("relativeTime(-%s) = %q, want %q", tt.ago, got, tt.want)
		}
	}
	old := now.Add(-30 * 24 * time.Hour)
	if got := relativeTime(old, now); got != old.Local().Format("2006-01-02") {
		t.Errorf("old timestamp = %q", got)
	}
}

func TestFormatModels_MarksSelection(t *testing.T) {
	ForceColorsEnabled(false)
	applyColorProfile()

	out := formatModels([]model.ChatModel{
		{ID: "a/one", Label: "One"},
		{ID: "b/two", Label: "Two"},
	}, "b/two")

	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if strings.HasPrefix(lines[0], "*") {
		t.Errorf("first model should not be marked: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "* ") || !strings.Contains(lines[1], "b/two") {
		t.Errorf("selected model should be marked: %q", lines[1])
	}
	if got := formatModels(nil, ""); !strings.Contains(got, "No chat models") {
		t.Errorf("empty catalog = %q", got)
	}
}

func TestFormatConversations_MarksCurrent(t *testing.T) {
	ForceColorsEnabled(false)
	applyColorProfile()

	now := time.Now()
	title := "Sicilian lines"
	out := formatConversations([]model.ConversationSummary{
		{ID: "c-1", MentorID: "chess", Title: &title, CreatedAt: now},
		{ID: "c-2", MentorID: "math", CreatedAt: now},
	}, "c-2", 100)

	if !strings.Contains(out, "Sicilian lines") || !strings.Contains(out, "Chess Coach") {
		t.Errorf("missing title or mentor:\n%s", out)
	}
	lines := strings.Split(out, "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "* ") {
		t.Errorf("current conversation should be marked:\n%s", out)
	}
}

func TestWrapText(t *testing.T) {
	got := WrapText("the quick brown fox jumps over the lazy dog", 22)
	for _, line := range strings.Split(got, "\n") {
		if len(line) > 20 {
			t.Errorf("line %q exceeds width", line)
		}
	}
	if strings.Join(strings.Fields(got), " ") != "the quick brown fox jumps over the lazy dog" {
		t.Errorf("words lost: %q", got)
	}
	if got := WrapText("short", 40); got != "short" {
		t.Errorf("short text changed: %q", got)
	}
}

func TestPrompt(t *testing.T) {
	sess, _ := newOfflineSession(t)
	if got := prompt(sess.Snapshot()); got != "auto> " {
		t.Errorf("auto prompt = %q", got)
	}
	sess.SetMentor("chess")
	if got := prompt(sess.Snapshot()); got != "chess> " {
		t.Errorf("manual prompt = %q", got)
	}
}

// =============================================================================
// MENTOR CONFIG HELPERS
// =============================================================================

func TestWithMentorID(t *testing.T) {
	out, err := withMentorID([]byte(`{"id":"other","persona":{"system_prompt":"Hi"},"extra":1}`), "Poetry")
	if err != nil {
		t.Fatalf("withMentorID: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["id"] != "poetry" {
		t.Errorf("id = %v, want poetry", doc["id"])
	}
	if doc["extra"] != float64(1) {
		t.Errorf("unknown keys should survive, got %v", doc["extra"])
	}

	if _, err := withMentorID([]byte("not json"), "x"); err == nil {
		t.Error("invalid JSON should fail")
	}
}

func TestErrorText(t *testing.T) {
	if got := errorText(model.NewNotFound("Conversation not found")); got != "Conversation not found" {
		t.Errorf("domain error = %q", got)
	}
	if got := errorText(errors.New("dial tcp: refused")); got != "dial tcp: refused" {
		t.Errorf("internal error = %q", got)
	}
}

func TestParseModelArgs(t *testing.T) {
	got := parseModelArgs([]string{"a/model=Model A", " b/model ", "c=x=y"})
	want := []model.ChatModel{
		{ID: "a/model", Label: "Model A", Position: 0},
		{ID: "b/model", Label: "", Position: 1},
		{ID: "c", Label: "x=y", Position: 2},
	}
	if len(got) != len(want) {
		t.Fatalf("parseModelArgs returned %d models, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("parseModelArgs[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}
