// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	chatsvc "github.com/jeranaias/polychat/internal/chat"
	"github.com/jeranaias/polychat/internal/client"
	"github.com/jeranaias/polychat/internal/model"
	"github.com/jeranaias/polychat/internal/session"
)

// =============================================================================
// FAKE API
// =============================================================================

type fakeAPI struct {
	sendErr   error
	healthErr error
}

func (f *fakeAPI) SendChat(_ context.Context, req chatsvc.SendRequest) (*chatsvc.SendResult, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	now := time.Now()
	return &chatsvc.SendResult{
		ConversationID: "conv-1",
		UserID:         req.UserID,
		MentorID:       "math",
		Reply:          "The derivative of x^2 is 2x.",
		History: []model.HistoryItem{
			{ID: "m1", Role: model.RoleUser, Content: req.Message, CreatedAt: now},
			{ID: "m2", Role: model.RoleAssistant, Content: "The derivative of x^2 is 2x.", CreatedAt: now, Mentor: "math"},
		},
	}, nil
}

func (f *fakeAPI) GetConversation(context.Context, string, string) (*chatsvc.ConversationResult, error) {
	return nil, model.NewNotFound("Conversation not found")
}

func (f *fakeAPI) ListConversations(context.Context, string) ([]model.ConversationSummary, error) {
	return nil, nil
}

func (f *fakeAPI) CreateConversation(_ context.Context, userID, mentorID string) (*model.ConversationSummary, error) {
	return &model.ConversationSummary{ID: "conv-2", UserID: userID, MentorID: mentorID}, nil
}

func (f *fakeAPI) RenameConversation(context.Context, string, string, string) (*model.ConversationSummary, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAPI) DeleteConversation(context.Context, string, string) error {
	return nil
}

func (f *fakeAPI) ListChatModels(context.Context, string) ([]model.ChatModel, error) {
	return []model.ChatModel{{ID: "openai/gpt-4o-mini", Label: "GPT-4o mini", Position: 0}}, nil
}

func (f *fakeAPI) AddChatModel(context.Context, string, string, string) ([]model.ChatModel, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAPI) RemoveChatModel(context.Context, string, string) ([]model.ChatModel, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAPI) Health(context.Context) error {
	return f.healthErr
}

func newTestModel(t *testing.T, api *fakeAPI, command CommandFunc) Model {
	t.Helper()
	sess := client.NewSession(api, client.Options{
		UserID: "user-1",
		Store:  session.NewMemoryStore(session.State{}),
	})
	t.Cleanup(sess.Wait)
	m := New(Options{Session: sess, Command: command})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(Model)
}

// =============================================================================
// TESTS
// =============================================================================

func TestView_BeforeAndAfterResize(t *testing.T) {
	sess := client.NewSession(&fakeAPI{}, client.Options{UserID: "u"})
	m := New(Options{Session: sess})
	if got := m.View(); got != "Loading..." {
		t.Errorf("View before resize = %q", got)
	}

	m = newTestModel(t, &fakeAPI{}, nil)
	view := m.View()
	if !strings.Contains(view, "polychat") {
		t.Errorf("header missing from view:\n%s", view)
	}
	if !strings.Contains(view, "auto") {
		t.Errorf("automatic routing should be shown in the header:\n%s", view)
	}
}

func TestSend_Success(t *testing.T) {
	m := newTestModel(t, &fakeAPI{}, nil)

	msg := m.sendCmd("what is the derivative of x^2")()
	updated, _ := m.Update(msg)
	m = updated.(Model)

	if m.sending {
		t.Error("sending should be cleared after the result")
	}
	content := m.renderTranscript()
	if !strings.Contains(content, "2x") {
		t.Errorf("reply missing from transcript:\n%s", content)
	}
	if !strings.Contains(content, "Math Tutor") {
		t.Errorf("mentor badge missing from transcript:\n%s", content)
	}
}

func TestSend_FailureRollsBack(t *testing.T) {
	api := &fakeAPI{sendErr: model.NewProviderUnavailable(errors.New("boom"))}
	m := newTestModel(t, api, nil)

	msg := m.sendCmd("hello")()
	result, ok := msg.(SendResultMsg)
	if !ok || result.Err == nil {
		t.Fatalf("expected failed SendResultMsg, got %#v", msg)
	}
	updated, _ := m.Update(msg)
	m = updated.(Model)

	if n := len(m.sess.Snapshot().Messages); n != 0 {
		t.Errorf("optimistic message should be rolled back, have %d messages", n)
	}
	if len(m.notes) != 1 || !strings.Contains(m.notes[0], client.MsgSendFailed) {
		t.Errorf("notes = %v, want send failure", m.notes)
	}
}

func TestSubmit_EmptyIgnored(t *testing.T) {
	m := newTestModel(t, &fakeAPI{}, nil)
	updated, cmd := m.submit()
	if cmd != nil {
		t.Error("empty input should not produce a command")
	}
	if updated.(Model).sending {
		t.Error("empty input should not start a send")
	}
}

func TestSubmit_StartsSend(t *testing.T) {
	m := newTestModel(t, &fakeAPI{}, nil)
	m.input.SetValue("hello")
	updated, cmd := m.submit()
	m = updated.(Model)
	if !m.sending || cmd == nil {
		t.Error("submit should start a send")
	}
	if m.input.Value() != "" {
		t.Error("input should be cleared after submit")
	}
}

func TestSlashCommand(t *testing.T) {
	var got string
	m := newTestModel(t, &fakeAPI{}, func(_ context.Context, line string) (string, bool) {
		got = line
		return "command output\n", line == "/quit"
	})

	msg := m.runCommand("/status")()
	if got != "/status" {
		t.Errorf("command received %q", got)
	}
	updated, cmd := m.Update(msg)
	m = updated.(Model)
	if cmd != nil {
		t.Error("non-quit command should not return a command")
	}
	if len(m.notes) != 1 || m.notes[0] != "command output" {
		t.Errorf("notes = %v", m.notes)
	}

	updated, _ = m.Update(m.runCommand("/quit")())
	if !updated.(Model).Quitting() {
		t.Error("/quit should end the program")
	}
}

func TestSlashCommand_Unavailable(t *testing.T) {
	m := newTestModel(t, &fakeAPI{}, nil)
	msg := m.runCommand("/help")().(CommandResultMsg)
	if !strings.Contains(msg.Output, "not available") {
		t.Errorf("output = %q", msg.Output)
	}
}

func TestHealthProbe(t *testing.T) {
	api := &fakeAPI{healthErr: errors.New("down")}
	m := newTestModel(t, api, nil)

	_, cmd := m.Update(session.HealthDueMsg{})
	if cmd == nil {
		t.Fatal("health due should issue a probe")
	}
	msg := cmd().(HealthMsg)
	if msg.Online != client.OnlineNo {
		t.Errorf("online = %v, want offline", msg.Online)
	}
	updated, _ := m.Update(msg)
	if status := updated.(Model).renderStatus(); !strings.Contains(status, "offline") {
		t.Errorf("status bar should show offline: %s", status)
	}
}

func TestNotesBounded(t *testing.T) {
	m := newTestModel(t, &fakeAPI{}, nil)
	for i := 0; i < maxNotes+5; i++ {
		m.addNote("note")
	}
	if len(m.notes) != maxNotes {
		t.Errorf("notes = %d, want %d", len(m.notes), maxNotes)
	}
}
