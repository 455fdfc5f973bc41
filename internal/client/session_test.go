// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/polychat/internal/catalog"
	"github.com/jeranaias/polychat/internal/chat"
	"github.com/jeranaias/polychat/internal/mentor"
	"github.com/jeranaias/polychat/internal/model"
	"github.com/jeranaias/polychat/internal/session"
)

// =============================================================================
// FAKE API
// =============================================================================

type fakeAPI struct {
	mu sync.Mutex

	sendResult *chat.SendResult
	sendErr    error
	sendGate   chan struct{}
	sendSeen   chan chat.SendRequest
	sends      []chat.SendRequest

	conversation *chat.ConversationResult
	getErr       error

	conversations []model.ConversationSummary
	listErr       error
	listCalls     int

	created   *model.ConversationSummary
	deleteErr error

	models      []model.ChatModel
	modelsErr   error
	modelCalls  int
	healthErr   error
	healthCalls int
}

func (f *fakeAPI) SendChat(ctx context.Context, req chat.SendRequest) (*chat.SendResult, error) {
	f.mu.Lock()
	f.sends = append(f.sends, req)
	gate, seen := f.sendGate, f.sendSeen
	f.mu.Unlock()
	if seen != nil {
		seen <- req
	}
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return f.sendResult, nil
}

func (f *fakeAPI) GetConversation(_ context.Context, id, userID string) (*chat.ConversationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.conversation, nil
}

func (f *fakeAPI) ListConversations(context.Context, string) ([]model.ConversationSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.ConversationSummary(nil), f.conversations...), nil
}

func (f *fakeAPI) CreateConversation(_ context.Context, userID, mentorID string) (*model.ConversationSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *f.created
	c.MentorID = mentorID
	if userID != "" {
		c.UserID = userID
	}
	f.conversations = append([]model.ConversationSummary{c}, f.conversations...)
	return &c, nil
}

func (f *fakeAPI) RenameConversation(_ context.Context, _, id, title string) (*model.ConversationSummary, error) {
	return &model.ConversationSummary{ID: id, Title: model.StringPtr(title)}, nil
}

func (f *fakeAPI) DeleteConversation(context.Context, string, string) error {
	return f.deleteErr
}

func (f *fakeAPI) ListChatModels(context.Context, string) ([]model.ChatModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modelCalls++
	return model.CloneChatModels(f.models), f.modelsErr
}

func (f *fakeAPI) AddChatModel(_ context.Context, _, id, label string) ([]model.ChatModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modelCalls++
	if f.modelsErr != nil {
		return nil, f.modelsErr
	}
	f.models = append(f.models, model.ChatModel{ID: id, Label: label, Position: len(f.models)})
	return model.CloneChatModels(f.models), nil
}

func (f *fakeAPI) RemoveChatModel(_ context.Context, _, id string) ([]model.ChatModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modelCalls++
	if f.modelsErr != nil {
		return nil, f.modelsErr
	}
	kept := f.models[:0:0]
	for _, m := range f.models {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	f.models = kept
	return model.CloneChatModels(kept), nil
}

func (f *fakeAPI) Health(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthCalls++
	return f.healthErr
}

func history(mentorID string, contents ...string) []model.HistoryItem {
	items := make([]model.HistoryItem, 0, len(contents))
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range contents {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		items = append(items, model.HistoryItem{
			ID: "srv-" + c, Role: role, Content: c, CreatedAt: base.Add(time.Duration(i) * time.Second), Mentor: mentorID,
		})
	}
	return items
}

func newSession(t *testing.T, api *fakeAPI, userID string) (*Session, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore(session.State{})
	s := NewSession(api, Options{UserID: userID, Store: store})
	s.newID = func() string { return "00000000-0000-4000-8000-000000000000" }
	t.Cleanup(s.Wait)
	return s, store
}

// =============================================================================
// SEND
// =============================================================================

func TestSendMessage_ReplacesHistory(t *testing.T) {
	api := &fakeAPI{
		sendResult: &chat.SendResult{
			ConversationID: "conv-1",
			UserID:         "user-42",
			MentorID:       "general",
			Reply:          "Hi there!",
			History:        history("general", "hello", "Hi there!"),
		},
		conversations: []model.ConversationSummary{{ID: "conv-1", UserID: "user-42"}},
	}
	s, store := newSession(t, api, "user-42")

	res, err := s.SendMessage(context.Background(), "  hello  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", res.Reply)
	s.Wait()

	v := s.Snapshot()
	assert.Equal(t, StateIdle, v.State)
	assert.Equal(t, OnlineYes, v.APIOnline)
	assert.Equal(t, "conv-1", v.ConversationID)
	require.Len(t, v.Messages, 2)
	assert.Equal(t, "srv-hello", v.Messages[0].ID, "optimistic message replaced by server history")
	assert.Len(t, v.Conversations, 1, "conversation list refreshed in background")

	require.Len(t, api.sends, 1)
	assert.Equal(t, "hello", api.sends[0].Message)
	assert.Equal(t, "user-42", api.sends[0].UserID)
	assert.Empty(t, api.sends[0].SessionID)

	st, _ := store.Load()
	assert.Equal(t, "conv-1", st.ConversationID)
	assert.Equal(t, "user-42", st.UserID)
}

func TestSendMessage_RollbackOnFailure(t *testing.T) {
	api := &fakeAPI{sendErr: model.NewProviderUnavailable(errors.New("boom"))}
	s, _ := newSession(t, api, "user-42")
	s.messages = history("general", "earlier", "reply")

	_, err := s.SendMessage(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrProviderUnavailable)

	v := s.Snapshot()
	assert.Equal(t, StateError, v.State)
	assert.Equal(t, OnlineNo, v.APIOnline)
	assert.Equal(t, MsgSendFailed, v.LastError)
	require.Len(t, v.Messages, 2, "optimistic message removed")
	for _, m := range v.Messages {
		assert.NotEqual(t, "00000000-0000-4000-8000-000000000000", m.ID)
	}
	assert.Equal(t, 0, api.listCalls)
}

func TestSendMessage_FailureRestoresAutoMentor(t *testing.T) {
	api := &fakeAPI{sendErr: errors.New("offline")}
	s, _ := newSession(t, api, "u")
	s.mentor = mentor.Bible

	_, err := s.SendMessage(context.Background(), "best move here?", nil)
	require.Error(t, err)
	require.Len(t, api.sends, 1)
	assert.Equal(t, string(mentor.Chess), api.sends[0].MentorID)

	v := s.Snapshot()
	assert.Equal(t, mentor.Bible, v.Mentor)
	assert.Equal(t, session.ModeAuto, v.Mode)
}

func TestSendMessage_FailureKeepsSelectionMadeInFlight(t *testing.T) {
	api := &fakeAPI{
		sendErr:  errors.New("offline"),
		sendGate: make(chan struct{}),
		sendSeen: make(chan chat.SendRequest, 1),
	}
	s, _ := newSession(t, api, "u")

	done := make(chan error, 1)
	go func() {
		_, err := s.SendMessage(context.Background(), "best move here?", nil)
		done <- err
	}()
	<-api.sendSeen
	s.ResetChat()
	close(api.sendGate)
	require.Error(t, <-done)

	assert.Equal(t, mentor.General, s.Snapshot().Mentor)
}

func TestSendMessage_OptimisticWhilePending(t *testing.T) {
	api := &fakeAPI{
		sendGate: make(chan struct{}),
		sendSeen: make(chan chat.SendRequest, 1),
		sendResult: &chat.SendResult{
			ConversationID: "c", UserID: "u", MentorID: "chess", History: history("chess", "e4?", "Solid."),
		},
	}
	s, _ := newSession(t, api, "u")

	done := make(chan error, 1)
	go func() {
		_, err := s.SendMessage(context.Background(), "e4?", nil)
		done <- err
	}()
	<-api.sendSeen

	v := s.Snapshot()
	assert.Equal(t, StateSending, v.State)
	require.Len(t, v.Messages, 1)
	assert.Equal(t, "00000000-0000-4000-8000-000000000000", v.Messages[0].ID)
	assert.Equal(t, model.RoleUser, v.Messages[0].Role)

	_, err := s.SendMessage(context.Background(), "again", nil)
	assert.ErrorIs(t, err, ErrSendInFlight)
	assert.Len(t, s.Snapshot().Messages, 1, "rejected send leaves state untouched")

	close(api.sendGate)
	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, s.Snapshot().State)
}

func TestSendMessage_Validation(t *testing.T) {
	api := &fakeAPI{}
	s, _ := newSession(t, api, "")

	_, err := s.SendMessage(context.Background(), "hello", nil)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Equal(t, MsgNoUser, model.PublicMessage(err))

	s.SetUser("u")
	_, err = s.SendMessage(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Empty(t, api.sends, "no network call on local validation failure")
	assert.Empty(t, s.Snapshot().Messages)
}

func TestSendMessage_AutoRouting(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		files []model.FileMeta
		want  mentor.ID
	}{
		{"scripture", "What does John 3:16 mean?", nil, mentor.Bible},
		{"chess", "best move here?", nil, mentor.Chess},
		{"file wins", "What does John 3:16 mean?", []model.FileMeta{{Name: "prices.csv"}}, mentor.Stock},
		{"plain", "hello there", nil, mentor.General},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{sendErr: errors.New("offline")}
			s, _ := newSession(t, api, "u")
			_, _ = s.SendMessage(context.Background(), tt.text, tt.files)
			require.Len(t, api.sends, 1)
			assert.Equal(t, string(tt.want), api.sends[0].MentorID)
		})
	}
}

func TestSendMessage_ManualLock(t *testing.T) {
	api := &fakeAPI{sendErr: errors.New("offline")}
	s, _ := newSession(t, api, "u")
	s.SetMentor("math")

	_, _ = s.SendMessage(context.Background(), "What does John 3:16 mean?", nil)
	require.Len(t, api.sends, 1)
	assert.Equal(t, "math", api.sends[0].MentorID)
	assert.Equal(t, session.ModeManual, s.Snapshot().Mode)

	s.SetMentor("auto")
	assert.Equal(t, session.ModeAuto, s.Snapshot().Mode)
}

func TestSendMessage_BackgroundRefreshFailureIgnored(t *testing.T) {
	api := &fakeAPI{
		sendResult: &chat.SendResult{ConversationID: "c", UserID: "u", MentorID: "general", History: history("general", "a", "b")},
		listErr:    errors.New("list down"),
	}
	s, _ := newSession(t, api, "u")
	_, err := s.SendMessage(context.Background(), "a", nil)
	require.NoError(t, err)
	s.Wait()
	assert.Equal(t, StateIdle, s.Snapshot().State)
	assert.Empty(t, s.Snapshot().LastError)
}

// =============================================================================
// RESET AND HEALTH
// =============================================================================

func TestResetChat(t *testing.T) {
	api := &fakeAPI{}
	store := session.NewMemoryStore(session.State{UserID: "u", ConversationID: "c", MentorID: "chess", Mode: session.ModeManual})
	s := NewSession(api, Options{Store: store})
	s.messages = history("chess", "x", "y")
	s.lastError = "old"

	s.ResetChat()

	v := s.Snapshot()
	assert.Empty(t, v.Messages)
	assert.Empty(t, v.ConversationID)
	assert.Empty(t, v.LastError)
	assert.Equal(t, session.ModeAuto, v.Mode)
	assert.Equal(t, mentor.General, v.Mentor)
	assert.Equal(t, "u", v.UserID)

	st, _ := store.Load()
	assert.Empty(t, st.ConversationID)
	assert.Equal(t, "u", st.UserID)
}

func TestCheckHealth(t *testing.T) {
	api := &fakeAPI{}
	s, _ := newSession(t, api, "u")
	assert.Equal(t, OnlineUnknown, s.Snapshot().APIOnline)

	assert.Equal(t, OnlineYes, s.CheckHealth(context.Background()))
	assert.False(t, s.Snapshot().LastHealthAt.IsZero())

	api.healthErr = errors.New("down")
	assert.Equal(t, OnlineNo, s.CheckHealth(context.Background()))
	assert.Equal(t, "offline", OnlineNo.String())
}

func TestNewSession_RestoresState(t *testing.T) {
	store := session.NewMemoryStore(session.State{
		UserID: "u", ConversationID: "c", MentorID: "chess", Mode: session.ModeManual, Model: "openai/gpt-5-mini",
	})
	s := NewSession(&fakeAPI{}, Options{Store: store})
	v := s.Snapshot()
	assert.Equal(t, "u", v.UserID)
	assert.Equal(t, "c", v.ConversationID)
	assert.Equal(t, mentor.Chess, v.Mentor)
	assert.Equal(t, session.ModeManual, v.Mode)
	assert.Equal(t, "openai/gpt-5-mini", v.Model)
}

// =============================================================================
// CHAT MODEL CATALOG
// =============================================================================

func seededModels() []model.ChatModel {
	return model.CloneChatModels(catalog.Defaults[:2])
}

func TestLoadChatModels_SelectsFirst(t *testing.T) {
	api := &fakeAPI{models: seededModels()}
	s, _ := newSession(t, api, "u")

	list, err := s.LoadChatModels(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, catalog.Defaults[0].ID, s.Snapshot().Model)

	require.NoError(t, s.SelectChatModel(catalog.Defaults[1].ID))
	assert.Equal(t, catalog.Defaults[1].ID, s.Snapshot().Model)
	assert.ErrorIs(t, s.SelectChatModel("nope/nope"), model.ErrValidation)
}

func TestAddChatModel_AdoptsServerList(t *testing.T) {
	api := &fakeAPI{models: seededModels()}
	s, _ := newSession(t, api, "u")
	_, err := s.LoadChatModels(context.Background())
	require.NoError(t, err)

	list, err := s.AddChatModel(context.Background(), " custom/model ", "")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "custom/model", list[2].Label, "label defaults to id")
	assert.Equal(t, list, s.Snapshot().Models)
}

func TestAddChatModel_RestoresOnFailure(t *testing.T) {
	api := &fakeAPI{models: seededModels()}
	s, _ := newSession(t, api, "u")
	_, err := s.LoadChatModels(context.Background())
	require.NoError(t, err)
	before := s.Snapshot().Models

	api.modelsErr = model.NewConflict(catalog.MsgDuplicate)
	_, err = s.AddChatModel(context.Background(), catalog.Defaults[0].ID, "dup")
	assert.ErrorIs(t, err, model.ErrConflict)
	assert.Equal(t, before, s.Snapshot().Models)
}

func TestRemoveChatModel(t *testing.T) {
	api := &fakeAPI{models: seededModels()}
	s, _ := newSession(t, api, "u")
	_, err := s.LoadChatModels(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.SelectChatModel(catalog.Defaults[1].ID))

	list, err := s.RemoveChatModel(context.Background(), catalog.Defaults[1].ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, catalog.Defaults[0].ID, s.Snapshot().Model, "selection falls back to a listed model")

	calls := api.modelCalls
	_, err = s.RemoveChatModel(context.Background(), catalog.Defaults[0].ID)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Equal(t, catalog.MsgLastModel, model.PublicMessage(err))
	assert.Equal(t, calls, api.modelCalls, "last model rejected locally")
}

func TestRemoveChatModel_RestoresOnFailure(t *testing.T) {
	api := &fakeAPI{models: seededModels()}
	s, _ := newSession(t, api, "u")
	_, err := s.LoadChatModels(context.Background())
	require.NoError(t, err)
	before := s.Snapshot().Models

	api.modelsErr = errors.New("network")
	_, err = s.RemoveChatModel(context.Background(), catalog.Defaults[0].ID)
	require.Error(t, err)
	assert.Equal(t, before, s.Snapshot().Models)
}

func TestOptimistic(t *testing.T) {
	state := []int{1, 2}
	var seen [][]int
	get := func() []int { return append([]int(nil), state...) }
	set := func(v []int) { state = v; seen = append(seen, v) }

	_, err := Optimistic(get, set,
		func(cur []int) []int { return append(cur, 3) },
		func() ([]int, error) { return nil, errors.New("nope") },
	)
	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, state)
	require.Len(t, seen, 2)
	assert.Equal(t, []int{1, 2, 3}, seen[0], "optimistic value applied before commit")

	got, err := Optimistic(get, set,
		func(cur []int) []int { return append(cur, 3) },
		func() ([]int, error) { return []int{9}, nil },
	)
	require.NoError(t, err)
	assert.Equal(t, []int{9}, got)
	assert.Equal(t, []int{9}, state)
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func TestLoadConversations_NoUser(t *testing.T) {
	api := &fakeAPI{conversations: []model.ConversationSummary{{ID: "x"}}}
	s, _ := newSession(t, api, "")
	require.NoError(t, s.LoadConversations(context.Background()))
	assert.Empty(t, s.Snapshot().Conversations)
	assert.Equal(t, 0, api.listCalls)
}

func TestStartNewConversation(t *testing.T) {
	api := &fakeAPI{created: &model.ConversationSummary{ID: "new-conv", UserID: "guest"}}
	s, store := newSession(t, api, "")
	s.messages = history("general", "old", "stuff")

	conv, err := s.StartNewConversation(context.Background(), "chess")
	require.NoError(t, err)
	assert.Equal(t, "new-conv", conv.ID)

	v := s.Snapshot()
	assert.Equal(t, "new-conv", v.ConversationID)
	assert.Equal(t, "guest", v.UserID)
	assert.Equal(t, mentor.Chess, v.Mentor)
	assert.Empty(t, v.Messages)
	assert.Len(t, v.Conversations, 1)

	st, _ := store.Load()
	assert.Equal(t, "new-conv", st.ConversationID)
}

func TestFetchExistingConversation(t *testing.T) {
	api := &fakeAPI{conversation: &chat.ConversationResult{
		ConversationID: "c1", UserID: "u", MentorID: "bible", History: history("bible", "q", "a"),
	}}
	s, _ := newSession(t, api, "u")

	require.NoError(t, s.FetchExistingConversation(context.Background(), "c1"))
	v := s.Snapshot()
	assert.Equal(t, "c1", v.ConversationID)
	assert.Equal(t, mentor.Bible, v.Mentor)
	assert.Len(t, v.Messages, 2)
	assert.Equal(t, OnlineYes, v.APIOnline)
}

func TestFetchExistingConversation_FailureClearsSession(t *testing.T) {
	api := &fakeAPI{getErr: model.NewForbidden("Conversation does not belong to the supplied user.")}
	store := session.NewMemoryStore(session.State{UserID: "u", ConversationID: "c1"})
	s := NewSession(api, Options{Store: store})

	err := s.FetchExistingConversation(context.Background(), "c1")
	assert.ErrorIs(t, err, model.ErrForbidden)

	v := s.Snapshot()
	assert.Equal(t, MsgLoadFailed, v.LastError)
	assert.Equal(t, OnlineNo, v.APIOnline)
	assert.Empty(t, v.ConversationID)
	st, _ := store.Load()
	assert.Empty(t, st.ConversationID)
	assert.Equal(t, "u", st.UserID)
}

func TestDeleteAndRenameConversation(t *testing.T) {
	api := &fakeAPI{}
	s, _ := newSession(t, api, "u")
	s.conversationID = "c1"
	s.messages = history("general", "a", "b")
	s.conversations = []model.ConversationSummary{{ID: "c1"}, {ID: "c2"}}

	conv, err := s.RenameConversation(context.Background(), "c2", "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", *conv.Title)
	assert.Equal(t, "Renamed", *s.Snapshot().Conversations[1].Title)

	require.NoError(t, s.DeleteConversation(context.Background(), "c1"))
	v := s.Snapshot()
	assert.Len(t, v.Conversations, 1)
	assert.Empty(t, v.ConversationID)
	assert.Empty(t, v.Messages)

	api.deleteErr = model.NewNotFound("Conversation not found.")
	assert.ErrorIs(t, s.DeleteConversation(context.Background(), "c2"), model.ErrNotFoundOrForbidden)
	assert.Len(t, s.Snapshot().Conversations, 1)
}
