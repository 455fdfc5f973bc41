// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/polychat/internal/mentor"
	"github.com/jeranaias/polychat/internal/metrics"
	"github.com/jeranaias/polychat/internal/model"
	"github.com/jeranaias/polychat/internal/ratelimit"
	"github.com/jeranaias/polychat/internal/reply"
	"github.com/jeranaias/polychat/internal/store"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeGenerator struct {
	text  string
	err   error
	calls []reply.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req reply.Request) (*reply.Reply, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	modelID := req.Model
	if modelID == "" {
		modelID = "openai/gpt-4o-mini"
	}
	return &reply.Reply{Text: f.text, Model: modelID}, nil
}

type denyLimiter struct{}

func (denyLimiter) Enforce(context.Context, string) error {
	return model.NewRateLimited(nil)
}

// switchLimiter allows sends until deny is set.
type switchLimiter struct{ deny bool }

func (l *switchLimiter) Enforce(context.Context, string) error {
	if l.deny {
		return model.NewRateLimited(nil)
	}
	return nil
}

type harness struct {
	svc     *Service
	store   *store.Store
	gen     *fakeGenerator
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, limiter Limiter) *harness {
	t.Helper()
	st, err := store.Open(context.Background(), "sqlite", ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	if limiter == nil {
		limiter = ratelimit.New(st, ratelimit.Config{}, nil, nil)
	}
	gen := &fakeGenerator{text: "For God so loved the world..."}
	m := metrics.New()
	svc := NewService(Deps{
		Store:     st,
		Limiter:   limiter,
		Generator: gen,
		Mentors:   mentor.NewRegistry(),
		Metrics:   m,
	})
	return &harness{svc: svc, store: st, gen: gen, metrics: m}
}

// =============================================================================
// SEND
// =============================================================================

func TestSend_EndToEndScenario(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	first, err := h.svc.Send(ctx, SendRequest{Message: "What does John 3:16 say?"})
	require.NoError(t, err)
	assert.Equal(t, "bible", first.MentorID)
	assert.NotEmpty(t, first.UserID)
	assert.NotEmpty(t, first.ConversationID)
	assert.Equal(t, "For God so loved the world...", first.Reply)

	require.Len(t, first.History, 2)
	assert.Equal(t, model.RoleUser, first.History[0].Role)
	assert.Equal(t, model.RoleAssistant, first.History[1].Role)
	assert.Equal(t, "bible", first.History[0].Mentor)
	assert.Equal(t, "bible", first.History[1].Mentor)

	conv, err := h.store.GetConversation(ctx, first.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "bible", conv.MentorID)

	u, err := h.store.GetUser(ctx, first.UserID)
	require.NoError(t, err)
	assert.Contains(t, u.Email, "guest-")

	second, err := h.svc.Send(ctx, SendRequest{
		Message:   "And what about Psalm 23?",
		SessionID: first.ConversationID,
		UserID:    first.UserID,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.Equal(t, first.UserID, second.UserID)
	require.Len(t, second.History, 4)

	conv, err = h.store.GetConversation(ctx, first.ConversationID)
	require.NoError(t, err)
	require.NotNil(t, conv.Preview)
	assert.Equal(t, "What does John 3:16 say?", *conv.Preview)
}

func TestSend_RejectsEmptyMessage(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.svc.Send(context.Background(), SendRequest{Message: "   \n"})
	require.Error(t, err)
	assert.Equal(t, model.KindValidation, model.KindOf(err))
	assert.Empty(t, h.gen.calls)
}

func TestSend_RejectsNamelessFile(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.svc.Send(context.Background(), SendRequest{Message: "look", Files: []model.FileMeta{{Type: "image/png"}}})
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestSend_FileSignalOverridesText(t *testing.T) {
	h := newHarness(t, nil)
	res, err := h.svc.Send(context.Background(), SendRequest{
		Message: "What does John 3:16 say?",
		Files:   []model.FileMeta{{Name: "board.png", Type: "image/png", Size: 1024}},
	})
	require.NoError(t, err)
	assert.Equal(t, "chess", res.MentorID)
	require.Len(t, res.History, 2)
	assert.Equal(t, "board.png", res.History[0].Files[0].Name)
}

func TestSend_ManualMentorLock(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	res, err := h.svc.Send(ctx, SendRequest{Message: "What does John 3:16 say?", MentorID: "Math"})
	require.NoError(t, err)
	assert.Equal(t, "math", res.MentorID)

	res, err = h.svc.Send(ctx, SendRequest{Message: "hello", MentorID: "astrology"})
	require.NoError(t, err)
	assert.Equal(t, "general", res.MentorID)
}

func TestSend_RoutingUpdatesStoredMentor(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	first, err := h.svc.Send(ctx, SendRequest{Message: "hello there"})
	require.NoError(t, err)
	assert.Equal(t, "general", first.MentorID)

	second, err := h.svc.Send(ctx, SendRequest{
		Message:   "What is the best move here?",
		SessionID: first.ConversationID,
		UserID:    first.UserID,
	})
	require.NoError(t, err)
	assert.Equal(t, "chess", second.MentorID)

	conv, err := h.store.GetConversation(ctx, first.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "chess", conv.MentorID)
}

func TestSend_StaleSessionCreatesConversation(t *testing.T) {
	h := newHarness(t, nil)
	res, err := h.svc.Send(context.Background(), SendRequest{Message: "hi", SessionID: "does-not-exist", UserID: "member-1"})
	require.NoError(t, err)
	assert.NotEqual(t, "does-not-exist", res.ConversationID)
	assert.Equal(t, "member-1", res.UserID)
	assert.Len(t, res.History, 2)
}

func TestSend_ModelRecorded(t *testing.T) {
	h := newHarness(t, nil)
	res, err := h.svc.Send(context.Background(), SendRequest{Message: "hi", Model: "xai/grok-4-fast"})
	require.NoError(t, err)
	assert.Equal(t, "xai/grok-4-fast", h.gen.calls[0].Model)
	assert.Equal(t, "xai/grok-4-fast", res.History[0].Model)
	assert.Equal(t, "xai/grok-4-fast", res.History[1].Model)
}

func TestSend_RateLimitShortCircuits(t *testing.T) {
	h := newHarness(t, denyLimiter{})
	ctx := context.Background()

	_, err := h.svc.Send(ctx, SendRequest{Message: "hi", UserID: "member-1"})
	require.Error(t, err)
	assert.Equal(t, model.KindRateLimited, model.KindOf(err))
	assert.Empty(t, h.gen.calls)

	convs, err := h.store.ListConversations(ctx, "member-1", model.ListOptions{})
	require.NoError(t, err)
	require.Len(t, convs, 1)
	msgs, err := h.store.ListMessages(ctx, convs[0].ID, model.MessagePage{})
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ChatSendsTotal.WithLabelValues("general", "rate_limited")))
}

func TestSend_RateLimitKeepsConversationMentor(t *testing.T) {
	limiter := &switchLimiter{}
	h := newHarness(t, limiter)
	ctx := context.Background()

	first, err := h.svc.Send(ctx, SendRequest{Message: "What does John 3:16 say?"})
	require.NoError(t, err)
	require.Equal(t, "bible", first.MentorID)

	limiter.deny = true
	_, err = h.svc.Send(ctx, SendRequest{
		Message:   "best chess move here",
		SessionID: first.ConversationID,
		UserID:    first.UserID,
	})
	require.Error(t, err)
	assert.Equal(t, model.KindRateLimited, model.KindOf(err))

	conv, err := h.store.GetConversation(ctx, first.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "bible", conv.MentorID)

	limiter.deny = false
	next, err := h.svc.Send(ctx, SendRequest{
		Message:   "best chess move here",
		SessionID: first.ConversationID,
		UserID:    first.UserID,
	})
	require.NoError(t, err)
	assert.Equal(t, "chess", next.MentorID)
	conv, err = h.store.GetConversation(ctx, first.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "chess", conv.MentorID)
}

func TestSend_TwentyFirstMessageRateLimited(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	first, err := h.svc.Send(ctx, SendRequest{Message: "hello", UserID: "member-1"})
	require.NoError(t, err)
	for i := 2; i <= 20; i++ {
		_, err := h.svc.Send(ctx, SendRequest{Message: "hello", UserID: "member-1", SessionID: first.ConversationID})
		require.NoError(t, err, "message %d", i)
	}

	_, err = h.svc.Send(ctx, SendRequest{Message: "hello", UserID: "member-1", SessionID: first.ConversationID})
	assert.True(t, errors.Is(err, model.ErrRateLimited))
}

func TestSend_ProviderFailureKeepsUserMessage(t *testing.T) {
	h := newHarness(t, nil)
	h.gen.err = model.NewProviderUnavailable(errors.New("HTTP 500"))
	ctx := context.Background()

	_, err := h.svc.Send(ctx, SendRequest{Message: "hello", UserID: "member-1"})
	require.Error(t, err)
	assert.Equal(t, model.KindProviderUnavailable, model.KindOf(err))

	convs, err := h.store.ListConversations(ctx, "member-1", model.ListOptions{})
	require.NoError(t, err)
	require.Len(t, convs, 1)
	msgs, err := h.store.ListMessages(ctx, convs[0].ID, model.MessagePage{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
}

func TestSend_OverridePrompts(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.store.UpsertMentorOverride(ctx, "member-1", "general", "Answer like a pirate.")
	require.NoError(t, err)

	_, err = h.svc.Send(ctx, SendRequest{Message: "hello", UserID: "member-1"})
	require.NoError(t, err)
	assert.Equal(t, "Answer like a pirate.", h.gen.calls[0].OverridePrompt)

	// An explicit request prompt beats the stored override.
	_, err = h.svc.Send(ctx, SendRequest{Message: "hello", UserID: "member-1", SystemPrompt: "Be brief."})
	require.NoError(t, err)
	assert.Equal(t, "Be brief.", h.gen.calls[1].OverridePrompt)

	_, err = h.svc.Send(ctx, SendRequest{Message: "hello", UserID: "member-2"})
	require.NoError(t, err)
	assert.Empty(t, h.gen.calls[2].OverridePrompt)
}

// =============================================================================
// READ PATH
// =============================================================================

func TestConversation_OwnerCheck(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	sent, err := h.svc.Send(ctx, SendRequest{Message: "hello", UserID: "owner"})
	require.NoError(t, err)

	res, err := h.svc.Conversation(ctx, sent.ConversationID, "owner")
	require.NoError(t, err)
	assert.Equal(t, "owner", res.UserID)
	assert.Len(t, res.History, 2)

	_, err = h.svc.Conversation(ctx, sent.ConversationID, "intruder")
	require.Error(t, err)
	assert.Equal(t, model.KindForbidden, model.KindOf(err))

	_, err = h.svc.Conversation(ctx, sent.ConversationID, "")
	assert.Equal(t, model.KindValidation, model.KindOf(err))

	_, err = h.svc.Conversation(ctx, "missing", "owner")
	assert.Equal(t, model.KindNotFoundOrForbidden, model.KindOf(err))
}

func TestMessages_Paging(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	first, err := h.svc.Send(ctx, SendRequest{Message: "one", UserID: "owner"})
	require.NoError(t, err)
	_, err = h.svc.Send(ctx, SendRequest{Message: "two", UserID: "owner", SessionID: first.ConversationID})
	require.NoError(t, err)

	items, err := h.svc.Messages(ctx, first.ConversationID, "owner", model.MessagePage{Limit: 2})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "two", items[0].Content)
	assert.Equal(t, model.RoleAssistant, items[1].Role)

	_, err = h.svc.Messages(ctx, first.ConversationID, "intruder", model.MessagePage{})
	assert.True(t, errors.Is(err, model.ErrForbidden))
}

// =============================================================================
// MANAGEMENT
// =============================================================================

func TestConversationManagement(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	created, err := h.svc.CreateConversation(ctx, "owner", "")
	require.NoError(t, err)
	assert.Equal(t, "general", created.MentorID)
	assert.Equal(t, "owner", created.UserID)

	guest, err := h.svc.CreateConversation(ctx, "", "chess")
	require.NoError(t, err)
	assert.NotEmpty(t, guest.UserID)
	assert.Equal(t, "chess", guest.MentorID)

	renamed, err := h.svc.RenameConversation(ctx, "owner", created.ID, "Weekly plan")
	require.NoError(t, err)
	assert.Equal(t, "Weekly plan", renamed.DisplayTitle())

	list, err := h.svc.ListConversations(ctx, "owner", model.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = h.svc.ListConversations(ctx, "", model.ListOptions{})
	assert.True(t, errors.Is(err, model.ErrValidation))

	err = h.svc.DeleteConversation(ctx, "someone-else", created.ID)
	assert.True(t, errors.Is(err, model.ErrNotFoundOrForbidden))

	require.NoError(t, h.svc.DeleteConversation(ctx, "owner", created.ID))
	list, err = h.svc.ListConversations(ctx, "owner", model.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)
}
