// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/polychat/internal/catalog"
	"github.com/jeranaias/polychat/internal/chat"
	"github.com/jeranaias/polychat/internal/logger"
	"github.com/jeranaias/polychat/internal/mentor"
	"github.com/jeranaias/polychat/internal/model"
	"github.com/jeranaias/polychat/internal/session"
)

// User-facing messages set in LastError.
const (
	MsgSendFailed     = "Unable to send message. Please try again."
	MsgLoadFailed     = "Unable to load previous session. Starting a new chat."
	MsgEmptyMessage   = "Message cannot be empty."
	MsgNoUser         = "Sign in before sending messages."
	MsgUnknownModel   = "That model is not in your list."
	MsgModelsNotReady = "Load your models first."
)

// ErrSendInFlight rejects a send while another is pending.
var ErrSendInFlight = errors.New("a message is already being sent")

// backgroundTimeout bounds fire-and-forget refreshes.
const backgroundTimeout = 10 * time.Second

// =============================================================================
// STATE TYPES
// =============================================================================

// State is the send state machine position.
type State string

const (
	StateIdle    State = "idle"
	StateSending State = "sending"
	StateError   State = "error"
)

// Online is the tri-state API reachability flag.
type Online int

const (
	OnlineUnknown Online = iota
	OnlineYes
	OnlineNo
)

// String renders the flag for status lines.
func (o Online) String() string {
	switch o {
	case OnlineYes:
		return "online"
	case OnlineNo:
		return "offline"
	default:
		return "unknown"
	}
}

// View is an immutable copy of the session for rendering.
type View struct {
	UserID         string
	ConversationID string
	Mode           string
	Mentor         mentor.ID
	Model          string
	Models         []model.ChatModel
	Conversations  []model.ConversationSummary
	Messages       []model.HistoryItem
	APIOnline      Online
	LastHealthAt   time.Time
	LastError      string
	State          State
}

// =============================================================================
// SESSION
// =============================================================================

// Options configures a Session.
type Options struct {
	// UserID overrides the persisted user id.
	UserID string
	// Store persists ids between runs; nil keeps state in memory only.
	Store session.Store
	Log   *logger.Logger
}

// Session is the client-side chat state machine. All methods are safe for
// concurrent use; network calls are made without holding the lock.
type Session struct {
	api   API
	store session.Store
	log   *logger.Logger
	newID func() string
	now   func() time.Time

	mu             sync.Mutex
	userID         string
	conversationID string
	mode           string
	mentor         mentor.ID
	model          string
	models         []model.ChatModel
	conversations  []model.ConversationSummary
	messages       []model.HistoryItem
	apiOnline      Online
	lastHealthAt   time.Time
	lastError      string
	state          State
	sending        bool

	bg sync.WaitGroup
}

// NewSession restores persisted ids from opts.Store.
func NewSession(api API, opts Options) *Session {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	store := opts.Store
	if store == nil {
		store = session.NewMemoryStore(session.State{})
	}
	s := &Session{
		api:    api,
		store:  store,
		log:    log.Component("session"),
		newID:  uuid.NewString,
		now:    time.Now,
		mode:   session.ModeAuto,
		mentor: mentor.General,
		state:  StateIdle,
	}

	st, err := store.Load()
	if err != nil {
		s.log.Warn().Err(err).Msg("ignoring unreadable session state")
	}
	s.userID = st.UserID
	s.conversationID = st.ConversationID
	s.model = st.Model
	if st.Mode == session.ModeManual {
		s.mode = session.ModeManual
	}
	if st.MentorID != "" {
		s.mentor = mentor.Clean(st.MentorID)
	}
	if opts.UserID != "" {
		s.userID = strings.TrimSpace(opts.UserID)
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		UserID:         s.userID,
		ConversationID: s.conversationID,
		Mode:           s.mode,
		Mentor:         s.mentor,
		Model:          s.model,
		Models:         model.CloneChatModels(s.models),
		Conversations:  append([]model.ConversationSummary(nil), s.conversations...),
		Messages:       append([]model.HistoryItem(nil), s.messages...),
		APIOnline:      s.apiOnline,
		LastHealthAt:   s.lastHealthAt,
		LastError:      s.lastError,
		State:          s.state,
	}
}

// Wait blocks until background refreshes finish.
func (s *Session) Wait() {
	s.bg.Wait()
}

// persistLocked saves the current ids. The caller holds s.mu.
func (s *Session) persistLocked() {
	st := session.State{
		UserID:         s.userID,
		ConversationID: s.conversationID,
		MentorID:       string(s.mentor),
		Mode:           s.mode,
		Model:          s.model,
	}
	if err := s.store.Save(st); err != nil {
		s.log.Warn().Err(err).Msg("failed to persist session state")
	}
}

// refreshConversationsAsync reloads the conversation list without blocking
// the caller. Failures are logged and dropped.
func (s *Session) refreshConversationsAsync() {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		if err := s.LoadConversations(ctx); err != nil {
			s.log.Debug().Err(err).Msg("background conversation refresh failed")
		}
	}()
}

// =============================================================================
// SEND
// =============================================================================

// SendMessage appends an optimistic user message, posts it, and adopts the
// server history. On failure the optimistic message is removed, the mentor
// shown before the send is restored, the API is marked offline and the error
// is returned.
func (s *Session) SendMessage(ctx context.Context, content string, files []model.FileMeta) (*chat.SendResult, error) {
	s.mu.Lock()
	if s.sending {
		s.mu.Unlock()
		return nil, ErrSendInFlight
	}
	text := strings.TrimSpace(content)
	if text == "" {
		s.mu.Unlock()
		return nil, model.NewValidation(MsgEmptyMessage, nil)
	}
	if s.userID == "" {
		s.mu.Unlock()
		return nil, model.NewValidation(MsgNoUser, nil)
	}

	prevMentor := s.mentor
	chosen := s.mentor
	if s.mode == session.ModeAuto {
		chosen = mentor.Classify(text, files)
		s.mentor = chosen
	}

	optimistic := model.HistoryItem{
		ID:        s.newID(),
		Role:      model.RoleUser,
		Content:   text,
		CreatedAt: s.now().UTC(),
		Mentor:    string(chosen),
		Files:     files,
		Model:     s.model,
	}
	s.messages = append(s.messages, optimistic)
	s.sending = true
	s.state = StateSending
	s.lastError = ""

	req := chat.SendRequest{
		Message:   text,
		MentorID:  string(chosen),
		SessionID: s.conversationID,
		UserID:    s.userID,
		Files:     files,
		Model:     s.model,
	}
	s.mu.Unlock()

	res, err := s.api.SendChat(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sending = false

	if err != nil {
		s.removeMessageLocked(optimistic.ID)
		// Keep a selection made while the request was in flight.
		if s.mentor == chosen {
			s.mentor = prevMentor
		}
		s.apiOnline = OnlineNo
		s.lastError = MsgSendFailed
		s.state = StateError
		s.log.Warn().Err(err).Str("mentor", string(chosen)).Msg("send failed")
		return nil, err
	}

	s.apiOnline = OnlineYes
	s.conversationID = res.ConversationID
	s.userID = res.UserID
	s.mentor = mentor.Clean(res.MentorID)
	s.messages = append([]model.HistoryItem(nil), res.History...)
	s.state = StateIdle
	s.persistLocked()
	s.refreshConversationsAsync()
	return res, nil
}

func (s *Session) removeMessageLocked(id string) {
	kept := s.messages[:0:0]
	for _, m := range s.messages {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	s.messages = kept
}

// ResetChat clears the local conversation and returns mentor selection to
// its default of automatic routing, with general shown until the next send
// classifies. The user id is kept.
func (s *Session) ResetChat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.conversationID = ""
	s.lastError = ""
	s.mode = session.ModeAuto
	s.mentor = mentor.General
	if !s.sending {
		s.state = StateIdle
	}
	if err := s.store.Clear(false); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear session state")
	}
}

// =============================================================================
// HEALTH
// =============================================================================

// CheckHealth probes the API and records the result. It never fails.
func (s *Session) CheckHealth(ctx context.Context) Online {
	err := s.api.Health(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.apiOnline = OnlineNo
	} else {
		s.apiOnline = OnlineYes
	}
	s.lastHealthAt = s.now()
	return s.apiOnline
}

// =============================================================================
// MENTOR SELECTION
// =============================================================================

// SetMentor locks the mentor. "auto" or an empty id switches to automatic
// routing instead.
func (s *Session) SetMentor(raw string) {
	if mentor.IsAuto(raw) {
		s.SetAuto()
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = session.ModeManual
	s.mentor = mentor.Clean(raw)
	s.persistLocked()
}

// SetAuto enables automatic mentor routing.
func (s *Session) SetAuto() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = session.ModeAuto
	s.persistLocked()
}

// SetUser switches the active user and drops the current conversation.
func (s *Session) SetUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = strings.TrimSpace(userID)
	s.conversationID = ""
	s.messages = nil
	s.conversations = nil
	s.models = nil
	s.persistLocked()
}

// =============================================================================
// CHAT MODEL CATALOG
// =============================================================================

func (s *Session) getModels() []model.ChatModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CloneChatModels(s.models)
}

func (s *Session) setModels(models []model.ChatModel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = models
}

func (s *Session) requireUser() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == "" {
		return "", model.NewValidation(MsgNoUser, nil)
	}
	return s.userID, nil
}

// LoadChatModels fetches the catalog and keeps the selected model valid.
func (s *Session) LoadChatModels(ctx context.Context) ([]model.ChatModel, error) {
	userID, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	list, err := s.api.ListChatModels(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = model.CloneChatModels(list)
	s.ensureModelLocked()
	return model.CloneChatModels(list), nil
}

// ensureModelLocked falls back to the first catalog entry when the
// selected model is no longer listed.
func (s *Session) ensureModelLocked() {
	if len(s.models) == 0 {
		return
	}
	if s.model == "" || !model.ContainsChatModel(s.models, s.model) {
		s.model = s.models[0].ID
	}
}

// SelectChatModel picks the model used for subsequent sends.
func (s *Session) SelectChatModel(modelID string) error {
	modelID = strings.TrimSpace(modelID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.models) == 0 {
		return model.NewValidation(MsgModelsNotReady, nil)
	}
	if !model.ContainsChatModel(s.models, modelID) {
		return model.NewValidation(MsgUnknownModel, map[string]string{"modelId": modelID})
	}
	s.model = modelID
	s.persistLocked()
	return nil
}

// AddChatModel appends a model optimistically. On failure the previous
// list is restored; on success the server list is adopted.
func (s *Session) AddChatModel(ctx context.Context, modelID, label string) ([]model.ChatModel, error) {
	modelID = strings.TrimSpace(modelID)
	label = strings.TrimSpace(label)
	if modelID == "" {
		return nil, model.NewValidation(catalog.MsgMissingID, nil)
	}
	if label == "" {
		label = modelID
	}
	userID, err := s.requireUser()
	if err != nil {
		return nil, err
	}

	return Optimistic(s.getModels, s.setModels,
		func(cur []model.ChatModel) []model.ChatModel {
			next := model.CloneChatModels(cur)
			pos := 0
			for _, m := range next {
				if m.Position >= pos {
					pos = m.Position + 1
				}
			}
			return append(next, model.ChatModel{ID: modelID, Label: label, Position: pos})
		},
		func() ([]model.ChatModel, error) {
			return s.api.AddChatModel(ctx, userID, modelID, label)
		},
	)
}

// RemoveChatModel drops a model optimistically. The last remaining model
// is rejected without a network call.
func (s *Session) RemoveChatModel(ctx context.Context, modelID string) ([]model.ChatModel, error) {
	modelID = strings.TrimSpace(modelID)
	userID, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	if len(s.getModels()) <= 1 {
		return nil, model.NewValidation(catalog.MsgLastModel, nil)
	}

	list, err := Optimistic(s.getModels, s.setModels,
		func(cur []model.ChatModel) []model.ChatModel {
			next := make([]model.ChatModel, 0, len(cur))
			for _, m := range cur {
				if m.ID != modelID {
					next = append(next, m)
				}
			}
			return next
		},
		func() ([]model.ChatModel, error) {
			return s.api.RemoveChatModel(ctx, userID, modelID)
		},
	)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.ensureModelLocked()
	s.mu.Unlock()
	return list, nil
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// LoadConversations refreshes the conversation list. Without a user the
// list is cleared and nothing is fetched.
func (s *Session) LoadConversations(ctx context.Context) error {
	s.mu.Lock()
	userID := s.userID
	if userID == "" {
		s.conversations = nil
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	list, err := s.api.ListConversations(ctx, userID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = list
	return nil
}

// StartNewConversation creates an empty conversation and makes it active.
// An empty mentorID uses the current mentor.
func (s *Session) StartNewConversation(ctx context.Context, mentorID string) (*model.ConversationSummary, error) {
	s.mu.Lock()
	userID := s.userID
	if strings.TrimSpace(mentorID) == "" {
		mentorID = string(s.mentor)
	}
	s.mu.Unlock()

	conv, err := s.api.CreateConversation(ctx, userID, mentorID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.conversationID = conv.ID
	s.mentor = mentor.Clean(conv.MentorID)
	if s.userID == "" {
		s.userID = conv.UserID
	}
	s.messages = nil
	s.lastError = ""
	s.persistLocked()
	s.mu.Unlock()

	if err := s.LoadConversations(ctx); err != nil {
		return conv, err
	}
	return conv, nil
}

// FetchExistingConversation loads a conversation and makes it active. On
// failure the persisted conversation id is cleared.
func (s *Session) FetchExistingConversation(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	userID := s.userID
	s.lastError = ""
	s.mu.Unlock()

	res, err := s.api.GetConversation(ctx, conversationID, userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastError = MsgLoadFailed
		s.apiOnline = OnlineNo
		if s.conversationID == conversationID {
			s.conversationID = ""
			s.messages = nil
		}
		if cerr := s.store.Clear(false); cerr != nil {
			s.log.Warn().Err(cerr).Msg("failed to clear session state")
		}
		return err
	}

	s.apiOnline = OnlineYes
	s.conversationID = res.ConversationID
	s.userID = res.UserID
	s.mentor = mentor.Clean(res.MentorID)
	s.messages = append([]model.HistoryItem(nil), res.History...)
	s.persistLocked()
	s.refreshConversationsAsync()
	return nil
}

// DeleteConversation removes a conversation; deleting the active one
// clears the local chat.
func (s *Session) DeleteConversation(ctx context.Context, conversationID string) error {
	userID, err := s.requireUser()
	if err != nil {
		return err
	}
	if err := s.api.DeleteConversation(ctx, userID, conversationID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.conversations[:0:0]
	for _, c := range s.conversations {
		if c.ID != conversationID {
			kept = append(kept, c)
		}
	}
	s.conversations = kept
	if s.conversationID == conversationID {
		s.conversationID = ""
		s.messages = nil
		s.persistLocked()
	}
	return nil
}

// RenameConversation retitles a conversation and updates the local list.
func (s *Session) RenameConversation(ctx context.Context, conversationID, title string) (*model.ConversationSummary, error) {
	userID, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	conv, err := s.api.RenameConversation(ctx, userID, conversationID, title)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.conversations {
		if s.conversations[i].ID == conv.ID {
			s.conversations[i] = *conv
		}
	}
	return conv, nil
}
