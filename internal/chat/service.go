// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"time"

	"github.com/jeranaias/polychat/internal/logger"
	"github.com/jeranaias/polychat/internal/mentor"
	"github.com/jeranaias/polychat/internal/metrics"
	"github.com/jeranaias/polychat/internal/model"
	"github.com/jeranaias/polychat/internal/reply"
	"github.com/jeranaias/polychat/internal/store"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Store is the persistence the orchestrator needs.
type Store interface {
	EnsureUser(ctx context.Context, existingID string) (string, error)
	EnsureConversation(ctx context.Context, userID, mentorID, existingID string) (*store.EnsuredConversation, error)
	SetConversationMentor(ctx context.Context, id, mentorID string) error
	CreateConversation(ctx context.Context, userID, mentorID string) (*model.Conversation, error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	ListConversations(ctx context.Context, userID string, opts model.ListOptions) ([]model.ConversationSummary, error)
	RenameConversation(ctx context.Context, userID, conversationID, title string) (*model.Conversation, error)
	DeleteConversation(ctx context.Context, userID, conversationID string) error
	AppendMessage(ctx context.Context, in store.NewMessage) (*model.Message, error)
	UpdatePreviewIfUnset(ctx context.Context, conversationID, content string) (bool, error)
	TouchLastMessageAt(ctx context.Context, conversationID string) error
	ListMessages(ctx context.Context, conversationID string, page model.MessagePage) ([]*model.Message, error)
	GetMentorOverride(ctx context.Context, userID, mentorID string) (string, bool, error)
}

// Limiter enforces the per-conversation send limit.
type Limiter interface {
	Enforce(ctx context.Context, conversationID string) error
}

// Generator produces mentor replies.
type Generator interface {
	Generate(ctx context.Context, req reply.Request) (*reply.Reply, error)
}

// Mentors normalizes requested mentor ids.
type Mentors interface {
	Normalize(raw string) mentor.ID
}

// Deps bundles the collaborators of a Service. Log and Metrics may be nil.
type Deps struct {
	Store     Store
	Limiter   Limiter
	Generator Generator
	Mentors   Mentors
	Log       *logger.Logger
	Metrics   *metrics.Metrics
}

// Service is the server-side chat entry point.
type Service struct {
	store     Store
	limiter   Limiter
	generator Generator
	mentors   Mentors
	log       *logger.Logger
	metrics   *metrics.Metrics
}

// NewService creates a Service.
func NewService(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:     d.Store,
		limiter:   d.Limiter,
		generator: d.Generator,
		mentors:   d.Mentors,
		log:       log.Component("chat"),
		metrics:   d.Metrics,
	}
}

// =============================================================================
// SEND
// =============================================================================

// SendRequest is the body of POST /chat.
type SendRequest struct {
	Message      string           `json:"message"`
	MentorID     string           `json:"mentorId,omitempty"`
	SessionID    string           `json:"sessionId,omitempty"`
	UserID       string           `json:"userId,omitempty"`
	Files        []model.FileMeta `json:"files,omitempty"`
	Model        string           `json:"model,omitempty"`
	SystemPrompt string           `json:"systemPrompt,omitempty"`
}

// SendResult is the response of POST /chat.
type SendResult struct {
	ConversationID string              `json:"conversationId"`
	UserID         string              `json:"userId"`
	MentorID       string              `json:"mentorId"`
	Reply          string              `json:"reply"`
	History        []model.HistoryItem `json:"history"`
}

// Send appends one user message and one assistant reply to a conversation.
func (s *Service) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	start := time.Now()
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, model.NewValidation("Message cannot be empty.", map[string]string{"message": "required"})
	}
	files, err := cleanFiles(req.Files)
	if err != nil {
		return nil, err
	}

	mentorID, automatic := mentor.Resolve(req.MentorID, message, files, s.mentors.Normalize)
	tag := string(mentorID)

	userID, err := s.store.EnsureUser(ctx, req.UserID)
	if err != nil {
		return nil, s.failed(tag, "persistence", err)
	}
	ensured, err := s.store.EnsureConversation(ctx, userID, tag, req.SessionID)
	if err != nil {
		return nil, s.failed(tag, "persistence", err)
	}
	conv := ensured.Conversation

	if err := s.limiter.Enforce(ctx, conv.ID); err != nil {
		return nil, s.failed(tag, "rate_limited", err)
	}

	if conv.MentorID != tag {
		if err := s.store.SetConversationMentor(ctx, conv.ID, tag); err != nil {
			return nil, s.failed(tag, "persistence", err)
		}
		conv.MentorID = tag
	}

	modelID := strings.TrimSpace(req.Model)
	if _, err := s.store.AppendMessage(ctx, store.NewMessage{
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        message,
		Mentor:         tag,
		Model:          modelID,
		Files:          files,
	}); err != nil {
		return nil, s.failed(tag, "persistence", err)
	}

	if ensured.Created {
		if _, err := s.store.UpdatePreviewIfUnset(ctx, conv.ID, message); err != nil {
			return nil, s.failed(tag, "persistence", err)
		}
	}

	override := strings.TrimSpace(req.SystemPrompt)
	if override == "" {
		override = s.lookupOverride(ctx, userID, tag)
	}

	out, err := s.generator.Generate(ctx, reply.Request{
		Mentor:         mentorID,
		Message:        message,
		OverridePrompt: override,
		Model:          modelID,
	})
	if err != nil {
		return nil, s.failed(tag, "provider_error", err)
	}

	if _, err := s.store.AppendMessage(ctx, store.NewMessage{
		ConversationID: conv.ID,
		Role:           model.RoleAssistant,
		Content:        out.Text,
		Mentor:         tag,
		Model:          out.Model,
	}); err != nil {
		return nil, s.failed(tag, "persistence", err)
	}
	if err := s.store.TouchLastMessageAt(ctx, conv.ID); err != nil {
		return nil, s.failed(tag, "persistence", err)
	}

	msgs, err := s.store.ListMessages(ctx, conv.ID, model.MessagePage{})
	if err != nil {
		return nil, s.failed(tag, "persistence", err)
	}

	s.metrics.ObserveSend(tag, "ok")
	s.log.Info().
		Str("conversation_id", conv.ID).
		Str("user_id", userID).
		Str("mentor", tag).
		Bool("automatic", automatic).
		Str("model", out.Model).
		Dur("duration", time.Since(start)).
		Msg("chat send completed")

	return &SendResult{
		ConversationID: conv.ID,
		UserID:         userID,
		MentorID:       tag,
		Reply:          out.Text,
		History:        model.History(msgs),
	}, nil
}

// lookupOverride returns the user's stored prompt for mentorID. Lookup
// failures fall back to the default prompt.
func (s *Service) lookupOverride(ctx context.Context, userID, mentorID string) string {
	prompt, ok, err := s.store.GetMentorOverride(ctx, userID, mentorID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Str("mentor", mentorID).
			Msg("mentor override lookup failed, using default prompt")
		return ""
	}
	if !ok {
		return ""
	}
	return prompt
}

func (s *Service) failed(mentorID, outcome string, err error) error {
	s.metrics.ObserveSend(mentorID, outcome)
	return err
}

func cleanFiles(files []model.FileMeta) ([]model.FileMeta, error) {
	if len(files) == 0 {
		return nil, nil
	}
	out := make([]model.FileMeta, 0, len(files))
	for i, f := range files {
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			return nil, model.NewValidation("Invalid payload", map[string]any{"files": map[string]any{"index": i, "name": "required"}})
		}
		if f.Size < 0 {
			return nil, model.NewValidation("Invalid payload", map[string]any{"files": map[string]any{"index": i, "size": "must not be negative"}})
		}
		out = append(out, f)
	}
	return out, nil
}
