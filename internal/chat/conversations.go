// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"

	"github.com/jeranaias/polychat/internal/model"
)

// ConversationResult is the response of GET /chat.
type ConversationResult struct {
	ConversationID string              `json:"conversationId"`
	UserID         string              `json:"userId"`
	MentorID       string              `json:"mentorId"`
	History        []model.HistoryItem `json:"history"`
}

// Conversation returns the ordered history of a conversation owned by
// userID. A missing userID is rejected rather than skipping the owner check.
func (s *Service) Conversation(ctx context.Context, conversationID, userID string) (*ConversationResult, error) {
	conv, err := s.owned(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, conv.ID, model.MessagePage{})
	if err != nil {
		return nil, err
	}
	return &ConversationResult{
		ConversationID: conv.ID,
		UserID:         conv.UserID,
		MentorID:       conv.MentorID,
		History:        model.History(msgs),
	}, nil
}

// Messages pages a conversation's history, newest page first, delivered in
// ascending order.
func (s *Service) Messages(ctx context.Context, conversationID, userID string, page model.MessagePage) ([]model.HistoryItem, error) {
	conv, err := s.owned(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if page.Limit <= 0 {
		page.Limit = DefaultPageSize
	}
	if page.Limit > MaxPageSize {
		page.Limit = MaxPageSize
	}
	msgs, err := s.store.ListMessages(ctx, conv.ID, page)
	if err != nil {
		return nil, err
	}
	return model.History(msgs), nil
}

// Message paging bounds.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

func (s *Service) owned(ctx context.Context, conversationID, userID string) (*model.Conversation, error) {
	conversationID = strings.TrimSpace(conversationID)
	userID = strings.TrimSpace(userID)
	if conversationID == "" {
		return nil, model.NewValidation("Invalid payload", map[string]string{"conversationId": "required"})
	}
	if userID == "" {
		return nil, model.NewValidation("Invalid payload", map[string]string{"userId": "required"})
	}
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		s.log.Warn().
			Str("conversation_id", conversationID).
			Str("user_id", userID).
			Msg("conversation read denied for non-owner")
		return nil, model.NewForbidden("Conversation does not belong to the supplied user.")
	}
	return conv, nil
}

// =============================================================================
// CONVERSATION MANAGEMENT
// =============================================================================

// ListConversations returns the user's conversations, freshest first.
func (s *Service) ListConversations(ctx context.Context, userID string, opts model.ListOptions) ([]model.ConversationSummary, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, model.NewValidation("Invalid payload", map[string]string{"userId": "required"})
	}
	return s.store.ListConversations(ctx, userID, opts)
}

// CreateConversation starts an empty conversation. A missing userID creates
// a guest user; a missing mentor defaults to general.
func (s *Service) CreateConversation(ctx context.Context, userID, mentorID string) (*model.ConversationSummary, error) {
	uid, err := s.store.EnsureUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	conv, err := s.store.CreateConversation(ctx, uid, string(s.mentors.Normalize(mentorID)))
	if err != nil {
		return nil, err
	}
	summary := conv.Summary()
	return &summary, nil
}

// RenameConversation retitles a conversation owned by userID.
func (s *Service) RenameConversation(ctx context.Context, userID, conversationID, title string) (*model.ConversationSummary, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(conversationID) == "" {
		return nil, model.NewValidation("Invalid payload", map[string]string{"userId": "required", "conversationId": "required"})
	}
	conv, err := s.store.RenameConversation(ctx, userID, conversationID, title)
	if err != nil {
		return nil, err
	}
	summary := conv.Summary()
	return &summary, nil
}

// DeleteConversation removes a conversation owned by userID.
func (s *Service) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(conversationID) == "" {
		return model.NewValidation("Invalid payload", map[string]string{"userId": "required", "conversationId": "required"})
	}
	if err := s.store.DeleteConversation(ctx, userID, conversationID); err != nil {
		return err
	}
	s.log.Info().Str("conversation_id", conversationID).Str("user_id", userID).Msg("conversation deleted")
	return nil
}
