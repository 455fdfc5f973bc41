// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"strings"

	"github.com/jeranaias/polychat/internal/logger"
	"github.com/jeranaias/polychat/internal/model"
)

// DefaultChatModel is selected when a request names no model.
const DefaultChatModel = "openai/gpt-4o-mini"

// Error messages surfaced to callers.
const (
	MsgDuplicate   = "That model is already in your list."
	MsgLastModel   = "At least one model must remain available."
	MsgMissingID   = "Model id is required."
	MsgMissingUser = "userId is required."
	MsgNoDefaults  = "At least one default model is required."
)

// Defaults is the built-in catalog, used when chat_model_defaults is empty.
var Defaults = []model.ChatModel{
	{ID: "openai/gpt-4o-mini", Label: "OpenAI: GPT-4o Mini", Position: 0},
	{ID: "openai/gpt-4.1-mini", Label: "OpenAI: GPT-4.1 Mini", Position: 1},
	{ID: "openai/gpt-5-mini", Label: "OpenAI: GPT-5 Mini", Position: 2},
	{ID: "google/gemini-2.5-flash-lite", Label: "Google: Gemini 2.5 Flash Lite", Position: 3},
	{ID: "xai/grok-4-fast", Label: "xAI: Grok 4 Fast", Position: 4},
	{ID: "deepseek/deepseek-chat-v3.1:free", Label: "DeepSeek Chat v3.1 (Free)", Position: 5},
	{ID: "minimax/minimax-m2:free", Label: "MiniMax M2 (Free)", Position: 6},
}

// Store is the persistence the catalog needs.
type Store interface {
	EnsureUserRecord(ctx context.Context, userID string) error
	ListUserChatModels(ctx context.Context, userID string) ([]model.ChatModel, error)
	SeedUserChatModels(ctx context.Context, userID string, models []model.ChatModel) error
	InsertUserChatModel(ctx context.Context, userID, modelID, label string) error
	DeleteUserChatModel(ctx context.Context, userID, modelID string) error
	ChatModelDefaults(ctx context.Context) ([]model.ChatModel, error)
	ReplaceChatModelDefaults(ctx context.Context, models []model.ChatModel) error
}

// Service implements the per-user catalog rules.
type Service struct {
	store Store
	log   *logger.Logger
}

// New creates a catalog service.
func New(store Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: store, log: log.Component("catalog")}
}

// List returns the user's catalog, seeding it from the defaults when empty.
func (s *Service) List(ctx context.Context, userID string) ([]model.ChatModel, error) {
	userID, err := requireUser(userID)
	if err != nil {
		return nil, err
	}
	if err := s.store.EnsureUserRecord(ctx, userID); err != nil {
		return nil, err
	}
	models, err := s.fetch(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(models) > 0 {
		return models, nil
	}
	return s.seed(ctx, userID)
}

// Add appends a model at the end of the user's list. The label defaults to
// the id. Duplicates fail with a conflict.
func (s *Service) Add(ctx context.Context, userID, modelID, label string) ([]model.ChatModel, error) {
	userID, err := requireUser(userID)
	if err != nil {
		return nil, err
	}
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return nil, model.NewValidation(MsgMissingID, nil)
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = modelID
	}

	existing, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if model.ContainsChatModel(existing, modelID) {
		return nil, model.NewConflict(MsgDuplicate)
	}
	if err := s.store.InsertUserChatModel(ctx, userID, modelID, label); err != nil {
		return nil, err
	}
	s.log.Debug().Str("user_id", userID).Str("model", modelID).Msg("chat model added")
	return s.fetch(ctx, userID)
}

// Remove deletes a model from the user's list. A list with one entry cannot
// shrink. Removing an absent id returns the list unchanged.
func (s *Service) Remove(ctx context.Context, userID, modelID string) ([]model.ChatModel, error) {
	userID, err := requireUser(userID)
	if err != nil {
		return nil, err
	}
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return nil, model.NewValidation(MsgMissingID, nil)
	}

	existing, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(existing) <= 1 {
		return nil, model.NewValidation(MsgLastModel, nil)
	}
	if !model.ContainsChatModel(existing, modelID) {
		return existing, nil
	}
	if err := s.store.DeleteUserChatModel(ctx, userID, modelID); err != nil {
		return nil, err
	}
	s.log.Debug().Str("user_id", userID).Str("model", modelID).Msg("chat model removed")

	remaining, err := s.fetch(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(remaining) == 0 {
		return s.seed(ctx, userID)
	}
	return remaining, nil
}

// SystemDefaults returns the list new users are seeded with: the stored
// defaults, or the built-in list when none are stored.
func (s *Service) SystemDefaults(ctx context.Context) ([]model.ChatModel, error) {
	defaults, err := s.store.ChatModelDefaults(ctx)
	if err != nil {
		return nil, err
	}
	defaults = model.NormalizeChatModels(defaults)
	if len(defaults) == 0 {
		return model.CloneChatModels(Defaults), nil
	}
	return defaults, nil
}

// ReplaceDefaults stores models as the system defaults in the given order.
// Labels default to the id. Lists already seeded for users are untouched.
func (s *Service) ReplaceDefaults(ctx context.Context, models []model.ChatModel) ([]model.ChatModel, error) {
	out := make([]model.ChatModel, 0, len(models))
	seen := make(map[string]bool, len(models))
	for _, m := range models {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			return nil, model.NewValidation(MsgMissingID, nil)
		}
		if seen[id] {
			return nil, model.NewConflict(MsgDuplicate)
		}
		seen[id] = true
		label := strings.TrimSpace(m.Label)
		if label == "" {
			label = id
		}
		out = append(out, model.ChatModel{ID: id, Label: label, Position: len(out)})
	}
	if len(out) == 0 {
		return nil, model.NewValidation(MsgNoDefaults, nil)
	}

	if err := s.store.ReplaceChatModelDefaults(ctx, out); err != nil {
		return nil, err
	}
	s.log.Info().Int("count", len(out)).Msg("chat model defaults replaced")
	return s.SystemDefaults(ctx)
}

func (s *Service) fetch(ctx context.Context, userID string) ([]model.ChatModel, error) {
	models, err := s.store.ListUserChatModels(ctx, userID)
	if err != nil {
		return nil, err
	}
	return model.NormalizeChatModels(models), nil
}

// seed copies the system defaults into the user's list. Table defaults win
// over the built-in list; a failure to read them is logged and ignored.
func (s *Service) seed(ctx context.Context, userID string) ([]model.ChatModel, error) {
	defaults, err := s.store.ChatModelDefaults(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("unable to load chat model defaults, using built-in list")
		defaults = nil
	}
	defaults = model.NormalizeChatModels(defaults)
	if len(defaults) == 0 {
		defaults = model.CloneChatModels(Defaults)
	}

	if err := s.store.SeedUserChatModels(ctx, userID, defaults); err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", userID).Int("count", len(defaults)).Msg("seeded chat models")
	return s.fetch(ctx, userID)
}

func requireUser(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", model.NewValidation(MsgMissingUser, nil)
	}
	return userID, nil
}
