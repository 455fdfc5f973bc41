// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jeranaias/polychat/internal/chat"
	"github.com/jeranaias/polychat/internal/mentor"
	"github.com/jeranaias/polychat/internal/model"
)

const msgInvalidPayload = "Invalid payload"

var mentorIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// bindJSON decodes the body into v or answers 400.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		badRequest(c, msgInvalidPayload, err.Error())
		return false
	}
	return true
}

// bindQuery decodes and validates query parameters or answers 400.
func bindQuery(c *gin.Context, v any) bool {
	if err := c.ShouldBindQuery(v); err != nil {
		badRequest(c, "Invalid query parameters", err.Error())
		return false
	}
	return true
}

// ============================================================================
// HEALTH HANDLER
// ============================================================================

// HealthResponse is the liveness probe body.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
	})
}

// ============================================================================
// CHAT HANDLERS
// ============================================================================

func (s *Server) handleSend(c *gin.Context) {
	var req chat.SendRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := s.deps.Chat.Send(c.Request.Context(), req)
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type chatQuery struct {
	ConversationID string `form:"conversationId" binding:"required"`
	UserID         string `form:"userId"`
}

func (s *Server) handleGetChat(c *gin.Context) {
	var q chatQuery
	if !bindQuery(c, &q) {
		return
	}
	res, err := s.deps.Chat.Conversation(c.Request.Context(), q.ConversationID, q.UserID)
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ============================================================================
// CONVERSATION HANDLERS
// ============================================================================

type listConversationsQuery struct {
	UserID string `form:"userId" binding:"required"`
	Query  string `form:"q"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=200"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

func (s *Server) handleListConversations(c *gin.Context) {
	var q listConversationsQuery
	if !bindQuery(c, &q) {
		return
	}
	list, err := s.deps.Chat.ListConversations(c.Request.Context(), q.UserID, model.ListOptions{
		Query:  strings.TrimSpace(q.Query),
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	if list == nil {
		list = []model.ConversationSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"conversations": list})
}

type createConversationBody struct {
	UserID   string `json:"userId"`
	MentorID string `json:"mentorId"`
}

func (s *Server) handleCreateConversation(c *gin.Context) {
	var body createConversationBody
	// An empty body is allowed and creates a guest conversation.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, msgInvalidPayload, err.Error())
			return
		}
	}
	summary, err := s.deps.Chat.CreateConversation(c.Request.Context(), body.UserID, body.MentorID)
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type renameConversationBody struct {
	UserID         string `json:"userId" binding:"required"`
	ConversationID string `json:"conversationId" binding:"required"`
	Title          string `json:"title" binding:"required"`
}

func (s *Server) handleRenameConversation(c *gin.Context) {
	var body renameConversationBody
	if !bindJSON(c, &body) {
		return
	}
	summary, err := s.deps.Chat.RenameConversation(c.Request.Context(), body.UserID, body.ConversationID, body.Title)
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type conversationRef struct {
	UserID         string `json:"userId" binding:"required"`
	ConversationID string `json:"conversationId" binding:"required"`
}

func (s *Server) handleDeleteConversation(c *gin.Context) {
	var body conversationRef
	if !bindJSON(c, &body) {
		return
	}
	if err := s.deps.Chat.DeleteConversation(c.Request.Context(), body.UserID, body.ConversationID); err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type messagesQuery struct {
	ConversationID string `form:"conversationId" binding:"required"`
	UserID         string `form:"userId" binding:"required"`
	Limit          int    `form:"limit" binding:"omitempty,min=1,max=200"`
	Before         string `form:"before"`
}

func (s *Server) handleMessages(c *gin.Context) {
	var q messagesQuery
	if !bindQuery(c, &q) {
		return
	}
	page := model.MessagePage{Limit: q.Limit}
	if q.Before != "" {
		before, err := time.Parse(time.RFC3339Nano, q.Before)
		if err != nil {
			badRequest(c, "Invalid query parameters", map[string]string{"before": "must be an RFC 3339 timestamp"})
			return
		}
		page.Before = &before
	}
	items, err := s.deps.Chat.Messages(c.Request.Context(), q.ConversationID, q.UserID, page)
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversationId": q.ConversationID, "messages": items})
}

// ============================================================================
// CHAT MODEL HANDLERS
// ============================================================================

type userQuery struct {
	UserID string `form:"userId" binding:"required"`
}

func (s *Server) handleListChatModels(c *gin.Context) {
	var q userQuery
	if !bindQuery(c, &q) {
		return
	}
	list, err := s.deps.Catalog.List(c.Request.Context(), q.UserID)
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": list})
}

type addChatModelBody struct {
	UserID  string `json:"userId" binding:"required"`
	ModelID string `json:"modelId" binding:"required"`
	Label   string `json:"label"`
}

func (s *Server) handleAddChatModel(c *gin.Context) {
	var body addChatModelBody
	if !bindJSON(c, &body) {
		return
	}
	list, err := s.deps.Catalog.Add(c.Request.Context(), body.UserID, body.ModelID, body.Label)
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"models": list})
}

type removeChatModelBody struct {
	UserID  string `json:"userId" binding:"required"`
	ModelID string `json:"modelId" binding:"required"`
}

func (s *Server) handleRemoveChatModel(c *gin.Context) {
	var body removeChatModelBody
	if !bindJSON(c, &body) {
		return
	}
	list, err := s.deps.Catalog.Remove(c.Request.Context(), body.UserID, body.ModelID)
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": list})
}

func (s *Server) handleListChatModelDefaults(c *gin.Context) {
	list, err := s.deps.Catalog.SystemDefaults(c.Request.Context())
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": list})
}

type replaceDefaultsBody struct {
	Models []model.ChatModel `json:"models" binding:"required"`
}

func (s *Server) handleReplaceChatModelDefaults(c *gin.Context) {
	var body replaceDefaultsBody
	if !bindJSON(c, &body) {
		return
	}
	list, err := s.deps.Catalog.ReplaceDefaults(c.Request.Context(), body.Models)
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": list})
}

// ============================================================================
// MENTOR OVERRIDE HANDLERS
// ============================================================================

type overrideQuery struct {
	UserID   string `form:"userId" binding:"required"`
	MentorID string `form:"mentorId"`
}

func (s *Server) handleListOverrides(c *gin.Context) {
	var q overrideQuery
	if !bindQuery(c, &q) {
		return
	}
	ctx := c.Request.Context()
	if q.MentorID != "" {
		prompt, ok, err := s.deps.Overrides.GetMentorOverride(ctx, q.UserID, q.MentorID)
		if err != nil {
			writeError(c, s.log, err)
			return
		}
		if !ok {
			writeError(c, s.log, model.NewNotFound("No override for this mentor."))
			return
		}
		c.JSON(http.StatusOK, gin.H{"mentorId": q.MentorID, "systemPrompt": prompt})
		return
	}
	list, err := s.deps.Overrides.ListMentorOverrides(ctx, q.UserID)
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"overrides": list})
}

type upsertOverrideBody struct {
	UserID       string `json:"userId" binding:"required"`
	MentorID     string `json:"mentorId" binding:"required"`
	SystemPrompt string `json:"systemPrompt"`
}

func (s *Server) handleUpsertOverride(c *gin.Context) {
	var body upsertOverrideBody
	if !bindJSON(c, &body) {
		return
	}
	ov, err := s.deps.Overrides.UpsertMentorOverride(c.Request.Context(), body.UserID, body.MentorID, body.SystemPrompt)
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, ov)
}

type deleteOverrideBody struct {
	UserID   string `json:"userId" binding:"required"`
	MentorID string `json:"mentorId" binding:"required"`
}

func (s *Server) handleDeleteOverride(c *gin.Context) {
	var body deleteOverrideBody
	if !bindJSON(c, &body) {
		return
	}
	if err := s.deps.Overrides.DeleteMentorOverride(c.Request.Context(), body.UserID, body.MentorID); err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ============================================================================
// MENTOR CONFIG HANDLERS
// ============================================================================

// MentorInfo is one entry of GET /mentors.
type MentorInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleListMentors(c *gin.Context) {
	ids := s.deps.Mentors.IDs()
	out := make([]MentorInfo, 0, len(ids))
	for _, id := range ids {
		info := MentorInfo{ID: string(id), DisplayName: id.DisplayName()}
		if cfg := s.deps.Mentors.Get(id); cfg != nil {
			info.Description = cfg.Metadata.Description
		}
		out = append(out, info)
	}
	c.JSON(http.StatusOK, gin.H{"mentors": out})
}

func mentorParam(c *gin.Context) (string, bool) {
	id := strings.ToLower(strings.TrimSpace(c.Param("id")))
	if !mentorIDPattern.MatchString(id) {
		badRequest(c, "Invalid mentor id", nil)
		return "", false
	}
	return id, true
}

func (s *Server) handleGetMentorConfig(c *gin.Context) {
	id, ok := mentorParam(c)
	if !ok {
		return
	}
	env, err := s.deps.MentorConfigs.GetMentorEnvelope(c.Request.Context(), id)
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

func (s *Server) handleSaveMentorDraft(c *gin.Context) {
	id, ok := mentorParam(c)
	if !ok {
		return
	}
	data, err := c.GetRawData()
	if err != nil {
		badRequest(c, msgInvalidPayload, err.Error())
		return
	}
	var cfg mentor.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		badRequest(c, msgInvalidPayload, err.Error())
		return
	}
	env, err := s.deps.MentorConfigs.SaveMentorDraft(c.Request.Context(), id, &cfg, c.Query("updatedBy"))
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

func (s *Server) handlePublishMentor(c *gin.Context) {
	id, ok := mentorParam(c)
	if !ok {
		return
	}
	env, err := s.deps.MentorConfigs.PublishMentor(c.Request.Context(), id, c.Query("updatedBy"))
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	if s.deps.Mentors != nil && env.Published != nil {
		if err := s.deps.Mentors.Put(env.Published); err != nil {
			s.log.Warn().Err(err).Str("mentor_id", id).Msg("published mentor config not applied to registry")
		} else {
			s.log.Info().Str("mentor_id", id).Msg("mentor config published")
		}
	}
	c.JSON(http.StatusOK, env)
}
