// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jeranaias/polychat/internal/chat"
	"github.com/jeranaias/polychat/internal/model"
)

// DefaultTimeout bounds a single API call. It must exceed the server's
// provider timeout so slow replies are reported by the server.
const DefaultTimeout = 30 * time.Second

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes transport failures.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeUnreachable
	ErrTypeTimeout
	ErrTypeInvalidResponse
)

// ClientError is a failure to reach or understand the API. Error responses
// from the API itself are returned as *model.Error instead.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches sentinels by type.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	return ok && t.Type == e.Type && t.Cause == nil
}

// Sentinel errors for errors.Is checks.
var (
	ErrUnreachable     = &ClientError{Type: ErrTypeUnreachable, Message: "polychat API unreachable"}
	ErrTimeout         = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrInvalidResponse = &ClientError{Type: ErrTypeInvalidResponse, Message: "invalid response"}
)

// StatusError carries the HTTP status of an API error response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return "HTTP " + http.StatusText(e.StatusCode)
}

// KindForStatus maps an HTTP status back onto an error kind.
func KindForStatus(status int) model.Kind {
	switch status {
	case http.StatusBadRequest:
		return model.KindValidation
	case http.StatusForbidden:
		return model.KindForbidden
	case http.StatusNotFound:
		return model.KindNotFoundOrForbidden
	case http.StatusConflict:
		return model.KindConflict
	case http.StatusTooManyRequests:
		return model.KindRateLimited
	case http.StatusBadGateway:
		return model.KindProviderUnavailable
	case http.StatusGatewayTimeout:
		return model.KindProviderTimeout
	default:
		return model.KindInternal
	}
}

// =============================================================================
// API INTERFACE
// =============================================================================

// API is the server surface the session drives.
type API interface {
	SendChat(ctx context.Context, req chat.SendRequest) (*chat.SendResult, error)
	GetConversation(ctx context.Context, conversationID, userID string) (*chat.ConversationResult, error)
	ListConversations(ctx context.Context, userID string) ([]model.ConversationSummary, error)
	CreateConversation(ctx context.Context, userID, mentorID string) (*model.ConversationSummary, error)
	RenameConversation(ctx context.Context, userID, conversationID, title string) (*model.ConversationSummary, error)
	DeleteConversation(ctx context.Context, userID, conversationID string) error
	ListChatModels(ctx context.Context, userID string) ([]model.ChatModel, error)
	AddChatModel(ctx context.Context, userID, modelID, label string) ([]model.ChatModel, error)
	RemoveChatModel(ctx context.Context, userID, modelID string) ([]model.ChatModel, error)
	Health(ctx context.Context) error
}

// =============================================================================
// HTTP CLIENT
// =============================================================================

// HTTPClient talks JSON to a polychat server.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
}

// NewHTTPClient creates a client for baseURL. A zero timeout uses
// DefaultTimeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithAdmin returns a copy that sends admin credentials on every request.
func (c *HTTPClient) WithAdmin(token, otpCode string) *HTTPClient {
	cp := *c
	cp.headers = map[string]string{}
	for k, v := range c.headers {
		cp.headers[k] = v
	}
	if token != "" {
		cp.headers["Authorization"] = "Bearer " + token
	}
	if otpCode != "" {
		cp.headers[AdminOTPHeader] = otpCode
	}
	return &cp
}

// BaseURL returns the server address.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

type errorBody struct {
	Error   bool            `json:"error"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return &ClientError{Type: ErrTypeUnreachable, Message: "failed to create request", Cause: err}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
		}
		return &ClientError{Type: ErrTypeUnreachable, Message: "polychat API unreachable", Cause: err}
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return nil
}

func decodeError(resp *http.Response) error {
	e := &model.Error{
		Kind: KindForStatus(resp.StatusCode),
		Err:  &StatusError{StatusCode: resp.StatusCode},
	}
	var body errorBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&body); err == nil {
		e.Message = body.Message
		if len(body.Details) > 0 {
			var details any
			if json.Unmarshal(body.Details, &details) == nil {
				e.Details = details
			}
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}

func drainAndClose(r io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 64*1024))
	_ = r.Close()
}

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// SendChat posts one message.
func (c *HTTPClient) SendChat(ctx context.Context, req chat.SendRequest) (*chat.SendResult, error) {
	var out chat.SendResult
	if err := c.do(ctx, http.MethodPost, "/chat", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetConversation loads a conversation's history.
func (c *HTTPClient) GetConversation(ctx context.Context, conversationID, userID string) (*chat.ConversationResult, error) {
	q := url.Values{"conversationId": {conversationID}}
	if userID != "" {
		q.Set("userId", userID)
	}
	var out chat.ConversationResult
	if err := c.do(ctx, http.MethodGet, "/chat", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// =============================================================================
// CONVERSATION OPERATIONS
// =============================================================================

// ListConversations returns the user's conversations, freshest first.
func (c *HTTPClient) ListConversations(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	var out struct {
		Conversations []model.ConversationSummary `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/conversations", url.Values{"userId": {userID}}, nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// CreateConversation starts an empty conversation.
func (c *HTTPClient) CreateConversation(ctx context.Context, userID, mentorID string) (*model.ConversationSummary, error) {
	body := map[string]string{}
	if userID != "" {
		body["userId"] = userID
	}
	if mentorID != "" {
		body["mentorId"] = mentorID
	}
	var out model.ConversationSummary
	if err := c.do(ctx, http.MethodPost, "/conversations", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RenameConversation retitles a conversation.
func (c *HTTPClient) RenameConversation(ctx context.Context, userID, conversationID, title string) (*model.ConversationSummary, error) {
	body := map[string]string{"userId": userID, "conversationId": conversationID, "title": title}
	var out model.ConversationSummary
	if err := c.do(ctx, http.MethodPatch, "/conversations", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConversation removes a conversation.
func (c *HTTPClient) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	body := map[string]string{"userId": userID, "conversationId": conversationID}
	return c.do(ctx, http.MethodDelete, "/conversations", nil, body, nil)
}

// =============================================================================
// CHAT MODEL OPERATIONS
// =============================================================================

type modelsBody struct {
	Models []model.ChatModel `json:"models"`
}

// ListChatModels returns the user's catalog.
func (c *HTTPClient) ListChatModels(ctx context.Context, userID string) ([]model.ChatModel, error) {
	var out modelsBody
	if err := c.do(ctx, http.MethodGet, "/chat-models", url.Values{"userId": {userID}}, nil, &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

// AddChatModel appends a model and returns the updated catalog.
func (c *HTTPClient) AddChatModel(ctx context.Context, userID, modelID, label string) ([]model.ChatModel, error) {
	body := map[string]string{"userId": userID, "modelId": modelID, "label": label}
	var out modelsBody
	if err := c.do(ctx, http.MethodPost, "/chat-models", nil, body, &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

// RemoveChatModel drops a model and returns the updated catalog.
func (c *HTTPClient) RemoveChatModel(ctx context.Context, userID, modelID string) ([]model.ChatModel, error) {
	body := map[string]string{"userId": userID, "modelId": modelID}
	var out modelsBody
	if err := c.do(ctx, http.MethodDelete, "/chat-models", nil, body, &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

// ChatModelDefaults returns the system list new users are seeded with.
// Requires admin credentials when the server guards admin routes.
func (c *HTTPClient) ChatModelDefaults(ctx context.Context) ([]model.ChatModel, error) {
	var out modelsBody
	if err := c.do(ctx, http.MethodGet, "/chat-models/defaults", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

// ReplaceChatModelDefaults overwrites the system list in the given order.
func (c *HTTPClient) ReplaceChatModelDefaults(ctx context.Context, models []model.ChatModel) ([]model.ChatModel, error) {
	var out modelsBody
	if err := c.do(ctx, http.MethodPut, "/chat-models/defaults", nil, modelsBody{Models: models}, &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

// =============================================================================
// MENTOR OPERATIONS
// =============================================================================

// AdminOTPHeader carries the admin one-time code.
const AdminOTPHeader = "X-Admin-OTP"

// MentorInfo is one entry of GET /mentors.
type MentorInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
}

// ListMentors returns the live mentor set.
func (c *HTTPClient) ListMentors(ctx context.Context) ([]MentorInfo, error) {
	var out struct {
		Mentors []MentorInfo `json:"mentors"`
	}
	if err := c.do(ctx, http.MethodGet, "/mentors", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Mentors, nil
}

// GetMentorConfig returns the raw draft/published envelope for id.
func (c *HTTPClient) GetMentorConfig(ctx context.Context, id string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/mentors/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveMentorDraft stores cfg as the draft for id.
func (c *HTTPClient) SaveMentorDraft(ctx context.Context, id string, cfg json.RawMessage, updatedBy string) (json.RawMessage, error) {
	var q url.Values
	if updatedBy != "" {
		q = url.Values{"updatedBy": {updatedBy}}
	}
	var out json.RawMessage
	if err := c.do(ctx, http.MethodPut, "/mentors/"+url.PathEscape(id)+"/draft", q, cfg, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PublishMentor promotes the draft for id.
func (c *HTTPClient) PublishMentor(ctx context.Context, id, updatedBy string) (json.RawMessage, error) {
	var q url.Values
	if updatedBy != "" {
		q = url.Values{"updatedBy": {updatedBy}}
	}
	var out json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/mentors/"+url.PathEscape(id)+"/publish", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// HEALTH
// =============================================================================

// Health probes GET /health. Any 2xx counts as healthy.
func (c *HTTPClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

// IsUnreachable reports whether err means the server could not be reached.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable) || errors.Is(err, ErrTimeout)
}
