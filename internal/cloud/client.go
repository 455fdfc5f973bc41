// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jeranaias/polychat/internal/logger"
)

// Configuration constants for the OpenRouter API.
const (
	// DefaultOpenRouterURL is the base URL for the OpenRouter API.
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

	// DefaultTimeout bounds a single completion call.
	DefaultTimeout = 15 * time.Second

	// DefaultModel is used when a prompt names no model.
	DefaultModel = "openai/gpt-4o-mini"
)

// Error variables for common provider failures.
var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("OpenRouter API key not configured")

	// ErrTimeout indicates the call exceeded its deadline or was cancelled.
	ErrTimeout = errors.New("provider request timed out")

	// ErrEmptyResponse indicates a success response without usable completion text.
	ErrEmptyResponse = errors.New("provider returned no completion text")
)

// OpenRouterError represents a non-success response from the API.
type OpenRouterError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

// Error implements the error interface.
func (e *OpenRouterError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("OpenRouter error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("OpenRouter error (HTTP %d): %s", e.Status, e.Message)
}

// Unwrap returns the underlying client error.
func (e *OpenRouterError) Unwrap() error {
	return e.Err
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Params are optional sampling parameters. Nil fields use provider defaults.
type Params struct {
	Temperature      *float64
	TopP             *float64
	MaxTokens        *int
	FrequencyPenalty *float64
	PresencePenalty  *float64
}

// Prompt is one single-turn completion request.
type Prompt struct {
	System  string
	Message string
	Model   string
	Params  Params

	// Timeout overrides the client timeout when positive.
	Timeout time.Duration
}

// Options configures an OpenRouterClient.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// Referer and Title are sent as HTTP-Referer and X-Title for OpenRouter
	// app attribution.
	Referer string
	Title   string

	// HTTPClient replaces the default transport. Used by tests.
	HTTPClient *http.Client
}

// =============================================================================
// CLIENT
// =============================================================================

// OpenRouterClient is a chat completion client for OpenRouter.
type OpenRouterClient struct {
	client  *openai.Client
	apiKey  string
	baseURL string
	timeout time.Duration
	log     *logger.Logger
}

// NewOpenRouterClient creates a client. An empty API key is accepted; calls
// then fail with ErrNotConfigured.
func NewOpenRouterClient(opts Options, log *logger.Logger) *OpenRouterClient {
	if log == nil {
		log = logger.Nop()
	}
	baseURL := strings.TrimSuffix(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultOpenRouterURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{}
	}
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	httpClient := *base
	httpClient.Transport = &attributionTransport{
		base:    transport,
		referer: opts.Referer,
		title:   opts.Title,
	}

	apiKey := strings.TrimSpace(opts.APIKey)
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &httpClient

	return &OpenRouterClient{
		client:  openai.NewClientWithConfig(cfg),
		apiKey:  apiKey,
		baseURL: baseURL,
		timeout: timeout,
		log:     log.Component("cloud"),
	}
}

// IsConfigured returns true if the client has an API key configured.
func (c *OpenRouterClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Timeout returns the default per-call timeout.
func (c *OpenRouterClient) Timeout() time.Duration {
	return c.timeout
}

// KeyFingerprint returns a short SHA-256 fingerprint of the API key, safe
// to log.
func (c *OpenRouterClient) KeyFingerprint() string {
	if c.apiKey == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(c.apiKey))
	return hex.EncodeToString(h[:4])
}

// Complete sends one system+user exchange and returns the raw completion
// text. An empty completion is returned as "" with a nil error. Cancellation
// on timeout aborts the outbound request.
func (c *OpenRouterClient) Complete(ctx context.Context, p Prompt) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}
	timeout := c.timeout
	if p.Timeout > 0 {
		timeout = p.Timeout
	}
	modelID := strings.TrimSpace(p.Model)
	if modelID == "" {
		modelID = DefaultModel
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: modelID,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.Message},
		},
	}
	applyParams(&req, p.Params)

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(callCtx, req)
	duration := time.Since(start)
	if err != nil {
		err = c.translate(callCtx, err)
		c.log.Warn().
			Err(err).
			Str("model", modelID).
			Str("key", c.KeyFingerprint()).
			Dur("duration", duration).
			Msg("completion failed")
		return "", err
	}

	c.log.Debug().
		Str("model", modelID).
		Str("id", resp.ID).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Dur("duration", duration).
		Msg("completion received")

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// ModelInfo describes one model advertised by the provider.
type ModelInfo struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// ListModels retrieves the models the provider advertises.
func (c *OpenRouterClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	list, err := c.client.ListModels(callCtx)
	if err != nil {
		return nil, c.translate(callCtx, err)
	}
	out := make([]ModelInfo, 0, len(list.Models))
	for _, m := range list.Models {
		out = append(out, ModelInfo{ID: m.ID, OwnedBy: m.OwnedBy})
	}
	return out, nil
}

// translate maps go-openai and transport errors onto ErrTimeout,
// ErrEmptyResponse or *OpenRouterError.
func (c *OpenRouterClient) translate(callCtx context.Context, err error) error {
	if callCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if apiErr.Code != nil {
			code = fmt.Sprint(apiErr.Code)
		}
		return &OpenRouterError{
			Code:    code,
			Message: apiErr.Message,
			Status:  apiErr.HTTPStatusCode,
			Err:     err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &OpenRouterError{
			Message: http.StatusText(reqErr.HTTPStatusCode),
			Status:  reqErr.HTTPStatusCode,
			Err:     err,
		}
	}

	// A 2xx body that does not decode carries no string completion.
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	if errors.As(err, &typeErr) || errors.As(err, &syntaxErr) {
		return fmt.Errorf("%w: %v", ErrEmptyResponse, err)
	}

	return &OpenRouterError{Message: err.Error(), Err: err}
}

func applyParams(req *openai.ChatCompletionRequest, p Params) {
	if p.Temperature != nil {
		req.Temperature = float32(*p.Temperature)
	}
	if p.TopP != nil {
		req.TopP = float32(*p.TopP)
	}
	if p.MaxTokens != nil {
		req.MaxTokens = *p.MaxTokens
	}
	if p.FrequencyPenalty != nil {
		req.FrequencyPenalty = float32(*p.FrequencyPenalty)
	}
	if p.PresencePenalty != nil {
		req.PresencePenalty = float32(*p.PresencePenalty)
	}
}

// attributionTransport adds the OpenRouter attribution headers.
type attributionTransport struct {
	base    http.RoundTripper
	referer string
	title   string
}

func (t *attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.referer == "" && t.title == "" {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	if t.referer != "" {
		req.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		req.Header.Set("X-Title", t.title)
	}
	return t.base.RoundTrip(req)
}
