// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package reply turns a user message into a mentor reply.
//
// The Generator resolves the system prompt (a per-user override or the
// mentor's default), makes one bounded call to the language model provider,
// and translates every provider failure into a domain error. The raw cause
// is logged and never returned to callers verbatim. No retries are made here.
package reply

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jeranaias/polychat/internal/cloud"
	"github.com/jeranaias/polychat/internal/logger"
	"github.com/jeranaias/polychat/internal/mentor"
	"github.com/jeranaias/polychat/internal/metrics"
	"github.com/jeranaias/polychat/internal/model"
)

// DefaultTimeout bounds one provider call.
const DefaultTimeout = 15 * time.Second

// Provider is the narrow completion interface the generator depends on.
type Provider interface {
	Complete(ctx context.Context, p cloud.Prompt) (string, error)
}

// Prompts resolves mentor configs by id.
type Prompts interface {
	Get(id mentor.ID) *mentor.Config
}

// Request is the input to Generate.
type Request struct {
	Mentor         mentor.ID
	Message        string
	OverridePrompt string
	Model          string
}

// Reply is a successful generation.
type Reply struct {
	Text  string
	Model string
}

// Options configures a Generator.
type Options struct {
	DefaultModel string
	Timeout      time.Duration
}

// Generator produces mentor replies.
type Generator struct {
	provider     Provider
	prompts      Prompts
	defaultModel string
	timeout      time.Duration
	log          *logger.Logger
	metrics      *metrics.Metrics
}

// NewGenerator creates a Generator. m may be nil.
func NewGenerator(provider Provider, prompts Prompts, opts Options, log *logger.Logger, m *metrics.Metrics) *Generator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if strings.TrimSpace(opts.DefaultModel) == "" {
		opts.DefaultModel = cloud.DefaultModel
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Generator{
		provider:     provider,
		prompts:      prompts,
		defaultModel: opts.DefaultModel,
		timeout:      opts.Timeout,
		log:          log.Component("reply"),
		metrics:      m,
	}
}

// DefaultModel returns the model used when a request names none.
func (g *Generator) DefaultModel() string {
	return g.defaultModel
}

// Generate calls the provider once and returns the trimmed completion.
func (g *Generator) Generate(ctx context.Context, req Request) (*Reply, error) {
	cfg := g.prompts.Get(req.Mentor)
	system := strings.TrimSpace(req.OverridePrompt)
	if system == "" {
		system = SystemPrompt(cfg)
	}
	modelID := strings.TrimSpace(req.Model)
	if modelID == "" {
		modelID = g.defaultModel
	}

	prompt := cloud.Prompt{
		System:  system,
		Message: req.Message,
		Model:   modelID,
		Timeout: g.timeout,
		Params: cloud.Params{
			Temperature:      cfg.Model.Params.Temperature,
			TopP:             cfg.Model.Params.TopP,
			MaxTokens:        cfg.Model.Params.MaxTokens,
			FrequencyPenalty: cfg.Model.Params.FrequencyPenalty,
			PresencePenalty:  cfg.Model.Params.PresencePenalty,
		},
	}

	start := time.Now()
	text, err := g.provider.Complete(ctx, prompt)
	duration := time.Since(start)

	if err != nil {
		derr := translate(err)
		g.metrics.ObserveProvider(modelID, outcome(derr), duration)
		g.log.Error().
			Err(err).
			Str("mentor", string(req.Mentor)).
			Str("model", modelID).
			Str("kind", model.KindOf(derr).String()).
			Dur("duration", duration).
			Msg("provider call failed")
		return nil, derr
	}

	text = strings.TrimSpace(text)
	if text == "" {
		g.metrics.ObserveProvider(modelID, "empty", duration)
		g.log.Warn().
			Str("mentor", string(req.Mentor)).
			Str("model", modelID).
			Msg("provider returned an empty completion")
		return nil, model.NewProviderEmpty()
	}

	g.metrics.ObserveProvider(modelID, "ok", duration)
	return &Reply{Text: text, Model: modelID}, nil
}

// SystemPrompt renders a mentor config into the system message: the persona
// prompt, followed by style guidelines and a disclaimer when present.
func SystemPrompt(cfg *mentor.Config) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(cfg.Persona.SystemPrompt))
	if len(cfg.Persona.StyleGuidelines) > 0 {
		sb.WriteString("\n\nStyle guidelines:")
		for _, g := range cfg.Persona.StyleGuidelines {
			if g = strings.TrimSpace(g); g != "" {
				sb.WriteString("\n- ")
				sb.WriteString(g)
			}
		}
	}
	if d := strings.TrimSpace(cfg.Persona.Disclaimer); d != "" {
		sb.WriteString("\n\nAlways include this disclaimer: ")
		sb.WriteString(d)
	}
	return sb.String()
}

func translate(err error) error {
	if errors.Is(err, cloud.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return model.NewProviderTimeout(err)
	}
	if errors.Is(err, cloud.ErrEmptyResponse) {
		return model.NewProviderEmpty()
	}
	return model.NewProviderUnavailable(err)
}

func outcome(err error) string {
	switch model.KindOf(err) {
	case model.KindProviderTimeout:
		return "timeout"
	case model.KindProviderEmptyResponse:
		return "empty"
	default:
		return "error"
	}
}
