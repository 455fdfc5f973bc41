// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ratelimit bounds how many user messages a conversation accepts
// within a trailing time window.
//
// The count comes from the message log, so the limit holds across server
// restarts and replicas. When the count query fails the limiter fails open:
// the request is allowed and the failure is logged.
package ratelimit

import (
	"context"
	"time"

	"github.com/jeranaias/polychat/internal/logger"
	"github.com/jeranaias/polychat/internal/metrics"
	"github.com/jeranaias/polychat/internal/model"
)

// Defaults for the sliding window.
const (
	DefaultWindow      = 60 * time.Second
	DefaultMaxMessages = 20
)

// Counter counts user-role messages created at or after since.
type Counter interface {
	CountUserMessagesSince(ctx context.Context, conversationID string, since time.Time) (int, error)
}

// Config bounds the window.
type Config struct {
	Window      time.Duration
	MaxMessages int
}

// Limiter enforces the per-conversation limit.
type Limiter struct {
	counter Counter
	window  time.Duration
	max     int
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a Limiter. Zero config values take the defaults. m may be nil.
func New(counter Counter, cfg Config, log *logger.Logger, m *metrics.Metrics) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = DefaultMaxMessages
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Limiter{
		counter: counter,
		window:  cfg.Window,
		max:     cfg.MaxMessages,
		log:     log.Component("ratelimit"),
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Window returns the configured window.
func (l *Limiter) Window() time.Duration { return l.window }

// Max returns the configured message limit per window.
func (l *Limiter) Max() int { return l.max }

// Enforce returns a rate-limited error when the conversation already holds
// the maximum number of user messages inside the window.
func (l *Limiter) Enforce(ctx context.Context, conversationID string) error {
	since := l.now().Add(-l.window)
	count, err := l.counter.CountUserMessagesSince(ctx, conversationID, since)
	if err != nil {
		l.log.Warn().
			Err(err).
			Str("conversation_id", conversationID).
			Msg("rate limit check failed, allowing request")
		l.metrics.IncFailOpen()
		return nil
	}

	if count >= l.max {
		l.log.Info().
			Str("conversation_id", conversationID).
			Int("count", count).
			Int("max", l.max).
			Msg("rate limit exceeded")
		l.metrics.IncRateLimited()
		return model.NewRateLimited(map[string]any{
			"windowSeconds": int(l.window / time.Second),
			"maxMessages":   l.max,
		})
	}
	return nil
}
