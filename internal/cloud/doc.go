// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides OpenRouter integration for mentor replies.
//
// OpenRouter exposes many model vendors behind one OpenAI-compatible API.
// This package wraps github.com/sashabaranov/go-openai with the OpenRouter
// attribution headers, a bounded per-call timeout, and typed errors.
//
// # Key Types
//
//   - OpenRouterClient: Chat completion client for OpenRouter
//   - Prompt: System prompt, user message, model, and sampling parameters
//   - OpenRouterError: Non-success response from the provider
//
// # Usage
//
//	client := cloud.NewOpenRouterClient(cloud.Options{APIKey: key}, log)
//	text, err := client.Complete(ctx, cloud.Prompt{
//	    System:  "You are a chess coach.",
//	    Message: "Best reply to 1.e4?",
//	    Model:   "openai/gpt-4o-mini",
//	})
//
// # Security
//
// API keys are never logged. Log lines carry a short SHA-256 fingerprint of
// the key instead.
package cloud
