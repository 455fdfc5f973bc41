// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the domain types shared by the server and the client.
//
// This package defines users, conversations, messages, chat model catalog
// entries, and the error taxonomy used across every layer.
//
// # Key Types
//
//   - Conversation: A thread between one user and one mentor persona
//   - ConversationSummary: List view of a conversation (preview, freshness)
//   - Message: Single append-only message with role, content, and metadata
//   - ChatModel: One entry in a user's selectable model catalog
//   - Error: Typed domain error carrying a Kind for transport mapping
//
// # Usage
//
// Build a typed error and inspect it later:
//
//	err := model.NewRateLimited("Too many messages, slow down.")
//	if model.KindOf(err) == model.KindRateLimited {
//	    // back off
//	}
package model
